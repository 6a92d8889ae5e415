package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lookupkv"
	"lookupkv/matcher"
)

var inspectConfig struct {
	hex   string
	dim   int
	words string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "decode a single hex encoded blob",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectConfig.hex, "hex", "", "blob in hex")
	inspectCmd.Flags().IntVar(&inspectConfig.dim, "dim", 0,
		"dimension of the blob (overrides the options)")
	inspectCmd.Flags().StringVar(&inspectConfig.words, "words", "",
		"comma separated words to look up")
}

func runInspect(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions()
	if err != nil {
		return err
	}
	if inspectConfig.dim > 0 {
		opt.Dim = inspectConfig.dim
	}
	blob, err := hex.DecodeString(strings.TrimSpace(inspectConfig.hex))
	if err != nil {
		return err
	}
	codec, err := lookupkv.NewCodec(opt, nil)
	if err != nil {
		return err
	}
	table, err := codec.Open(blob)
	if err != nil {
		return err
	}
	m := table.Metadata()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "layout %s dim %d keys %d key type %s (%d bytes) value type %s (%d bytes)\n",
		codec.Layout(), m.Dim, m.KeyCount, m.KeyType, m.KeySize, m.ValueType, m.ValueSize)
	for _, w := range strings.Split(inspectConfig.words, ",") {
		if w = strings.TrimSpace(w); w == "" {
			continue
		}
		vals, ok := matcher.Lookup(table, w)
		if !ok {
			fmt.Fprintf(out, "%s: not found\n", w)
			continue
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			if v.Valid {
				cells[i] = fmt.Sprint(v.V)
			} else {
				cells[i] = "-"
			}
		}
		fmt.Fprintf(out, "%s: %s\n", w, strings.Join(cells, " "))
	}
	return nil
}
