package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lookupkv"
)

var queryConfig struct {
	table string
	doc   uint64
	words string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "match words against the blob of one doc",
	Args:  cobra.NoArgs,
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryConfig.table, "table", "",
		"table file or directory of tables (defaults to work_dir)")
	queryCmd.Flags().Uint64Var(&queryConfig.doc, "doc", 0, "doc id")
	queryCmd.Flags().StringVar(&queryConfig.words, "words", "",
		"comma separated words")
}

func runQuery(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions()
	if err != nil {
		return err
	}
	path := queryConfig.table
	if path == "" {
		path = opt.WorkDir
	}
	db, err := lookupkv.Open(path, opt, stats)
	if err != nil {
		return err
	}
	defer db.Close()

	var words []string
	for _, w := range strings.Split(queryConfig.words, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	out, matched, err := db.Match(queryConfig.doc, words)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "doc %d %s matched=%t %v\n",
		queryConfig.doc, db.Codec().Kind(), matched, out)
	return nil
}
