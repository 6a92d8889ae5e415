package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"lookupkv"
	"lookupkv/kv"
)

var buildConfig struct {
	input string
	out   string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "encode JSON lines records into a feature table",
	Long: `Each input line is one record:

  {"doc": 7, "fields": [{"apple": 400, "chair": 130}, {"apple": 614545}]}

with one object per dimension. Without --out the table is added to the
work_dir of the options as the next numbered table.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildConfig.input, "input", "-",
		"records file, one JSON object per line (- reads stdin)")
	buildCmd.Flags().StringVar(&buildConfig.out, "out", "",
		"table file to write")
}

type jsonRecord struct {
	Doc    uint64               `json:"doc"`
	Fields []map[string]float32 `json:"fields"`
}

func readRecords(r io.Reader) ([]lookupkv.Record, error) {
	var records []lookupkv.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var jr jsonRecord
		if err := json.Unmarshal(sc.Bytes(), &jr); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rec := lookupkv.Record{DocID: jr.Doc, Fields: make([]kv.Field, len(jr.Fields))}
		for i, m := range jr.Fields {
			rec.Fields[i] = kv.FieldFromMap(m)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}

func runBuild(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions()
	if err != nil {
		return err
	}
	in := io.Reader(os.Stdin)
	if buildConfig.input != "-" {
		f, err := os.Open(buildConfig.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	records, err := readRecords(in)
	if err != nil {
		return err
	}

	ctx := context.Background()
	path := buildConfig.out
	if path == "" {
		path, err = lookupkv.BuildNext(ctx, opt, records, stats)
	} else {
		err = lookupkv.Build(ctx, path, opt, records, stats)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", path, len(records))
	return nil
}
