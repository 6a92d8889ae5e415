package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lookupkv"
)

var dumpConfig struct {
	table string
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "list the tables and docs of a feature db",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpConfig.table, "table", "",
		"table file or directory of tables (defaults to work_dir)")
}

func runDump(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions()
	if err != nil {
		return err
	}
	path := dumpConfig.table
	if path == "" {
		path = opt.WorkDir
	}
	db, err := lookupkv.Open(path, opt, stats)
	if err != nil {
		return err
	}
	defer db.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 8, 2, ' ', 0)
	for _, t := range db.Tables() {
		fmt.Fprintf(w, "table %d\tdocs %d\tblocks %d\tbytes %d\tdoc range [%d, %d]\n",
			t.Fid(), t.KeyCount(), len(t.Index().BlockOffsets), t.Size(), t.MinDoc(), t.MaxDoc())
	}
	fmt.Fprintln(w, "doc\tbytes\tkeys\tkey type\tvalue type")
	iter := db.NewIterator()
	defer iter.Close()
	for iter.Rewind(); iter.Valid(); iter.Next() {
		e := iter.Item()
		table, err := db.Codec().Open(e.Blob)
		if err != nil {
			fmt.Fprintf(w, "%d\t%d\t%v\n", e.DocID, len(e.Blob), err)
			continue
		}
		m := table.Metadata()
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", e.DocID, len(e.Blob), m.KeyCount, m.KeyType, m.ValueType)
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return w.Flush()
}
