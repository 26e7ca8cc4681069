package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"tokex/config"
	"tokex/infra/wal/entry"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the instruction journal",
}

var dumpFrom uint64

var journalDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every journaled instruction",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		last, err := entry.Replay(cfg.Journal.Dir, func(r *entry.Record) error {
			if r.Seq < dumpFrom {
				return nil
			}
			var body map[string]any
			if len(r.Data) > 0 {
				if err := msgpack.Unmarshal(r.Data, &body); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(out, "%d\t%s\t%s\t%v\n",
				r.Seq, time.Unix(0, r.Time).UTC().Format(time.RFC3339Nano), r.Type, body)
			return err
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "last seq %d\n", last)
		return err
	},
}

func init() {
	journalDumpCmd.Flags().Uint64Var(&dumpFrom, "from", 0, "skip records below this sequence")
	journalCmd.AddCommand(journalDumpCmd)
}
