package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vmlab-project/vmlab/recording"
	"github.com/vmlab-project/vmlab/vm"
)

var traceCmd = &cobra.Command{
	Use:   "trace <database>",
	Short: "Dump rows from a recorded access-trace database.",
	Long: "`trace` lists the tables of a SQLite trace database, or dumps " +
		"--limit rows of --table starting at --offset.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reader, err := recording.NewReader(args[0])
		if err != nil {
			log.Fatalf("Error opening trace database: %v", err)
		}
		defer reader.Close()

		table, _ := cmd.Flags().GetString("table")
		if table == "" {
			tables, err := reader.ListTables()
			if err != nil {
				log.Fatalf("Error listing tables: %v", err)
			}
			for _, t := range tables {
				fmt.Println(t)
			}
			return
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		rows, err := reader.Accesses(table, limit, offset)
		if err != nil {
			log.Fatalf("Error reading %s: %v", table, err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "seq\tvpn\thit\tframe\tevicted")
		for _, r := range rows {
			evicted := ""
			if r.EvictedVPN != nil {
				evicted = vm.FormatHex(*r.EvictedVPN)
			}
			fmt.Fprintf(tw, "%d\t%s\t%t\t%d\t%s\n",
				r.Seq, vm.FormatHex(r.VPN), r.Hit, r.Frame, evicted)
		}
		if err := tw.Flush(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().String("table", "",
		"Table to dump; empty lists the tables")
	traceCmd.Flags().Int("limit", 50, "Maximum rows to dump")
	traceCmd.Flags().Int("offset", 0, "Rows to skip")
}
