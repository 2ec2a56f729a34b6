package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var capabilitiesJSON bool

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List capabilities and their availability against the data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		avail, err := env.Source.Availability(ctx)
		if err != nil {
			return err
		}
		entries := capabilityReport(avail)

		if capabilitiesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CAPABILITY\tTABLE\tBOOST\tAVAILABLE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%t\n", e.ID, e.Table, e.Boost, e.Available)
		}
		return w.Flush()
	},
}

func init() {
	capabilitiesCmd.Flags().BoolVar(&capabilitiesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(capabilitiesCmd)
}
