package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ummahlocal/scout-cli/internal/scraper"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the available scrape sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		for _, a := range scraper.DefaultRegistry(nil).All() {
			states := "state filter supported"
			if !a.SupportsState("XX") {
				states = "no state filter"
			}
			fmt.Fprintf(out, "%-12s %-8s %s\n", a.Name(), a.Kind(), states)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
