package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

var patternsJSON bool

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the crisis patterns of the loaded library",
	Args:  cobra.NoArgs,
	RunE:  runPatterns,
}

func init() {
	patternsCmd.Flags().BoolVar(&patternsJSON, "json", false, "Print the library summary as JSON")
}

func runPatterns(cmd *cobra.Command, args []string) error {
	lib, err := crisis.OpenLibrary(rootFlags.libraryPath)
	if err != nil {
		return fmt.Errorf("load pattern library: %w", err)
	}

	out := cmd.OutOrStdout()
	if patternsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(server.PatternsResponse{Version: lib.Version(), Patterns: lib.Summary()})
	}

	fmt.Fprintf(out, "Pattern library v%s\n\n", lib.Version())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tWEIGHT\tDESCRIPTION")
	for _, p := range lib.Summary() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\n", p.ID, p.Category, p.Severity, p.RiskWeight, p.Description)
	}
	return tw.Flush()
}
