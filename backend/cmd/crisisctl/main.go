// crisisctl analyses text for crisis risk from the command line.
//
// Usage:
//
//	crisisctl analyze "I can't do this anymore" [--json] [--language=es]
//	crisisctl repl
//	crisisctl patterns [--json]
//	crisisctl compile-policy [routing.yaml]
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	libraryPath string
	policyPath  string
}

var rootCmd = &cobra.Command{
	Use:   "crisisctl",
	Short: "Crisis risk analysis for chat messages",
	Long:  "crisisctl runs the crisis detection engine and routing policy locally,\nwithout the crisisd HTTP service.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.libraryPath, "library", os.Getenv("CRISIS_LIBRARY_PATH"), "Pattern library YAML (default: embedded library)")
	pf.StringVar(&rootFlags.policyPath, "policy", os.Getenv("ROUTING_POLICY_PATH"), "Routing policy, .cedar or .yaml (default: built-in policy)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(compilePolicyCmd)
	rootCmd.Version = version
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
