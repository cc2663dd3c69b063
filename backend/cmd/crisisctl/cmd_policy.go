package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/policy"
)

var compilePolicyCmd = &cobra.Command{
	Use:   "compile-policy [routing.yaml]",
	Short: "Compile a routing policy YAML file to Cedar",
	Long: `Compile a routing policy to the Cedar text the routing engine evaluates.
Without an argument the built-in default policy is compiled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompilePolicy,
}

func runCompilePolicy(cmd *cobra.Command, args []string) error {
	p := policy.DefaultRoutingPolicy()
	if len(args) == 1 {
		loaded, err := policy.LoadRoutingPolicy(args[0])
		if err != nil {
			return err
		}
		p = loaded
	}

	src, err := policy.Compile(p)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), src)
	return nil
}
