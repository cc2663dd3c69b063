package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactively assess messages",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	svc, err := newService()
	if err != nil {
		return err
	}
	lib := svc.Engine().Library()

	fmt.Fprintln(out, colorCyan+colorBold+`
╔═══════════════════════════════════════════════════════════╗
║          CRISIS GUARD - Interactive CLI                   ║
║          Type a message to assess its crisis risk         ║
║          Type 'exit' or 'quit' to exit                    ║
╚═══════════════════════════════════════════════════════════╝`+colorReset)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s[✓] Components initialized%s\n", colorGreen, colorReset)
	fmt.Fprintf(out, "    Library: v%s (%d patterns)\n", lib.Version(), len(lib.Patterns()))
	fmt.Fprintf(out, "    Policy:  %s\n", svc.Router().PolicyVersion())
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprintf(out, "%s%s> %s", colorBold, colorBlue, colorReset)

		if !scanner.Scan() {
			break
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			fmt.Fprintln(out, colorCyan+"Goodbye!"+colorReset)
			break
		}

		a, err := svc.Assess(cmd.Context(), server.AssessRequest{Text: text})
		if err != nil {
			return err
		}
		printAssessment(out, a, true)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}
