package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

var analyzeFlags struct {
	file            string
	jsonOut         bool
	userID          string
	culturalContext string
	language        string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Assess one message for crisis risk",
	Long: `Analyze a message and print its severity, risk scores, recommendations
and routing obligations.

Usage:
  crisisctl analyze "I just took too many pills"
  crisisctl analyze --file message.txt --json
  echo "..." | crisisctl analyze --file -`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFlags.file, "file", "f", "", "Read the message from a file (- for stdin)")
	f.BoolVar(&analyzeFlags.jsonOut, "json", false, "Print the full assessment as JSON")
	f.StringVar(&analyzeFlags.userID, "user", "", "User ID passed to the routing policy")
	f.StringVar(&analyzeFlags.culturalContext, "cultural-context", "", "Cultural context for recommendations")
	f.StringVar(&analyzeFlags.language, "language", "", "Language code (default: en)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, err := analyzeInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	a, err := svc.Assess(cmd.Context(), server.AssessRequest{
		Text:            text,
		UserID:          analyzeFlags.userID,
		CulturalContext: analyzeFlags.culturalContext,
		LanguageCode:    analyzeFlags.language,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	printAssessment(out, a, false)
	return nil
}

func analyzeInput(stdin io.Reader, args []string) (string, error) {
	switch {
	case analyzeFlags.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case analyzeFlags.file != "":
		data, err := os.ReadFile(analyzeFlags.file)
		if err != nil {
			return "", fmt.Errorf("read message file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", errors.New("a message is required\n\nUsage: crisisctl analyze \"<text>\"\n       crisisctl analyze --file <path>")
}
