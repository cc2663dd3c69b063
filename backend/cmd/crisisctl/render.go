package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func severityColor(s crisis.Severity) string {
	switch {
	case s.Rank() >= crisis.SeverityCritical.Rank():
		return colorRed
	case s.Rank() >= crisis.SeverityMedium.Rank():
		return colorYellow
	default:
		return colorGreen
	}
}

// printAssessment renders an assessment as a boxed report. color adds ANSI codes.
func printAssessment(w io.Writer, a *server.Assessment, color bool) {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + colorReset
	}

	r := a.Result
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", paint(colorBold+severityColor(r.OverallSeverity), "SEVERITY: "+strings.ToUpper(string(r.OverallSeverity))))
	if r.IsFailsafe() {
		fmt.Fprintf(w, "  %s\n", paint(colorRed, crisis.FailsafeConcern))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, paint(colorYellow, "┌─ Risk ─────────────────────────────────────────────"))
	fmt.Fprintf(w, "│ Immediate:  %.1f\n", r.RiskAssessment.ImmediateRisk)
	fmt.Fprintf(w, "│ Short term: %.1f\n", r.RiskAssessment.ShortTermRisk)
	fmt.Fprintf(w, "│ Long term:  %.1f\n", r.RiskAssessment.LongTermRisk)
	fmt.Fprintf(w, "│ Urgency:    %s\n", r.RiskAssessment.InterventionUrgency)
	fmt.Fprintf(w, "│ Escalation: %v   Emergency services: %v\n", r.EscalationRequired, r.EmergencyServicesRequired)
	fmt.Fprintln(w, paint(colorYellow, "└────────────────────────────────────────────────────"))

	if len(r.KeywordMatches) > 0 {
		fmt.Fprintln(w, paint(colorCyan, "┌─ Matches ──────────────────────────────────────────"))
		for _, m := range r.KeywordMatches {
			fmt.Fprintf(w, "│ %-22s %-18s %.0f%%  %q\n", m.Category, m.PatternID, m.Confidence*100, m.Keyword)
		}
		fmt.Fprintln(w, paint(colorCyan, "└────────────────────────────────────────────────────"))
	}

	for _, rec := range r.InterventionRecommendations {
		fmt.Fprintf(w, "[P%d] %s (%s)\n", rec.Priority, rec.Description, rec.Timeframe)
		for _, item := range rec.ActionItems {
			fmt.Fprintf(w, "     - %s\n", item)
		}
	}

	if a.Routing != nil {
		fmt.Fprintf(w, "Routing: %s (policy %s)\n", a.Routing.Action, a.Routing.PolicyVersion)
		for _, ob := range a.Routing.Obligations {
			if len(ob.Fields) > 0 {
				fmt.Fprintf(w, "  • %s [%s]\n", ob.Type, strings.Join(ob.Fields, ", "))
				continue
			}
			fmt.Fprintf(w, "  • %s\n", ob.Type)
		}
	}

	for _, c := range r.AnalysisMetadata.FlaggedConcerns {
		fmt.Fprintf(w, "Note: %s\n", c)
	}
}
