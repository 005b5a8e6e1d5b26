package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

func statusLabel(s core.Status) string {
	var c *color.Color
	switch s {
	case domain.StatusIdea:
		c = color.New(color.FgWhite)
	case domain.StatusPrioritized:
		c = color.New(color.FgCyan)
	case domain.StatusBuilding:
		c = color.New(color.FgBlue)
	case domain.StatusLiveTesting:
		c = color.New(color.FgMagenta)
	case domain.StatusAnalysis:
		c = color.New(color.FgYellow)
	case domain.StatusFinishedWinner:
		c = color.New(color.FgGreen)
	case domain.StatusFinishedLoser:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgHiBlack)
	}
	return c.Sprint(string(s))
}

func iceLabel(score int) string {
	switch domain.ICEBand(score) {
	case "high":
		return color.New(color.FgGreen, color.Bold).Sprintf("%4d", score)
	case "medium":
		return color.New(color.FgYellow).Sprintf("%4d", score)
	default:
		return fmt.Sprintf("%4d", score)
	}
}

func printExperimentLine(w io.Writer, e core.Experiment) {
	fmt.Fprintf(w, "  %s  ICE %s  %-40s %s\n", e.ID, iceLabel(e.ICEScore), e.Title, statusLabel(e.Status))
}

func printExperiment(w io.Writer, e core.Experiment) {
	fmt.Fprintf(w, "%s: %s\n", e.ID, e.Title)
	fmt.Fprintf(w, "  Status:     %s\n", statusLabel(e.Status))
	fmt.Fprintf(w, "  ICE:        %d (impact %d, confidence %d, ease %d)\n", e.ICEScore, e.Impact, e.Confidence, e.Ease)
	if e.FunnelStage != "" {
		fmt.Fprintf(w, "  Stage:      %s\n", e.FunnelStage)
	}
	if e.Owner.Name != "" {
		fmt.Fprintf(w, "  Owner:      %s\n", e.Owner.Name)
	}
	if e.LinkedStrategyID != nil {
		fmt.Fprintf(w, "  Strategy:   %s\n", *e.LinkedStrategyID)
	}
	if e.NorthStarMetric != "" {
		fmt.Fprintf(w, "  North-Star: %s\n", e.NorthStarMetric)
	}
	for _, f := range []struct{ label, value string }{
		{"Hypothesis", e.Hypothesis},
		{"Observation", e.Observation},
		{"Problem", e.Problem},
		{"Source", e.Source},
		{"Success", e.SuccessCriteria},
		{"Target", e.TargetMetric},
		{"Test URL", e.TestURL},
		{"Started", e.StartDate},
		{"Ended", e.EndDate},
		{"Learnings", e.KeyLearnings},
	} {
		if f.value != "" {
			fmt.Fprintf(w, "  %-11s %s\n", f.label+":", f.value)
		}
	}
	if len(e.Labels) > 0 {
		fmt.Fprintf(w, "  Labels:     %s\n", strings.Join(e.Labels, ", "))
	}
	for _, key := range e.VisualProof {
		fmt.Fprintf(w, "  Proof:      %s\n", key)
	}
}

func printNorthStar(w io.Writer, ns core.NorthStarMetric) {
	fmt.Fprintf(w, "%s (%s): %s  %d%%\n", ns.Name, domain.UnitLabel(ns.Type), domain.FormatProgress(ns), domain.Progress(ns))
}

func printViolations(w io.Writer, res core.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(w, "%s %s: %s\n", warnMark, v.Rule, v.Message)
	}
}
