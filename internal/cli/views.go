package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// NewExploreCommand lists backlog and running experiments by ICE score.
func NewExploreCommand(opts *RootOptions) *cobra.Command {
	var asc bool
	cmd := &cobra.Command{
		Use:   "explore [query]",
		Short: "List ideas and running experiments by ICE score",
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, args []string) error {
			dir := core.SortDesc
			if asc {
				dir = core.SortAsc
			}
			records := a.svc.Explore(strings.Join(args, " "), dir)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No experiments found.")
				return nil
			}
			for _, e := range records {
				printExperimentLine(cmd.OutOrStdout(), e)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asc, "asc", false, "lowest score first")
	return cmd
}

// NewBoardCommand prints the in-flight lanes.
func NewBoardCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board [query]",
		Short: "Show the Prioritized / Building / Live Testing / Analysis lanes",
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, args []string) error {
			w := cmd.OutOrStdout()
			for _, col := range a.svc.Board(strings.Join(args, " ")) {
				fmt.Fprintf(w, "%s (%d)\n", statusLabel(col.Status), len(col.Experiments))
				for _, e := range col.Experiments {
					printExperimentLine(w, e)
				}
			}
			return nil
		}),
	}
}

// NewLibraryCommand lists finished experiments.
func NewLibraryCommand(opts *RootOptions) *cobra.Command {
	var result, stage, query string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Browse finished experiments and their learnings",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			fs, err := domain.ParseFunnelStage(stage)
			if err != nil {
				return err
			}
			lr := core.LibraryResult(strings.ToLower(result))
			switch lr {
			case core.LibraryAll, core.LibraryWinners, core.LibraryLosers:
			default:
				return &domain.ValidationError{Field: "result", Reason: "must be all, winners or losers"}
			}
			records := a.svc.Library(core.LibraryFilter{Result: lr, Stage: fs, Query: query})
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No finished experiments found.")
				return nil
			}
			w := cmd.OutOrStdout()
			for _, e := range records {
				fmt.Fprintf(w, "%s  %s  %s  %s\n", e.EndDate, e.ID, e.Title, statusLabel(e.Status))
				if e.KeyLearnings != "" {
					fmt.Fprintf(w, "    %s\n", e.KeyLearnings)
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&result, "result", string(core.LibraryAll), "all|winners|losers")
	cmd.Flags().StringVar(&stage, "stage", "", "funnel stage")
	cmd.Flags().StringVar(&query, "query", "", "match title or learnings")
	return cmd
}

// NewTreeCommand prints the North-Star hierarchy.
func NewTreeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show North-Star, objectives, strategies and linked experiments",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			w := cmd.OutOrStdout()
			tree := a.svc.Tree()
			printNorthStar(w, tree.NorthStar)
			heading := color.New(color.Bold)
			for _, on := range tree.Objectives {
				fmt.Fprintf(w, "├─ %s %s [%s %d%%]\n", on.Objective.ID, heading.Sprint(on.Objective.Title), on.Objective.Status, on.Objective.Progress)
				for _, sn := range on.Strategies {
					fmt.Fprintf(w, "│  ├─ %s %s\n", sn.Strategy.ID, sn.Strategy.Title)
					for _, e := range sn.Experiments {
						fmt.Fprintf(w, "│  │  └─ %s %s (ICE %d, %s)\n", e.ID, e.Title, e.ICEScore, statusLabel(e.Status))
					}
				}
			}
			if len(tree.Unlinked) > 0 {
				fmt.Fprintf(w, "└─ unlinked experiments (%d)\n", len(tree.Unlinked))
				for _, e := range tree.Unlinked {
					fmt.Fprintf(w, "   └─ %s %s (ICE %d, %s)\n", e.ID, e.Title, e.ICEScore, statusLabel(e.Status))
				}
			}
			return nil
		}),
	}
}
