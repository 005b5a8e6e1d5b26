package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"growthcore/internal/core"
)

// NewStrategyCommand creates the strategy command group.
func NewStrategyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strat"},
		Short:   "Manage strategies under an objective",
	}
	cmd.AddCommand(
		newStrategyCreateCommand(opts),
		newStrategyListCommand(opts),
		newStrategyEditCommand(opts),
		newStrategyDeleteCommand(opts),
	)
	return cmd
}

func newStrategyCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <objective-id> [title]",
		Short: "Create a strategy; prompts for the title when omitted",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var st core.Strategy
			var err error
			if len(args) == 1 {
				var ok bool
				st, ok, err = a.svc.CreateStrategyFromPrompt(ctx, args[0])
				if err == nil && !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			} else {
				st, _, err = a.svc.CreateStrategy(ctx, args[0], strings.Join(args[1:], " "))
			}
			if err != nil {
				return fmt.Errorf("failed to create strategy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created strategy %s: %s\n", okMark, st.ID, st.Title)
			fmt.Fprintf(cmd.OutOrStdout(), "  Under objective: %s\n", st.ParentObjectiveID)
			return nil
		}),
	}
}

func newStrategyListCommand(opts *RootOptions) *cobra.Command {
	var objectiveID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List strategies",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			byStrategy := a.svc.ExperimentsByStrategy()
			var found int
			for _, st := range a.svc.Strategies() {
				if objectiveID != "" && st.ParentObjectiveID != objectiveID {
					continue
				}
				found++
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  [%s] (%d experiments)\n", st.ID, st.Title, st.ParentObjectiveID, len(byStrategy[st.ID]))
			}
			if found == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No strategies found.")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&objectiveID, "objective", "", "only strategies under this objective")
	return cmd
}

func newStrategyEditCommand(opts *RootOptions) *cobra.Command {
	var title, target string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a strategy's title or target metric",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var patch core.StrategyPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("target-metric") {
				patch.TargetMetric = &target
			}
			st, _, err := a.svc.EditStrategy(ctx, args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to edit strategy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated strategy %s: %s\n", okMark, st.ID, st.Title)
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&target, "target-metric", "", "metric the strategy moves")
	return cmd
}

func newStrategyDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a strategy; its experiments are kept unlinked",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			impact, _, err := a.svc.DeleteStrategy(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete strategy: %w", err)
			}
			if !impact.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Strategy %s not found; nothing deleted.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted strategy %s (%d experiments unlinked)\n", okMark, args[0], len(impact.UnlinkedExperiments))
			return nil
		}),
	}
}
