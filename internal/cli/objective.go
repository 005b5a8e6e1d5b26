package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// NewObjectiveCommand creates the objective command group.
func NewObjectiveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "objective",
		Aliases: []string{"obj"},
		Short:   "Manage objectives under the North-Star",
	}
	cmd.AddCommand(
		newObjectiveCreateCommand(opts),
		newObjectiveListCommand(opts),
		newObjectiveEditCommand(opts),
		newObjectiveStatusCommand(opts),
		newObjectiveProgressCommand(opts),
		newObjectiveDeleteCommand(opts),
	)
	return cmd
}

func newObjectiveCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create an objective; prompts for the title when omitted",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var o core.Objective
			if len(args) == 0 {
				var ok bool
				var err error
				o, ok, err = a.svc.CreateObjectiveFromPrompt(ctx)
				if err != nil {
					return fmt.Errorf("failed to create objective: %w", err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			} else {
				var err error
				o, _, err = a.svc.CreateObjective(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("failed to create objective: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created objective %s: %s\n", okMark, o.ID, o.Title)
			return nil
		}),
	}
}

func newObjectiveListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			objectives := a.svc.Objectives()
			if len(objectives) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No objectives found.")
				return nil
			}
			byObjective := a.svc.StrategiesByObjective()
			for _, o := range objectives {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s %3d%%  %s (%d strategies)\n",
					o.ID, o.Status, o.Progress, o.Title, len(byObjective[o.ID]))
			}
			return nil
		}),
	}
}

func newObjectiveEditCommand(opts *RootOptions) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an objective's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var patch core.ObjectivePatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			o, _, err := a.svc.EditObjective(ctx, args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to edit objective: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated objective %s: %s\n", okMark, o.ID, o.Title)
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func newObjectiveStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <Active|Done>",
		Short: "Set an objective's status",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			status := domain.ObjectiveStatus(args[1])
			for _, known := range []domain.ObjectiveStatus{domain.ObjectiveActive, domain.ObjectiveDone} {
				if strings.EqualFold(args[1], string(known)) {
					status = known
				}
			}
			o, _, err := a.svc.SetObjectiveStatus(ctx, args[0], status)
			if err != nil {
				return fmt.Errorf("failed to set objective status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Objective %s is %s\n", okMark, o.ID, o.Status)
			return nil
		}),
	}
}

func newObjectiveProgressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Set an objective's progress",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
			if err != nil {
				return &domain.ValidationError{Field: "progress", Reason: "not a number: " + args[1]}
			}
			o, _, err := a.svc.SetObjectiveProgress(ctx, args[0], pct)
			if err != nil {
				return fmt.Errorf("failed to set objective progress: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Objective %s at %d%%\n", okMark, o.ID, o.Progress)
			return nil
		}),
	}
}

func newObjectiveDeleteCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an objective with its strategies; linked experiments are kept unlinked",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var impact core.DeleteImpact
			if yes {
				var err error
				impact, _, err = a.svc.DeleteObjective(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to delete objective: %w", err)
				}
			} else {
				var ok bool
				var err error
				impact, ok, err = a.svc.DeleteObjectiveFromPrompt(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to delete objective: %w", err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			if !impact.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Objective %s not found; nothing deleted.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted objective %s (%d strategies removed, %d experiments unlinked)\n",
				okMark, args[0], len(impact.Strategies), len(impact.UnlinkedExperiments))
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}
