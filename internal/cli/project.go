package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"growthcore/internal/core"
)

// defaultProject names the unscoped workspace on the command line.
const defaultProject = "default"

// NewProjectCommand creates the project command group.
func NewProjectCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"proj"},
		Short:   "Manage the portfolio of projects, each with its own workspace",
	}
	cmd.AddCommand(
		newProjectCreateCommand(opts),
		newProjectListCommand(opts),
		newProjectUseCommand(opts),
	)
	return cmd
}

func newProjectCreateCommand(opts *RootOptions) *cobra.Command {
	var logo, industry string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a project and make it the active one",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			p, err := a.portfolio.CreateProject(ctx, core.ProjectInput{
				Name:     strings.Join(args, " "),
				Logo:     logo,
				Industry: industry,
			})
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created project %s: %s (now active)\n", okMark, p.ID, p.Name)
			return nil
		}),
	}
	cmd.Flags().StringVar(&logo, "logo", "", "logo URL")
	cmd.Flags().StringVar(&industry, "industry", "", "industry")
	return cmd
}

func newProjectListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects; the open one is marked with *",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			w := cmd.OutOrStdout()
			mark := func(id string) string {
				if id == a.project {
					return "*"
				}
				return " "
			}
			fmt.Fprintf(w, "%s %s\n", mark(""), defaultProject)
			for _, p := range a.portfolio.Projects() {
				line := fmt.Sprintf("%s %s  %s", mark(p.ID), p.ID, p.Name)
				if p.Industry != "" {
					line += " (" + p.Industry + ")"
				}
				fmt.Fprintf(w, "%s  %d members\n", line, len(a.portfolio.MembersOf(p.ID)))
			}
			return nil
		}),
	}
}

func newProjectUseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id|default>",
		Short: "Make a project the active one for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id := args[0]
			if strings.EqualFold(id, defaultProject) {
				id = ""
			}
			if err := a.portfolio.SelectProject(ctx, id); err != nil {
				return fmt.Errorf("failed to select project: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Active project: %s\n", okMark, args[0])
			return nil
		}),
	}
}
