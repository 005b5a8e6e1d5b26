package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// NewTeamCommand creates the team roster command group.
func NewTeamCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the team members who own experiments",
	}
	cmd.AddCommand(
		newTeamAddCommand(opts),
		newTeamListCommand(opts),
		newTeamUpdateCommand(opts),
		newTeamRemoveCommand(opts),
	)
	return cmd
}

type memberFields struct {
	email, avatar, role string
	projects            []string
}

func (f *memberFields) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "email address")
	fs.StringVar(&f.avatar, "avatar", "", "avatar URL")
	fs.StringVar(&f.role, "role", "", "Admin|Lead|Viewer (default Viewer)")
	fs.StringSliceVar(&f.projects, "project-id", nil, "project the member works on (repeatable; default the active project)")
}

func printMember(w io.Writer, m domain.TeamMember) {
	fmt.Fprintf(w, "%s  %-6s %s", m.ID, m.Role, m.Name)
	if m.Email != "" {
		fmt.Fprintf(w, " <%s>", m.Email)
	}
	if len(m.ProjectIDs) > 0 {
		fmt.Fprintf(w, "  [%s]", strings.Join(m.ProjectIDs, ", "))
	}
	fmt.Fprintln(w)
}

func newTeamAddCommand(opts *RootOptions) *cobra.Command {
	var fields memberFields
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a team member",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			in := core.TeamMemberInput{
				Name:   strings.Join(args, " "),
				Email:  fields.email,
				Avatar: fields.avatar,
			}
			if fields.role != "" {
				role, err := domain.ParseMemberRole(fields.role)
				if err != nil {
					return err
				}
				in.Role = role
			}
			if cmd.Flags().Changed("project-id") {
				in.ProjectIDs = append([]string{}, fields.projects...)
			}
			m, err := a.portfolio.AddTeamMember(ctx, in)
			if err != nil {
				return fmt.Errorf("failed to add team member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added team member %s: %s (%s)\n", okMark, m.ID, m.Name, m.Role)
			return nil
		}),
	}
	fields.bind(cmd.Flags())
	return cmd
}

func newTeamListCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List team members of the open project",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			members := a.portfolio.TeamMembers()
			if !all && a.project != "" {
				members = a.portfolio.MembersOf(a.project)
			}
			if len(members) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No team members found.")
				return nil
			}
			for _, m := range members {
				printMember(cmd.OutOrStdout(), m)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "list the whole roster")
	return cmd
}

func newTeamUpdateCommand(opts *RootOptions) *cobra.Command {
	var fields memberFields
	var name string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a team member",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			flags := cmd.Flags()
			var patch core.TeamMemberPatch
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("email") {
				patch.Email = &fields.email
			}
			if flags.Changed("avatar") {
				patch.Avatar = &fields.avatar
			}
			if flags.Changed("role") {
				role, err := domain.ParseMemberRole(fields.role)
				if err != nil {
					return err
				}
				patch.Role = &role
			}
			if flags.Changed("project-id") {
				patch.ProjectIDs = &fields.projects
			}
			m, err := a.portfolio.UpdateTeamMember(ctx, args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to update team member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated team member ", okMark)
			printMember(cmd.OutOrStdout(), m)
			return nil
		}),
	}
	fields.bind(cmd.Flags())
	cmd.Flags().StringVar(&name, "name", "", "new name")
	return cmd
}

func newTeamRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a team member; experiments they own keep the owner name",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			removed, err := a.portfolio.RemoveTeamMember(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to remove team member: %w", err)
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Team member %s not found; nothing removed.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed team member %s\n", okMark, args[0])
			return nil
		}),
	}
}
