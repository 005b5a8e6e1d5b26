// Package cli implements the growthctl command tree over the core service.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath       string
	DeterministicIDs bool
	Strict           bool
	Verbose          bool
	Project          string
	Metrics          string
	Trace            bool
}

// NewRootCommand creates the root command for growthctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "growthctl",
		Short:         "growthctl - growth experiment tracker",
		Long:          "Track a North-Star metric, its objectives and strategies, and the ICE-scored experiments that move it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default growthcore.yaml or $GROWTHCORE_CONFIG)")
	cmd.PersistentFlags().BoolVar(&opts.DeterministicIDs, "deterministic-ids", false, "issue sequential ids instead of ksuids")
	cmd.PersistentFlags().BoolVar(&opts.Strict, "strict", false, "enforce forward-only status transitions")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "p", "", "portfolio project to open (default: the active project)")
	cmd.PersistentFlags().StringVar(&opts.Metrics, "metrics", "", "metrics recorder: none|expvar|prometheus; dumped to stderr on exit")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "write operation spans to stderr as JSON lines")

	cmd.AddCommand(NewNorthStarCommand(opts))
	cmd.AddCommand(NewObjectiveCommand(opts))
	cmd.AddCommand(NewStrategyCommand(opts))
	cmd.AddCommand(NewExperimentCommand(opts))
	cmd.AddCommand(NewExploreCommand(opts))
	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewLibraryCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewTeamCommand(opts))

	return cmd
}
