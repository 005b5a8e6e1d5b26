package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// NewNorthStarCommand creates the north-star command group. Without a
// subcommand it prints the metric and progress.
func NewNorthStarCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "northstar",
		Aliases: []string{"ns"},
		Short:   "Show or update the North-Star metric",
		Args:    cobra.NoArgs,
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			printNorthStar(cmd.OutOrStdout(), a.svc.NorthStar())
			return nil
		}),
	}
	cmd.AddCommand(newNorthStarSetCommand(opts))
	cmd.AddCommand(newNorthStarPromptCommand(opts))
	return cmd
}

func newNorthStarSetCommand(opts *RootOptions) *cobra.Command {
	var name, unit, typ, current, target string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update North-Star fields",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			var patch core.NorthStarPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("unit") {
				patch.Unit = &unit
			}
			if flags.Changed("type") {
				mt := domain.MetricType(typ)
				patch.Type = &mt
			}
			for _, f := range []struct {
				flag string
				raw  string
				dst  **float64
			}{{"current", current, &patch.CurrentValue}, {"target", target, &patch.TargetValue}} {
				if !flags.Changed(f.flag) {
					continue
				}
				v, err := domain.ParseMetricValue(f.raw)
				if err != nil {
					return err
				}
				*f.dst = &v
			}
			ns, res, err := a.svc.UpdateNorthStar(ctx, patch)
			if err != nil {
				return fmt.Errorf("failed to update north star: %w", err)
			}
			printViolations(cmd.ErrOrStderr(), res)
			printNorthStar(cmd.OutOrStdout(), ns)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "metric name")
	cmd.Flags().StringVar(&unit, "unit", "", "display unit")
	cmd.Flags().StringVar(&typ, "type", "", "currency|count|percentage|ratio")
	cmd.Flags().StringVar(&current, "current", "", "current value")
	cmd.Flags().StringVar(&target, "target", "", "target value")
	return cmd
}

func newNorthStarPromptCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Enter current and target values interactively",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			ns, ok, err := a.svc.UpdateNorthStarFromPrompt(ctx)
			if err != nil {
				return fmt.Errorf("failed to update north star: %w", err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			printNorthStar(cmd.OutOrStdout(), ns)
			return nil
		}),
	}
}
