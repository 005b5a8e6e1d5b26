package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// NewExperimentCommand creates the experiment command group.
func NewExperimentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Manage ICE-scored experiments",
	}
	cmd.AddCommand(
		newExperimentCreateCommand(opts),
		newExperimentShowCommand(opts),
		newExperimentUpdateCommand(opts),
		newExperimentICECommand(opts),
		newExperimentStatusCommand(opts),
		newExperimentFinishCommand(opts),
		newExperimentLinkCommand(opts),
		newExperimentDeleteCommand(opts),
		newExperimentAttachCommand(opts),
		newExperimentProofURLCommand(opts),
	)
	return cmd
}

// experimentFields binds the descriptive flags shared by create and update.
type experimentFields struct {
	owner, ownerID, hypothesis, observation, problem string
	source, successCriteria, targetMetric, stage     string
	testURL                                          string
	labels                                           []string
}

func (f *experimentFields) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.owner, "owner", "", "owner name")
	fs.StringVar(&f.ownerID, "owner-id", "", "team member who owns the experiment")
	fs.StringVar(&f.hypothesis, "hypothesis", "", "what you expect to happen")
	fs.StringVar(&f.observation, "observation", "", "what prompted the idea")
	fs.StringVar(&f.problem, "problem", "", "problem being addressed")
	fs.StringVar(&f.source, "source", "", "where the idea came from")
	fs.StringVar(&f.successCriteria, "success", "", "success criteria")
	fs.StringVar(&f.targetMetric, "target-metric", "", "metric the experiment moves")
	fs.StringVar(&f.stage, "stage", "", "funnel stage (Acquisition|Activation|Retention|Referral|Revenue)")
	fs.StringVar(&f.testURL, "test-url", "", "link to the running test")
	fs.StringSliceVar(&f.labels, "label", nil, "label (repeatable)")
}

func newExperimentCreateCommand(opts *RootOptions) *cobra.Command {
	var fields experimentFields
	var status, strategyID string
	var impact, confidence, ease int
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an experiment",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			stage, err := domain.ParseFunnelStage(fields.stage)
			if err != nil {
				return err
			}
			var st core.Status
			if status != "" {
				if st, err = domain.ParseStatus(status); err != nil {
					return err
				}
			}
			e, res, err := a.svc.CreateExperiment(ctx, core.ExperimentInput{
				Title:            strings.Join(args, " "),
				Status:           st,
				Owner:            domain.Owner{Name: fields.owner},
				OwnerID:          fields.ownerID,
				Hypothesis:       fields.hypothesis,
				Observation:      fields.observation,
				Problem:          fields.problem,
				Source:           fields.source,
				Labels:           fields.labels,
				SuccessCriteria:  fields.successCriteria,
				TargetMetric:     fields.targetMetric,
				Impact:           impact,
				Confidence:       confidence,
				Ease:             ease,
				FunnelStage:      stage,
				LinkedStrategyID: strategyID,
				TestURL:          fields.testURL,
			})
			if err != nil {
				return fmt.Errorf("failed to create experiment: %w", err)
			}
			printViolations(cmd.ErrOrStderr(), res)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created experiment %s: %s (ICE %d)\n", okMark, e.ID, e.Title, e.ICEScore)
			return nil
		}),
	}
	fields.bind(cmd.Flags())
	cmd.Flags().StringVar(&status, "status", "", "initial status (default Idea)")
	cmd.Flags().StringVar(&strategyID, "strategy", "", "strategy to link")
	cmd.Flags().IntVar(&impact, "impact", 0, "impact 0-10")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "confidence 0-10")
	cmd.Flags().IntVar(&ease, "ease", 0, "ease 0-10")
	return cmd
}

func newExperimentShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one experiment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(_ context.Context, cmd *cobra.Command, a *app, args []string) error {
			e, err := a.svc.Experiment(args[0])
			if err != nil {
				return err
			}
			printExperiment(cmd.OutOrStdout(), e)
			return nil
		}),
	}
}

func newExperimentUpdateCommand(opts *RootOptions) *cobra.Command {
	var fields experimentFields
	var title, learnings, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit descriptive fields of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			flags := cmd.Flags()
			var patch core.ExperimentPatch
			for flag, pair := range map[string]struct {
				src string
				dst **string
			}{
				"title":         {title, &patch.Title},
				"hypothesis":    {fields.hypothesis, &patch.Hypothesis},
				"observation":   {fields.observation, &patch.Observation},
				"problem":       {fields.problem, &patch.Problem},
				"source":        {fields.source, &patch.Source},
				"success":       {fields.successCriteria, &patch.SuccessCriteria},
				"target-metric": {fields.targetMetric, &patch.TargetMetric},
				"test-url":      {fields.testURL, &patch.TestURL},
				"learnings":     {learnings, &patch.KeyLearnings},
				"start-date":    {startDate, &patch.StartDate},
				"end-date":      {endDate, &patch.EndDate},
			} {
				if flags.Changed(flag) {
					v := pair.src
					*pair.dst = &v
				}
			}
			if flags.Changed("owner") {
				patch.Owner = &domain.Owner{Name: fields.owner}
			}
			if flags.Changed("owner-id") {
				patch.OwnerID = &fields.ownerID
			}
			if flags.Changed("label") {
				patch.Labels = &fields.labels
			}
			if flags.Changed("stage") {
				stage, err := domain.ParseFunnelStage(fields.stage)
				if err != nil {
					return err
				}
				patch.FunnelStage = &stage
			}
			e, _, err := a.svc.UpdateExperiment(ctx, args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to update experiment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated experiment %s: %s\n", okMark, e.ID, e.Title)
			return nil
		}),
	}
	fields.bind(cmd.Flags())
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&learnings, "learnings", "", "key learnings")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (YYYY-MM-DD)")
	return cmd
}

func newExperimentICECommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ice <id> <impact|confidence|ease> <0-10>",
		Short: "Set one ICE sub-score",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			field, err := domain.ParseICEField(args[1])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[2])
			if err != nil {
				return &domain.ValidationError{Field: string(field), Reason: "not a number: " + args[2]}
			}
			e, _, err := a.svc.UpdateExperimentICE(ctx, args[0], field, value)
			if err != nil {
				return fmt.Errorf("failed to update ice: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s ICE %d (%d x %d x %d)\n", okMark, e.ID, e.ICEScore, e.Impact, e.Confidence, e.Ease)
			return nil
		}),
	}
}

func newExperimentStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move an experiment to another status",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			status, err := domain.ParseStatus(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			e, _, err := a.svc.TransitionExperimentStatus(ctx, args[0], status)
			if err != nil {
				return fmt.Errorf("failed to change status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", okMark, e.ID, statusLabel(e.Status))
			return nil
		}),
	}
}

func newExperimentFinishCommand(opts *RootOptions) *cobra.Command {
	var learnings string
	cmd := &cobra.Command{
		Use:   "finish <id> <winner|loser|inconclusive>",
		Short: "Finish an experiment; prompts for learnings unless --learnings is set",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			status, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			var e core.Experiment
			if cmd.Flags().Changed("learnings") {
				e, _, err = a.svc.FinishExperiment(ctx, args[0], status, learnings)
			} else {
				var ok bool
				e, ok, err = a.svc.FinishExperimentFromPrompt(ctx, args[0], status)
				if err == nil && !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			if err != nil {
				return fmt.Errorf("failed to finish experiment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s finished as %s on %s\n", okMark, e.ID, statusLabel(e.Status), e.EndDate)
			return nil
		}),
	}
	cmd.Flags().StringVar(&learnings, "learnings", "", "key learnings")
	return cmd
}

func newExperimentLinkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id> [strategy-id]",
		Short: "Link an experiment to a strategy; omit the strategy to unlink",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var strategyID string
			if len(args) == 2 {
				strategyID = args[1]
			}
			e, _, err := a.svc.LinkExperiment(ctx, args[0], strategyID)
			if err != nil {
				return fmt.Errorf("failed to link experiment: %w", err)
			}
			if e.LinkedStrategyID == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s unlinked\n", okMark, e.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s linked to %s\n", okMark, e.ID, *e.LinkedStrategyID)
			return nil
		}),
	}
}

func newExperimentDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an experiment and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			removed, _, err := a.svc.DeleteExperiment(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete experiment: %w", err)
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s not found; nothing deleted.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted experiment %s\n", okMark, args[0])
			return nil
		}),
	}
}

func newExperimentAttachCommand(opts *RootOptions) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "attach <id> <file>",
		Short: "Attach a visual proof file",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[1]) //nolint:gosec // operator-supplied path
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[1]))
			}
			e, _, err := a.svc.AttachVisualProof(ctx, args[0], filepath.Base(args[1]), f, contentType)
			if err != nil {
				return fmt.Errorf("failed to attach proof: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Attached %s to %s\n", okMark, e.VisualProof[len(e.VisualProof)-1], e.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (default from extension)")
	return cmd
}

func newExperimentProofURLCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "proof-url <key>",
		Short: "Print a time-limited URL for an attached proof",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			url, err := a.svc.VisualProofURL(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		}),
	}
}
