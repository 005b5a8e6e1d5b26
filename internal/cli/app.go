package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"growthcore/internal/blob"
	"growthcore/internal/config"
	"growthcore/internal/core"
	"growthcore/pkg/domain"
)

// app is one command invocation's wiring: config, logger, stores and service.
type app struct {
	svc       *core.Service
	portfolio *core.Portfolio
	project   string
	blobs     blob.Store
	persister core.ClosablePersister
	closers   []core.ClosablePersister
	telemetry config.Telemetry
	metricsTo io.Writer
	logger    *zap.Logger
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Strict {
		cfg.Lifecycle.Strict = true
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if opts.Project != "" {
		cfg.Project = opts.Project
	}
	if opts.Metrics != "" {
		cfg.Observability.Metrics = opts.Metrics
	}
	if opts.Trace {
		cfg.Observability.Trace = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	blobs, err := cfg.OpenBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	var ids core.IDGenerator = core.KSUIDGenerator{}
	seq := &core.SequenceGenerator{}
	if opts.DeterministicIDs {
		ids = seq
	}
	a := &app{
		blobs:     blobs,
		telemetry: cfg.NewTelemetry(cmd.ErrOrStderr()),
		metricsTo: cmd.ErrOrStderr(),
		logger:    logger,
	}
	common := append([]core.ServiceOption{
		core.WithLogger(core.NewZapLogger(logger)),
		core.WithIDGenerator(ids),
	}, a.telemetry.Options()...)

	// The unscoped persister holds the portfolio, which names the project
	// whose workspace is opened next.
	sopts := cfg.StorageOptions(blobs)
	sopts.Project = ""
	root, err := core.OpenPersister(ctx, sopts)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.track(root)
	a.portfolio = core.NewPortfolio(root, common...)
	if err := a.portfolio.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.project = cfg.Project
	switch {
	case strings.EqualFold(a.project, defaultProject):
		a.project = ""
	case a.project == "":
		a.project = a.portfolio.ActiveID()
	}
	a.persister = root
	if a.project != "" {
		if _, ok := a.portfolio.Project(a.project); !ok {
			a.close()
			return nil, domain.ErrNotFound{Entity: domain.EntityProject, ID: a.project}
		}
		if root != nil {
			sopts.Project = a.project
			if a.persister, err = core.OpenPersister(ctx, sopts); err != nil {
				a.close()
				return nil, fmt.Errorf("open storage for project %s: %w", a.project, err)
			}
			a.track(a.persister)
		}
	}

	svcOpts := append(common,
		core.WithStrictLifecycle(cfg.Lifecycle.Strict),
		core.WithBlobStore(blobs),
		core.WithPrompter(newLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr())),
		core.WithTeamDirectory(a.portfolio),
	)
	if a.persister != nil {
		svcOpts = append(svcOpts, core.WithPersister(a.persister))
	}
	a.svc = core.NewInMemoryService(nil, svcOpts...)
	if err := a.svc.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	if opts.DeterministicIDs {
		seq.Observe(workspaceIDs(a.svc)...)
		seq.Observe(portfolioIDs(a.portfolio)...)
	}
	return a, nil
}

func (a *app) track(p core.ClosablePersister) {
	if p != nil {
		a.closers = append(a.closers, p)
	}
}

func workspaceIDs(svc *core.Service) []string {
	var ids []string
	for _, o := range svc.Objectives() {
		ids = append(ids, o.ID)
	}
	for _, st := range svc.Strategies() {
		ids = append(ids, st.ID)
	}
	for _, e := range svc.Experiments() {
		ids = append(ids, e.ID)
	}
	return ids
}

func portfolioIDs(p *core.Portfolio) []string {
	var ids []string
	for _, pr := range p.Projects() {
		ids = append(ids, pr.ID)
	}
	for _, m := range p.TeamMembers() {
		ids = append(ids, m.ID)
	}
	return ids
}

func (a *app) close() {
	for _, p := range a.closers {
		if err := p.Close(); err != nil {
			a.logger.Warn("close storage", zap.Error(err))
		}
	}
	if err := a.telemetry.WriteMetrics(a.metricsTo); err != nil {
		a.logger.Warn("write metrics", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp opens the workspace, runs fn and reports a failed save as the
// command error.
func withApp(opts *RootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.close()
		if err := fn(cmd.Context(), cmd, a, args); err != nil {
			return err
		}
		if perr := a.svc.PersistenceError(); perr != nil {
			var cerr *core.CheckpointError
			if errors.As(perr, &cerr) {
				return fmt.Errorf("changes applied but not saved: %w", perr)
			}
			return perr
		}
		return nil
	}
}
