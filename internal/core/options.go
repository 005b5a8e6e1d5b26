package core

import (
	"time"

	"growthcore/internal/blob"
)

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock            Clock
	clockSet         bool
	logger           Logger
	audit            AuditRecorder
	metrics          MetricsRecorder
	tracer           Tracer
	ids              IDGenerator
	lifecycle        LifecyclePolicy
	prompter         Prompter
	blobs            blob.Store
	persister        Persister
	team             TeamDirectory
	retryAttempts    uint
	retryDelay       time.Duration
	onPersistFailure PersistenceFailureHandler
}

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 50 * time.Millisecond
)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:         ClockFunc(nil),
		logger:        noopLogger{},
		audit:         noopAuditRecorder{},
		metrics:       noopMetricsRecorder{},
		tracer:        noopTracer{},
		ids:           KSUIDGenerator{},
		lifecycle:     PermissiveLifecycle{},
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// WithClock overrides the time source used for record timestamps and dates.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
			o.clockSet = true
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithIDGenerator replaces the ksuid generator.
func WithIDGenerator(ids IDGenerator) ServiceOption {
	return func(o *serviceOptions) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLifecyclePolicy sets the experiment transition policy. Any policy other
// than PermissiveLifecycle is also enforced as a blocking rule on every commit.
func WithLifecyclePolicy(policy LifecyclePolicy) ServiceOption {
	return func(o *serviceOptions) {
		if policy != nil {
			o.lifecycle = policy
		}
	}
}

// WithStrictLifecycle enables StrictLifecycle when strict is true.
func WithStrictLifecycle(strict bool) ServiceOption {
	return func(o *serviceOptions) {
		if strict {
			o.lifecycle = StrictLifecycle{}
		}
	}
}

// WithPrompter sets the collaborator used by the *FromPrompt commands.
func WithPrompter(p Prompter) ServiceOption {
	return func(o *serviceOptions) { o.prompter = p }
}

// WithBlobStore sets the store used for visual proof attachments.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.blobs = store }
}

// WithPersister sets the snapshot persister used by Load and checkpoints.
func WithPersister(p Persister) ServiceOption {
	return func(o *serviceOptions) { o.persister = p }
}

// WithTeamDirectory sets the roster experiment owners are resolved from.
func WithTeamDirectory(team TeamDirectory) ServiceOption {
	return func(o *serviceOptions) { o.team = team }
}

// WithRetry configures checkpoint save attempts. Attempts below one are raised to one.
func WithRetry(attempts uint, delay time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.retryAttempts = max(attempts, 1)
		o.retryDelay = max(delay, 0)
	}
}

// WithPersistenceFailureHandler registers a callback for failed checkpoints.
func WithPersistenceFailureHandler(h PersistenceFailureHandler) ServiceOption {
	return func(o *serviceOptions) { o.onPersistFailure = h }
}
