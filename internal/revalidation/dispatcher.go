package revalidation

import (
	"context"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/metrics"
)

// Invalidator drops cached data. Invalidating something not cached must
// succeed.
type Invalidator interface {
	InvalidatePath(ctx context.Context, path string) error
	InvalidateTag(ctx context.Context, tag string) error
}

// Failure is one invalidation that returned an error.
type Failure struct {
	Kind   string // "path" or "tag"
	Target string
	Err    error
}

// Result reports what a dispatch did.
type Result struct {
	Targets  Targets
	Failures []Failure
}

// Dispatcher applies revalidation targets through an Invalidator.
type Dispatcher struct {
	invalidator Invalidator
	logger      logging.Logger
}

func NewDispatcher(invalidator Invalidator, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{
		invalidator: invalidator,
		logger:      logger.WithFields(logging.String("component", "revalidation")),
	}
}

// Dispatch invalidates every path and then every tag for event. Failures are
// logged and collected but never stop the remaining invalidations and are not
// retried. Unknown document types are logged and produce an empty Result.
func (d *Dispatcher) Dispatch(ctx context.Context, event WebhookEvent) Result {
	log := d.logger.WithContext(ctx).WithFields(
		logging.String("type", event.Type),
		logging.String("id", event.ID),
		logging.String("operation", event.Operation),
	)

	targets := TargetsFor(event)
	result := Result{Targets: targets}
	if targets.Empty() {
		log.Info("Ignoring webhook for unhandled document type")
		return result
	}

	for _, path := range targets.Paths {
		if err := d.invalidator.InvalidatePath(ctx, path); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "path", Target: path, Err: err})
			metrics.Invalidations.WithLabelValues("path", "error").Inc()
			log.Error("Path invalidation failed", err, logging.String("path", path))
			continue
		}
		metrics.Invalidations.WithLabelValues("path", "ok").Inc()
	}
	for _, tag := range targets.Tags {
		if err := d.invalidator.InvalidateTag(ctx, tag); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "tag", Target: tag, Err: err})
			metrics.Invalidations.WithLabelValues("tag", "error").Inc()
			log.Error("Tag invalidation failed", err, logging.String("tag", tag))
			continue
		}
		metrics.Invalidations.WithLabelValues("tag", "ok").Inc()
	}

	log.Info("Revalidated",
		logging.Strings("paths", targets.Paths),
		logging.Strings("tags", targets.Tags),
		logging.Int("failures", len(result.Failures)),
	)
	return result
}
