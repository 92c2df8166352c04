package jobs

import (
	"context"
	"time"

	"renda-edge/internal/common/logging"
)

// AnalyticsPurger is the part of storage the retention job needs.
type AnalyticsPurger interface {
	PurgeAnalytics(ctx context.Context, before time.Time) (int64, error)
}

// CacheWarmer preloads CMS content.
type CacheWarmer interface {
	Warm(ctx context.Context) error
}

// PurgeAnalyticsJob deletes page views and clicks older than retention.
func PurgeAnalyticsJob(store AnalyticsPurger, retention time.Duration, schedule string, logger logging.Logger) Job {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return Job{
		Name:     "analytics-purge",
		Schedule: schedule,
		Timeout:  10 * time.Minute,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			n, err := store.PurgeAnalytics(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.Info("Purged old analytics",
				logging.Int64("rows", n),
				logging.Time("before", cutoff),
			)
			return nil
		},
	}
}

// WarmCacheJob refreshes cached CMS content.
func WarmCacheJob(warmer CacheWarmer, schedule string) Job {
	return Job{
		Name:     "cms-warm",
		Schedule: schedule,
		Timeout:  2 * time.Minute,
		Run:      warmer.Warm,
	}
}
