package app

import (
	"context"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/jobs"
	"renda-edge/internal/locks"
)

// initializeJobs registers the maintenance jobs. Locks are shared through
// Redis when it is available so only one instance runs each job.
func (app *App) initializeJobs(context.Context) error {
	lockManager, err := locks.NewManager(app.RedisClient)
	if err != nil {
		return err
	}
	app.Locks = lockManager

	scheduler := jobs.NewScheduler(lockManager, app.Logger)
	for _, job := range []jobs.Job{
		jobs.PurgeAnalyticsJob(app.Storage, app.Config.AnalyticsRetention, app.Config.CleanupSchedule, app.Logger),
		jobs.WarmCacheJob(app.CMS, app.Config.CacheWarmSchedule),
	} {
		if err := scheduler.Add(job); err != nil {
			return err
		}
		if job.Schedule == "" {
			app.Logger.Info("Job disabled", logging.String("job", job.Name))
		}
	}
	app.Scheduler = scheduler
	return nil
}
