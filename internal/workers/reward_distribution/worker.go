package reward_distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soul-service/soul_service/internal/domain/services/distribution"
	"github.com/soul-service/soul_service/internal/infrastructure/config"
	"github.com/soul-service/soul_service/pkg/logger"
	"github.com/soul-service/soul_service/pkg/metrics"
)

const jobName = "reward_distribution"

// Worker runs the event reward distribution on a cron schedule. The schedule
// and the lookback window are configuration, not code, so tests and ops can
// drive runs directly through RunOnce.
type Worker struct {
	service *distribution.Service
	cfg     config.SchedulerConfig
	cron    *cron.Cron
	logger  *logger.Logger
}

// NewWorker creates a new reward distribution worker
func NewWorker(service *distribution.Service, cfg config.SchedulerConfig, logger *logger.Logger) *Worker {
	return &Worker{
		service: service,
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the cron entry and starts the scheduler
func (w *Worker) Start() error {
	if !w.cfg.DistributionEnabled {
		w.logger.Info("Reward distribution worker disabled")
		return nil
	}

	_, err := w.cron.AddFunc(w.cfg.DistributionCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.runTimeout())
		defer cancel()

		if err := w.RunOnce(ctx, time.Now()); err != nil {
			w.logger.Error("Reward distribution run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reward distribution: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Reward distribution worker started", "cron", w.cfg.DistributionCron)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("Reward distribution worker stopped")
}

// RunOnce executes a single distribution pass over the window ending at now.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	from := now.Add(-time.Duration(w.cfg.WindowMinutes) * time.Minute)
	start := time.Now()

	w.logger.Info("Reward distribution run starting",
		"window_from", from,
		"window_to", now)

	result, err := w.service.DistributeFinishedEvents(ctx, from, now)
	duration := time.Since(start)
	metrics.SchedulerRunDuration.WithLabelValues(jobName).Observe(duration.Seconds())

	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues(jobName, "error").Inc()
		return err
	}

	metrics.SchedulerRunsTotal.WithLabelValues(jobName, "success").Inc()
	w.logger.Info("Reward distribution run finished",
		"duration", duration,
		"events_processed", result.EventsProcessed,
		"events_failed", result.EventsFailed,
		"events_refunded", result.EventsRefunded,
		"wallets_swept", result.WalletsSwept)

	return nil
}

func (w *Worker) runTimeout() time.Duration {
	if w.cfg.RunTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.cfg.RunTimeoutSeconds) * time.Second
}
