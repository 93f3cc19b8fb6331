package referral_commission

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soul-service/soul_service/internal/domain/services/referral"
	"github.com/soul-service/soul_service/internal/infrastructure/config"
	"github.com/soul-service/soul_service/pkg/logger"
	"github.com/soul-service/soul_service/pkg/metrics"
)

const jobName = "referral_commission"

// Worker runs referral commission payouts on a cron schedule.
type Worker struct {
	service *referral.Service
	cfg     config.SchedulerConfig
	cron    *cron.Cron
	logger  *logger.Logger
}

// NewWorker creates a new referral commission worker
func NewWorker(service *referral.Service, cfg config.SchedulerConfig, logger *logger.Logger) *Worker {
	return &Worker{
		service: service,
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the cron entry and starts the scheduler
func (w *Worker) Start() error {
	if !w.cfg.ReferralEnabled {
		w.logger.Info("Referral commission worker disabled")
		return nil
	}

	_, err := w.cron.AddFunc(w.cfg.ReferralCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.runTimeout())
		defer cancel()

		if err := w.RunOnce(ctx, time.Now()); err != nil {
			w.logger.Error("Referral commission run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule referral commission: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Referral commission worker started", "cron", w.cfg.ReferralCron)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("Referral commission worker stopped")
}

// RunOnce executes a single commission pass over the window ending at now.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	from := now.Add(-time.Duration(w.cfg.WindowMinutes) * time.Minute)
	start := time.Now()

	w.logger.Info("Referral commission run starting",
		"window_from", from,
		"window_to", now)

	result, err := w.service.ProcessWindow(ctx, from, now)
	duration := time.Since(start)
	metrics.SchedulerRunDuration.WithLabelValues(jobName).Observe(duration.Seconds())

	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues(jobName, "error").Inc()
		return err
	}

	metrics.SchedulerRunsTotal.WithLabelValues(jobName, "success").Inc()
	w.logger.Info("Referral commission run finished",
		"duration", duration,
		"invitees_processed", result.InviteesProcessed,
		"invitees_failed", result.InviteesFailed,
		"total_commission", result.TotalCommission)

	return nil
}

func (w *Worker) runTimeout() time.Duration {
	if w.cfg.RunTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.cfg.RunTimeoutSeconds) * time.Second
}
