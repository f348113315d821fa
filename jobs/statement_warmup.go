package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bufete-erp/bufete-erp/internal/billing"
	jobmetrics "github.com/bufete-erp/bufete-erp/internal/jobs"
)

// StatementWarmupJob precomputes the roster-wide report for the
// current billing period and stores it in the serving cache, so the
// first dashboard hit of the month does not pay for a full roster
// aggregation. Statements stay derived values; a failed warmup only
// costs latency.
type StatementWarmupJob struct {
	Billing *billing.Service
	Cache   *billing.Cache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatementWarmupJob wires dependencies for the warmup handler.
func NewStatementWarmupJob(svc *billing.Service, cache *billing.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &StatementWarmupJob{Billing: svc, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes statement warmup tasks.
func (j *StatementWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Billing == nil {
		return errors.New("statement warmup: handler not configured")
	}
	var payload StatementWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskStatementWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	period := j.Billing.CurrentPeriod(ctx, payload.ReferenceDate)
	logger := j.Logger.With(slog.String("period", period.Label))
	logger.Info("starting statement warmup")

	start := time.Now()
	report, err := j.Billing.Roster(ctx, period)
	if err != nil {
		logger.Error("compute roster", slog.Any("error", err))
		return err
	}
	if err := j.Cache.SetRoster(ctx, report); err != nil {
		logger.Error("prime roster cache", slog.Any("error", err))
		return err
	}

	failed := 0
	for _, entry := range report.Entries {
		if entry.Err != "" {
			failed++
		}
	}
	logger.Info("statement warmup complete",
		slog.Int("clients", len(report.Entries)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
