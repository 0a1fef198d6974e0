package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPruneJob deletes audit rows older than the configured retention.
type AuditPruneJob struct {
	Auditor *shared.AuditLogger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditPruneJob initialises the audit prune handler.
func NewAuditPruneJob(auditor *shared.AuditLogger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	return &AuditPruneJob{Auditor: auditor, Logger: logger, Metrics: metrics}
}

// Handle removes expired audit rows.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Auditor == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 365
	}

	tracker := j.metrics().Track(TaskAuditPrune)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Auditor.Prune(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		resultErr = err
		j.logger().Error("prune failed", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("pruned audit rows",
		slog.Int("retention_days", payload.RetentionDays),
		slog.Int64("removed", removed),
	)
	return resultErr
}

func (j *AuditPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditPrune))
	}
	return slog.Default().With(slog.String("job", TaskAuditPrune))
}

func (j *AuditPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
