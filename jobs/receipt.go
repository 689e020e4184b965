package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/martpos/martpos/internal/jobs"
)

// Renderer is the slice of billing the job needs.
type Renderer interface {
	RenderAndStore(ctx context.Context, saleID int64) error
}

// ReceiptRenderJob renders receipt snapshots after sales commit.
type ReceiptRenderJob struct {
	Renderer Renderer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewReceiptRenderJob initialises the receipt render handler.
func NewReceiptRenderJob(renderer Renderer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptRenderJob {
	return &ReceiptRenderJob{Renderer: renderer, Logger: logger, Metrics: metrics}
}

// Handle executes one receipt render.
func (j *ReceiptRenderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Renderer == nil {
		return errors.New("receipt render: handler not configured")
	}
	var payload ReceiptRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReceiptRender)
	err := j.Renderer.RenderAndStore(ctx, payload.SaleID)
	err = tracker.End(err)
	if err != nil {
		j.Logger.Error("receipt render failed",
			slog.Int64("sale_id", payload.SaleID), slog.Any("error", err))
		return err
	}
	j.Logger.Info("receipt rendered", slog.Int64("sale_id", payload.SaleID))
	return nil
}
