package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptRender renders and stores a sale's receipt snapshot.
	TaskReceiptRender = "receipt:render"
)

// ReceiptRenderPayload identifies the sale to render.
type ReceiptRenderPayload struct {
	SaleID int64 `json:"sale_id"`
}

// NewReceiptRenderTask constructs an Asynq task.
func NewReceiptRenderTask(payload ReceiptRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRender, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueRender enqueues a receipt render for the sale. Satisfies the
// billing orchestrator's queue port.
func (c *Client) EnqueueRender(ctx context.Context, saleID int64) error {
	task, err := NewReceiptRenderTask(ReceiptRenderPayload{SaleID: saleID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
