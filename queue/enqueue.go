package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/whereissushi/zpravodaj-api/observability"
)

// Enqueuer submits conversion tasks to Redis.
type Enqueuer struct {
	client *asynq.Client
	logger observability.Logger
}

// NewEnqueuer connects to Redis using any URI asynq understands
// (redis://, rediss://, redis-socket://).
func NewEnqueuer(redisURL string, logger observability.Logger) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Enqueuer{client: asynq.NewClient(opt), logger: logger}, nil
}

func (e *Enqueuer) Close() error { return e.client.Close() }

// EnqueueConversion normalizes the payload and submits it, returning
// the job ID. The job ID doubles as the asynq task ID, so resubmitting
// a payload that already carries one is a no-op.
func (e *Enqueuer) EnqueueConversion(ctx context.Context, p Payload) (string, error) {
	p = p.Normalized()
	task, err := NewConversionTask(p)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueConversions),
		asynq.TaskID(p.JobID),
		asynq.MaxRetry(5))
	if err != nil {
		return "", fmt.Errorf("enqueue conversion: %w", err)
	}
	e.logger.Info("conversion queued",
		observability.String("job", p.JobID),
		observability.String("queue", info.Queue),
		observability.String("prefix", p.UploadPrefix))
	return p.JobID, nil
}
