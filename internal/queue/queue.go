package queue

import "context"

const (
	// DispatchQueue carries durable dispatch jobs. A campaign send survives
	// the process that created it: the job lives in the broker until a
	// worker acks it.
	DispatchQueue = "dispatch.jobs"

	// DispatchDLQ receives jobs rejected as unparseable or invalid.
	DispatchDLQ = "dlq.dispatch.jobs"
)

// Publisher publishes dispatch jobs to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, job DispatchJob) error
	Close() error
}

// MessageHandler handles a consumed dispatch job.
type MessageHandler func(ctx context.Context, job DispatchJob) error

// Consumer consumes dispatch jobs from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
