package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/glowdesk/glowdesk/jobs"
)

// Enqueuer is the part of jobs.Client the CLI drives.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
	EnqueueLowStockScan(ctx context.Context, payload jobs.LowStockScanPayload) (*asynq.TaskInfo, error)
}

// JobsCLI queues tasks by name and reads queue statistics.
type JobsCLI struct {
	client    Enqueuer
	inspector jobs.QueueInspector
	closers   []io.Closer
}

// NewJobsCLI connects a client and an inspector to the given Redis server.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{client, inspector}}
}

// newJobsCLI builds a JobsCLI over prepared dependencies.
func newJobsCLI(client Enqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases the Redis connections.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues the task called name, reading its payload from args:
//
//	inventory:low_stock_scan [-threshold n] [-limit n]
//	mail:send -to addr [-subject s] [-body b]
func (c *JobsCLI) Trigger(ctx context.Context, name string, args []string, out io.Writer) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	switch name {
	case jobs.TaskLowStockScan:
		var payload jobs.LowStockScanPayload
		fs.IntVar(&payload.Threshold, "threshold", 0, "low-stock threshold (0 uses the configured one)")
		fs.IntVar(&payload.Limit, "limit", 0, "fast-moving list size (0 uses the configured one)")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if payload.Threshold < 0 || payload.Limit < 0 {
			return nil, errors.New("jobs cli: threshold and limit must not be negative")
		}
		return c.client.EnqueueLowStockScan(ctx, payload)
	case jobs.TaskTypeSendEmail:
		var payload jobs.SendEmailPayload
		fs.StringVar(&payload.To, "to", "", "recipient (required)")
		fs.StringVar(&payload.Subject, "subject", "glowdesk test message", "subject line")
		fs.StringVar(&payload.Body, "body", "This is a test message from glowdesk.", "message body")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.client.EnqueueSendEmail(ctx, payload)
	}
	return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
}

// QueueStats summarises one queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
	Paused    bool
}

// InspectQueues reports every queue the worker serves. Queues that have never
// held a task report zeros.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	var out []QueueStats
	for _, name := range jobs.QueueNames() {
		stats := QueueStats{Queue: name}
		info, err := c.inspector.GetQueueInfo(name)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("jobs cli: inspect %s: %w", name, err)
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
			stats.Paused = info.Paused
		}
		out = append(out, stats)
	}
	return out, nil
}
