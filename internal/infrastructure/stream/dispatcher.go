package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
	"github.com/sourcegraph/conc"
)

// Consumer receives one change notification per inserted event. Returning an
// error requests redelivery; after the attempt budget is spent the
// notification is parked and the stream moves on.
type Consumer interface {
	Name() string
	HandleChange(ctx context.Context, change event.ChangeNotification) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc struct {
	ConsumerName string
	Handle       func(ctx context.Context, change event.ChangeNotification) error
}

func (c ConsumerFunc) Name() string { return c.ConsumerName }

func (c ConsumerFunc) HandleChange(ctx context.Context, change event.ChangeNotification) error {
	return c.Handle(ctx, change)
}

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	WorkerCount  int
	MaxAttempts  int
	RetryDelay   time.Duration
}

// Dispatcher turns the event log into a change stream: it polls for events
// past a cursor and fans each one out to the consumers through a worker
// pool. On Start the cursor checkpoints at the log's current max seq, so
// events that predate this process (and were already aggregated before a
// restart) are never replayed into the consumers. Delivery is at-least-once
// (a failed consumer is retried, and a crash mid-batch redelivers that
// batch) and unordered across matches because the pool runs notifications
// concurrently.
type Dispatcher struct {
	log       event.Log
	consumers []Consumer
	pool      *ants.Pool
	cfg       DispatcherConfig
	logger    *logging.Logger

	mu           sync.Mutex
	cursor       int64
	checkpointed bool

	lifecycle conc.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, log event.Log, consumers []Consumer, logger *logging.Logger) (*Dispatcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(consumers) == 0 {
		return nil, fmt.Errorf("at least one consumer is required")
	}

	pool, err := ants.NewPool(cfg.WorkerCount)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Dispatcher{
		log:       log,
		consumers: consumers,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start checkpoints the cursor and launches the poll loop. Stop after
// cancelling the context passed here.
func (d *Dispatcher) Start(ctx context.Context) {
	d.checkpoint(ctx)
	d.lifecycle.Go(func() {
		d.run(ctx)
	})
}

// Stop waits for the poll loop to exit and releases the worker pool.
func (d *Dispatcher) Stop() {
	d.lifecycle.Wait()
	d.pool.Release()
}

func (d *Dispatcher) run(ctx context.Context) {
	d.logger.Info("change-stream dispatcher started",
		"poll_interval", d.cfg.PollInterval.String(),
		"workers", d.cfg.WorkerCount,
		"batch_size", d.cfg.BatchSize,
	)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("change-stream dispatcher stopping")
			return
		case <-ticker.C:
			if !d.checkpoint(ctx) {
				continue
			}
			d.drain(ctx)
		}
	}
}

// checkpoint pins the cursor at the log's current max seq, once. Everything
// at or below that seq was already processed before this process came up, so
// draining from zero would replay the whole history into consumers that
// count every delivery.
func (d *Dispatcher) checkpoint(ctx context.Context) bool {
	d.mu.Lock()
	done := d.checkpointed
	d.mu.Unlock()
	if done {
		return true
	}

	seq, err := d.log.MaxSeq(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "checkpoint change-stream cursor failed", "error", err)
		return false
	}

	d.mu.Lock()
	d.cursor = seq
	d.checkpointed = true
	d.mu.Unlock()

	d.logger.Info("change-stream cursor checkpointed", "seq", seq)
	return true
}

// drain delivers every pending batch. The cursor only advances once a whole
// batch has been handed to the consumers, so a crash mid-batch replays it.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		cursor := d.cursor
		d.mu.Unlock()

		events, err := d.log.ListAfter(ctx, cursor, d.cfg.BatchSize)
		if err != nil {
			d.logger.ErrorContext(ctx, "poll event log failed", "cursor", cursor, "error", err)
			return
		}
		if len(events) == 0 {
			return
		}

		var batch sync.WaitGroup
		for _, item := range events {
			item := item
			batch.Add(1)
			if err := d.pool.Submit(func() {
				defer batch.Done()
				d.deliver(ctx, item)
			}); err != nil {
				batch.Done()
				d.logger.ErrorContext(ctx, "submit notification to worker pool failed",
					"event_id", item.EventID,
					"error", err,
				)
			}
		}
		batch.Wait()

		d.mu.Lock()
		if last := events[len(events)-1].Seq; last > d.cursor {
			d.cursor = last
		}
		d.mu.Unlock()

		if len(events) < d.cfg.BatchSize {
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, item event.MatchEvent) {
	change := event.ChangeNotification{
		Kind:     event.ChangeInsert,
		NewImage: &item,
	}

	for _, consumer := range d.consumers {
		var lastErr error
		for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
			if ctx.Err() != nil {
				return
			}
			lastErr = consumer.HandleChange(ctx, change)
			if lastErr == nil {
				break
			}
			d.logger.WarnContext(ctx, "change notification delivery failed",
				"consumer", consumer.Name(),
				"event_id", item.EventID,
				"attempt", attempt,
				"error", lastErr,
			)
			if attempt < d.cfg.MaxAttempts {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d.cfg.RetryDelay):
				}
			}
		}
		if lastErr != nil {
			d.logger.ErrorContext(ctx, "parking change notification after max delivery attempts",
				"consumer", consumer.Name(),
				"event_id", item.EventID,
				"attempts", d.cfg.MaxAttempts,
				"error", lastErr,
			)
		}
	}
}
