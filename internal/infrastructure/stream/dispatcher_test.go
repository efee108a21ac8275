package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/infrastructure/repository/memory"
)

type recordingConsumer struct {
	mu       sync.Mutex
	events   []string
	failures map[string]int
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{failures: make(map[string]int)}
}

func (c *recordingConsumer) Name() string { return "recording" }

// failTimes makes the next delivery attempts for the event fail n times.
func (c *recordingConsumer) failTimes(eventID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[eventID] = n
}

func (c *recordingConsumer) HandleChange(_ context.Context, change event.ChangeNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := change.NewImage.EventID
	if c.failures[id] > 0 {
		c.failures[id]--
		return errors.New("transient consumer failure")
	}
	c.events = append(c.events, id)
	return nil
}

func (c *recordingConsumer) delivered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func startDispatcher(t *testing.T, log event.Log, consumers []Consumer, cfg DispatcherConfig) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(cfg, log, consumers, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return d
}

func TestDispatcher_DeliversAppendedEvents(t *testing.T) {
	log := memory.NewEventLogRepository()
	consumer := newRecordingConsumer()

	startDispatcher(t, log, []Consumer{consumer}, DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WorkerCount:  2,
		MaxAttempts:  2,
		RetryDelay:   5 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		if err := log.Append(t.Context(), event.MatchEvent{EventID: fmt.Sprintf("e-%d", i), MatchID: "m-1"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool { return len(consumer.delivered()) == 3 })

	seen := make(map[string]bool)
	for _, id := range consumer.delivered() {
		seen[id] = true
	}
	for i := 0; i < 3; i++ {
		if !seen[fmt.Sprintf("e-%d", i)] {
			t.Fatalf("event e-%d not delivered: %+v", i, consumer.delivered())
		}
	}
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	log := memory.NewEventLogRepository()
	consumer := newRecordingConsumer()
	consumer.failTimes("e-0", 2)

	startDispatcher(t, log, []Consumer{consumer}, DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WorkerCount:  1,
		MaxAttempts:  3,
		RetryDelay:   5 * time.Millisecond,
	})

	if err := log.Append(t.Context(), event.MatchEvent{EventID: "e-0", MatchID: "m-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(consumer.delivered()) == 1 })
	if got := consumer.delivered()[0]; got != "e-0" {
		t.Fatalf("unexpected delivery: %s", got)
	}
}

func TestDispatcher_ParksEventAfterMaxAttemptsAndMovesOn(t *testing.T) {
	log := memory.NewEventLogRepository()
	consumer := newRecordingConsumer()
	// More failures than the attempt budget: e-0 gets parked, e-1 must
	// still arrive.
	consumer.failTimes("e-0", 100)

	startDispatcher(t, log, []Consumer{consumer}, DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WorkerCount:  1,
		MaxAttempts:  2,
		RetryDelay:   time.Millisecond,
	})

	if err := log.Append(t.Context(), event.MatchEvent{EventID: "e-0", MatchID: "m-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(t.Context(), event.MatchEvent{EventID: "e-1", MatchID: "m-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		for _, id := range consumer.delivered() {
			if id == "e-1" {
				return true
			}
		}
		return false
	})

	for _, id := range consumer.delivered() {
		if id == "e-0" {
			t.Fatalf("parked event must not be delivered: %+v", consumer.delivered())
		}
	}
}

func TestDispatcher_FansOutToAllConsumers(t *testing.T) {
	log := memory.NewEventLogRepository()
	first := newRecordingConsumer()
	second := newRecordingConsumer()

	startDispatcher(t, log, []Consumer{first, second}, DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WorkerCount:  2,
		MaxAttempts:  1,
		RetryDelay:   time.Millisecond,
	})

	if err := log.Append(t.Context(), event.MatchEvent{EventID: "e-0", MatchID: "m-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(first.delivered()) == 1 && len(second.delivered()) == 1
	})
}

func TestDispatcher_RestartDoesNotRedeliverHistory(t *testing.T) {
	log := memory.NewEventLogRepository()
	cfg := DispatcherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		WorkerCount:  1,
		MaxAttempts:  1,
		RetryDelay:   time.Millisecond,
	}

	first := newRecordingConsumer()
	d1, err := NewDispatcher(cfg, log, []Consumer{first}, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	ctx1, cancel1 := context.WithCancel(context.Background())
	d1.Start(ctx1)

	for i := 0; i < 2; i++ {
		if err := log.Append(t.Context(), event.MatchEvent{EventID: fmt.Sprintf("e-%d", i), MatchID: "m-1"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	waitFor(t, 2*time.Second, func() bool { return len(first.delivered()) == 2 })

	cancel1()
	d1.Stop()

	// The log survives the dispatcher; a rebuilt dispatcher must checkpoint
	// past the delivered events instead of replaying them.
	second := newRecordingConsumer()
	d2, err := NewDispatcher(cfg, log, []Consumer{second}, nil)
	if err != nil {
		t.Fatalf("new dispatcher after restart: %v", err)
	}
	ctx2, cancel2 := context.WithCancel(context.Background())
	d2.Start(ctx2)
	t.Cleanup(func() {
		cancel2()
		d2.Stop()
	})

	if err := log.Append(t.Context(), event.MatchEvent{EventID: "e-2", MatchID: "m-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(second.delivered()) == 1 })

	if got := second.delivered(); len(got) != 1 || got[0] != "e-2" {
		t.Fatalf("restart redelivered history: %+v", got)
	}
}

func TestNewDispatcher_RequiresConsumers(t *testing.T) {
	if _, err := NewDispatcher(DispatcherConfig{}, memory.NewEventLogRepository(), nil, nil); err == nil {
		t.Fatalf("expected error without consumers")
	}
}

func TestConsumerFunc_Adapts(t *testing.T) {
	var got string
	c := ConsumerFunc{
		ConsumerName: "recorder",
		Handle: func(_ context.Context, change event.ChangeNotification) error {
			got = change.NewImage.EventID
			return nil
		},
	}

	if c.Name() != "recorder" {
		t.Fatalf("unexpected name: %s", c.Name())
	}
	e := event.MatchEvent{EventID: "e-9"}
	if err := c.HandleChange(context.Background(), event.ChangeNotification{Kind: event.ChangeInsert, NewImage: &e}); err != nil {
		t.Fatalf("handle change: %v", err)
	}
	if got != "e-9" {
		t.Fatalf("handler not invoked: %q", got)
	}
}
