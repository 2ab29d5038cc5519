package monitor

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/ipushpie/rag-service/ragflow"
)

type step struct {
	snapshot ragflow.ProgressSnapshot
	err      error
}

type scriptedClient struct {
	steps []step
	calls int
}

func (c *scriptedClient) GetProgress(ctx context.Context, docID string) (ragflow.ProgressSnapshot, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	s := c.steps[idx]
	return s.snapshot, s.err
}

var _ ProgressClient = (*scriptedClient)(nil)

func newTestMonitor(client ProgressClient, interval, maxWait time.Duration) *Monitor {
	return New(client, Options{Interval: interval, MaxWait: maxWait}, log.New(io.Discard, "", 0))
}

func TestWaitCompletesAfterExactPollCount(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.2}},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.7}},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusDone, Progress: 1.0}},
	}}

	interval := 5 * time.Millisecond
	result := newTestMonitor(client, interval, time.Second).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Outcome)
	}
	if client.calls != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", client.calls)
	}
	if result.Elapsed < 2*interval {
		t.Fatalf("expected elapsed >= %s, got %s", 2*interval, result.Elapsed)
	}
	if result.Snapshot == nil || result.Snapshot.Progress < 1.0 {
		t.Fatalf("expected final snapshot at full progress, got %+v", result.Snapshot)
	}
}

func TestWaitRequiresFullProgressForCompletion(t *testing.T) {
	// Done status alone is not enough; the fraction must have reached 1.0.
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusDone, Progress: 0.9}},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusDone, Progress: 1.0}},
	}}

	result := newTestMonitor(client, time.Millisecond, time.Second).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Outcome)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 polls, got %d", client.calls)
	}
}

func TestWaitTimesOutWithBoundedPolls(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.4}},
	}}

	interval := 5 * time.Millisecond
	maxWait := 12 * time.Millisecond
	result := newTestMonitor(client, interval, maxWait).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", result.Outcome)
	}
	// 12/5 rounded up is 3 loop polls, plus the final query.
	if client.calls > 4 {
		t.Fatalf("expected at most 4 polls, got %d", client.calls)
	}
	if result.Elapsed != maxWait {
		t.Fatalf("expected elapsed == max wait %s, got %s", maxWait, result.Elapsed)
	}
	if result.Snapshot == nil {
		t.Fatal("expected snapshot from the final query")
	}
}

func TestWaitSwallowsTransientErrors(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.1}},
		{err: errors.New("connection reset")},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.8}},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusDone, Progress: 1.0}},
	}}

	result := newTestMonitor(client, time.Millisecond, time.Second).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("expected COMPLETED despite transient error, got %s", result.Outcome)
	}
	if client.calls != 4 {
		t.Fatalf("expected 4 polls, got %d", client.calls)
	}
}

func TestWaitReturnsFailedOnFailureStatus(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.3}},
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusFail, Progress: 0.3, Message: "parser crashed"}},
	}}

	result := newTestMonitor(client, time.Millisecond, time.Second).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", result.Outcome)
	}
	if result.Snapshot == nil || result.Snapshot.Message != "parser crashed" {
		t.Fatalf("expected failure snapshot, got %+v", result.Snapshot)
	}
}

func TestWaitCancelStatusIsTerminal(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusCancel, Progress: 0.5}},
	}}

	result := newTestMonitor(client, time.Millisecond, time.Second).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected FAILED for cancelled run, got %s", result.Outcome)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 poll, got %d", client.calls)
	}
}

func TestWaitTimeoutWithNoSuccessfulQuery(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{err: errors.New("service unavailable")},
	}}

	result := newTestMonitor(client, 5*time.Millisecond, 8*time.Millisecond).Wait(context.Background(), "doc-1")

	if result.Outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", result.Outcome)
	}
	if result.Snapshot != nil {
		t.Fatalf("expected absent snapshot when every query failed, got %+v", result.Snapshot)
	}
}

func TestWaitStopsOnContextCancellation(t *testing.T) {
	client := &scriptedClient{steps: []step{
		{snapshot: ragflow.ProgressSnapshot{Status: ragflow.StatusRunning, Progress: 0.1}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result := newTestMonitor(client, time.Minute, time.Hour).Wait(ctx, "doc-1")

	if result.Outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT on cancellation, got %s", result.Outcome)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 poll before cancellation, got %d", client.calls)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected prompt exit on cancelled context")
	}
}
