package monitor

import (
	"context"
	"log"
	"time"

	"github.com/ipushpie/rag-service/ragflow"
)

// Outcome is a terminal state of one monitoring run.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeTimedOut  Outcome = "TIMED_OUT"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultMaxWait  = 300 * time.Second
)

// ProgressClient is the single operation the monitor needs from the
// ingestion client.
type ProgressClient interface {
	GetProgress(ctx context.Context, docID string) (ragflow.ProgressSnapshot, error)
}

// Result is the terminal artifact of a monitoring run. Snapshot is nil when
// no progress query ever succeeded.
type Result struct {
	Outcome  Outcome
	Snapshot *ragflow.ProgressSnapshot
	Elapsed  time.Duration
}

// Options tunes the poll loop. The completion predicate (done status plus
// progress >= 1.0) and the failure-status set are deployment configuration,
// not hard fact; the zero value picks the service's documented defaults.
type Options struct {
	Interval     time.Duration
	MaxWait      time.Duration
	DoneStatus   string
	FailStatuses []string
}

// Monitor polls chunking progress until a terminal state or a deadline.
type Monitor struct {
	client       ProgressClient
	interval     time.Duration
	maxWait      time.Duration
	doneStatus   string
	failStatuses map[string]struct{}
	logger       *log.Logger
}

func New(client ProgressClient, opts Options, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.DoneStatus == "" {
		opts.DoneStatus = ragflow.StatusDone
	}
	if len(opts.FailStatuses) == 0 {
		opts.FailStatuses = []string{ragflow.StatusFail, ragflow.StatusCancel}
	}

	failSet := make(map[string]struct{}, len(opts.FailStatuses))
	for _, status := range opts.FailStatuses {
		failSet[status] = struct{}{}
	}

	return &Monitor{
		client:       client,
		interval:     opts.Interval,
		maxWait:      opts.MaxWait,
		doneStatus:   opts.DoneStatus,
		failStatuses: failSet,
		logger:       logger,
	}
}

// Wait polls until the document reaches a terminal state or the deadline
// expires. Transient query failures are logged and retried on the next tick;
// Wait never returns an error. Cancelling ctx ends the run early with a
// TIMED_OUT result. Polls for a given document are strictly sequential.
func (m *Monitor) Wait(ctx context.Context, docID string) Result {
	start := time.Now()
	var last *ragflow.ProgressSnapshot

	for time.Since(start) < m.maxWait {
		snapshot, err := m.client.GetProgress(ctx, docID)
		if err != nil {
			m.logger.Printf("progress query for %s failed, retrying: %v", docID, err)
		} else {
			last = &snapshot

			if snapshot.Status == m.doneStatus && snapshot.Progress >= 1.0 {
				m.logger.Printf("document %s chunking completed in %s", docID, time.Since(start).Round(time.Millisecond))
				return Result{Outcome: OutcomeCompleted, Snapshot: last, Elapsed: time.Since(start)}
			}
			if _, failed := m.failStatuses[snapshot.Status]; failed {
				m.logger.Printf("document %s chunking failed: %s %s", docID, snapshot.Status, snapshot.Message)
				return Result{Outcome: OutcomeFailed, Snapshot: last, Elapsed: time.Since(start)}
			}
		}

		if !m.sleep(ctx) {
			m.logger.Printf("monitoring of %s cancelled after %s", docID, time.Since(start).Round(time.Millisecond))
			return Result{Outcome: OutcomeTimedOut, Snapshot: last, Elapsed: time.Since(start)}
		}
	}

	// Deadline reached; one last look so the caller gets the freshest state.
	if snapshot, err := m.client.GetProgress(ctx, docID); err == nil {
		last = &snapshot
	} else {
		m.logger.Printf("final progress query for %s failed: %v", docID, err)
	}

	m.logger.Printf("monitoring of %s timed out after %s", docID, m.maxWait)
	return Result{Outcome: OutcomeTimedOut, Snapshot: last, Elapsed: m.maxWait}
}

// sleep suspends for one poll interval, returning false if ctx was cancelled.
func (m *Monitor) sleep(ctx context.Context) bool {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
