package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// Summary is the aggregate outcome of one scan invocation. Counters are for
// observability; nothing retries off them.
type Summary struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Candidate is one eligible record together with everything needed to
// dispatch the message and persist the idempotency marker afterwards.
type Candidate struct {
	Collection  string
	DocID       string
	MarkerField string
	Milestone   string // empty for milestone-less sequences
	Request     notify.Request
}

// Sequence is one lifecycle notification: a bounded candidate query plus a
// pure eligibility evaluation.
type Sequence interface {
	ID() string
	Query(now time.Time) store.Query
	// Evaluate returns nil when the record is not eligible: outside its
	// window, below threshold, or already marked. An error is a per-record
	// failure, never a fatal one.
	Evaluate(ctx context.Context, doc store.Document, now time.Time) (*Candidate, error)
}

// Scheduled marks sequences gated by an admin daily schedule config.
type Scheduled interface {
	Sequence
	ScheduleID() string
}

// Dispatcher runs the delivery path for one candidate.
type Dispatcher interface {
	Send(ctx context.Context, req notify.Request) (notify.DispatchResult, error)
}

// Runner drives any Sequence through one invocation: Query, then per
// candidate Evaluate → Dispatch → Mark, with per-record error isolation.
type Runner struct {
	store      store.Store
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewRunner(s store.Store, d Dispatcher, log *zap.Logger) *Runner {
	return &Runner{store: s, dispatcher: d, log: log, now: time.Now}
}

// Run executes one scan. Only a query-stage (or schedule-config) failure is
// fatal; every per-candidate failure is counted and the loop continues.
func (r *Runner) Run(ctx context.Context, seq Sequence) (Summary, error) {
	now := r.now().UTC()
	log := r.log.With(
		zap.String("sequence", seq.ID()),
		zap.String("run", uuid.NewString()),
	)

	if sched, ok := seq.(Scheduled); ok {
		due, err := r.scheduleDue(ctx, sched, now)
		if err != nil {
			return Summary{}, fmt.Errorf("schedule %s: %w", sched.ScheduleID(), err)
		}
		if !due {
			log.Debug("schedule not due")
			return Summary{}, nil
		}
	}

	docs, err := r.store.Query(ctx, seq.Query(now))
	if err != nil {
		return Summary{}, fmt.Errorf("query %s: %w", seq.ID(), err)
	}

	var sum Summary
	for _, doc := range docs {
		sum.Scanned++

		cand, err := seq.Evaluate(ctx, doc, now)
		if err != nil {
			sum.Failed++
			log.Warn("evaluate failed", zap.String("record", doc.ID), zap.Error(err))
			continue
		}
		if cand == nil {
			sum.Skipped++
			continue
		}

		res, err := r.dispatcher.Send(ctx, cand.Request)
		if err != nil {
			sum.Failed++
			log.Warn("dispatch error", zap.String("record", doc.ID), zap.Error(err))
			continue
		}
		switch {
		case res.Skipped:
			// No contactable recipient. Marked so the record is never
			// re-evaluated for this milestone.
			sum.Skipped++
			r.mark(ctx, log, cand, domain.MarkerSkipped, now)
		case res.Success:
			sum.Sent++
			r.mark(ctx, log, cand, domain.MarkerSent, now)
		default:
			// Left unmarked on purpose: the next periodic invocation
			// re-evaluates the same milestone.
			sum.Failed++
			log.Warn("dispatch failed",
				zap.String("record", doc.ID),
				zap.String("error", res.Error),
			)
		}
	}

	log.Info("scan complete",
		zap.Int("scanned", sum.Scanned),
		zap.Int("sent", sum.Sent),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// mark persists the idempotency marker with a conditional set-once write. The
// send already happened, so a lost race here only means another invocation
// marked first.
func (r *Runner) mark(ctx context.Context, log *zap.Logger, cand *Candidate, kind domain.MarkerKind, now time.Time) {
	path := domain.MarkerPath(cand.MarkerField, kind, cand.Milestone)
	wrote, err := r.store.MergeIfAbsent(ctx, cand.Collection, cand.DocID, path, now)
	if err != nil {
		log.Error("marker write failed",
			zap.String("record", cand.DocID),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	if !wrote {
		log.Debug("marker already present",
			zap.String("record", cand.DocID),
			zap.String("path", path),
		)
	}
}

// scheduleDue loads the sequence's schedule config and, when the run is due,
// stamps "ran today" BEFORE any scanning to shrink the duplicate window
// around overlapping invocations. A missing config means disabled.
func (r *Runner) scheduleDue(ctx context.Context, seq Scheduled, now time.Time) (bool, error) {
	doc, err := r.store.Get(ctx, domain.CollectionScheduleConfigs, seq.ScheduleID())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var cfg domain.ScheduleConfig
	if err := doc.DataTo(&cfg); err != nil {
		return false, err
	}
	due, err := cfg.DueAt(now)
	if err != nil || !due {
		return false, err
	}

	if err := r.store.Merge(ctx, domain.CollectionScheduleConfigs, seq.ScheduleID(),
		map[string]any{"lastRunDateUtc": domain.DateUTC(now)}); err != nil {
		return false, err
	}
	return true, nil
}
