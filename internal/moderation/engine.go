package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/lexicon/pkg/models"
)

// Config wires the engine to its collaborators. Entries and Revisions are
// required; everything else is optional.
type Config struct {
	Entries    EntryStore
	Revisions  RevisionStore
	Activity   ActivityRecorder
	Notifier   NotificationSink
	Dependents DependencyCounter
	Metrics    Instrumentation
	Logger     zerolog.Logger

	// Now and NewID default to time.Now (UTC) and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Engine runs the entry lifecycle: creation, direct edits, revisions and
// their moderation. Each call runs to completion independently; the stores
// are the only shared mutable state.
type Engine struct {
	entries    EntryStore
	revisions  RevisionStore
	activity   ActivityRecorder
	notifier   NotificationSink
	dependents DependencyCounter
	metrics    Instrumentation
	log        zerolog.Logger
	policy     Policy
	queue      *Queue
	now        func() time.Time
	newID      func() string
}

// New creates an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Entries == nil {
		return nil, errors.New("moderation: entry store is required")
	}
	if cfg.Revisions == nil {
		return nil, errors.New("moderation: revision store is required")
	}

	e := &Engine{
		entries:    cfg.Entries,
		revisions:  cfg.Revisions,
		activity:   cfg.Activity,
		notifier:   cfg.Notifier,
		dependents: cfg.Dependents,
		metrics:    cfg.Metrics,
		log:        cfg.Logger.With().Str("component", "moderation").Logger(),
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if e.dependents == nil {
		e.dependents = noDependents{}
	}
	if e.metrics == nil {
		e.metrics = nopInstrumentation{}
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	e.queue = newQueue(e.entries, e.revisions, e.metrics, e.log)
	return e, nil
}

// Queue returns the moderation queue backed by the engine's stores.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// ListPendingEntries lists new entries awaiting moderation, oldest first.
func (e *Engine) ListPendingEntries(ctx context.Context, req models.PageRequest) (models.Page[models.Entry], error) {
	return e.queue.ListPendingEntries(ctx, req)
}

// ListPendingRevisions lists pending revisions by priority, then age.
func (e *Engine) ListPendingRevisions(ctx context.Context, req models.PageRequest) (models.Page[RevisionItem], error) {
	return e.queue.ListPendingRevisions(ctx, req)
}

// observe reports an operation's duration and outcome. Call it deferred with
// a pointer to the named error result.
func (e *Engine) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = "error"
		if kind := KindOf(err); kind != "" {
			outcome = string(kind)
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())
}

func (e *Engine) loadEntry(ctx context.Context, op, id string) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := e.entries.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: load entry %s: %w", op, id, err)
	}
	if entry == nil {
		return nil, notFound(op, "entry %s not found", id)
	}
	return entry, nil
}

func (e *Engine) loadRevision(ctx context.Context, op, entryID, revisionID string) (*models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rev, err := e.revisions.Get(ctx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("%s: load revision %s: %w", op, revisionID, err)
	}
	if rev == nil || rev.EntryID != entryID {
		return nil, notFound(op, "revision %s not found for entry %s", revisionID, entryID)
	}
	return rev, nil
}

// record hands an event to the activity recorder. It never fails the caller:
// errors and panics are logged and counted.
func (e *Engine) record(ctx context.Context, event models.ActivityEvent) {
	if e.activity == nil {
		return
	}
	event.ID = e.newID()
	event.OccurredAt = e.now()
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			e.metrics.SideEffectFailed("activity")
			e.log.Warn().Interface("panic", r).Str("event", string(event.Type)).
				Str("target_id", event.TargetID).Msg("activity recorder panicked")
		}
	}()
	if err := e.activity.Record(ctx, event); err != nil {
		e.metrics.SideEffectFailed("activity")
		e.log.Warn().Err(err).Str("event", string(event.Type)).Str("actor_id", event.ActorID).
			Str("target_id", event.TargetID).Msg("failed to record activity")
	}
}

// notify delivers a notification with the same contract as record.
func (e *Engine) notify(ctx context.Context, n models.Notification) {
	if e.notifier == nil || n.UserID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			e.metrics.SideEffectFailed("notification")
			e.log.Warn().Interface("panic", r).Str("user_id", n.UserID).Msg("notification sink panicked")
		}
	}()
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.metrics.SideEffectFailed("notification")
		e.log.Warn().Err(err).Str("user_id", n.UserID).Str("entry_id", n.Metadata.EntryID).
			Str("revision_id", n.Metadata.RevisionID).Msg("failed to send notification")
	}
}
