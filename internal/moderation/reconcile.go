package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/lexicon/pkg/models"
)

const (
	notesEntryDeleted = "entry deleted before review"
	notesFinalized    = "finalized after interrupted approval"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Found    int            `json:"found"`
	Repaired map[string]int `json:"repaired"`
	Skipped  []Anomaly      `json:"skipped,omitempty"`
}

// Reconcile repairs the states that an interrupted two-step transition can
// leave behind. Each repair re-reads the records it touches, so anomalies
// resolved concurrently are skipped rather than repaired twice.
func (e *Engine) Reconcile(ctx context.Context) (report ReconcileReport, err error) {
	const op = "reconcile"
	defer e.observe(op, time.Now(), &err)

	anomalies, err := e.queue.Anomalies(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("%s: %w", op, err)
	}
	report = ReconcileReport{Found: len(anomalies), Repaired: map[string]int{}}

	for _, a := range anomalies {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		repaired, err := e.repair(ctx, a)
		if err != nil {
			return report, fmt.Errorf("%s: %s on entry %s: %w", op, a.Kind, a.EntryID, err)
		}
		if !repaired {
			report.Skipped = append(report.Skipped, a)
			continue
		}
		report.Repaired[string(a.Kind)]++
		e.metrics.Repaired(string(a.Kind))
		e.log.Warn().Str("anomaly", string(a.Kind)).Str("entry_id", a.EntryID).
			Str("revision_id", a.RevisionID).Msg("repaired inconsistent state")
		e.record(ctx, models.ActivityEvent{
			ActorID:    models.SystemActor.ID,
			Type:       models.ActivityReconciled,
			TargetType: models.TargetEntry,
			TargetID:   a.EntryID,
			Metadata:   models.ActivityMetadata{EntryID: a.EntryID, RevisionID: a.RevisionID, Notes: string(a.Kind)},
		})
	}
	return report, nil
}

func (e *Engine) repair(ctx context.Context, a Anomaly) (bool, error) {
	switch a.Kind {
	case AnomalyOrphanedEntry:
		pending, err := e.revisions.FindPendingByEntry(ctx, a.EntryID)
		if err != nil || pending != nil {
			return false, err
		}
		return e.setEntryStatus(ctx, a.EntryID, models.EntryPendingRevision, models.EntryApproved)

	case AnomalyMissingEntry:
		entry, err := e.entries.Get(ctx, a.EntryID)
		if err != nil || entry != nil {
			return false, err
		}
		return e.resolveAsSystem(ctx, a.RevisionID, models.RevisionRejected, notesEntryDeleted)

	case AnomalyAlreadyApplied:
		return e.resolveAsSystem(ctx, a.RevisionID, models.RevisionApproved, notesFinalized)

	case AnomalyEntryNotFlagged:
		return e.setEntryStatus(ctx, a.EntryID, models.EntryApproved, models.EntryPendingRevision)

	case AnomalyApprovalNotApplied:
		return e.finishApproval(ctx, a.EntryID, a.RevisionID)
	}
	return false, nil
}

// finishApproval writes an approved revision's change set to an entry that
// is still waiting for it.
func (e *Engine) finishApproval(ctx context.Context, entryID, revisionID string) (bool, error) {
	rev, err := e.revisions.Get(ctx, revisionID)
	if err != nil || rev == nil || rev.Status != models.RevisionApproved {
		return false, err
	}
	entry, err := e.entries.Get(ctx, entryID)
	if err != nil || entry == nil || entry.Status != models.EntryPendingRevision || entry.Version >= rev.Version {
		return false, err
	}
	next, err := ApplyChangeSet(*entry, rev.Changes)
	if err != nil {
		return false, err
	}
	from := models.EntryPendingRevision
	updated, err := e.applyApproved(ctx, entryID, next, entry.Version+1, e.now(), &from)
	if errors.Is(err, ErrStatusChanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return updated != nil, nil
}

// setEntryStatus moves an entry from one status to another if it is still
// in the expected state.
func (e *Engine) setEntryStatus(ctx context.Context, entryID string, from, to models.EntryStatus) (bool, error) {
	entry, err := e.entries.Get(ctx, entryID)
	if err != nil || entry == nil || entry.Status != from {
		return false, err
	}
	updated, err := e.entries.Update(ctx, entryID, models.EntryUpdate{Status: &to, IfStatus: &from})
	if errors.Is(err, ErrStatusChanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return updated != nil, nil
}

func (e *Engine) resolveAsSystem(ctx context.Context, revisionID string, status models.RevisionStatus, notes string) (bool, error) {
	rev, err := e.revisions.Get(ctx, revisionID)
	if err != nil || rev == nil || rev.Status != models.RevisionPending {
		return false, err
	}
	now := e.now()
	reviewer := models.SystemActor.ID
	pending := models.RevisionPending
	updated, err := e.revisions.Update(ctx, revisionID, models.RevisionUpdate{
		Status:      &status,
		ReviewedBy:  &reviewer,
		ReviewedAt:  &now,
		ReviewNotes: &notes,
		IfStatus:    &pending,
	})
	if errors.Is(err, ErrStatusChanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return updated != nil, nil
}
