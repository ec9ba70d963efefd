package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/lexicon/pkg/models"
)

// ReviewResult is the outcome of resolving a revision.
type ReviewResult struct {
	Entry    *models.Entry   `json:"entry,omitempty"`
	Revision models.Revision `json:"revision"`
}

// ApproveRevision applies a pending revision's new values to its entry,
// bumps the entry version and marks the revision approved.
//
// The revision is resolved first, conditionally on still being pending, so
// two reviewers racing on one revision cannot both succeed. If the entry
// write then fails, the entry stays pending_revision below the revision's
// version and the reconciler applies the approved change set.
func (e *Engine) ApproveRevision(ctx context.Context, entryID, revisionID string, reviewer models.Actor, notes string) (result *ReviewResult, err error) {
	const op = "approve_revision"
	defer e.observe(op, time.Now(), &err)

	rev, entry, err := e.beginReview(ctx, op, entryID, revisionID, reviewer)
	if err != nil {
		return nil, err
	}

	next, err := ApplyChangeSet(*entry, rev.Changes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateEntry(op, next); err != nil {
		return nil, err
	}

	now := e.now()
	notes = strings.TrimSpace(notes)
	resolved, err := e.resolve(ctx, op, rev.ID, models.RevisionApproved, reviewer.ID, now, notes)
	if err != nil {
		return nil, err
	}

	updated, err := e.applyApproved(ctx, entryID, next, entry.Version+1, now, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: update entry %s: %w", op, entryID, err)
	}
	if updated == nil {
		return nil, notFound(op, "entry %s not found", entryID)
	}

	e.log.Info().Str("entry_id", entryID).Str("revision_id", rev.ID).Str("reviewer_id", reviewer.ID).
		Int("version", updated.Version).Msg("revision approved")
	e.record(ctx, models.ActivityEvent{
		ActorID:    reviewer.ID,
		Type:       models.ActivityRevisionApproved,
		TargetType: models.TargetRevision,
		TargetID:   rev.ID,
		Metadata: models.ActivityMetadata{
			EntryID:    entryID,
			RevisionID: rev.ID,
			Version:    updated.Version,
			Fields:     rev.Changes.Fields(),
			FromStatus: entry.Status,
			ToStatus:   updated.Status,
			Notes:      notes,
		},
	})
	msg := fmt.Sprintf("Your edit to %q was approved.", updated.Headword)
	if notes != "" {
		msg += " Notes: " + notes
	}
	e.notify(ctx, models.Notification{
		UserID:  rev.SubmittedBy,
		Message: msg,
		Metadata: models.NotificationMetadata{
			Kind:       models.NotifyRevisionApproved,
			EntryID:    entryID,
			RevisionID: rev.ID,
			Notes:      notes,
		},
	})
	return &ReviewResult{Entry: updated, Revision: *resolved}, nil
}

// RejectRevision marks a pending revision rejected and returns its entry to
// approved. Entry content is never touched. The reason is mandatory.
func (e *Engine) RejectRevision(ctx context.Context, entryID, revisionID string, reviewer models.Actor, reason string) (result *ReviewResult, err error) {
	const op = "reject_revision"
	defer e.observe(op, time.Now(), &err)

	rev, entry, err := e.beginReview(ctx, op, entryID, revisionID, reviewer)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validation(op, nil, "a reason is required to reject a revision")
	}

	now := e.now()
	resolved, err := e.resolve(ctx, op, rev.ID, models.RevisionRejected, reviewer.ID, now, reason)
	if err != nil {
		return nil, err
	}

	current := entry
	if entry.Status == models.EntryPendingRevision {
		status, from := models.EntryApproved, models.EntryPendingRevision
		current, err = e.entries.Update(ctx, entryID, models.EntryUpdate{Status: &status, IfStatus: &from})
		if errors.Is(err, ErrStatusChanged) {
			// released by someone else in the meantime
			current, err = e.entries.Get(ctx, entryID)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: release entry %s: %w", op, entryID, err)
		}
		if current == nil {
			return nil, notFound(op, "entry %s not found", entryID)
		}
	}

	e.log.Info().Str("entry_id", entryID).Str("revision_id", rev.ID).Str("reviewer_id", reviewer.ID).
		Msg("revision rejected")
	e.record(ctx, models.ActivityEvent{
		ActorID:    reviewer.ID,
		Type:       models.ActivityRevisionRejected,
		TargetType: models.TargetRevision,
		TargetID:   rev.ID,
		Metadata: models.ActivityMetadata{
			EntryID:    entryID,
			RevisionID: rev.ID,
			Version:    current.Version,
			Fields:     rev.Changes.Fields(),
			FromStatus: entry.Status,
			ToStatus:   current.Status,
			Notes:      reason,
		},
	})
	e.notify(ctx, models.Notification{
		UserID:  rev.SubmittedBy,
		Message: fmt.Sprintf("Your edit to %q was rejected: %s", current.Headword, reason),
		Metadata: models.NotificationMetadata{
			Kind:       models.NotifyRevisionRejected,
			EntryID:    entryID,
			RevisionID: rev.ID,
			Notes:      reason,
		},
	})
	return &ReviewResult{Entry: current, Revision: *resolved}, nil
}

// ListEntryRevisions returns the revision history of an entry the actor may view.
func (e *Engine) ListEntryRevisions(ctx context.Context, actor models.Actor, entryID string) ([]models.Revision, error) {
	const op = "list_entry_revisions"
	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return nil, err
	}
	if d := e.policy.Decide(actor, *entry, ActionView, Facts{}); !d.Allowed {
		return nil, permissionDenied(op, d)
	}
	revs, err := e.revisions.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("%s: list revisions: %w", op, err)
	}
	return revs, nil
}

// beginReview performs the checks shared by approve and reject: the revision
// exists for the entry, is pending, and the reviewer may moderate.
func (e *Engine) beginReview(ctx context.Context, op, entryID, revisionID string, reviewer models.Actor) (*models.Revision, *models.Entry, error) {
	rev, err := e.loadRevision(ctx, op, entryID, revisionID)
	if err != nil {
		return nil, nil, err
	}
	if rev.Status != models.RevisionPending {
		return nil, nil, invalidState(op, "revision %s is already %s", revisionID, rev.Status)
	}

	entry, err := e.entries.Get(ctx, entryID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: load entry %s: %w", op, entryID, err)
	}
	snapshot := models.Entry{ID: entryID}
	if entry != nil {
		snapshot = *entry
	}
	if d := e.policy.Decide(reviewer, snapshot, ActionModerate, Facts{}); !d.Allowed {
		return nil, nil, permissionDenied(op, d)
	}
	if entry == nil {
		return nil, nil, notFound(op, "entry %s no longer exists", entryID)
	}
	return rev, entry, nil
}

// resolve moves a revision out of pending. It fails with InvalidState when
// another reviewer resolved it first.
func (e *Engine) resolve(ctx context.Context, op, revisionID string, status models.RevisionStatus, reviewerID string, at time.Time, notes string) (*models.Revision, error) {
	pending := models.RevisionPending
	upd := models.RevisionUpdate{
		Status:     &status,
		ReviewedBy: &reviewerID,
		ReviewedAt: &at,
		IfStatus:   &pending,
	}
	if notes != "" {
		upd.ReviewNotes = &notes
	}
	resolved, err := e.revisions.Update(ctx, revisionID, upd)
	if errors.Is(err, ErrStatusChanged) {
		return nil, invalidState(op, "revision %s was resolved by another reviewer", revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: resolve revision %s: %w", op, revisionID, err)
	}
	if resolved == nil {
		return nil, notFound(op, "revision %s not found", revisionID)
	}
	return resolved, nil
}

// applyApproved writes the content of an approved revision to its entry and
// marks the entry approved at version. A non-nil ifStatus makes the write
// conditional.
func (e *Engine) applyApproved(ctx context.Context, entryID string, next models.Entry, version int, at time.Time, ifStatus *models.EntryStatus) (*models.Entry, error) {
	upd := models.ContentUpdate(next)
	status := models.EntryApproved
	upd.Version = &version
	upd.Status = &status
	upd.UpdatedAt = &at
	upd.IfStatus = ifStatus
	return e.entries.Update(ctx, entryID, upd)
}
