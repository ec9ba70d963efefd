package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/lexicon/pkg/models"
)

// Verdict is a moderator's decision on a new entry.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// EditResult is the outcome of SubmitEdit. Revision is set when the edit was
// routed through review instead of being applied.
type EditResult struct {
	Entry    models.Entry     `json:"entry"`
	Revision *models.Revision `json:"revision,omitempty"`
}

// RevisionID returns the id of the created revision, or "".
func (r EditResult) RevisionID() string {
	if r.Revision == nil {
		return ""
	}
	return r.Revision.ID
}

// CreateEntry stores a new entry. Entries created by privileged actors are
// approved immediately; all others wait in the moderation queue.
func (e *Engine) CreateEntry(ctx context.Context, actor models.Actor, draft models.EntryDraft) (created *models.Entry, err error) {
	const op = "create_entry"
	defer e.observe(op, time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return nil, permissionDenied(op, deny(reasonAuthRequired))
	}

	now := e.now()
	entry := models.Entry{
		ID:            e.newID(),
		Headword:      strings.TrimSpace(draft.Headword),
		LanguageID:    strings.TrimSpace(draft.LanguageID),
		Meanings:      draft.Meanings,
		Translations:  draft.Translations,
		CategoryID:    draft.CategoryID,
		Pronunciation: draft.Pronunciation,
		Audio:         draft.Audio.Sorted(),
		Status:        models.EntryPending,
		Version:       1,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor.IsPrivileged() {
		entry.Status = models.EntryApproved
	}
	if err := validateEntry(op, entry); err != nil {
		return nil, err
	}

	created, err = e.entries.Create(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, conflict(op, "entry %q already exists for language %s", entry.Headword, entry.LanguageID)
		}
		return nil, fmt.Errorf("%s: store entry: %w", op, err)
	}

	e.log.Info().Str("entry_id", created.ID).Str("actor_id", actor.ID).
		Str("status", string(created.Status)).Msg("entry created")
	e.record(ctx, models.ActivityEvent{
		ActorID:    actor.ID,
		Type:       models.ActivityCreated,
		TargetType: models.TargetEntry,
		TargetID:   created.ID,
		Metadata: models.ActivityMetadata{
			EntryID:  created.ID,
			Version:  created.Version,
			ToStatus: created.Status,
		},
	})
	return created, nil
}

// GetEntry returns an entry the actor is allowed to view.
func (e *Engine) GetEntry(ctx context.Context, actor models.Actor, entryID string) (*models.Entry, error) {
	const op = "get_entry"
	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return nil, err
	}
	if d := e.policy.Decide(actor, *entry, ActionView, Facts{}); !d.Allowed {
		return nil, permissionDenied(op, d)
	}
	return entry, nil
}

// DecidePermission evaluates the policy for an action against the current
// state of an entry, so callers can render affordances before acting.
func (e *Engine) DecidePermission(ctx context.Context, actor models.Actor, entryID string, action Action) (Decision, error) {
	const op = "decide_permission"
	if !action.Valid() {
		return Decision{}, validation(op, nil, "unknown action %q", action)
	}
	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return Decision{}, err
	}
	var facts Facts
	if action == ActionDelete {
		if facts, err = e.deleteFacts(ctx, op, entryID); err != nil {
			return Decision{}, err
		}
	}
	return e.policy.Decide(actor, *entry, action, facts), nil
}

// SubmitEdit applies a patch to an entry, or, when the policy requires
// review, stores it as a pending revision and flags the entry.
//
// There is no version precondition: concurrent direct edits are last-writer-wins.
func (e *Engine) SubmitEdit(ctx context.Context, entryID string, patch models.EntryPatch, actor models.Actor) (result *EditResult, err error) {
	const op = "submit_edit"
	defer e.observe(op, time.Now(), &err)

	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return nil, err
	}
	decision := e.policy.Decide(actor, *entry, ActionEdit, Facts{})
	if !decision.Allowed {
		return nil, permissionDenied(op, decision)
	}

	changes, err := Diff(*entry, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(changes) == 0 {
		return nil, noChanges(op)
	}

	if decision.Has(RestrictionRequiresRevision) {
		result, err = e.proposeRevision(ctx, op, *entry, changes, actor)
	} else {
		result, err = e.applyDirect(ctx, op, *entry, patch)
	}
	if err != nil {
		return nil, err
	}

	meta := models.ActivityMetadata{
		EntryID:    result.Entry.ID,
		RevisionID: result.RevisionID(),
		Version:    result.Entry.Version,
		Fields:     changes.Fields(),
		FromStatus: entry.Status,
		ToStatus:   result.Entry.Status,
	}
	e.record(ctx, models.ActivityEvent{
		ActorID:    actor.ID,
		Type:       models.ActivityUpdated,
		TargetType: models.TargetEntry,
		TargetID:   result.Entry.ID,
		Metadata:   meta,
	})
	return result, nil
}

// proposeRevision writes the revision before flipping the entry status so a
// crash in between leaves a pending revision the reconciler can repair.
func (e *Engine) proposeRevision(ctx context.Context, op string, entry models.Entry, changes models.ChangeSet, actor models.Actor) (*EditResult, error) {
	existing, err := e.revisions.FindPendingByEntry(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: find pending revision: %w", op, err)
	}
	if existing != nil {
		return nil, conflict(op, "entry %s already has pending revision %s", entry.ID, existing.ID)
	}

	proposed, err := ApplyChangeSet(entry, changes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateEntry(op, proposed); err != nil {
		return nil, err
	}

	rev, err := e.revisions.Create(ctx, models.Revision{
		ID:          e.newID(),
		EntryID:     entry.ID,
		Version:     entry.Version + 1,
		Changes:     changes,
		SubmittedBy: actor.ID,
		SubmittedAt: e.now(),
		Status:      models.RevisionPending,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, conflict(op, "entry %s already has a pending revision", entry.ID)
		}
		return nil, fmt.Errorf("%s: store revision: %w", op, err)
	}

	current := &entry
	if entry.Status != models.EntryPendingRevision {
		status := models.EntryPendingRevision
		current, err = e.entries.Update(ctx, entry.ID, models.EntryUpdate{Status: &status})
		if err != nil {
			return nil, fmt.Errorf("%s: flag entry %s: %w", op, entry.ID, err)
		}
		if current == nil {
			return nil, notFound(op, "entry %s was deleted while revision %s was created", entry.ID, rev.ID)
		}
	}

	e.log.Info().Str("entry_id", entry.ID).Str("revision_id", rev.ID).Str("actor_id", actor.ID).
		Int("changes", len(changes)).Msg("revision submitted")
	return &EditResult{Entry: *current, Revision: rev}, nil
}

func (e *Engine) applyDirect(ctx context.Context, op string, entry models.Entry, patch models.EntryPatch) (*EditResult, error) {
	next, err := ApplyPatch(entry, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateEntry(op, next); err != nil {
		return nil, err
	}

	upd := models.ContentUpdate(next)
	version := entry.Version + 1
	now := e.now()
	upd.Version = &version
	upd.UpdatedAt = &now

	updated, err := e.entries.Update(ctx, entry.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: update entry %s: %w", op, entry.ID, err)
	}
	if updated == nil {
		return nil, notFound(op, "entry %s not found", entry.ID)
	}
	return &EditResult{Entry: *updated}, nil
}

// DeleteEntry removes an entry. It is refused while a revision is pending,
// whoever asks.
func (e *Engine) DeleteEntry(ctx context.Context, actor models.Actor, entryID string) (err error) {
	const op = "delete_entry"
	defer e.observe(op, time.Now(), &err)

	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return err
	}
	facts, err := e.deleteFacts(ctx, op, entryID)
	if err != nil {
		return err
	}
	if d := e.policy.Decide(actor, *entry, ActionDelete, facts); !d.Allowed {
		if d.Reason == reasonPendingRev {
			return invalidState(op, "entry %s has a pending revision", entryID)
		}
		return permissionDenied(op, d)
	}

	deleted, err := e.entries.Delete(ctx, entryID)
	if err != nil {
		return fmt.Errorf("%s: delete entry %s: %w", op, entryID, err)
	}
	if !deleted {
		return notFound(op, "entry %s not found", entryID)
	}

	e.record(ctx, models.ActivityEvent{
		ActorID:    actor.ID,
		Type:       models.ActivityDeleted,
		TargetType: models.TargetEntry,
		TargetID:   entryID,
		Metadata:   models.ActivityMetadata{EntryID: entryID, Version: entry.Version, FromStatus: entry.Status},
	})
	return nil
}

func (e *Engine) deleteFacts(ctx context.Context, op, entryID string) (Facts, error) {
	pending, err := e.revisions.FindPendingByEntry(ctx, entryID)
	if err != nil {
		return Facts{}, fmt.Errorf("%s: find pending revision: %w", op, err)
	}
	deps, err := e.dependents.CountDependents(ctx, entryID)
	if err != nil {
		return Facts{}, fmt.Errorf("%s: count dependents: %w", op, err)
	}
	return Facts{HasPendingRevision: pending != nil, Dependents: deps}, nil
}

// ModerateEntry approves or rejects a new entry. A reason is required to
// reject. Status changes do not bump the version.
func (e *Engine) ModerateEntry(ctx context.Context, actor models.Actor, entryID string, verdict Verdict, notes string) (result *models.Entry, err error) {
	const op = "moderate_entry"
	defer e.observe(op, time.Now(), &err)

	var to models.EntryStatus
	switch verdict {
	case VerdictApprove:
		to = models.EntryApproved
	case VerdictReject:
		to = models.EntryRejected
	default:
		return nil, validation(op, nil, "unknown verdict %q", verdict)
	}

	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return nil, err
	}
	if d := e.policy.Decide(actor, *entry, ActionModerate, Facts{}); !d.Allowed {
		return nil, permissionDenied(op, d)
	}
	if entry.Status != models.EntryPending {
		return nil, invalidState(op, "entry %s is %s, not pending", entryID, entry.Status)
	}
	notes = strings.TrimSpace(notes)
	if verdict == VerdictReject && notes == "" {
		return nil, validation(op, nil, "a reason is required to reject an entry")
	}

	now := e.now()
	result, err = e.entries.Update(ctx, entryID, models.EntryUpdate{Status: &to, UpdatedAt: &now})
	if err != nil {
		return nil, fmt.Errorf("%s: update entry %s: %w", op, entryID, err)
	}
	if result == nil {
		return nil, notFound(op, "entry %s not found", entryID)
	}

	activity, kind, msg := models.ActivityEntryApproved, models.NotifyEntryApproved,
		fmt.Sprintf("Your entry %q was approved.", entry.Headword)
	if verdict == VerdictReject {
		activity, kind, msg = models.ActivityEntryRejected, models.NotifyEntryRejected,
			fmt.Sprintf("Your entry %q was rejected: %s", entry.Headword, notes)
	}
	e.record(ctx, models.ActivityEvent{
		ActorID:    actor.ID,
		Type:       activity,
		TargetType: models.TargetEntry,
		TargetID:   entryID,
		Metadata:   models.ActivityMetadata{EntryID: entryID, FromStatus: entry.Status, ToStatus: to, Notes: notes},
	})
	e.notify(ctx, models.Notification{
		UserID:   entry.CreatedBy,
		Message:  msg,
		Metadata: models.NotificationMetadata{Kind: kind, EntryID: entryID, Notes: notes},
	})
	return result, nil
}

// RestoreEntry returns a rejected entry to the moderation queue.
func (e *Engine) RestoreEntry(ctx context.Context, actor models.Actor, entryID string) (result *models.Entry, err error) {
	const op = "restore_entry"
	defer e.observe(op, time.Now(), &err)

	entry, err := e.loadEntry(ctx, op, entryID)
	if err != nil {
		return nil, err
	}
	if d := e.policy.Decide(actor, *entry, ActionModerate, Facts{}); !d.Allowed {
		return nil, permissionDenied(op, d)
	}
	if entry.Status != models.EntryRejected {
		return nil, invalidState(op, "entry %s is %s, not rejected", entryID, entry.Status)
	}

	status := models.EntryPending
	now := e.now()
	result, err = e.entries.Update(ctx, entryID, models.EntryUpdate{Status: &status, UpdatedAt: &now})
	if err != nil {
		return nil, fmt.Errorf("%s: update entry %s: %w", op, entryID, err)
	}
	if result == nil {
		return nil, notFound(op, "entry %s not found", entryID)
	}

	e.record(ctx, models.ActivityEvent{
		ActorID:    actor.ID,
		Type:       models.ActivityEntryRestored,
		TargetType: models.TargetEntry,
		TargetID:   entryID,
		Metadata:   models.ActivityMetadata{EntryID: entryID, FromStatus: entry.Status, ToStatus: status},
	})
	return result, nil
}
