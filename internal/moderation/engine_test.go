package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexicon/pkg/models"
)

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(Config{Revisions: newMemRevisionStore()})
	assert.Error(t, err)
	_, err = New(Config{Entries: newMemEntryStore()})
	assert.Error(t, err)

	eng, err := New(Config{Entries: newMemEntryStore(), Revisions: newMemRevisionStore(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.NotNil(t, eng.Queue())
}

func TestCreateEntry_StatusFollowsPrivilege(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mbolo, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.EntryPending, mbolo.Status)
	assert.Equal(t, 1, mbolo.Version)
	assert.Equal(t, userU.ID, mbolo.CreatedBy)

	sawubona, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, sawubona.Status)

	for _, actor := range []models.Actor{modM, {ID: "root", Role: models.RoleSuperadmin}} {
		e, err := h.engine.CreateEntry(ctx, actor, draft("word-"+actor.ID, "en", "x"))
		require.NoError(t, err)
		assert.Equal(t, models.EntryApproved, e.Status, actor.Role)
	}
	e, err := h.engine.CreateEntry(ctx, userV, draft("lumela", "st", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.EntryPending, e.Status)

	assert.Contains(t, h.recorder.types(), models.ActivityCreated)
}

func TestCreateEntry_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.CreateEntry(ctx, anon, draft("mbolo", "fr", "hello"))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = h.engine.CreateEntry(ctx, userU, draft("   ", "fr", "hello"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.engine.CreateEntry(ctx, userU, models.EntryDraft{Headword: "mbolo", LanguageID: "fr",
		Meanings: models.Meanings{{PartOfSpeech: "noun"}}})
	assert.ErrorIs(t, err, ErrValidation, "a meaning needs at least one definition")

	_, err = h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)
	_, err = h.engine.CreateEntry(ctx, userV, draft("mbolo", "fr", "greeting"))
	assert.ErrorIs(t, err, ErrConflict)
}

// The full lifecycle from the product walkthrough: a community edit to an
// approved entry goes through review and lands on approval.
func TestScenario_RevisionLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sawubona, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	require.Equal(t, models.EntryApproved, sawubona.Status)

	res, err := h.engine.SubmitEdit(ctx, sawubona.ID, meaningsPatch("hello (to one person)"), userU)
	require.NoError(t, err)
	require.NotNil(t, res.Revision)
	assert.Equal(t, models.EntryPendingRevision, res.Entry.Status)
	assert.Equal(t, sawubona.Version, res.Entry.Version)
	assert.Equal(t, sawubona.Meanings, res.Entry.Meanings, "content is untouched until approval")

	rev := res.Revision
	assert.Equal(t, models.RevisionPending, rev.Status)
	assert.Equal(t, sawubona.Version+1, rev.Version)
	assert.Equal(t, userU.ID, rev.SubmittedBy)
	require.Len(t, rev.Changes, 1)
	assert.Equal(t, models.FieldMeanings, rev.Changes[0].Field)
	assert.Equal(t, models.ChangeModified, rev.Changes[0].Type)

	_, err = h.engine.SubmitEdit(ctx, sawubona.ID, meaningsPatch("hi"), userU)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, h.revisions.pendingCount(sawubona.ID))

	review, err := h.engine.ApproveRevision(ctx, sawubona.ID, rev.ID, adminA, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, review.Entry.Status)
	assert.Equal(t, sawubona.Version+1, review.Entry.Version)
	assert.Equal(t, "hello (to one person)", review.Entry.Meanings[0].Definitions[0].Text)
	assert.Equal(t, models.RevisionApproved, review.Revision.Status)
	require.NotNil(t, review.Revision.ReviewNotes)
	assert.Equal(t, "ok", *review.Revision.ReviewNotes)
	assert.Equal(t, adminA.ID, *review.Revision.ReviewedBy)
	assert.NotNil(t, review.Revision.ReviewedAt)

	stored, err := h.engine.GetEntry(ctx, userU, sawubona.ID)
	require.NoError(t, err)
	assert.Equal(t, review.Entry, stored)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, userU.ID, h.notifier.sent[0].UserID)
	assert.Equal(t, models.NotifyRevisionApproved, h.notifier.sent[0].Metadata.Kind)
}

func TestScenario_RejectWithoutReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("dumela", "tn", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Pronunciation: strPtr("du-me-la")}, userV)
	require.NoError(t, err)

	_, err = h.engine.RejectRevision(ctx, entry.ID, res.RevisionID(), adminA, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	rev, err := h.revisions.Get(ctx, res.RevisionID())
	require.NoError(t, err)
	assert.Equal(t, models.RevisionPending, rev.Status, "a failed rejection leaves the revision pending")
}

func TestRejectRevision_NeverMutatesContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Headword: strPtr("Sawubona!")}, userU)
	require.NoError(t, err)

	review, err := h.engine.RejectRevision(ctx, entry.ID, res.RevisionID(), modM, "punctuation is not part of the headword")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionRejected, review.Revision.Status)
	assert.Equal(t, "punctuation is not part of the headword", *review.Revision.ReviewNotes)

	after, err := h.entries.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, after.Status)
	assert.Equal(t, entry.Headword, after.Headword)
	assert.Equal(t, entry.Version, after.Version)
	assert.Equal(t, entry.Meanings, after.Meanings)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, models.NotifyRevisionRejected, h.notifier.sent[0].Metadata.Kind)

	// The entry is free for a new proposal once the old one is resolved.
	_, err = h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Headword: strPtr("Sawubona")}, userU)
	require.NoError(t, err)
}

// A reject that lands while an approval is between its checks and its write
// wins; the approval must not overwrite it or touch the entry.
func TestReview_RejectDuringApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Headword: strPtr("Sawubona!")}, userU)
	require.NoError(t, err)

	var rejectErr error
	fired := false
	h.revisions.updateHook = func(id string, upd models.RevisionUpdate) error {
		if fired || upd.Status == nil || *upd.Status != models.RevisionApproved {
			return nil
		}
		fired = true
		_, rejectErr = h.engine.RejectRevision(ctx, entry.ID, id, modM, "spam")
		return nil
	}

	_, err = h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "")
	require.True(t, fired)
	require.NoError(t, rejectErr)
	assert.ErrorIs(t, err, ErrInvalidState)

	rev, err := h.revisions.Get(ctx, res.RevisionID())
	require.NoError(t, err)
	assert.Equal(t, models.RevisionRejected, rev.Status)
	assert.Equal(t, modM.ID, *rev.ReviewedBy)
	assert.Equal(t, "spam", *rev.ReviewNotes)

	after, err := h.entries.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, after.Status)
	assert.Equal(t, "sawubona", after.Headword)
	assert.Equal(t, entry.Version, after.Version)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, models.NotifyRevisionRejected, h.notifier.sent[0].Metadata.Kind)
}

// Once an approval has resolved the revision, a reject arriving before the
// entry write is refused.
func TestReview_RejectAfterApprovalResolved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Headword: strPtr("Sawubona!")}, userU)
	require.NoError(t, err)

	var rejectErr error
	fired := false
	h.entries.updateHook = func(string, models.EntryUpdate) error {
		if fired {
			return nil
		}
		fired = true
		_, rejectErr = h.engine.RejectRevision(ctx, entry.ID, res.RevisionID(), modM, "spam")
		return nil
	}

	review, err := h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "")
	require.NoError(t, err)
	require.True(t, fired)
	assert.ErrorIs(t, rejectErr, ErrInvalidState)

	assert.Equal(t, models.RevisionApproved, review.Revision.Status)
	assert.Equal(t, "Sawubona!", review.Entry.Headword)
	assert.Equal(t, entry.Version+1, review.Entry.Version)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, models.NotifyRevisionApproved, h.notifier.sent[0].Metadata.Kind)
}

func TestSubmitEdit_DirectPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mbolo, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)

	res, err := h.engine.SubmitEdit(ctx, mbolo.ID, meaningsPatch("greeting"), userU)
	require.NoError(t, err)
	assert.Nil(t, res.Revision)
	assert.Equal(t, "", res.RevisionID())
	assert.Equal(t, models.EntryPending, res.Entry.Status)
	assert.Equal(t, mbolo.Version+1, res.Entry.Version)
	assert.True(t, res.Entry.UpdatedAt.After(mbolo.UpdatedAt))
	assert.Equal(t, "greeting", res.Entry.Meanings[0].Definitions[0].Text)

	approved, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err = h.engine.SubmitEdit(ctx, approved.ID, models.EntryPatch{Pronunciation: strPtr("sa-wu-bo-na")}, adminA)
	require.NoError(t, err)
	assert.Nil(t, res.Revision, "privileged edits skip review")
	assert.Equal(t, models.EntryApproved, res.Entry.Status)
	assert.Equal(t, approved.Version+1, res.Entry.Version)

	assert.Equal(t, []models.ActivityType{models.ActivityCreated, models.ActivityUpdated, models.ActivityCreated, models.ActivityUpdated}, h.recorder.types())
}

func TestSubmitEdit_VersionIncrementsByOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("amanzi", "zu", "water"))
	require.NoError(t, err)

	want := entry.Version
	for _, def := range []string{"liquid", "rain water", "drink"} {
		res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch(def), adminA)
		require.NoError(t, err)
		want++
		assert.Equal(t, want, res.Entry.Version)
	}

	res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("fresh water"), userU)
	require.NoError(t, err)
	assert.Equal(t, want, res.Entry.Version, "a proposal does not bump the version")

	review, err := h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "")
	require.NoError(t, err)
	assert.Equal(t, want+1, review.Entry.Version)
	assert.Nil(t, review.Revision.ReviewNotes)
}

func TestSubmitEdit_NoChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	approved, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	pending, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)

	_, err = h.engine.SubmitEdit(ctx, approved.ID, meaningsPatch("hello"), userU)
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, 0, h.revisions.pendingCount(approved.ID))

	_, err = h.engine.SubmitEdit(ctx, pending.ID, models.EntryPatch{Headword: strPtr("mbolo")}, userU)
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = h.engine.SubmitEdit(ctx, pending.ID, models.EntryPatch{}, userU)
	assert.ErrorIs(t, err, ErrNoChanges)

	after, err := h.entries.Get(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, after.Status)
	assert.Equal(t, 1, after.Version)
}

func TestSubmitEdit_Denied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mbolo, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)

	_, err = h.engine.SubmitEdit(ctx, mbolo.ID, meaningsPatch("hi"), userV)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, reasonNotOwner, PermissionReason(err))

	_, err = h.engine.ModerateEntry(ctx, adminA, mbolo.ID, VerdictReject, "not a word")
	require.NoError(t, err)
	_, err = h.engine.SubmitEdit(ctx, mbolo.ID, meaningsPatch("hi"), userU)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, reasonNotOwner, PermissionReason(err))

	_, err = h.engine.SubmitEdit(ctx, "missing", meaningsPatch("hi"), userU)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitEdit_InvalidProposalRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)

	_, err = h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Headword: strPtr("")}, userU)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, h.revisions.pendingCount(entry.ID))
}

func TestSubmitEdit_DuplicateFromStoreIsConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)

	// Another request won the race between the pending check and the insert.
	h.revisions.createErr = ErrDuplicate
	_, err = h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	assert.ErrorIs(t, err, ErrConflict)
}

// Direct edits carry no version precondition: two editors working from the
// same snapshot both succeed and the later write wins.
func TestSubmitEdit_ConcurrentDirectEditsLastWriterWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("amanzi", "zu", "water"))
	require.NoError(t, err)

	first, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("liquid"), adminA)
	require.NoError(t, err)
	second, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("rain"), modM)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Entry.Version)
	assert.Equal(t, 3, second.Entry.Version)
	after, err := h.entries.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "rain", after.Meanings[0].Definitions[0].Text)
}

func TestSubmitEdit_PrivilegedEditDuringPendingRevision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hello there"), userU)
	require.NoError(t, err)

	direct, err := h.engine.SubmitEdit(ctx, entry.ID, models.EntryPatch{Pronunciation: strPtr("sa-wu-bo-na")}, adminA)
	require.NoError(t, err)
	assert.Equal(t, models.EntryPendingRevision, direct.Entry.Status, "review flag survives direct edits")
	assert.Equal(t, 2, direct.Entry.Version)

	review, err := h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "")
	require.NoError(t, err)
	assert.Equal(t, 3, review.Entry.Version)
	assert.Equal(t, "sa-wu-bo-na", review.Entry.Pronunciation)
	assert.Equal(t, "hello there", review.Entry.Meanings[0].Definitions[0].Text)
}

func TestReview_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	other, err := h.engine.CreateEntry(ctx, adminA, draft("ngiyabonga", "zu", "thank you"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	require.NoError(t, err)
	revID := res.RevisionID()

	_, err = h.engine.ApproveRevision(ctx, entry.ID, "missing", adminA, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.engine.ApproveRevision(ctx, other.ID, revID, adminA, "")
	assert.ErrorIs(t, err, ErrNotFound, "revision must belong to the entry")

	_, err = h.engine.ApproveRevision(ctx, entry.ID, revID, userU, "")
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, reasonNotPrivileged, PermissionReason(err))
	_, err = h.engine.RejectRevision(ctx, entry.ID, revID, userV, "spam")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = h.engine.ApproveRevision(ctx, entry.ID, revID, adminA, "")
	require.NoError(t, err)

	_, err = h.engine.ApproveRevision(ctx, entry.ID, revID, adminA, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = h.engine.RejectRevision(ctx, entry.ID, revID, adminA, "late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApproveRevision_EntryDeletedUnderneath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	require.NoError(t, err)

	_, err = h.entries.Delete(ctx, entry.ID)
	require.NoError(t, err)

	_, err = h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSideEffectFailuresDoNotFailMutations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.recorder.err = errInjected
	h.notifier.err = errInjected

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	require.NoError(t, err)
	review, err := h.engine.ApproveRevision(ctx, entry.ID, res.RevisionID(), adminA, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionApproved, review.Revision.Status)

	assert.Equal(t, 3, h.metrics.sideEffects["activity"])
	assert.Equal(t, 1, h.metrics.sideEffects["notification"])
}

func TestSideEffectPanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.recorder.panics = true

	entry, err := h.engine.CreateEntry(context.Background(), adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, entry.Status)
	assert.Equal(t, 1, h.metrics.sideEffects["activity"])
}

func TestCancellationIsPropagated(t *testing.T) {
	h := newHarness(t)
	entry, err := h.engine.CreateEntry(context.Background(), adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Kind(""), KindOf(err))

	_, err = h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = h.engine.ListPendingRevisions(ctx, models.PageRequest{})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, h.metrics.outcomes["submit_edit/canceled"])
}

// A crash between the revision insert and the entry flag leaves a pending
// revision on an approved entry. The engine reports the failure and the
// revision stays visible to moderators.
func TestSubmitEdit_FailureAfterRevisionWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	h.entries.updateHook = func(string, models.EntryUpdate) error { return errInjected }

	_, err = h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
	assert.Equal(t, 1, h.revisions.pendingCount(entry.ID))

	page, err := h.engine.ListPendingRevisions(ctx, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Anomaly)
	assert.Equal(t, AnomalyEntryNotFlagged, page.Items[0].Anomaly.Kind)
}

func TestDecidePermission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)

	d, err := h.engine.DecidePermission(ctx, userU, entry.ID, ActionDelete)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	h.deps.counts[entry.ID] = Dependents{Translations: 1}
	d, err = h.engine.DecidePermission(ctx, userU, entry.ID, ActionDelete)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, reasonDependents, d.Reason)

	_, err = h.engine.ModerateEntry(ctx, adminA, entry.ID, VerdictApprove, "")
	require.NoError(t, err)
	d, err = h.engine.DecidePermission(ctx, userV, entry.ID, ActionEdit)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.Has(RestrictionRequiresRevision))

	_, err = h.engine.DecidePermission(ctx, userU, entry.ID, Action("publish"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.engine.DecidePermission(ctx, userU, "missing", ActionView)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mine, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)
	err = h.engine.DeleteEntry(ctx, userV, mine.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	require.NoError(t, h.engine.DeleteEntry(ctx, userU, mine.ID))
	assert.ErrorIs(t, h.engine.DeleteEntry(ctx, userU, mine.ID), ErrNotFound)

	approved, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	res, err := h.engine.SubmitEdit(ctx, approved.ID, meaningsPatch("hi"), userU)
	require.NoError(t, err)

	d, err := h.engine.DecidePermission(ctx, adminA, approved.ID, ActionDelete)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "the decision matches what DeleteEntry does")
	assert.Equal(t, reasonPendingRev, d.Reason)
	err = h.engine.DeleteEntry(ctx, adminA, approved.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "entries referenced by a pending revision are kept")
	err = h.engine.DeleteEntry(ctx, userU, approved.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied, "not the owner")

	_, err = h.engine.RejectRevision(ctx, approved.ID, res.RevisionID(), adminA, "no")
	require.NoError(t, err)
	require.NoError(t, h.engine.DeleteEntry(ctx, adminA, approved.ID))
	assert.Contains(t, h.recorder.types(), models.ActivityDeleted)
}

func TestModerateEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, userU, draft("mbolo", "fr", "hello"))
	require.NoError(t, err)

	_, err = h.engine.ModerateEntry(ctx, userV, entry.ID, VerdictApprove, "")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = h.engine.ModerateEntry(ctx, adminA, entry.ID, VerdictReject, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.engine.ModerateEntry(ctx, adminA, entry.ID, Verdict("maybe"), "")
	assert.ErrorIs(t, err, ErrValidation)

	rejected, err := h.engine.ModerateEntry(ctx, adminA, entry.ID, VerdictReject, "duplicate of bonjour")
	require.NoError(t, err)
	assert.Equal(t, models.EntryRejected, rejected.Status)
	assert.Equal(t, entry.Version, rejected.Version)

	_, err = h.engine.GetEntry(ctx, userV, entry.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = h.engine.GetEntry(ctx, userU, entry.ID)
	assert.NoError(t, err)

	_, err = h.engine.ModerateEntry(ctx, adminA, entry.ID, VerdictApprove, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	restored, err := h.engine.RestoreEntry(ctx, modM, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryPending, restored.Status)
	_, err = h.engine.RestoreEntry(ctx, modM, entry.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	approved, err := h.engine.ModerateEntry(ctx, modM, entry.ID, VerdictApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.EntryApproved, approved.Status)

	require.Len(t, h.notifier.sent, 2)
	assert.Equal(t, models.NotifyEntryRejected, h.notifier.sent[0].Metadata.Kind)
	assert.Equal(t, models.NotifyEntryApproved, h.notifier.sent[1].Metadata.Kind)
	assert.Equal(t, userU.ID, h.notifier.sent[1].UserID)
}

func TestListEntryRevisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entry, err := h.engine.CreateEntry(ctx, adminA, draft("sawubona", "zu", "hello"))
	require.NoError(t, err)
	first, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hi"), userU)
	require.NoError(t, err)
	_, err = h.engine.RejectRevision(ctx, entry.ID, first.RevisionID(), adminA, "no")
	require.NoError(t, err)
	second, err := h.engine.SubmitEdit(ctx, entry.ID, meaningsPatch("hey"), userV)
	require.NoError(t, err)

	revs, err := h.engine.ListEntryRevisions(ctx, userU, entry.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, first.RevisionID(), revs[0].ID)
	assert.Equal(t, models.RevisionRejected, revs[0].Status)
	assert.Equal(t, second.RevisionID(), revs[1].ID)
	assert.Equal(t, models.RevisionPending, revs[1].Status)
}
