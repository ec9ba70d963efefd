package moderation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/example/lexicon/pkg/models"
)

// AnomalyKind names an inconsistent state left by an interrupted transition.
type AnomalyKind string

const (
	// AnomalyMissingEntry is a pending revision whose entry is gone.
	AnomalyMissingEntry AnomalyKind = "entry_missing"
	// AnomalyAlreadyApplied is a pending revision whose entry already reached
	// the revision's target version.
	AnomalyAlreadyApplied AnomalyKind = "already_applied"
	// AnomalyEntryNotFlagged is a pending revision whose entry was never
	// flipped to pending_revision.
	AnomalyEntryNotFlagged AnomalyKind = "entry_not_flagged"
	// AnomalyOrphanedEntry is an entry in pending_revision with no pending revision.
	AnomalyOrphanedEntry AnomalyKind = "orphaned_entry"
	// AnomalyApprovalNotApplied is an entry in pending_revision whose latest
	// revision was approved but never written to it.
	AnomalyApprovalNotApplied AnomalyKind = "approval_not_applied"
	// AnomalyUnexpectedState is a pending revision on an entry that is
	// pending or rejected.
	AnomalyUnexpectedState AnomalyKind = "unexpected_entry_state"
)

// Anomaly is one inconsistent record surfaced by the queue.
type Anomaly struct {
	Kind       AnomalyKind `json:"kind"`
	EntryID    string      `json:"entry_id"`
	RevisionID string      `json:"revision_id,omitempty"`
	Detail     string      `json:"detail"`
}

// RevisionItem is a pending revision as shown to moderators.
type RevisionItem struct {
	Revision models.Revision `json:"revision"`
	Priority Priority        `json:"priority"`
	// Entry is nil when the entry no longer exists.
	Entry   *models.Entry `json:"entry,omitempty"`
	Anomaly *Anomaly      `json:"anomaly,omitempty"`
}

// Queue exposes read-only moderation views over the stores. It tolerates
// inconsistent records and reports them instead of failing.
type Queue struct {
	entries   EntryStore
	revisions RevisionStore
	metrics   Instrumentation
	log       zerolog.Logger
}

func newQueue(entries EntryStore, revisions RevisionStore, metrics Instrumentation, log zerolog.Logger) *Queue {
	return &Queue{entries: entries, revisions: revisions, metrics: metrics, log: log}
}

// ListPendingEntries lists new entries awaiting moderation, oldest first.
func (q *Queue) ListPendingEntries(ctx context.Context, req models.PageRequest) (models.Page[models.Entry], error) {
	if err := ctx.Err(); err != nil {
		return models.Page[models.Entry]{}, err
	}
	page, err := q.entries.ListByStatus(ctx, models.EntryPending, req.Normalize())
	if err != nil {
		return models.Page[models.Entry]{}, fmt.Errorf("list pending entries: %w", err)
	}
	q.metrics.SetQueueDepth("entries", page.Total)
	return page, nil
}

// ListPendingRevisions lists pending revisions ordered by priority, highest
// first, then by submission time, oldest first.
func (q *Queue) ListPendingRevisions(ctx context.Context, req models.PageRequest) (models.Page[RevisionItem], error) {
	req = req.Normalize()
	items, err := q.pendingRevisionItems(ctx)
	if err != nil {
		return models.Page[RevisionItem]{}, err
	}
	q.metrics.SetQueueDepth("revisions", len(items))

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Revision.SubmittedAt.Equal(b.Revision.SubmittedAt) {
			return a.Revision.SubmittedAt.Before(b.Revision.SubmittedAt)
		}
		return a.Revision.ID < b.Revision.ID
	})

	start := req.Offset()
	if start < 0 || start > len(items) {
		start = len(items)
	}
	end := start + req.Limit
	if end > len(items) {
		end = len(items)
	}
	return models.NewPage(items[start:end], len(items), req), nil
}

// Anomalies scans pending revisions and flagged entries for states left by
// interrupted transitions.
func (q *Queue) Anomalies(ctx context.Context) ([]Anomaly, error) {
	items, err := q.pendingRevisionItems(ctx)
	if err != nil {
		return nil, err
	}
	var out []Anomaly
	for _, item := range items {
		if item.Anomaly != nil {
			out = append(out, *item.Anomaly)
		}
	}

	err = scanPages(ctx, func(req models.PageRequest) (int, error) {
		page, err := q.entries.ListByStatus(ctx, models.EntryPendingRevision, req)
		if err != nil {
			return 0, fmt.Errorf("list flagged entries: %w", err)
		}
		for _, entry := range page.Items {
			pending, err := q.revisions.FindPendingByEntry(ctx, entry.ID)
			if err != nil {
				return 0, fmt.Errorf("find pending revision for %s: %w", entry.ID, err)
			}
			if pending != nil {
				continue
			}
			approved, err := q.unappliedApproval(ctx, entry)
			if err != nil {
				return 0, err
			}
			if approved != nil {
				out = append(out, Anomaly{
					Kind:       AnomalyApprovalNotApplied,
					EntryID:    entry.ID,
					RevisionID: approved.ID,
					Detail:     fmt.Sprintf("revision approved for version %d, entry is at version %d", approved.Version, entry.Version),
				})
				continue
			}
			out = append(out, Anomaly{
				Kind:    AnomalyOrphanedEntry,
				EntryID: entry.ID,
				Detail:  "entry is pending_revision but has no pending revision",
			})
		}
		return len(page.Items), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// unappliedApproval returns the entry's latest revision when it is approved
// and targets a version the entry has not reached.
func (q *Queue) unappliedApproval(ctx context.Context, entry models.Entry) (*models.Revision, error) {
	revs, err := q.revisions.ListByEntry(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("list revisions for %s: %w", entry.ID, err)
	}
	var latest *models.Revision
	for i := range revs {
		if latest == nil || revs[i].Version > latest.Version {
			latest = &revs[i]
		}
	}
	if latest == nil || latest.Status != models.RevisionApproved || latest.Version <= entry.Version {
		return nil, nil
	}
	return latest, nil
}

func (q *Queue) pendingRevisionItems(ctx context.Context) ([]RevisionItem, error) {
	var items []RevisionItem
	entries := make(map[string]*models.Entry)

	err := scanPages(ctx, func(req models.PageRequest) (int, error) {
		page, err := q.revisions.ListByStatus(ctx, models.RevisionPending, req)
		if err != nil {
			return 0, fmt.Errorf("list pending revisions: %w", err)
		}
		for _, rev := range page.Items {
			entry, seen := entries[rev.EntryID]
			if !seen {
				entry, err = q.entries.Get(ctx, rev.EntryID)
				if err != nil {
					return 0, fmt.Errorf("load entry %s: %w", rev.EntryID, err)
				}
				entries[rev.EntryID] = entry
			}
			item := RevisionItem{Revision: rev, Priority: RevisionPriority(rev.Changes), Entry: entry}
			item.Anomaly = classify(rev, entry)
			if item.Anomaly != nil {
				q.log.Debug().Str("anomaly", string(item.Anomaly.Kind)).Str("revision_id", rev.ID).
					Str("entry_id", rev.EntryID).Msg("inconsistent pending revision")
			}
			items = append(items, item)
		}
		return len(page.Items), nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func classify(rev models.Revision, entry *models.Entry) *Anomaly {
	a := &Anomaly{EntryID: rev.EntryID, RevisionID: rev.ID}
	switch {
	case entry == nil:
		a.Kind, a.Detail = AnomalyMissingEntry, "entry no longer exists"
	case entry.Status == models.EntryPendingRevision:
		return nil
	case entry.Status == models.EntryApproved && entry.Version >= rev.Version:
		a.Kind, a.Detail = AnomalyAlreadyApplied, fmt.Sprintf("entry is at version %d, revision targets %d", entry.Version, rev.Version)
	case entry.Status == models.EntryApproved:
		a.Kind, a.Detail = AnomalyEntryNotFlagged, "entry is approved but not flagged pending_revision"
	default:
		a.Kind, a.Detail = AnomalyUnexpectedState, fmt.Sprintf("entry is %s", entry.Status)
	}
	return a
}

// scanPages calls fetch for successive full-size pages until one comes back
// short. fetch returns the number of items it saw.
func scanPages(ctx context.Context, fetch func(req models.PageRequest) (int, error)) error {
	req := models.PageRequest{Page: 1, Limit: models.MaxPageLimit}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := fetch(req)
		if err != nil {
			return err
		}
		if n < req.Limit {
			return nil
		}
		req.Page++
	}
}
