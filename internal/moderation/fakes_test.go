package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/example/lexicon/pkg/models"
)

var errInjected = errors.New("injected failure")

type memEntryStore struct {
	mu   sync.Mutex
	rows map[string]models.Entry

	// updateHook runs before an update is applied; a non-nil error fails it.
	updateHook func(id string, upd models.EntryUpdate) error
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{rows: make(map[string]models.Entry)}
}

func (s *memEntryStore) Get(ctx context.Context, id string) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memEntryStore) Create(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.rows {
		if e.Headword == entry.Headword && e.LanguageID == entry.LanguageID {
			return nil, ErrDuplicate
		}
	}
	s.rows[entry.ID] = entry
	return &entry, nil
}

func (s *memEntryStore) Update(ctx context.Context, id string, upd models.EntryUpdate) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.updateHook != nil {
		if err := s.updateHook(id, upd); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	if upd.IfStatus != nil && e.Status != *upd.IfStatus {
		return nil, ErrStatusChanged
	}
	if upd.Headword != nil {
		e.Headword = *upd.Headword
	}
	if upd.LanguageID != nil {
		e.LanguageID = *upd.LanguageID
	}
	if upd.Meanings != nil {
		e.Meanings = *upd.Meanings
	}
	if upd.Translations != nil {
		e.Translations = *upd.Translations
	}
	if upd.CategoryID != nil {
		e.CategoryID = *upd.CategoryID
	}
	if upd.Pronunciation != nil {
		e.Pronunciation = *upd.Pronunciation
	}
	if upd.Audio != nil {
		e.Audio = *upd.Audio
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.Version != nil {
		e.Version = *upd.Version
	}
	if upd.UpdatedAt != nil {
		e.UpdatedAt = *upd.UpdatedAt
	}
	s.rows[id] = e
	return &e, nil
}

func (s *memEntryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	delete(s.rows, id)
	return ok, nil
}

func (s *memEntryStore) ListByStatus(ctx context.Context, status models.EntryStatus, req models.PageRequest) (models.Page[models.Entry], error) {
	if err := ctx.Err(); err != nil {
		return models.Page[models.Entry]{}, err
	}
	s.mu.Lock()
	var all []models.Entry
	for _, e := range s.rows {
		if e.Status == status {
			all = append(all, e)
		}
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, req), nil
}

// put stores an entry bypassing the engine.
func (s *memEntryStore) put(e models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[e.ID] = e
}

type memRevisionStore struct {
	mu   sync.Mutex
	rows map[string]models.Revision

	createErr  error
	updateHook func(id string, upd models.RevisionUpdate) error
}

func newMemRevisionStore() *memRevisionStore {
	return &memRevisionStore{rows: make(map[string]models.Revision)}
}

func (s *memRevisionStore) Create(ctx context.Context, rev models.Revision) (*models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.EntryID == rev.EntryID && r.Status == models.RevisionPending && rev.Status == models.RevisionPending {
			return nil, ErrDuplicate
		}
	}
	s.rows[rev.ID] = rev
	return &rev, nil
}

func (s *memRevisionStore) Get(ctx context.Context, id string) (*models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memRevisionStore) FindPendingByEntry(ctx context.Context, entryID string) (*models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.EntryID == entryID && r.Status == models.RevisionPending {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memRevisionStore) ListByEntry(ctx context.Context, entryID string) ([]models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []models.Revision
	for _, r := range s.rows {
		if r.EntryID == entryID {
			out = append(out, r)
		}
	}
	s.mu.Unlock()
	sortRevisions(out)
	return out, nil
}

func (s *memRevisionStore) ListByStatus(ctx context.Context, status models.RevisionStatus, req models.PageRequest) (models.Page[models.Revision], error) {
	if err := ctx.Err(); err != nil {
		return models.Page[models.Revision]{}, err
	}
	s.mu.Lock()
	var all []models.Revision
	for _, r := range s.rows {
		if r.Status == status {
			all = append(all, r)
		}
	}
	s.mu.Unlock()
	sortRevisions(all)
	return paginate(all, req), nil
}

func (s *memRevisionStore) Update(ctx context.Context, id string, upd models.RevisionUpdate) (*models.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.updateHook != nil {
		if err := s.updateHook(id, upd); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	if upd.IfStatus != nil && r.Status != *upd.IfStatus {
		return nil, ErrStatusChanged
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.ReviewedBy != nil {
		r.ReviewedBy = upd.ReviewedBy
	}
	if upd.ReviewedAt != nil {
		r.ReviewedAt = upd.ReviewedAt
	}
	if upd.ReviewNotes != nil {
		r.ReviewNotes = upd.ReviewNotes
	}
	s.rows[id] = r
	return &r, nil
}

func (s *memRevisionStore) put(r models.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.ID] = r
}

func (s *memRevisionStore) pendingCount(entryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.EntryID == entryID && r.Status == models.RevisionPending {
			n++
		}
	}
	return n
}

func sortRevisions(revs []models.Revision) {
	sort.Slice(revs, func(i, j int) bool {
		if !revs[i].SubmittedAt.Equal(revs[j].SubmittedAt) {
			return revs[i].SubmittedAt.Before(revs[j].SubmittedAt)
		}
		return revs[i].ID < revs[j].ID
	})
}

func paginate[T any](all []T, req models.PageRequest) models.Page[T] {
	req = req.Normalize()
	start := req.Offset()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := start + req.Limit
	if end > len(all) {
		end = len(all)
	}
	return models.NewPage(append([]T(nil), all[start:end]...), len(all), req)
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.ActivityEvent
	err    error
	panics bool
}

func (r *fakeRecorder) Record(ctx context.Context, event models.ActivityEvent) error {
	if r.panics {
		panic("recorder exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *fakeRecorder) types() []models.ActivityType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ActivityType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type fakeDependents struct {
	counts map[string]Dependents
}

func (f fakeDependents) CountDependents(ctx context.Context, entryID string) (Dependents, error) {
	return f.counts[entryID], nil
}

type countingMetrics struct {
	mu          sync.Mutex
	outcomes    map[string]int
	sideEffects map[string]int
	repaired    map[string]int
	depth       map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		outcomes:    map[string]int{},
		sideEffects: map[string]int{},
		repaired:    map[string]int{},
		depth:       map[string]int{},
	}
}

func (m *countingMetrics) ObserveOperation(op, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[op+"/"+outcome]++
}

func (m *countingMetrics) SideEffectFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sideEffects[kind]++
}

func (m *countingMetrics) SetQueueDepth(queue string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth[queue] = depth
}

func (m *countingMetrics) Repaired(anomaly string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repaired[anomaly]++
}

type harness struct {
	engine    *Engine
	entries   *memEntryStore
	revisions *memRevisionStore
	recorder  *fakeRecorder
	notifier  *fakeNotifier
	metrics   *countingMetrics
	deps      fakeDependents
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		entries:   newMemEntryStore(),
		revisions: newMemRevisionStore(),
		recorder:  &fakeRecorder{},
		notifier:  &fakeNotifier{},
		metrics:   newCountingMetrics(),
		deps:      fakeDependents{counts: map[string]Dependents{}},
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	ids := 0

	eng, err := New(Config{
		Entries:    h.entries,
		Revisions:  h.revisions,
		Activity:   h.recorder,
		Notifier:   h.notifier,
		Dependents: h.deps,
		Metrics:    h.metrics,
		Logger:     zerolog.Nop(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%03d", ids)
		},
	})
	require.NoError(t, err)
	h.engine = eng
	return h
}

var (
	userU  = models.Actor{ID: "user-u", Role: models.RoleUser}
	userV  = models.Actor{ID: "user-v", Role: models.RoleContributor}
	adminA = models.Actor{ID: "admin-a", Role: models.RoleAdmin}
	modM   = models.Actor{ID: "mod-m", Role: models.RoleModerator}
	anon   = models.Actor{}
)

func draft(headword, lang, definition string) models.EntryDraft {
	return models.EntryDraft{
		Headword:   headword,
		LanguageID: lang,
		Meanings: models.Meanings{{
			PartOfSpeech: "interjection",
			Definitions:  []models.Definition{{Text: definition}},
		}},
	}
}

func meaningsPatch(definition string) models.EntryPatch {
	m := models.Meanings{{
		PartOfSpeech: "interjection",
		Definitions:  []models.Definition{{Text: definition}},
	}}
	return models.EntryPatch{Meanings: &m}
}

func strPtr(s string) *string { return &s }
