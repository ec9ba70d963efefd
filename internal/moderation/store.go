package moderation

import (
	"context"

	"github.com/example/lexicon/pkg/models"
)

// EntryStore persists dictionary entries.
//
// Get returns (nil, nil) when the entry does not exist, and Update returns
// (nil, nil) when there is nothing to update. Update returns ErrStatusChanged
// when upd.IfStatus is set and the stored status differs. Create returns
// ErrDuplicate when the (headword, language) pair is already taken.
type EntryStore interface {
	Get(ctx context.Context, id string) (*models.Entry, error)
	Create(ctx context.Context, entry models.Entry) (*models.Entry, error)
	Update(ctx context.Context, id string, upd models.EntryUpdate) (*models.Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListByStatus(ctx context.Context, status models.EntryStatus, req models.PageRequest) (models.Page[models.Entry], error)
}

// RevisionStore persists revisions.
//
// Create returns ErrDuplicate when the entry already has a pending revision.
// FindPendingByEntry returns (nil, nil) when there is none. Update follows
// the EntryStore contract for missing rows and upd.IfStatus.
type RevisionStore interface {
	Create(ctx context.Context, rev models.Revision) (*models.Revision, error)
	Get(ctx context.Context, id string) (*models.Revision, error)
	FindPendingByEntry(ctx context.Context, entryID string) (*models.Revision, error)
	ListByEntry(ctx context.Context, entryID string) ([]models.Revision, error)
	ListByStatus(ctx context.Context, status models.RevisionStatus, req models.PageRequest) (models.Page[models.Revision], error)
	Update(ctx context.Context, id string, upd models.RevisionUpdate) (*models.Revision, error)
}

// ActivityRecorder receives audit events. Failures are logged by the engine
// and never propagated to the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, event models.ActivityEvent) error
}

// NotificationSink delivers messages to users. Same failure contract as
// ActivityRecorder.
type NotificationSink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// DependencyCounter reports records that depend on an entry.
type DependencyCounter interface {
	CountDependents(ctx context.Context, entryID string) (Dependents, error)
}

// Dependents counts records referencing an entry.
type Dependents struct {
	Translations int
	Favorites    int
}

// Any reports whether anything depends on the entry.
func (d Dependents) Any() bool {
	return d.Translations > 0 || d.Favorites > 0
}

// Instrumentation receives engine measurements.
type Instrumentation interface {
	ObserveOperation(op, outcome string, seconds float64)
	SideEffectFailed(kind string)
	SetQueueDepth(queue string, depth int)
	Repaired(anomaly string)
}

type nopInstrumentation struct{}

func (nopInstrumentation) ObserveOperation(string, string, float64) {}
func (nopInstrumentation) SideEffectFailed(string)                   {}
func (nopInstrumentation) SetQueueDepth(string, int)                 {}
func (nopInstrumentation) Repaired(string)                           {}

type noDependents struct{}

func (noDependents) CountDependents(context.Context, string) (Dependents, error) {
	return Dependents{}, nil
}
