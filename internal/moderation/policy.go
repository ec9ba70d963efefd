package moderation

import "github.com/example/lexicon/pkg/models"

// Action is an operation an actor may attempt on an entry.
type Action string

const (
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionModerate Action = "moderate"
	ActionRevise   Action = "revise"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionDelete, ActionModerate, ActionRevise:
		return true
	}
	return false
}

// Restriction describes a condition attached to a decision.
type Restriction string

const (
	// RestrictionRequiresRevision routes an allowed edit through a revision.
	RestrictionRequiresRevision Restriction = "requires_revision"
	RestrictionPrivileged       Restriction = "privileged_access"
	RestrictionOwner            Restriction = "owner_access"
	RestrictionCommunity        Restriction = "community_revision"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed      bool          `json:"allowed"`
	Reason       string        `json:"reason"`
	Restrictions []Restriction `json:"restrictions"`
}

// Has reports whether restriction r applied.
func (d Decision) Has(r Restriction) bool {
	for _, got := range d.Restrictions {
		if got == r {
			return true
		}
	}
	return false
}

// Facts are the collaborator-supplied inputs a decision may depend on
// besides the entry snapshot.
type Facts struct {
	HasPendingRevision bool
	Dependents         Dependents
}

const (
	reasonAuthRequired   = "authentication required"
	reasonNotOwner       = "not owner or rejected"
	reasonRejectedHidden = "entry was rejected"
	reasonNotPrivileged  = "moderation requires a privileged role"
	reasonDeleteNotOwner = "only the creator or a moderator may delete this entry"
	reasonPendingRev     = "entry has a pending revision"
	reasonDependents     = "entry has dependent translations or favorites"
	reasonUnknownAction  = "unknown action"
)

// Policy decides whether an actor may perform an action on an entry.
// It holds no state and performs no I/O.
type Policy struct{}

// Decide applies the first matching rule for the action.
func (Policy) Decide(actor models.Actor, entry models.Entry, action Action, facts Facts) Decision {
	switch action {
	case ActionView:
		return decideView(actor, entry)
	case ActionEdit:
		return decideEdit(actor, entry)
	case ActionRevise:
		return decideRevise(actor, entry)
	case ActionDelete:
		return decideDelete(actor, entry, facts)
	case ActionModerate:
		return decideModerate(actor)
	}
	return deny(reasonUnknownAction)
}

func decideView(actor models.Actor, entry models.Entry) Decision {
	if entry.Status != models.EntryRejected {
		return allow("entry is visible")
	}
	if actor.IsPrivileged() {
		return allow("privileged actor", RestrictionPrivileged)
	}
	if isOwner(actor, entry) {
		return allow("creator may view own rejected entry", RestrictionOwner)
	}
	return deny(reasonRejectedHidden)
}

// decideEdit grants the direct path to privileged actors and to the creator
// of an unreviewed entry. Approved entries are open to every authenticated
// actor, but only through a revision.
func decideEdit(actor models.Actor, entry models.Entry) Decision {
	if !actor.Authenticated() {
		return deny(reasonAuthRequired)
	}
	if actor.IsPrivileged() {
		return allow("privileged actor", RestrictionPrivileged)
	}
	switch entry.Status {
	case models.EntryRejected:
		return deny(reasonNotOwner)
	case models.EntryApproved, models.EntryPendingRevision:
		if isOwner(actor, entry) {
			return allow("approved entry changes need review", RestrictionRequiresRevision, RestrictionOwner)
		}
		return allow("approved entry changes need review", RestrictionRequiresRevision, RestrictionCommunity)
	}
	if isOwner(actor, entry) {
		return allow("creator may edit unreviewed entry", RestrictionOwner)
	}
	return deny(reasonNotOwner)
}

// decideRevise mirrors edit: every actor who may edit may propose, and on
// approved entries proposing is the only way in.
func decideRevise(actor models.Actor, entry models.Entry) Decision {
	return decideEdit(actor, entry)
}

func decideDelete(actor models.Actor, entry models.Entry, facts Facts) Decision {
	if !actor.Authenticated() {
		return deny(reasonAuthRequired)
	}
	if actor.IsPrivileged() {
		if facts.HasPendingRevision {
			return deny(reasonPendingRev)
		}
		return allow("privileged actor", RestrictionPrivileged)
	}
	if !isOwner(actor, entry) {
		return deny(reasonDeleteNotOwner)
	}
	if facts.HasPendingRevision {
		return deny(reasonPendingRev)
	}
	if facts.Dependents.Any() {
		return deny(reasonDependents)
	}
	return allow("creator may delete unreferenced entry", RestrictionOwner)
}

func decideModerate(actor models.Actor) Decision {
	if actor.Authenticated() && actor.IsPrivileged() {
		return allow("privileged actor", RestrictionPrivileged)
	}
	return deny(reasonNotPrivileged)
}

func isOwner(actor models.Actor, entry models.Entry) bool {
	return actor.Authenticated() && actor.ID == entry.CreatedBy
}

func allow(reason string, restrictions ...Restriction) Decision {
	if restrictions == nil {
		restrictions = []Restriction{}
	}
	return Decision{Allowed: true, Reason: reason, Restrictions: restrictions}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Restrictions: []Restriction{}}
}
