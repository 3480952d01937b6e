// Package group implements group membership lifecycle and group messages
// (spec.md §4.10), grounded on the teacher's group.go (a name-keyed
// peer-set with join/leave/send) generalized to LSNP's
// owner-authoritative membership model: only the owner may CREATE/ADD/
// REMOVE, and membership lists travel as CSV fields rather than being
// rebuilt locally from individual JOIN/LEAVE frames.
package group

import (
	"sync"
)

// Record is a single group's membership state.
type Record struct {
	GroupID   string
	GroupName string
	Owner     string
	Members   []string // ordered, includes the owner
}

// HasMember reports whether userID is currently a member.
func (r *Record) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Table holds every group this node knows about (owned or joined),
// guarded by its own mutex per spec.md §5's partitioned-state strategy.
type Table struct {
	mu     sync.RWMutex
	groups map[string]*Record
}

// New creates an empty group table.
func New() *Table {
	return &Table{groups: make(map[string]*Record)}
}

// Create installs a new group record. Used both by the owner issuing
// GROUP_CREATE and by a member receiving it.
func (t *Table) Create(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups[rec.GroupID] = &rec
}

// Get returns a group by id.
func (t *Table) Get(groupID string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.groups[groupID]
	return r, ok
}

// All returns every known group.
func (t *Table) All() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, 0, len(t.groups))
	for _, r := range t.groups {
		out = append(out, r)
	}
	return out
}

// SetMembers replaces a group's membership list wholesale — GROUP_ADD and
// GROUP_REMOVE both carry the updated/remaining membership, so receivers
// apply it directly rather than diffing (spec.md §4.10: "carries the
// updated list" / "carries the removal set").
func (t *Table) SetMembers(groupID string, members []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.groups[groupID]
	if !ok {
		return false
	}
	r.Members = members
	return true
}

// Remove drops listed userIDs from a group's membership, used by the
// owner applying its own GROUP_REMOVE locally before sending.
func (t *Table) Remove(groupID string, userIDs []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.groups[groupID]
	if !ok {
		return false
	}
	remove := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		remove[id] = struct{}{}
	}
	kept := r.Members[:0:0]
	for _, m := range r.Members {
		if _, drop := remove[m]; !drop {
			kept = append(kept, m)
		}
	}
	r.Members = kept
	return true
}

// IsOwner reports whether userID owns groupID — only the owner's
// CREATE/ADD/REMOVE are honored (spec.md §4.10).
func (t *Table) IsOwner(groupID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.groups[groupID]
	return ok && r.Owner == userID
}
