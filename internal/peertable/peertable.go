// Package peertable holds the peer table (UserID -> PeerRecord) and the
// advisory IP activity tracker described in spec.md §4.4. The peer table is
// mutated by the dispatcher (on PROFILE receipt) and by the discovery
// callback (on mDNS browse results), matching the teacher's requirePeer
// pattern in node.go generalized from a UUID key to a full UserID key; the
// IP tracker is fed by the dispatcher on every received frame.
package peertable

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Record is a discovered peer.
type Record struct {
	UserID      string
	DisplayName string
	IP          string
	Port        int
	AvatarType  string
	AvatarData  []byte
	LastSeen    time.Time
}

// Table is the UserID -> Record map, guarded by its own mutex per the
// partitioned-state strategy spec.md §5 allows.
type Table struct {
	mu    sync.RWMutex
	peers map[string]*Record
}

// New creates an empty peer table.
func New() *Table {
	return &Table{peers: make(map[string]*Record)}
}

// Upsert inserts or updates a peer record. Insertion occurs on first
// PROFILE/discovery; update occurs on subsequent PROFILE. Eviction is
// never automatic (spec.md §3: "kept indefinitely").
func (t *Table) Upsert(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.LastSeen = time.Now()
	if existing, ok := t.peers[rec.UserID]; ok {
		// Preserve an avatar the new update doesn't carry.
		if rec.AvatarType == "" && len(rec.AvatarData) == 0 {
			rec.AvatarType = existing.AvatarType
			rec.AvatarData = existing.AvatarData
		}
	}
	t.peers[rec.UserID] = &rec
}

// Get returns the record for a full UserID.
func (t *Table) Get(userID string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.peers[userID]
	return r, ok
}

// All returns a snapshot of every known peer.
func (t *Table) All() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, 0, len(t.peers))
	for _, r := range t.peers {
		out = append(out, r)
	}
	return out
}

// ClearStaleAvatars drops cached avatar bytes (not the peer record
// itself) for any peer whose avatar hasn't been refreshed by a new
// PROFILE within ttl, per the housekeeping task in spec.md §4.12.
func (t *Table) ClearStaleAvatars(now time.Time, ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cleared := 0
	for _, r := range t.peers {
		if len(r.AvatarData) == 0 {
			continue
		}
		if now.Sub(r.LastSeen) > ttl {
			r.AvatarType = ""
			r.AvatarData = nil
			cleared++
		}
	}
	return cleared
}

// ErrAmbiguous is returned by Resolve when a short handle matches more
// than one known peer.
type ErrAmbiguous struct {
	Handle    string
	Matches   []string
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("ambiguous handle %q matches: %s", e.Handle, strings.Join(e.Matches, ", "))
}

// Resolve finds the unique full UserID for a short handle (the substring
// before '@'). If userOrHandle already contains '@' it's returned as-is
// without requiring a table hit, since the caller may be addressing a
// peer not yet in the table. A handle matching more than one UserID is a
// user-visible ambiguity error, per spec.md §4.4.
func (t *Table) Resolve(userOrHandle string) (string, error) {
	if strings.Contains(userOrHandle, "@") {
		return userOrHandle, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	prefix := userOrHandle + "@"
	var matches []string
	for userID := range t.peers {
		if strings.HasPrefix(userID, prefix) {
			matches = append(matches, userID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown peer: %s", userOrHandle)
	case 1:
		return matches[0], nil
	default:
		return "", &ErrAmbiguous{Handle: userOrHandle, Matches: matches}
	}
}

// IPTracker records IP activity for operational stats. It is advisory: it
// never gates delivery (spec.md §4.4).
type IPTracker struct {
	mu                sync.Mutex
	knownIPs          map[string]struct{}
	ipToUser          map[string]string
	connectionAttempts map[string]int
	blockedIPs        map[string]struct{}
}

// NewIPTracker creates an empty tracker.
func NewIPTracker() *IPTracker {
	return &IPTracker{
		knownIPs:           make(map[string]struct{}),
		ipToUser:           make(map[string]string),
		connectionAttempts: make(map[string]int),
		blockedIPs:         make(map[string]struct{}),
	}
}

// Seen records activity from an IP, optionally attaching its best-known
// UserID.
func (t *IPTracker) Seen(ip, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.knownIPs[ip] = struct{}{}
	if userID != "" {
		t.ipToUser[ip] = userID
	}
}

// RecordAttempt increments the per-IP attempt counter.
func (t *IPTracker) RecordAttempt(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectionAttempts[ip]++
	return t.connectionAttempts[ip]
}

// Block administratively blocks an IP. Advisory only: the dispatcher does
// not consult it, so frames from a blocked IP are still processed.
func (t *IPTracker) Block(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockedIPs[ip] = struct{}{}
}

// IsBlocked reports whether ip is administratively blocked.
func (t *IPTracker) IsBlocked(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blockedIPs[ip]
	return ok
}

// Stats is the snapshot returned for the `ipstats` CLI surface.
type Stats struct {
	TotalKnownIPs          int
	MappedUsers            int
	TotalConnectionAttempts int
	BlockedIPs             int
}

// Stats returns a point-in-time snapshot of tracker counters.
func (t *IPTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.connectionAttempts {
		total += n
	}
	return Stats{
		TotalKnownIPs:           len(t.knownIPs),
		MappedUsers:             len(t.ipToUser),
		TotalConnectionAttempts: total,
		BlockedIPs:              len(t.blockedIPs),
	}
}
