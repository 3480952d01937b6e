// Package social implements followers/following, broadcast posts, and
// LIKE/UNLIKE toggling (spec.md §4.8). The outbound operations are
// grounded on the teacher's command-then-send pattern in node.go's
// join()/leave() (mutate local state, mint the frame, send to every
// relevant peer) generalized from "every peer" to "every follower".
package social

import (
	"sync"
)

// Sets holds followers/following, guarded by its own mutex per the
// partitioned-state strategy in spec.md §5.
type Sets struct {
	mu         sync.RWMutex
	localUser  string
	followers  map[string]struct{} // who receives our posts
	following  map[string]struct{} // whom we subscribe to
	likes      map[string]struct{} // post ids we've liked
}

// New creates empty social state for localUser. localUser can never be
// added to followers/following (spec.md §3 no-self invariant).
func New(localUser string) *Sets {
	return &Sets{
		localUser: localUser,
		followers: make(map[string]struct{}),
		following: make(map[string]struct{}),
		likes:     make(map[string]struct{}),
	}
}

// AddFollower records that userID now receives our posts (inbound
// FOLLOW). Returns false if userID is the local user (never recorded).
func (s *Sets) AddFollower(userID string) bool {
	if userID == s.localUser {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followers[userID] = struct{}{}
	return true
}

// RemoveFollower drops userID from followers (inbound UNFOLLOW).
func (s *Sets) RemoveFollower(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.followers, userID)
}

// IsFollower reports whether userID currently receives our posts.
func (s *Sets) IsFollower(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.followers[userID]
	return ok
}

// Followers returns a snapshot of the follower set.
func (s *Sets) Followers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.followers))
	for id := range s.followers {
		out = append(out, id)
	}
	return out
}

// IsFollowing reports whether we currently subscribe to userID.
func (s *Sets) IsFollowing(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.following[userID]
	return ok
}

// StartFollowing records a local Follow() call's target before the
// outbound frame is sent. Returns false if already following or
// self-target (spec.md §7: duplicate-state-request / no-self).
func (s *Sets) StartFollowing(userID string) bool {
	if userID == s.localUser {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.following[userID]; ok {
		return false
	}
	s.following[userID] = struct{}{}
	return true
}

// StopFollowing records a local Unfollow() call's target. Returns false
// if not currently following.
func (s *Sets) StopFollowing(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.following[userID]; !ok {
		return false
	}
	delete(s.following, userID)
	return true
}

// Following returns a snapshot of the following set.
func (s *Sets) Following() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.following))
	for id := range s.following {
		out = append(out, id)
	}
	return out
}

// HasLiked reports whether postID is currently in our like set.
func (s *Sets) HasLiked(postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[postID]
	return ok
}

// Like adds postID to the like set (after LIKE is ACKed).
func (s *Sets) Like(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likes[postID] = struct{}{}
}

// Unlike removes postID from the like set (after UNLIKE is ACKed).
func (s *Sets) Unlike(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes, postID)
}

// Action is the LIKE/UNLIKE toggle decision: the caller should emit this
// ACTION for the given postID.
type Action string

const (
	ActionLike   Action = "LIKE"
	ActionUnlike Action = "UNLIKE"
)

// ToggleAction reports which ACTION to emit for postID without mutating
// state — the caller applies Like/Unlike only after the ACK arrives, per
// spec.md §4.8's retry-then-apply ordering.
func (s *Sets) ToggleAction(postID string) Action {
	if s.HasLiked(postID) {
		return ActionUnlike
	}
	return ActionLike
}

// Inbox is the append-only list of delivered DMs/POSTs/notifications.
// Inbound DMs are appended on every receipt without MessageID dedup, per
// spec.md §9's explicit "preserved here as-is" decision: a duplicate
// datagram (e.g. because its ACK was lost) produces a duplicate inbox
// entry. This is deliberately simple, not a bug to be fixed here.
type Inbox struct {
	mu      sync.Mutex
	entries []string
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Append adds a line to the inbox.
func (i *Inbox) Append(line string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = append(i.entries, line)
}

// All returns a snapshot of the inbox contents, oldest first.
func (i *Inbox) All() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.entries))
	copy(out, i.entries)
	return out
}
