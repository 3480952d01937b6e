// Package token implements LSNP's opaque capability tokens: text strings
// of the form "user_id|expiry_unix_seconds|scope". Tokens are not signed;
// they are capability strings trusted at face value once parsed, per
// spec.md's non-goals (no cryptographic confidentiality or strong auth).
package token

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Scope is the closed set of token purposes.
type Scope string

const (
	ScopeChat     Scope = "chat"
	ScopeFollow   Scope = "follow"
	ScopeUnfollow Scope = "unfollow"
	ScopePost     Scope = "post"
	ScopeLike     Scope = "like"
	ScopeFile     Scope = "file"
	ScopeGroup    Scope = "group"
	ScopeGame     Scope = "game"
)

// DefaultTTL is the default token lifetime, per spec.md §4.2.
const DefaultTTL = 600 * time.Second

// Registry issues, parses, validates, and revokes tokens. The revocation
// set lives for the process lifetime only (spec.md §4.2).
type Registry struct {
	mu      sync.Mutex
	revoked map[string]struct{}
	now     func() time.Time
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		revoked: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Issue builds a token of the form "user_id|expiry|scope".
func (r *Registry) Issue(userID string, scope Scope, ttl time.Duration) string {
	expiry := r.now().Add(ttl).Unix()
	return fmt.Sprintf("%s|%d|%s", userID, expiry, scope)
}

// Parsed is the decomposition of a token string.
type Parsed struct {
	UserID string
	Expiry int64
	Scope  Scope
}

// Parse splits a token into its three pipe-separated parts. ok is false
// for any malformed token.
func Parse(tok string) (Parsed, bool) {
	parts := strings.Split(tok, "|")
	if len(parts) != 3 {
		return Parsed{}, false
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	return Parsed{UserID: parts[0], Expiry: expiry, Scope: Scope(parts[2])}, true
}

// Validate reports whether tok is well-formed, not revoked, not expired,
// and scoped to requiredScope.
func (r *Registry) Validate(tok string, requiredScope Scope) bool {
	r.mu.Lock()
	_, revoked := r.revoked[tok]
	r.mu.Unlock()
	if revoked {
		return false
	}

	p, ok := Parse(tok)
	if !ok {
		return false
	}
	if p.Scope != requiredScope {
		return false
	}
	if r.now().Unix() > p.Expiry {
		return false
	}
	return true
}

// Revoke inserts tok into the process-local revocation set.
func (r *Registry) Revoke(tok string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tok] = struct{}{}
}
