package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenValidate(t *testing.T) {
	r := NewRegistry()
	tok := r.Issue("alice@10.0.0.2", ScopeChat, DefaultTTL)

	assert.True(t, r.Validate(tok, ScopeChat))
	assert.False(t, r.Validate(tok, ScopePost), "wrong scope must not validate")
}

func TestRevokeInvalidates(t *testing.T) {
	r := NewRegistry()
	tok := r.Issue("alice@10.0.0.2", ScopeFile, DefaultTTL)
	require.True(t, r.Validate(tok, ScopeFile))

	r.Revoke(tok)
	assert.False(t, r.Validate(tok, ScopeFile))
}

func TestExpiredTokenFailsValidation(t *testing.T) {
	r := NewRegistry()
	start := time.Now()
	r.now = func() time.Time { return start }

	tok := r.Issue("bob@10.0.0.3", ScopePost, 1*time.Second)

	r.now = func() time.Time { return start.Add(2 * time.Second) }
	assert.False(t, r.Validate(tok, ScopePost))
}

func TestMalformedTokenRejected(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Validate("not-a-token", ScopeChat))
	assert.False(t, r.Validate("a|b|c|d", ScopeChat))
	assert.False(t, r.Validate("alice@10.0.0.2|notanumber|chat", ScopeChat))
}

func TestParse(t *testing.T) {
	p, ok := Parse("alice@10.0.0.2|1730000600|chat")
	require.True(t, ok)
	assert.Equal(t, "alice@10.0.0.2", p.UserID)
	assert.Equal(t, int64(1730000600), p.Expiry)
	assert.Equal(t, ScopeChat, p.Scope)
}
