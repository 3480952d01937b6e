package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	tbl := New()
	tbl.Create(Record{
		GroupID:   "g1",
		GroupName: "team",
		Owner:     "alice@10.0.0.2",
		Members:   []string{"alice@10.0.0.2", "bob@10.0.0.3", "carol@10.0.0.4"},
	})

	rec, ok := tbl.Get("g1")
	require.True(t, ok)
	assert.True(t, rec.HasMember("bob@10.0.0.3"))
	assert.True(t, tbl.IsOwner("g1", "alice@10.0.0.2"))
	assert.False(t, tbl.IsOwner("g1", "bob@10.0.0.3"))
}

func TestSetMembersForAdd(t *testing.T) {
	tbl := New()
	tbl.Create(Record{GroupID: "g1", Owner: "alice@10.0.0.2", Members: []string{"alice@10.0.0.2", "bob@10.0.0.3"}})

	ok := tbl.SetMembers("g1", []string{"alice@10.0.0.2", "bob@10.0.0.3", "dave@10.0.0.5"})
	require.True(t, ok)

	rec, _ := tbl.Get("g1")
	assert.Len(t, rec.Members, 3)
	assert.True(t, rec.HasMember("dave@10.0.0.5"))
}

func TestRemoveMembers(t *testing.T) {
	tbl := New()
	tbl.Create(Record{GroupID: "g1", Owner: "alice@10.0.0.2", Members: []string{"alice@10.0.0.2", "bob@10.0.0.3", "carol@10.0.0.4"}})

	tbl.Remove("g1", []string{"bob@10.0.0.3"})

	rec, _ := tbl.Get("g1")
	assert.False(t, rec.HasMember("bob@10.0.0.3"))
	assert.True(t, rec.HasMember("carol@10.0.0.4"))
}
