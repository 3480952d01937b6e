package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoSelfInvariants(t *testing.T) {
	s := New("alice@10.0.0.2")

	assert.False(t, s.AddFollower("alice@10.0.0.2"))
	assert.False(t, s.StartFollowing("alice@10.0.0.2"))
	assert.Empty(t, s.Followers())
	assert.Empty(t, s.Following())
}

func TestFollowerLifecycle(t *testing.T) {
	s := New("alice@10.0.0.2")
	assert.True(t, s.AddFollower("bob@10.0.0.3"))
	assert.True(t, s.IsFollower("bob@10.0.0.3"))

	s.RemoveFollower("bob@10.0.0.3")
	assert.False(t, s.IsFollower("bob@10.0.0.3"))
}

func TestStartFollowingDuplicateIsNoop(t *testing.T) {
	s := New("alice@10.0.0.2")
	assert.True(t, s.StartFollowing("bob@10.0.0.3"))
	assert.False(t, s.StartFollowing("bob@10.0.0.3"), "already-following is a no-op")
}

func TestLikeToggle(t *testing.T) {
	s := New("alice@10.0.0.2")
	postID := "1730000000"

	assert.Equal(t, ActionLike, s.ToggleAction(postID))
	s.Like(postID)
	assert.True(t, s.HasLiked(postID))

	assert.Equal(t, ActionUnlike, s.ToggleAction(postID))
	s.Unlike(postID)
	assert.False(t, s.HasLiked(postID))
}

func TestInboxAllowsDuplicates(t *testing.T) {
	in := NewInbox()
	in.Append("Alice: hello")
	in.Append("Alice: hello")

	assert.Equal(t, []string{"Alice: hello", "Alice: hello"}, in.All())
}
