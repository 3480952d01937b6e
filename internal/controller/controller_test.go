package controller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/frame"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/peertable"
)

func newTestController(t *testing.T, username string) *Controller {
	t.Helper()
	c, err := New(Config{
		Username:     username,
		Port:         0,
		DisplayName:  "Test Node",
		DownloadsDir: t.TempDir(),
		FilesDir:     t.TempDir(),
		PostTTL:      DefaultPostTTL,
	})
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func validToken(userID, scope string) string {
	return fmt.Sprintf("%s|%d|%s", userID, time.Now().Add(time.Hour).Unix(), scope)
}

func TestHandleFrameDropsSenderIPMismatch(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("DM").
		Set("FROM", from).
		Set("TO", c.UserID()).
		Set("CONTENT", "hi").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "chat"))

	c.handleFrame(f, "10.0.0.9")

	assert.Empty(t, c.inbox.All())
}

func TestHandleFrameDeliversDM(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("DM").
		Set("FROM", from).
		Set("TO", c.UserID()).
		Set("CONTENT", "hello there").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "chat"))

	c.handleFrame(f, "10.0.0.2")

	entries := c.inbox.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "hello there")
}

func TestHandleFrameDropsWrongRecipient(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("DM").
		Set("FROM", from).
		Set("TO", "someoneelse@10.0.0.3").
		Set("CONTENT", "hello").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "chat"))

	c.handleFrame(f, "10.0.0.2")

	assert.Empty(t, c.inbox.All())
}

func TestHandleFrameDropsInvalidToken(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("DM").
		Set("FROM", from).
		Set("TO", c.UserID()).
		Set("CONTENT", "hello").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", "garbage-token")

	c.handleFrame(f, "10.0.0.2")

	assert.Empty(t, c.inbox.All())
}

func TestHandleFrameACKSignalsWaiter(t *testing.T) {
	c := newTestController(t, "alice")
	ch := c.acks.Register("m42")

	f := frame.New("ACK").Set("MESSAGE_ID", "m42").Set("STATUS", "RECEIVED")
	c.handleFrame(f, "10.0.0.2")

	select {
	case <-ch:
	default:
		t.Fatal("expected waiter to be signaled")
	}
}

func TestHandleFrameFollowAddsFollower(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("FOLLOW").
		Set("FROM", from).
		Set("TO", c.UserID()).
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "follow"))

	c.handleFrame(f, "10.0.0.2")

	assert.True(t, c.soc.IsFollower(from))
}

func TestHandleFramePostDroppedWhenNotFollowing(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	f := frame.New("POST").
		Set("USER_ID", from).
		Set("CONTENT", "hi everyone").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "post"))

	c.handleFrame(f, "10.0.0.2")

	assert.Empty(t, c.inbox.All())
}

func TestHandleFramePostDeliveredWhenFollowing(t *testing.T) {
	c := newTestController(t, "alice")
	from := "bob@10.0.0.2"
	c.soc.StartFollowing(from)

	f := frame.New("POST").
		Set("USER_ID", from).
		Set("CONTENT", "hi everyone").
		Set("MESSAGE_ID", "m1").
		Set("TOKEN", validToken(from, "post"))

	c.handleFrame(f, "10.0.0.2")

	entries := c.inbox.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "hi everyone")
}

func TestSendPostWithNoFollowersReturnsImmediately(t *testing.T) {
	c := newTestController(t, "alice")
	n, err := c.SendPost("hello nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSendPostReachesFollowerOverRealSocket(t *testing.T) {
	alice := newTestController(t, "alice")
	bob := newTestController(t, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	alice.Start(ctx)
	bob.Start(ctx)

	alice.peers.Upsert(peertable.Record{UserID: bob.UserID(), Port: bob.sock.Port()})
	alice.soc.AddFollower(bob.UserID())

	bob.peers.Upsert(peertable.Record{UserID: alice.UserID(), Port: alice.sock.Port()})
	bob.soc.StartFollowing(alice.UserID())

	n, err := alice.SendPost("hi bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deadline := time.Now().Add(time.Second)
	for len(bob.inbox.All()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	entries := bob.inbox.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "hi bob")
}

func TestSenderIPMatches(t *testing.T) {
	assert.True(t, senderIPMatches("alice@10.0.0.2", "10.0.0.2"))
	assert.False(t, senderIPMatches("alice@10.0.0.2", "10.0.0.3"))
	assert.False(t, senderIPMatches("no-at-sign", "10.0.0.2"))
}
