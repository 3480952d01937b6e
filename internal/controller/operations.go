package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/filetransfer"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/frame"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/game"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/group"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/reliability"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/token"
)

// SendDM sends a direct message and blocks until it's ACKed or the
// retry budget is exhausted (spec.md §4.7).
func (c *Controller) SendDM(toHandle, content string) error {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return err
	}
	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeChat, token.DefaultTTL)

	return c.acks.AwaitACK(messageID, func() error {
		f := frame.New("DM").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("CONTENT", content).
			Set("TIMESTAMP", unixNow()).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
}

// Follow sends a FOLLOW and waits for its ACK.
func (c *Controller) Follow(toHandle string) error {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return err
	}
	if !c.soc.StartFollowing(to) {
		return fmt.Errorf("already following %s", to)
	}
	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeFollow, token.DefaultTTL)
	return c.acks.AwaitACK(messageID, func() error {
		f := frame.New("FOLLOW").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("TIMESTAMP", unixNow()).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
}

// Unfollow sends an UNFOLLOW and waits for its ACK.
func (c *Controller) Unfollow(toHandle string) error {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return err
	}
	if !c.soc.StopFollowing(to) {
		return fmt.Errorf("not following %s", to)
	}
	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeUnfollow, token.DefaultTTL)
	return c.acks.AwaitACK(messageID, func() error {
		f := frame.New("UNFOLLOW").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("TIMESTAMP", unixNow()).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
}

// SendPost sends a POST to every current follower individually, using
// the batched reliability pattern in spec.md §4.7: one send per
// follower with an independent MessageID, one aggregate wait window,
// then a single retry pass across whoever hasn't ACKed yet. It returns
// how many followers ultimately ACKed.
func (c *Controller) SendPost(content string) (int, error) {
	followers := c.soc.Followers()
	if len(followers) == 0 {
		return 0, nil
	}

	tok := c.tokens.Issue(c.userID, token.ScopePost, token.DefaultTTL)
	ttlSeconds := int(c.cfg.PostTTL.Seconds())

	var mu sync.Mutex
	messageFor := make(map[string]string, len(followers))

	sendTo := func(to string) {
		messageID := newID()
		mu.Lock()
		messageFor[to] = messageID
		mu.Unlock()
		c.acks.Register(messageID)
		f := frame.New("POST").
			Set("USER_ID", c.userID).
			Set("CONTENT", content).
			SetInt("TTL", ttlSeconds).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok).
			Set("TIMESTAMP", unixNow())
		c.sendUnicast(to, f)
	}

	for _, f := range followers {
		sendTo(f)
	}
	time.Sleep(reliability.RetryInterval)

	mu.Lock()
	var unacked []string
	for _, f := range followers {
		if c.acks.Exists(messageFor[f]) {
			unacked = append(unacked, f)
		}
	}
	mu.Unlock()

	if len(unacked) > 0 {
		for _, f := range unacked {
			mu.Lock()
			oldID := messageFor[f]
			mu.Unlock()
			c.acks.Remove(oldID)
			sendTo(f)
		}
		time.Sleep(reliability.RetryInterval)
	}

	mu.Lock()
	defer mu.Unlock()
	succeeded := 0
	for _, f := range followers {
		if !c.acks.Exists(messageFor[f]) {
			succeeded++
		} else {
			c.acks.Remove(messageFor[f])
		}
	}
	return succeeded, nil
}

// ToggleLike emits LIKE with ACTION=LIKE or ACTION=UNLIKE depending on
// current state, applying the local like-set change only after the ACK
// arrives (spec.md §4.8).
func (c *Controller) ToggleLike(toHandle, postTimestamp string) error {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return err
	}
	action := c.soc.ToggleAction(postTimestamp)
	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeLike, token.DefaultTTL)

	err = c.acks.AwaitACK(messageID, func() error {
		f := frame.New("LIKE").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("POST_TIMESTAMP", postTimestamp).
			Set("ACTION", string(action)).
			Set("TIMESTAMP", unixNow()).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
	if err != nil {
		return err
	}
	if action == socialActionLike {
		c.soc.Like(postTimestamp)
	} else {
		c.soc.Unlike(postTimestamp)
	}
	return nil
}

// OfferFile announces a local file to a peer and waits up to
// reliability.FileResponseTimeout for FILE_ACCEPT/FILE_REJECT. Chunk
// transmission itself is kicked off from the FILE_ACCEPT handler in
// dispatch.go, not here.
func (c *Controller) OfferFile(toHandle, sourcePath, description, mimeType string, size int64) (string, error) {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return "", err
	}
	fileID := newID()
	tr := filetransfer.NewOutgoing(fileID, to, sourcePath, description, mimeType, size)
	c.transfers.Put(tr)
	c.log.Debug("file %s: %d chunks of %d bytes (adaptive size would be %d)", fileID, tr.TotalChunks, filetransfer.ChunkSize, filetransfer.OptimalChunkSize(size))

	tok := c.tokens.Issue(c.userID, token.ScopeFile, token.DefaultTTL)
	err = c.fileWait.AwaitFileResponse(fileID, func() error {
		f := frame.New("FILE_OFFER").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("FILEID", fileID).
			Set("FILENAME", tr.Filename).
			SetInt64("FILESIZE", size).
			Set("FILETYPE", mimeType).
			Set("DESCRIPTION", description).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
	if err == reliability.ErrExhausted {
		tr.Cancel()
	}
	return fileID, err
}

// AcceptFile accepts a pending incoming transfer.
func (c *Controller) AcceptFile(fileID string) error {
	tr, ok := c.transfers.Get(fileID)
	if !ok {
		return fmt.Errorf("no such file offer: %s", fileID)
	}
	if !tr.Accept() {
		return fmt.Errorf("file %s is not pending", fileID)
	}
	tok := c.tokens.Issue(c.userID, token.ScopeFile, token.DefaultTTL)
	f := frame.New("FILE_ACCEPT").
		Set("FROM", c.userID).
		Set("TO", tr.RemoteUser).
		Set("FILEID", fileID).
		Set("TIMESTAMP", unixNow()).
		Set("TOKEN", tok)
	c.sendUnicast(tr.RemoteUser, f)
	return nil
}

// RejectFile rejects a pending incoming transfer.
func (c *Controller) RejectFile(fileID string) error {
	tr, ok := c.transfers.Get(fileID)
	if !ok {
		return fmt.Errorf("no such file offer: %s", fileID)
	}
	if !tr.Cancel() {
		return fmt.Errorf("file %s is not pending", fileID)
	}
	tok := c.tokens.Issue(c.userID, token.ScopeFile, token.DefaultTTL)
	f := frame.New("FILE_REJECT").
		Set("FROM", c.userID).
		Set("TO", tr.RemoteUser).
		Set("FILEID", fileID).
		Set("TIMESTAMP", unixNow()).
		Set("TOKEN", tok)
	c.sendUnicast(tr.RemoteUser, f)
	return nil
}

// GroupCreate creates a group owned by this node and announces it to
// every member.
func (c *Controller) GroupCreate(name string, memberHandles []string) (string, error) {
	groupID := newID()
	members := make([]string, 0, len(memberHandles)+1)
	members = append(members, c.userID)
	for _, h := range memberHandles {
		full, err := c.peers.Resolve(h)
		if err != nil {
			return "", err
		}
		members = append(members, full)
	}

	c.groups.Create(group.Record{GroupID: groupID, GroupName: name, Owner: c.userID, Members: members})

	tok := c.tokens.Issue(c.userID, token.ScopeGroup, token.DefaultTTL)
	for _, m := range members {
		if m == c.userID {
			continue
		}
		f := frame.New("GROUP_CREATE").
			Set("FROM", c.userID).
			Set("GROUP_ID", groupID).
			Set("GROUP_NAME", name).
			Set("MEMBERS", frame.JoinCSV(members)).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(m, f)
	}
	return groupID, nil
}

// GroupAdd adds members to a group this node owns.
func (c *Controller) GroupAdd(groupID string, addHandles []string) error {
	if !c.groups.IsOwner(groupID, c.userID) {
		return fmt.Errorf("only the group owner may add members")
	}
	rec, _ := c.groups.Get(groupID)
	add := make([]string, 0, len(addHandles))
	for _, h := range addHandles {
		full, err := c.peers.Resolve(h)
		if err != nil {
			return err
		}
		add = append(add, full)
	}
	members := append(append([]string{}, rec.Members...), add...)
	c.groups.SetMembers(groupID, members)

	tok := c.tokens.Issue(c.userID, token.ScopeGroup, token.DefaultTTL)
	for _, m := range members {
		if m == c.userID {
			continue
		}
		f := frame.New("GROUP_ADD").
			Set("FROM", c.userID).
			Set("GROUP_ID", groupID).
			Set("GROUP_NAME", rec.GroupName).
			Set("ADD", frame.JoinCSV(add)).
			Set("MEMBERS", frame.JoinCSV(members)).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(m, f)
	}
	return nil
}

// GroupRemove removes members from a group this node owns.
func (c *Controller) GroupRemove(groupID string, removeHandles []string) error {
	if !c.groups.IsOwner(groupID, c.userID) {
		return fmt.Errorf("only the group owner may remove members")
	}
	rec, _ := c.groups.Get(groupID)
	remove := make([]string, 0, len(removeHandles))
	for _, h := range removeHandles {
		full, err := c.peers.Resolve(h)
		if err != nil {
			return err
		}
		remove = append(remove, full)
	}
	notified := append([]string{}, rec.Members...)
	c.groups.Remove(groupID, remove)
	updated, _ := c.groups.Get(groupID)

	tok := c.tokens.Issue(c.userID, token.ScopeGroup, token.DefaultTTL)
	for _, m := range notified {
		if m == c.userID {
			continue
		}
		f := frame.New("GROUP_REMOVE").
			Set("FROM", c.userID).
			Set("GROUP_ID", groupID).
			Set("REMOVE", frame.JoinCSV(remove)).
			Set("MEMBERS", frame.JoinCSV(updated.Members)).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(m, f)
	}
	return nil
}

// GroupMessage sends a message to every member of a group this node
// belongs to.
func (c *Controller) GroupMessage(groupID, content string) error {
	rec, ok := c.groups.Get(groupID)
	if !ok || !rec.HasMember(c.userID) {
		return fmt.Errorf("not a member of group %s", groupID)
	}
	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeGroup, token.DefaultTTL)
	for _, m := range rec.Members {
		if m == c.userID {
			continue
		}
		f := frame.New("GROUP_MESSAGE").
			Set("FROM", c.userID).
			Set("GROUP_ID", groupID).
			Set("CONTENT", content).
			Set("TIMESTAMP", unixNow()).
			Set("MESSAGE_ID", messageID).
			Set("TOKEN", tok)
		c.sendUnicast(m, f)
	}
	return nil
}

// TicTacToeInvite invites a peer to a new game, choosing mySymbol for
// this node and letting the opponent be auto-assigned the other one.
func (c *Controller) TicTacToeInvite(toHandle string, mySymbol byte) (string, error) {
	to, err := c.peers.Resolve(toHandle)
	if err != nil {
		return "", err
	}
	gameID := newID()
	c.games.Put(game.NewSession(gameID, to, mySymbol))

	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeGame, token.DefaultTTL)
	err = c.acks.AwaitACK(messageID, func() error {
		f := frame.New("TICTACTOE_INVITE").
			Set("FROM", c.userID).
			Set("TO", to).
			Set("GAMEID", gameID).
			Set("MESSAGE_ID", messageID).
			Set("SYMBOL", string(mySymbol)).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(to, f)
		return nil
	})
	return gameID, err
}

// TicTacToeMove applies a local move and sends it, detecting and
// announcing game-over if the move finishes the game.
func (c *Controller) TicTacToeMove(gameID string, position int) error {
	s, ok := c.games.Get(gameID)
	if !ok || !s.Active {
		return fmt.Errorf("no active game %s", gameID)
	}
	if !s.ApplyMove(position, s.MySymbol) {
		return fmt.Errorf("cell %d is occupied", position)
	}

	messageID := newID()
	tok := c.tokens.Issue(c.userID, token.ScopeGame, token.DefaultTTL)
	err := c.acks.AwaitACK(messageID, func() error {
		f := frame.New("TICTACTOE_MOVE").
			Set("FROM", c.userID).
			Set("TO", s.Opponent).
			Set("GAMEID", gameID).
			Set("MESSAGE_ID", messageID).
			SetInt("POSITION", position).
			Set("SYMBOL", string(s.MySymbol)).
			SetInt("TURN", s.Turn).
			Set("TIMESTAMP", unixNow()).
			Set("TOKEN", tok)
		c.sendUnicast(s.Opponent, f)
		return nil
	})
	if err != nil {
		return err
	}

	if winner, line, done := s.CheckWinner(); done {
		c.games.Deactivate(gameID)
		result := s.ResultFor(winner)
		c.sendResult(s, result, line)
	}
	return nil
}

// TicTacToeForfeit deactivates a game and tells the opponent the
// forfeiter's own result, LOSS (spec.md §4.11: "RESULT: LOSS from the
// forfeiter"). Deactivating an already-inactive game is a no-op,
// matching spec.md §7's duplicate-state-request handling.
func (c *Controller) TicTacToeForfeit(gameID string) error {
	s, ok := c.games.Get(gameID)
	if !ok {
		return fmt.Errorf("no such game %s", gameID)
	}
	if !s.Active {
		return nil
	}
	c.games.Deactivate(gameID)
	tok := c.tokens.Issue(c.userID, token.ScopeGame, token.DefaultTTL)
	f := frame.New("TICTACTOE_RESULT").
		Set("FROM", c.userID).
		Set("TO", s.Opponent).
		Set("GAMEID", gameID).
		Set("MESSAGE_ID", newID()).
		Set("SYMBOL", string(s.MySymbol)).
		Set("RESULT", string(game.ResultLoss)).
		Set("TIMESTAMP", unixNow()).
		Set("TOKEN", tok)
	c.sendUnicast(s.Opponent, f)
	return nil
}

// RevokeToken revokes a token issued by this node, e.g. before it would
// naturally expire.
func (c *Controller) RevokeToken(tok string) {
	c.tokens.Revoke(tok)
	f := frame.New("REVOKE").Set("TOKEN", tok)
	c.sock.Broadcast(f.Encode()) //nolint:errcheck
}

// socialActionLike is a package-local alias avoiding a direct import of
// social's Action type in this file's public signatures.
const socialActionLike = "LIKE"
