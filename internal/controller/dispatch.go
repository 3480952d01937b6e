package controller

import (
	"strconv"
	"strings"
	"time"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/filetransfer"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/frame"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/game"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/group"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/peertable"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/token"
)

// requiredScope is the closed TYPE -> Scope table spec.md §6 describes:
// any frame of a scoped type carrying a TOKEN that fails Validate is
// dropped before it touches any other state.
var requiredScope = map[string]token.Scope{
	"DM":               token.ScopeChat,
	"FOLLOW":           token.ScopeFollow,
	"UNFOLLOW":         token.ScopeUnfollow,
	"POST":             token.ScopePost,
	"LIKE":             token.ScopeLike,
	"FILE_OFFER":       token.ScopeFile,
	"FILE_ACCEPT":      token.ScopeFile,
	"FILE_REJECT":      token.ScopeFile,
	"FILE_CHUNK":       token.ScopeFile,
	"GROUP_CREATE":     token.ScopeGroup,
	"GROUP_ADD":        token.ScopeGroup,
	"GROUP_REMOVE":     token.ScopeGroup,
	"GROUP_MESSAGE":    token.ScopeGroup,
	"TICTACTOE_INVITE": token.ScopeGame,
	"TICTACTOE_MOVE":   token.ScopeGame,
	"TICTACTOE_RESULT": token.ScopeGame,
}

// receiveLoop is the socket's sole reader, grounded on node.go's recv()
// goroutine: it blocks on the socket, decodes one frame per datagram,
// and hands it to handleFrame.
func (c *Controller) receiveLoop() {
	defer c.wg.Done()
	for {
		payload, sourceIP, err := c.sock.Receive()
		if err != nil {
			select {
			case <-c.quit:
				return
			default:
				c.log.Error("receive failed: %v", err)
				return
			}
		}
		f := frame.Decode(payload)
		c.handleFrame(f, sourceIP)
	}
}

// handleFrame is the dispatcher (spec.md §4.6): sender-IP binding, then
// unicast TO-field ownership, then per-type token-scope validation, then
// routing. It takes an already-decoded frame and its source IP instead of
// reading the socket itself, so it's directly unit-testable.
func (c *Controller) handleFrame(f *frame.Frame, sourceIP string) {
	msgType := f.Type()
	c.metrics.framesReceived.WithLabelValues(msgType).Inc()
	c.ipTrack.Seen(sourceIP, f.Get("FROM"))

	if from := f.Get("FROM"); from != "" {
		if !senderIPMatches(from, sourceIP) {
			c.log.Warn("dropping %s: FROM %q does not match source IP %s", msgType, from, sourceIP)
			c.metrics.framesDropped.WithLabelValues("sender_ip_mismatch").Inc()
			return
		}
	}

	if to := f.Get("TO"); to != "" && to != c.userID {
		c.log.Debug("dropping %s: addressed to %s, not us", msgType, to)
		c.metrics.framesDropped.WithLabelValues("wrong_recipient").Inc()
		return
	}

	if scope, scoped := requiredScope[msgType]; scoped {
		tok := f.Get("TOKEN")
		if !c.tokens.Validate(tok, scope) {
			c.log.Warn("dropping %s: invalid or expired token", msgType)
			c.metrics.framesDropped.WithLabelValues("invalid_token").Inc()
			return
		}
	}

	switch msgType {
	case "PROFILE":
		c.handleProfile(f)
	case "PING":
		c.handlePing(f, sourceIP)
	case "DM":
		c.handleDM(f)
	case "ACK":
		c.handleACK(f)
	case "FOLLOW":
		c.handleFollow(f)
	case "UNFOLLOW":
		c.handleUnfollow(f)
	case "POST":
		c.handlePost(f)
	case "LIKE":
		c.handleLike(f)
	case "FILE_OFFER":
		c.handleFileOffer(f)
	case "FILE_ACCEPT":
		c.handleFileAccept(f)
	case "FILE_REJECT":
		c.handleFileReject(f)
	case "FILE_CHUNK":
		c.handleFileChunk(f)
	case "FILE_RECEIVED":
		c.handleFileReceived(f)
	case "GROUP_CREATE":
		c.handleGroupCreate(f)
	case "GROUP_ADD":
		c.handleGroupAdd(f)
	case "GROUP_REMOVE":
		c.handleGroupRemove(f)
	case "GROUP_MESSAGE":
		c.handleGroupMessage(f)
	case "TICTACTOE_INVITE":
		c.handleTicTacToeInvite(f)
	case "TICTACTOE_MOVE":
		c.handleTicTacToeMove(f)
	case "TICTACTOE_RESULT":
		c.handleTicTacToeResult(f)
	case "REVOKE":
		c.tokens.Revoke(f.Get("TOKEN"))
	default:
		c.log.Debug("dropping unrecognized TYPE %q", msgType)
		c.metrics.framesDropped.WithLabelValues("unknown_type").Inc()
	}
}

// senderIPMatches checks the "user@ip" FROM field's ip suffix against the
// datagram's actual source, per spec.md §4.6's security check.
func senderIPMatches(from, sourceIP string) bool {
	idx := strings.LastIndexByte(from, '@')
	if idx < 0 {
		return false
	}
	return from[idx+1:] == sourceIP
}

func (c *Controller) peerPort(userID string) int {
	if rec, ok := c.peers.Get(userID); ok && rec.Port != 0 {
		return rec.Port
	}
	return c.cfg.Port
}

func (c *Controller) peerIP(userID string) string {
	idx := strings.LastIndexByte(userID, '@')
	if idx < 0 {
		if rec, ok := c.peers.Get(userID); ok {
			return rec.IP
		}
		return ""
	}
	return userID[idx+1:]
}

func (c *Controller) handleProfile(f *frame.Frame) {
	userID := f.Get("USER_ID")
	if userID == "" || userID == c.userID {
		return
	}
	rec := peertable.Record{
		UserID:      userID,
		DisplayName: f.Get("DISPLAY_NAME"),
		IP:          c.peerIP(userID),
		Port:        c.peerPort(userID),
	}
	if f.Has("AVATAR_DATA") {
		if av, ok := filetransfer.DecodeAvatar(f.Get("AVATAR_TYPE"), f.Get("AVATAR_ENCODING"), f.Get("AVATAR_DATA")); ok {
			rec.AvatarType = av.MIMEType
			rec.AvatarData = av.Data
		}
	}
	c.peers.Upsert(rec)
	c.metrics.peersKnown.Set(float64(len(c.peers.All())))
	c.log.Debug("profile update from %s", userID)
}

func decodeChunkOrEmpty(s string) ([]byte, error) {
	return filetransfer.DecodeChunkData(s)
}

func (c *Controller) handlePing(f *frame.Frame, sourceIP string) {
	userID := f.Get("USER_ID")
	if userID == "" {
		return
	}
	c.log.Debug("ping from %s", userID)
}

func (c *Controller) handleDM(f *frame.Frame) {
	from := f.Get("FROM")
	content := f.Get("CONTENT")
	c.inbox.Append(from + ": " + content)
	c.sendACK(from, f.Get("MESSAGE_ID"))
	c.log.Info("DM from %s: %s", from, content)
}

func (c *Controller) handleACK(f *frame.Frame) {
	if !c.acks.Signal(f.Get("MESSAGE_ID")) {
		c.log.Debug("unmatched ACK for message %s", f.Get("MESSAGE_ID"))
	}
}

func (c *Controller) handleFollow(f *frame.Frame) {
	from := f.Get("FROM")
	c.soc.AddFollower(from)
	c.sendACK(from, f.Get("MESSAGE_ID"))
	c.log.Info("%s started following you", from)
}

func (c *Controller) handleUnfollow(f *frame.Frame) {
	from := f.Get("FROM")
	c.soc.RemoveFollower(from)
	c.sendACK(from, f.Get("MESSAGE_ID"))
	c.log.Info("%s unfollowed you", from)
}

func (c *Controller) handlePost(f *frame.Frame) {
	from := f.Get("USER_ID")
	if !c.soc.IsFollowing(from) {
		c.log.Debug("dropping POST from %s: not following", from)
		return
	}
	c.inbox.Append(from + " posted: " + f.Get("CONTENT"))
	c.sendACK(from, f.Get("MESSAGE_ID"))
}

func (c *Controller) handleLike(f *frame.Frame) {
	from := f.Get("FROM")
	action := f.Get("ACTION")
	postTimestamp := f.Get("POST_TIMESTAMP")
	c.log.Info("%s %sd your post at %s", from, strings.ToLower(action), postTimestamp)
	c.sendACK(from, f.Get("MESSAGE_ID"))
}

func (c *Controller) handleFileOffer(f *frame.Frame) {
	fileID := f.Get("FILEID")
	size, _ := f.GetInt64("FILESIZE")
	tr := filetransfer.NewIncoming(fileID, f.Get("FROM"), f.Get("FILENAME"), f.Get("DESCRIPTION"), f.Get("FILETYPE"), size)
	c.transfers.Put(tr)
	c.log.Info("file offer %s from %s: %s (%d bytes)", fileID, f.Get("FROM"), f.Get("FILENAME"), size)
}

func (c *Controller) handleFileAccept(f *frame.Frame) {
	fileID := f.Get("FILEID")
	tr, ok := c.transfers.Get(fileID)
	if !ok {
		return
	}
	tr.MarkOutgoingAccepted()
	c.fileWait.Signal(fileID)
	c.sendFileChunks(tr)
}

func (c *Controller) handleFileReject(f *frame.Frame) {
	fileID := f.Get("FILEID")
	if tr, ok := c.transfers.Get(fileID); ok {
		tr.Cancel()
	}
	c.fileWait.Signal(fileID)
}

func (c *Controller) handleFileChunk(f *frame.Frame) {
	fileID := f.Get("FILEID")
	tr, ok := c.transfers.Get(fileID)
	if !ok {
		return
	}
	idx, _ := f.GetInt("CHUNK_INDEX")
	raw, err := filetransfer.DecodeChunkData(f.Get("DATA"))
	if err != nil {
		tr.Fail()
		c.log.Error("chunk %d of %s failed to decode: %v", idx, fileID, err)
		return
	}
	accepted, complete := tr.ReceiveChunk(idx, raw)
	if !accepted {
		return
	}
	if complete {
		path := filetransfer.UniqueDownloadPath(c.cfg.DownloadsDir, tr.Filename)
		assembled := tr.Assemble()
		if err := writeFileAtomic(path, assembled); err != nil {
			tr.Fail()
			c.log.Error("writing %s failed: %v", path, err)
			return
		}
		tr.Complete(path)
		c.sendFileReceived(tr)
		c.transfers.Remove(fileID)
		c.log.Info("file %s complete: %s", fileID, path)
	}
}

func (c *Controller) handleFileReceived(f *frame.Frame) {
	fileID := f.Get("FILEID")
	if tr, ok := c.transfers.Get(fileID); ok {
		c.log.Info("%s confirmed receipt of %s (%s)", f.Get("FROM"), fileID, tr.Filename)
	}
}

func (c *Controller) handleGroupCreate(f *frame.Frame) {
	groupID := f.Get("GROUP_ID")
	members := frame.CSV(f.Get("MEMBERS"))
	c.groups.Create(group.Record{
		GroupID:   groupID,
		GroupName: f.Get("GROUP_NAME"),
		Owner:     f.Get("FROM"),
		Members:   members,
	})
	c.log.Info("added to group %s (%s)", groupID, f.Get("GROUP_NAME"))
}

func (c *Controller) handleGroupAdd(f *frame.Frame) {
	groupID := f.Get("GROUP_ID")
	if _, ok := c.groups.Get(groupID); !ok {
		// We weren't a member before this ADD; learn the group from
		// scratch instead of trying (and failing) to update one we
		// don't have yet.
		c.groups.Create(group.Record{
			GroupID:   groupID,
			GroupName: f.Get("GROUP_NAME"),
			Owner:     f.Get("FROM"),
			Members:   frame.CSV(f.Get("MEMBERS")),
		})
		c.log.Info("added to group %s (%s)", groupID, f.Get("GROUP_NAME"))
		return
	}
	if !c.groups.IsOwner(groupID, f.Get("FROM")) {
		c.log.Warn("dropping GROUP_ADD for %s: sender is not the owner", groupID)
		return
	}
	c.groups.SetMembers(groupID, frame.CSV(f.Get("MEMBERS")))
	c.log.Info("group %s membership updated", groupID)
}

func (c *Controller) handleGroupRemove(f *frame.Frame) {
	groupID := f.Get("GROUP_ID")
	if !c.groups.IsOwner(groupID, f.Get("FROM")) {
		if _, ok := c.groups.Get(groupID); ok {
			c.log.Warn("dropping GROUP_REMOVE for %s: sender is not the owner", groupID)
			return
		}
	}
	c.groups.SetMembers(groupID, frame.CSV(f.Get("MEMBERS")))
	c.log.Info("group %s membership updated", groupID)
}

func (c *Controller) handleGroupMessage(f *frame.Frame) {
	groupID := f.Get("GROUP_ID")
	rec, ok := c.groups.Get(groupID)
	if !ok || !rec.HasMember(c.userID) {
		c.log.Debug("dropping GROUP_MESSAGE for %s: not a member", groupID)
		return
	}
	c.inbox.Append("[" + rec.GroupName + "] " + f.Get("FROM") + ": " + f.Get("CONTENT"))
	c.sendACK(f.Get("FROM"), f.Get("MESSAGE_ID"))
}

func (c *Controller) handleTicTacToeInvite(f *frame.Frame) {
	gameID := f.Get("GAMEID")
	symbolField := f.Get("SYMBOL")
	if symbolField == "" {
		c.log.Warn("dropping TICTACTOE_INVITE for %s: missing SYMBOL", gameID)
		return
	}
	theirSymbol := symbolField[0]
	mySymbol := game.OpponentSymbol(theirSymbol)
	c.games.Put(game.NewSession(gameID, f.Get("FROM"), mySymbol))
	c.sendACK(f.Get("FROM"), f.Get("MESSAGE_ID"))
	c.log.Info("%s invited you to Tic-Tac-Toe (%s), you are %c", f.Get("FROM"), gameID, mySymbol)
}

func (c *Controller) handleTicTacToeMove(f *frame.Frame) {
	gameID := f.Get("GAMEID")
	s, ok := c.games.Get(gameID)
	if !ok || !s.Active {
		return
	}
	pos, _ := f.GetInt("POSITION")
	symbolField := f.Get("SYMBOL")
	if symbolField == "" {
		c.log.Warn("dropping TICTACTOE_MOVE for %s: missing SYMBOL", gameID)
		return
	}
	symbol := symbolField[0]
	if !s.ApplyMove(pos, symbol) {
		c.log.Warn("rejected move at %d in game %s: cell occupied or out of range", pos, gameID)
		return
	}
	c.sendACK(f.Get("FROM"), f.Get("MESSAGE_ID"))

	if winner, line, done := s.CheckWinner(); done {
		c.games.Deactivate(gameID)
		result := s.ResultFor(winner)
		c.sendResult(s, result, line)
		c.log.Info("game %s finished: %s", gameID, result)
	}
}

func (c *Controller) handleTicTacToeResult(f *frame.Frame) {
	gameID := f.Get("GAMEID")
	c.games.Deactivate(gameID)
	theirs := game.Result(f.Get("RESULT"))
	c.log.Info("game %s finished: %s", gameID, game.Mirror(theirs))
}

func (c *Controller) sendACK(to, messageID string) {
	if to == "" || messageID == "" {
		return
	}
	ack := frame.New("ACK").Set("MESSAGE_ID", messageID).Set("STATUS", "RECEIVED")
	c.sendUnicast(to, ack)
}

func (c *Controller) sendUnicast(to string, f *frame.Frame) {
	ip := c.peerIP(to)
	if ip == "" {
		c.log.Warn("cannot send %s to %s: unknown address", f.Type(), to)
		return
	}
	if err := c.sock.SendTo(f.Encode(), ip, c.peerPort(to)); err != nil {
		c.log.Error("send %s to %s failed: %v", f.Type(), to, err)
	}
}

// fileChunkPacing is the delay between successive FILE_CHUNK sends
// (spec.md §4.9 step 3), kept small enough not to stall large transfers
// while giving the receiver's socket buffer room to drain.
const fileChunkPacing = 100 * time.Millisecond

func (c *Controller) sendFileChunks(tr *filetransfer.Transfer) {
	go func() {
		for i := 0; i < tr.TotalChunks; i++ {
			raw, err := tr.ReadChunk(i)
			if err != nil {
				c.log.Error("reading chunk %d of %s failed: %v", i, tr.FileID, err)
				tr.Fail()
				return
			}
			tok := c.tokens.Issue(c.userID, token.ScopeFile, token.DefaultTTL)
			chunk := frame.New("FILE_CHUNK").
				Set("FROM", c.userID).
				Set("TO", tr.RemoteUser).
				Set("FILEID", tr.FileID).
				SetInt("CHUNK_INDEX", i).
				SetInt("TOTAL_CHUNKS", tr.TotalChunks).
				SetInt("CHUNK_SIZE", len(raw)).
				Set("TOKEN", tok).
				Set("DATA", filetransfer.EncodeChunkData(raw))
			c.sendUnicast(tr.RemoteUser, chunk)
			if i < tr.TotalChunks-1 {
				time.Sleep(fileChunkPacing)
			}
		}
	}()
}

func (c *Controller) sendFileReceived(tr *filetransfer.Transfer) {
	f := frame.New("FILE_RECEIVED").
		Set("FROM", c.userID).
		Set("TO", tr.RemoteUser).
		Set("FILEID", tr.FileID).
		Set("STATUS", "COMPLETE").
		Set("TIMESTAMP", unixNow())
	c.sendUnicast(tr.RemoteUser, f)
}

func (c *Controller) sendResult(s *game.Session, mine game.Result, line []int) {
	lineStr := ""
	if line != nil {
		parts := make([]string, len(line))
		for i, v := range line {
			parts[i] = strconv.Itoa(v)
		}
		lineStr = frame.JoinCSV(parts)
	}
	tok := c.tokens.Issue(c.userID, token.ScopeGame, token.DefaultTTL)
	f := frame.New("TICTACTOE_RESULT").
		Set("FROM", c.userID).
		Set("TO", s.Opponent).
		Set("GAMEID", s.GameID).
		Set("MESSAGE_ID", newID()).
		Set("SYMBOL", string(s.MySymbol)).
		Set("RESULT", string(mine)).
		Set("WINNING_LINE", lineStr).
		Set("TIMESTAMP", strconv.FormatInt(time.Now().Unix(), 10)).
		Set("TOKEN", tok)
	c.sendUnicast(s.Opponent, f)
}
