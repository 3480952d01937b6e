package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/filetransfer"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/frame"
)

// runPeriodic drives the two background tickers spec.md §4.12 describes:
// PROFILE re-broadcast while any peer is known, and hourly housekeeping.
// Grounded on the teacher's beacon loop in node.go, which re-announces
// itself on a ticker inside the same goroutine that owns the rest of the
// actor state.
func (c *Controller) runPeriodic(ctx context.Context) {
	defer c.wg.Done()

	profileTicker := time.NewTicker(ProfileRebroadcastInterval)
	defer profileTicker.Stop()
	housekeepingTicker := time.NewTicker(HousekeepingInterval)
	defer housekeepingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case <-profileTicker.C:
			if len(c.peers.All()) > 0 {
				c.BroadcastProfile()
			}
		case <-housekeepingTicker.C:
			c.runHousekeeping()
		}
	}
}

func (c *Controller) runHousekeeping() {
	now := time.Now()
	evicted := c.transfers.GCFinished(now)
	cleared := c.peers.ClearStaleAvatars(now, filetransfer.AvatarCacheTTL)
	if evicted > 0 || cleared > 0 {
		c.log.Info("housekeeping: evicted %d finished transfers, cleared %d stale avatars", evicted, cleared)
	}
}

// BroadcastProfile announces this node's PROFILE to the subnet broadcast
// address (spec.md §4.2, §4.12).
func (c *Controller) BroadcastProfile() error {
	f := frame.New("PROFILE").
		Set("USER_ID", c.userID).
		Set("DISPLAY_NAME", c.cfg.DisplayName).
		Set("STATUS", c.cfg.Status).
		Set("MESSAGE_ID", newID()).
		Set("TIMESTAMP", unixNow())

	if c.avatarB64 != "" {
		f.Set("AVATAR_TYPE", c.avatarMIME).
			Set("AVATAR_ENCODING", "base64").
			Set("AVATAR_DATA", c.avatarB64)
	}

	if err := c.sock.Broadcast(f.Encode()); err != nil {
		c.log.Error("profile broadcast failed: %v", err)
		return err
	}
	return nil
}

// Ping broadcasts a PING, used as a liveness probe (spec.md §4.2).
func (c *Controller) Ping() error {
	f := frame.New("PING").Set("USER_ID", c.userID)
	return c.sock.Broadcast(f.Encode())
}

// unixNow is a small seam kept for readability at call sites.
func unixNow() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
