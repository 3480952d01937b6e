package controller

import (
	"path/filepath"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/filetransfer"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/peertable"
)

// ResolvePath joins a bare filename against the configured files
// directory, leaving already-absolute paths untouched.
func (c *Controller) ResolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.cfg.FilesDir, name)
}

// Peers returns a snapshot of every known peer, for the `peers` CLI
// surface.
func (c *Controller) Peers() []*peertable.Record {
	return c.peers.All()
}

// Inbox returns every delivered DM/POST/group-message line, oldest
// first, for the `dms` CLI surface.
func (c *Controller) Inbox() []string {
	return c.inbox.All()
}

// PendingOffers returns incoming file offers still awaiting a local
// accept/reject decision.
func (c *Controller) PendingOffers() []*filetransfer.Transfer {
	return c.transfers.PendingOffers()
}

// Transfers returns every known file transfer, for the `transfers` CLI
// surface.
func (c *Controller) Transfers() []*filetransfer.Transfer {
	return c.transfers.All()
}

// IPStats returns the advisory IP-activity snapshot for `ipstats`.
func (c *Controller) IPStats() peertable.Stats {
	return c.ipTrack.Stats()
}
