package filetransfer

import (
	"sync"
	"time"
)

// TransferGCAge is the age after which completed/failed/cancelled
// transfers are evicted by housekeeping (spec.md §4.12).
const TransferGCAge = 24 * time.Hour

// Manager holds pending offers (received but not yet accepted/rejected)
// and active/finished transfers, both keyed by FileID.
type Manager struct {
	mu        sync.Mutex
	transfers map[string]*Transfer
}

// NewManager creates an empty transfer manager.
func NewManager() *Manager {
	return &Manager{transfers: make(map[string]*Transfer)}
}

// Put installs a transfer (outgoing offer, or incoming pending offer).
func (m *Manager) Put(t *Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[t.FileID] = t
}

// Get returns a transfer by FileID.
func (m *Manager) Get(fileID string) (*Transfer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[fileID]
	return t, ok
}

// Remove deletes a transfer, e.g. after completed reassembly (spec.md
// §4.9 step 4: "removes the transfer").
func (m *Manager) Remove(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transfers, fileID)
}

// All returns a snapshot of every known transfer, for the `transfers`/
// `pendingfiles` CLI surface.
func (m *Manager) All() []*Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, t)
	}
	return out
}

// PendingOffers returns incoming transfers still awaiting accept/reject.
func (m *Manager) PendingOffers() []*Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Transfer{}
	for _, t := range m.transfers {
		if t.Direction == DirectionIncoming && t.CurrentStatus() == StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// GCFinished evicts completed/failed/cancelled transfers older than
// TransferGCAge, per the housekeeping task in spec.md §4.12.
func (m *Manager) GCFinished(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, t := range m.transfers {
		status := t.CurrentStatus()
		finished := status == StatusCompleted || status == StatusFailed || status == StatusCancelled
		if !finished {
			continue
		}
		reference := t.CompletedAt
		if reference.IsZero() {
			reference = t.CreatedAt
		}
		if now.Sub(reference) > TransferGCAge {
			delete(m.transfers, id)
			evicted++
		}
	}
	return evicted
}
