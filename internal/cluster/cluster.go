// Package cluster defines the coordination capability consumed by the
// synchronization and check-in subsystems. The election algorithm itself is
// external; this core only asks who the leader is, gates follower startup on
// the leader's initial sync, and forwards check-ins through the leader's
// master connection.
package cluster

import (
	"context"
	"sync/atomic"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// Coordinator is the cluster capability surface.
//
// Implementations must be safe for concurrent use.
type Coordinator interface {
	// IsLeader reports whether this node currently leads the cluster.
	IsLeader() bool

	// MarkInitialSyncDone signals that this node, as leader, finished its
	// startup synchronization pass.
	MarkInitialSyncDone()

	// LeaderInitialSyncDone reports whether the current leader finished its
	// startup synchronization pass.
	LeaderInitialSyncDone() bool

	// ForwardCheckIn relays a check-in to the master through the leader's
	// connection. Like a direct remote check-in it is total: failures fold
	// into a RETRY envelope.
	ForwardCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse
}

// Standalone is the single-node Coordinator: the local node is always the
// leader and no forwarding target exists.
type Standalone struct {
	syncDone atomic.Bool
}

var _ Coordinator = (*Standalone)(nil)

// NewStandalone returns a Coordinator for a station running without peers.
func NewStandalone() *Standalone { return &Standalone{} }

// IsLeader always reports true for a standalone node.
func (s *Standalone) IsLeader() bool { return true }

// MarkInitialSyncDone records completion of the startup sync.
func (s *Standalone) MarkInitialSyncDone() { s.syncDone.Store(true) }

// LeaderInitialSyncDone reports whether the startup sync completed.
func (s *Standalone) LeaderInitialSyncDone() bool { return s.syncDone.Load() }

// ForwardCheckIn has no leader to forward to; the caller should have used the
// direct master connection. Returns a RETRY envelope so the scan is
// reconciled by the upload worker.
func (s *Standalone) ForwardCheckIn(context.Context, string, string, string, string) domain.CheckInResponse {
	return domain.RetryResult()
}
