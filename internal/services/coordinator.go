// Package services – Coordinator
//
// This file drives startup and periodic synchronization under the
// leader-first protocol: the leader syncs immediately and signals completion;
// followers wait for that signal before their own first pass, so they never
// serve check-ins against a cold cache and the master is never hammered by N
// nodes at once.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-checkin-station/internal/cluster"
	"github.com/tbourn/go-checkin-station/internal/master"
	"github.com/tbourn/go-checkin-station/internal/repo"
)

// Coordinator schedules attendee synchronization across the cluster roles.
type Coordinator struct {
	DB      *gorm.DB
	Master  master.Client
	Cluster cluster.Coordinator
	Syncer  AttendeeSyncer
	Log     zerolog.Logger

	// Interval is the periodic sync period; InitialDelay postpones the first
	// periodic pass; FollowerPoll is the leader-done poll period.
	Interval     time.Duration
	InitialDelay time.Duration
	FollowerPoll time.Duration
}

// Start performs the startup protocol, then launches the periodic loop.
// It returns once the startup pass finished, or ctx's error if cancelled
// while waiting for the leader.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.Cluster.IsLeader() {
		c.PerformSync(ctx)
		c.Cluster.MarkInitialSyncDone()
	} else {
		if err := c.awaitLeader(ctx); err != nil {
			return err
		}
		c.PerformSync(ctx)
	}

	go c.run(ctx)
	return nil
}

// awaitLeader polls the cluster until the leader reports its initial sync
// done, honoring cancellation.
func (c *Coordinator) awaitLeader(ctx context.Context) error {
	ticker := time.NewTicker(c.FollowerPoll)
	defer ticker.Stop()
	for !c.Cluster.LeaderInitialSyncDone() {
		c.Log.Info().Msg("leader is still synchronizing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	c.Log.Info().Msg("leader has finished loading")
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	if c.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.InitialDelay):
		}
	}
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PerformSync(ctx)
		}
	}
}

// PerformSync fetches the current remote event list and runs an on-demand
// synchronization pass over it. Transport failures are logged and retried on
// the next period.
func (c *Coordinator) PerformSync(ctx context.Context) {
	events, err := c.Master.ListEvents(ctx)
	if err != nil {
		c.Log.Warn().Err(err).Msg("cannot load remote event list")
		return
	}
	c.OnDemandSync(ctx, events)
}

// OnDemandSync mirrors the remote events locally and, on the leader,
// synchronizes attendee data for every event carrying a key. On followers
// the pass is a logged no-op: forwarding on-demand sync through the leader
// is not yet supported.
func (c *Coordinator) OnDemandSync(ctx context.Context, events []master.RemoteEvent) {
	if !c.Cluster.IsLeader() {
		c.Log.Debug().Msg("forwarding on-demand sync to leader not yet supported")
		return
	}

	for _, ev := range events {
		if ev.Key == nil {
			continue
		}
		if err := repo.UpsertEvent(ctx, c.DB, *ev.Key, ev.Name, ev.Active); err != nil {
			c.Log.Warn().Err(err).Str("event", *ev.Key).Msg("cannot mirror remote event")
			continue
		}
		if err := c.Syncer.SyncAttendees(ctx, *ev.Key); err != nil {
			c.Log.Warn().Err(err).Str("event", *ev.Key).Msg("attendee sync failed")
		}
	}
}
