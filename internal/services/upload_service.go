// Package services – UploadService
//
// This file implements the pending-upload worker: a periodic sweep over scan
// logs whose remote reconciliation is still outstanding (remote status
// RETRY). Each row is re-submitted with the ticket secret retained in its
// snapshot for exactly this purpose, and its remote status is updated with
// whatever the retry returns — including RETRY again, enabling indefinite
// retry until success or an explicit rejection.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/repo"
)

// RemoteChecker re-submits a scan to the master, honoring leader forwarding.
// Satisfied by *CheckInService.
type RemoteChecker interface {
	RemoteCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse
}

// UploadService retries deferred check-in uploads.
type UploadService struct {
	DB      *gorm.DB
	Checker RemoteChecker
	Log     zerolog.Logger
}

// Run sweeps pending uploads on the given period until ctx is cancelled.
func (s *UploadService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ProcessPendingUploads(ctx)
		}
	}
}

// ProcessPendingUploads performs one sweep. Rows are grouped per event; a
// failure while processing one event is logged and does not prevent other
// events from being processed in the same cycle.
func (s *UploadService) ProcessPendingUploads(ctx context.Context) {
	failures, err := repo.FindRemoteFailures(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("cannot load pending uploads")
		return
	}
	if len(failures) == 0 {
		return
	}
	s.Log.Info().Int("pending", len(failures)).Msg("uploading pending check-ins")

	byEvent := make(map[int][]domain.ScanLog)
	for _, scan := range failures {
		byEvent[scan.EventID] = append(byEvent[scan.EventID], scan)
	}

	for eventID, scans := range byEvent {
		event, err := findEventByID(ctx, s.DB, eventID)
		if errors.Is(err, ErrEventNotFound) {
			s.Log.Warn().Err(err).Int("event_id", eventID).Msg("skipping pending uploads for unknown event")
			continue
		} else if err != nil {
			s.Log.Error().Err(err).Int("event_id", eventID).Msg("cannot resolve event for pending uploads")
			continue
		}
		s.uploadEntriesForEvent(ctx, event, scans)
	}
}

// uploadEntriesForEvent retries every pending scan of one event. Each row is
// handled independently: a bad snapshot or missing operator skips the row
// only.
func (s *UploadService) uploadEntriesForEvent(ctx context.Context, event *domain.Event, scans []domain.ScanLog) {
	for i := range scans {
		scan := &scans[i]

		ticket, err := scan.Ticket()
		if err != nil || ticket == nil || ticket.HMAC == "" {
			s.Log.Warn().Err(err).Str("scan", scan.ID).Msg("pending scan has no replayable snapshot")
			continue
		}
		user, err := findUserByID(ctx, s.DB, scan.UserID)
		if err != nil {
			s.Log.Warn().Err(err).Str("scan", scan.ID).Int("user_id", scan.UserID).Msg("cannot resolve operator for pending scan")
			continue
		}

		resp := s.Checker.RemoteCheckIn(ctx, event.Key, ticket.UUID, ticket.HMAC, user.Username)
		if err := mapNotFound(repo.UpdateRemoteResult(ctx, s.DB, scan.ID, resp.Result.Status), ErrScanNotFound); err != nil {
			if errors.Is(err, ErrScanNotFound) {
				s.Log.Warn().Err(err).Str("scan", scan.ID).Msg("pending scan vanished before its status update")
			} else {
				s.Log.Error().Err(err).Str("scan", scan.ID).Msg("cannot update remote status")
			}
			continue
		}
		pendingUploadsTotal.WithLabelValues(string(resp.Result.Status)).Inc()
		s.Log.Debug().Str("scan", scan.ID).Str("status", string(resp.Result.Status)).Msg("pending upload processed")
	}
}
