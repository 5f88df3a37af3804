// Package services – CheckInService
//
// This file implements the check-in decision engine. Given a scan (event
// key, ticket uuid, ticket secret, operator) it decides SUCCESS, duplicate,
// or failure, consulting the local encrypted cache, the local scan log, and —
// when this node is the leader — the master directly, otherwise the cluster's
// forwarding capability.
//
// The engine is offline-first: the terminal trusts its local "not yet checked
// in" view unless the master explicitly rejects the ticket. A master that is
// unreachable within the tight check-in timeout yields a local SUCCESS with
// remote status RETRY, reconciled later by the upload worker.
//
// Every public method is total: it always returns a CheckInResponse and
// never lets a transport, crypto, or storage fault escape to the caller.
package services

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-checkin-station/internal/cluster"
	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/master"
	"github.com/tbourn/go-checkin-station/internal/notify"
	"github.com/tbourn/go-checkin-station/internal/printing"
	"github.com/tbourn/go-checkin-station/internal/repo"
	"github.com/tbourn/go-checkin-station/internal/ticketcrypto"
)

// AttendeeSyncer triggers an on-demand cache refresh for one event. Used by
// the engine to make a single cache miss self-healing.
type AttendeeSyncer interface {
	SyncAttendees(ctx context.Context, eventKey string) error
}

// CheckInService is the check-in decision engine.
type CheckInService struct {
	DB      *gorm.DB
	Master  master.Client
	Cluster cluster.Coordinator
	Printer printing.PrintManager
	Bus     *notify.Bus
	Syncer  AttendeeSyncer
	Log     zerolog.Logger
}

// PerformCheckIn decides a scan inside one local transaction. A transaction
// that cannot even begin is an infrastructural condition, reported as an
// empty result without an error-level log; failures inside the transaction
// are logged and likewise folded into an empty result.
func (s *CheckInService) PerformCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse {
	tr := otel.Tracer("services/CheckInService")
	ctx, span := tr.Start(ctx, "PerformCheckIn",
		trace.WithAttributes(
			attribute.String("event.key", eventKey),
			attribute.String("ticket.uuid", ticketUUID),
		),
	)
	defer span.End()

	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.Log.Debug().Err(tx.Error).Msg("cannot begin check-in transaction")
		return domain.EmptyResult()
	}

	resp, err := s.doPerformCheckIn(ctx, tx, eventKey, ticketUUID, ticketSecret, username)
	if err != nil {
		tx.Rollback()
		s.Log.Error().Err(err).Str("ticket", ticketUUID).Msg("error during check-in")
		return domain.EmptyResult()
	}
	if err := tx.Commit().Error; err != nil {
		s.Log.Error().Err(err).Str("ticket", ticketUUID).Msg("cannot commit check-in")
		return domain.EmptyResult()
	}

	checkInsTotal.WithLabelValues(string(resp.Result.Status)).Inc()
	return resp
}

func (s *CheckInService) doPerformCheckIn(ctx context.Context, tx *gorm.DB, eventKey, ticketUUID, ticketSecret, username string) (domain.CheckInResponse, error) {
	event, err := findEvent(ctx, tx, eventKey)
	if errors.Is(err, ErrEventNotFound) {
		return domain.EmptyResult(), nil
	} else if err != nil {
		return domain.CheckInResponse{}, err
	}
	user, err := findUser(ctx, tx, username)
	if errors.Is(err, ErrUserNotFound) {
		return domain.EmptyResult(), nil
	} else if err != nil {
		return domain.CheckInResponse{}, err
	}

	// At-most-once: a prior SUCCESS for this (event, ticket) short-circuits
	// without a remote call or a new row.
	if existing, err := repo.FindSuccessfulScan(ctx, tx, event.ID, ticketUUID); err == nil {
		return domain.DuplicateScan(existing), nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.CheckInResponse{}, err
	}

	local := s.localTicketData(ctx, event, ticketUUID, ticketSecret)
	if !local.Successful() {
		return local, nil
	}
	ticket := *local.Ticket

	remote := s.RemoteCheckIn(ctx, event.Key, ticketUUID, ticketSecret, username)

	// The master's explicit rejection overrides the optimistic local view;
	// anything else (including RETRY) is a local SUCCESS.
	localStatus := domain.StatusSuccess
	if remote.Result.Status.Rejection() {
		localStatus = remote.Result.Status
	}

	// Printing waits for a confirmed remote SUCCESS; a deferred (RETRY)
	// check-in never prints.
	printed := false
	if remote.Successful() {
		if cfg, err := repo.LoadLabelConfiguration(ctx, tx, event.ID); err == nil && cfg.Enabled {
			printed = s.Printer.PrintLabel(*user, ticket, cfg)
		}
	}

	// Keep the secret in the snapshot only when the remote call must be
	// replayed later; otherwise the secret is not retained.
	snapshot := ticket
	if remote.Result.Status == domain.StatusRetry {
		snapshot = ticket.WithHMAC(ticketSecret)
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return domain.CheckInResponse{}, err
	}

	scan, err := repo.InsertScan(ctx, tx, event.ID, ticketUUID, user.ID, localStatus, remote.Result.Status, printed, string(snapshotJSON))
	if err != nil {
		return domain.CheckInResponse{}, err
	}
	if s.Bus != nil {
		s.Bus.Publish(notify.NewScan{ScanLog: *scan, Event: *event})
	}

	s.Log.Debug().
		Str("ticket", ticketUUID).
		Str("status", string(localStatus)).
		Str("remote_status", string(remote.Result.Status)).
		Msg("check-in recorded")
	return domain.SuccessfulCheckIn(&ticket, localStatus), nil
}

// RemoteCheckIn submits a scan to the master, either directly (leader) or via
// the cluster's forwarding capability (follower). Total by construction.
func (s *CheckInService) RemoteCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse {
	if !s.Cluster.IsLeader() {
		return s.Cluster.ForwardCheckIn(ctx, eventKey, ticketUUID, ticketSecret, username)
	}
	return s.Master.CheckIn(ctx, eventKey, ticketUUID, ticketSecret, username)
}

// localTicketData resolves and decrypts the cached attendee entry for a scan.
// Any miss or crypto failure means "attendee unknown": an empty result, never
// a surfaced error.
func (s *CheckInService) localTicketData(ctx context.Context, event *domain.Event, ticketUUID, ticketSecret string) domain.CheckInResponse {
	identifier := ticketcrypto.Sha256Hex(ticketSecret)
	data, ok := s.attendeeData(ctx, event, identifier)
	if !ok {
		s.Log.Warn().Str("identifier", identifier).Str("event", event.Key).Msg("no attendee data found")
		return domain.EmptyResult()
	}

	plain, err := ticketcrypto.Decrypt(ticketUUID+"/"+ticketSecret, data)
	if err != nil {
		s.Log.Warn().Err(err).Str("ticket", ticketUUID).Msg("cannot decrypt local attendee data")
		return domain.EmptyResult()
	}
	var td domain.TicketData
	if err := json.Unmarshal([]byte(plain), &td); err != nil {
		s.Log.Warn().Err(err).Str("ticket", ticketUUID).Msg("cannot decode local attendee data")
		return domain.EmptyResult()
	}

	ticket := &domain.Ticket{
		UUID:           ticketUUID,
		FirstName:      td.FirstName,
		LastName:       td.LastName,
		Email:          td.Email,
		AdditionalInfo: td.AdditionalInfo,
	}
	return domain.CheckInResponse{Ticket: ticket, Result: domain.CheckInResult{Status: td.CheckInStatus}}
}

// attendeeData reads the cached ciphertext for an identifier. A cache miss
// triggers exactly one on-demand resync of the event; if the record is still
// absent afterwards, a not-found sentinel is stored so repeated scans of the
// same unknown ticket do not re-trigger resyncs.
func (s *CheckInService) attendeeData(ctx context.Context, event *domain.Event, identifier string) (string, bool) {
	present, err := repo.IsAttendeePresent(ctx, s.DB, event.Key, identifier)
	if err != nil {
		s.Log.Warn().Err(err).Msg("cannot query attendee cache")
		return "", false
	}
	if !present && s.Syncer != nil {
		if err := s.Syncer.SyncAttendees(ctx, event.Key); err != nil {
			s.Log.Warn().Err(err).Str("event", event.Key).Msg("on-demand attendee sync failed")
		}
	}

	data, err := repo.GetAttendeeData(ctx, s.DB, event.Key, identifier)
	if errors.Is(err, repo.ErrNotFound) {
		_ = repo.BulkUpsertAttendees(ctx, s.DB, event.Key, 0, map[string]string{identifier: repo.AttendeeDataNotFound})
		return "", false
	} else if err != nil {
		s.Log.Warn().Err(err).Msg("cannot read attendee cache")
		return "", false
	}
	if data == repo.AttendeeDataNotFound {
		return "", false
	}
	return data, true
}

// ScanLogPage returns a page of scan-log rows for the read API.
func (s *CheckInService) ScanLogPage(ctx context.Context, eventID, page, pageSize int) ([]domain.ScanLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountScans(ctx, s.DB, eventID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ScanLog{}, 0, nil
	}

	items, err := repo.ListScansPage(ctx, s.DB, eventID, offset, pageSize)
	return items, total, err
}

// Events returns the locally known events for the read API.
func (s *CheckInService) Events(ctx context.Context) ([]domain.Event, error) {
	return repo.ListEvents(ctx, s.DB)
}
