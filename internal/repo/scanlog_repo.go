// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ScanLog
// model.
//
// The scan log is append-only apart from the remote result column, which the
// check-in engine and the pending-upload worker move forward until the master
// acknowledges the scan.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// InsertScan appends a scan-log row for one check-in attempt. The row id is a
// randomly generated UUID and the timestamp is set to UTC now.
func InsertScan(ctx context.Context, db *gorm.DB, eventID int, ticketUUID string, userID int,
	local, remote domain.CheckInStatus, badgePrinted bool, ticketJSON string) (*domain.ScanLog, error) {
	s := &domain.ScanLog{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		EventID:      eventID,
		TicketUUID:   ticketUUID,
		UserID:       userID,
		LocalResult:  local,
		RemoteResult: remote,
		BadgePrinted: badgePrinted,
		TicketJSON:   ticketJSON,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// FindSuccessfulScan returns the scan with local status SUCCESS for the given
// (event, ticket), or ErrNotFound. At most one such row can exist.
func FindSuccessfulScan(ctx context.Context, db *gorm.DB, eventID int, ticketUUID string) (*domain.ScanLog, error) {
	var s domain.ScanLog
	err := db.WithContext(ctx).
		Where("event_id = ? AND ticket_uuid = ? AND local_result = ?", eventID, ticketUUID, domain.StatusSuccess).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindScanByID fetches a single scan-log row, or ErrNotFound.
func FindScanByID(ctx context.Context, db *gorm.DB, id string) (*domain.ScanLog, error) {
	var s domain.ScanLog
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateRemoteResult sets the remote reconciliation status of a scan. Only
// the remote result column changes; local decision and snapshot are
// immutable. Returns ErrNotFound when the scan does not exist.
func UpdateRemoteResult(ctx context.Context, db *gorm.DB, scanID string, status domain.CheckInStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.ScanLog{}).
		Where("id = ?", scanID).
		Update("remote_result", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindRemoteFailures returns all scans whose remote reconciliation is still
// outstanding (remote result RETRY), oldest first.
func FindRemoteFailures(ctx context.Context, db *gorm.DB) ([]domain.ScanLog, error) {
	var out []domain.ScanLog
	err := db.WithContext(ctx).
		Where("remote_result = ?", domain.StatusRetry).
		Order("timestamp asc").
		Find(&out).Error
	return out, err
}

// CountScans returns the total number of scan-log rows, optionally filtered
// by event (eventID <= 0 means all events).
func CountScans(ctx context.Context, db *gorm.DB, eventID int) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ScanLog{})
	if eventID > 0 {
		q = q.Where("event_id = ?", eventID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListScansPage returns a page of scan-log rows ordered by timestamp
// descending, optionally filtered by event (eventID <= 0 means all events).
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListScansPage(ctx context.Context, db *gorm.DB, eventID, offset, limit int) ([]domain.ScanLog, error) {
	q := db.WithContext(ctx)
	if eventID > 0 {
		q = q.Where("event_id = ?", eventID)
	}
	var out []domain.ScanLog
	err := q.Order("timestamp desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
