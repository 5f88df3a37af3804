// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the encrypted
// attendee cache and per-event label configurations.
//
// The attendee cache stores ciphertext only, keyed by (event key, sha256 of
// the ticket secret). Records are inserted or overwritten in bulk by the
// synchronizer and never deleted by this core; entries present locally but
// absent remotely are left untouched.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// AttendeeDataNotFound is the sentinel payload marking an identifier as known
// not to exist on the master, preventing repeated remote lookups for it.
const AttendeeDataNotFound = "ticket-not-found"

// attendeeUpsertBatch bounds the row count per bulk insert statement.
const attendeeUpsertBatch = 500

// IsAttendeePresent reports whether the cache holds any entry (including the
// not-found sentinel) for the given event and identifier.
func IsAttendeePresent(ctx context.Context, db *gorm.DB, eventKey, identifier string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AttendeeRecord{}).
		Where("event_key = ? AND identifier = ?", eventKey, identifier).
		Count(&n).Error
	return n > 0, err
}

// GetAttendeeData returns the cached ciphertext for the given event and
// identifier, or ErrNotFound. Callers must compare against
// AttendeeDataNotFound before attempting decryption.
func GetAttendeeData(ctx context.Context, db *gorm.DB, eventKey, identifier string) (string, error) {
	var rec domain.AttendeeRecord
	err := db.WithContext(ctx).
		Where("event_key = ? AND identifier = ?", eventKey, identifier).
		First(&rec).Error
	if err != nil {
		return "", err
	}
	return rec.Data, nil
}

// BulkUpsertAttendees inserts or overwrites cache entries for one event in a
// single statement batch, stamping each row with the server-supplied cursor.
func BulkUpsertAttendees(ctx context.Context, db *gorm.DB, eventKey string, lastUpdate int64, records map[string]string) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]domain.AttendeeRecord, 0, len(records))
	for identifier, data := range records {
		rows = append(rows, domain.AttendeeRecord{
			EventKey:   eventKey,
			Identifier: identifier,
			Data:       data,
			LastUpdate: lastUpdate,
		})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_key"}, {Name: "identifier"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "last_update"}),
		}).
		CreateInBatches(rows, attendeeUpsertBatch).Error
}

// LoadLabelConfiguration fetches the label configuration for an event, or
// ErrNotFound when the master never supplied one.
func LoadLabelConfiguration(ctx context.Context, db *gorm.DB, eventID int) (*domain.LabelConfiguration, error) {
	var cfg domain.LabelConfiguration
	err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MergeLabelConfiguration inserts or refreshes the label configuration for an
// event.
func MergeLabelConfiguration(ctx context.Context, db *gorm.DB, eventID int, layout *string, enabled bool) error {
	cfg := domain.LabelConfiguration{EventID: eventID, Layout: layout, Enabled: enabled}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"layout", "enabled"}),
		}).
		Create(&cfg).Error
}
