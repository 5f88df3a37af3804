// Package domain defines the persistence models for the check-in station:
// events, operators, scan logs, the encrypted attendee cache, and label
// configurations. These types are mapped with GORM and form the core data
// layer of the application.
package domain

import (
	"encoding/json"
	"time"
)

// Event represents an event known to this station. Rows are mirrored from the
// master during synchronization; this core never deletes them.
//
// Fields:
//   - ID: local integer primary key.
//   - Key: stable cross-system identifier used in master URLs and cache keys.
//   - Name: human-readable event name.
//   - Active: whether the event is currently selectable for check-in.
type Event struct {
	ID        int       `json:"id"     gorm:"primaryKey;autoIncrement"`
	Key       string    `json:"key"    gorm:"type:varchar(255);not null;uniqueIndex"`
	Name      string    `json:"name"   gorm:"type:varchar(255);not null"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }

// User is a check-in operator. Accounts are provisioned by an external
// collaborator; this core only resolves them by username or id.
type User struct {
	ID        int       `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ScanLog records one check-in attempt. The local result is the decision the
// operator saw; the remote result tracks asynchronous reconciliation with the
// master and transitions only forward (RETRY until a terminal status).
//
// Invariant: at most one row per (EventID, TicketUUID) carries local status
// SUCCESS. Enforced by the duplicate check inside the check-in transaction.
type ScanLog struct {
	ID           string        `json:"id"            gorm:"type:char(36);primaryKey"`
	Timestamp    time.Time     `json:"timestamp"     gorm:"index"`
	EventID      int           `json:"event_id"      gorm:"not null;index:idx_event_ticket,priority:1"`
	TicketUUID   string        `json:"ticket_uuid"   gorm:"type:varchar(64);not null;index:idx_event_ticket,priority:2"`
	UserID       int           `json:"user_id"       gorm:"not null"`
	LocalResult  CheckInStatus `json:"local_result"  gorm:"type:varchar(32);not null"`
	RemoteResult CheckInStatus `json:"remote_result" gorm:"type:varchar(32);not null;index"`
	BadgePrinted bool          `json:"badge_printed" gorm:"not null"`
	// TicketJSON is the serialized ticket snapshot taken at scan time. It
	// includes the ticket secret only when the remote call was deferred
	// (remote result RETRY), so a later retry can still authenticate.
	TicketJSON string `json:"-" gorm:"type:text"`
}

// TableName returns the database table name for ScanLog.
func (ScanLog) TableName() string { return "scan_log" }

// Ticket deserializes the snapshot stored alongside the scan.
func (s *ScanLog) Ticket() (*Ticket, error) {
	if s.TicketJSON == "" {
		return nil, nil
	}
	var t Ticket
	if err := json.Unmarshal([]byte(s.TicketJSON), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// AttendeeRecord is one entry of the encrypted attendee cache, keyed by
// (event key, sha256 hex of the ticket secret). Data stays ciphertext at
// rest; decryption happens only at check-in time with the scanned secret.
// LastUpdate carries the server-supplied cursor at fetch time, never the
// local clock.
type AttendeeRecord struct {
	EventKey   string `json:"event_key"  gorm:"type:varchar(255);primaryKey"`
	Identifier string `json:"identifier" gorm:"type:varchar(64);primaryKey"`
	Data       string `json:"-"          gorm:"type:text;not null"`
	LastUpdate int64  `json:"last_update"`
}

// TableName returns the database table name for AttendeeRecord.
func (AttendeeRecord) TableName() string { return "attendee_data" }

// LabelConfiguration is the per-event badge layout fetched from the master.
// Layout is nil when the master disabled printing for the event (HTTP 412).
type LabelConfiguration struct {
	EventID int     `json:"event_id" gorm:"primaryKey"`
	Layout  *string `json:"layout"   gorm:"type:text"`
	Enabled bool    `json:"enabled"  gorm:"not null"`
}

// TableName returns the database table name for LabelConfiguration.
func (LabelConfiguration) TableName() string { return "label_configuration" }
