// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for events and
// operators.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-checkin-station/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindEventByKey fetches an event by its cross-system key, or ErrNotFound.
func FindEventByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Event, error) {
	var ev domain.Event
	err := db.WithContext(ctx).Where("key = ?", key).First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// FindEventByID fetches an event by local id, or ErrNotFound.
func FindEventByID(ctx context.Context, db *gorm.DB, id int) (*domain.Event, error) {
	var ev domain.Event
	err := db.WithContext(ctx).First(&ev, id).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns all locally known events ordered by name.
func ListEvents(ctx context.Context, db *gorm.DB) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// UpsertEvent mirrors a remote event locally, keyed by its cross-system key.
// Name and active flag are refreshed on conflict; the local id is preserved.
func UpsertEvent(ctx context.Context, db *gorm.DB, key, name string, active bool) error {
	ev := domain.Event{Key: key, Name: name, Active: active}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
		}).
		Create(&ev).Error
}

// FindUserByUsername fetches an operator account by username, or ErrNotFound.
func FindUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByID fetches an operator account by id, or ErrNotFound.
func FindUserByID(ctx context.Context, db *gorm.DB, id int) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
