// Package services implements the check-in engine, the attendee cache
// synchronizer, the pending-upload worker, and the sync coordinator. This
// file centralizes common service-level error values and the lookups that
// produce them, so callers can branch with errors.Is instead of matching on
// storage-layer errors.
//
// The check-in path itself is total (it always returns a CheckInResponse);
// these errors belong to entity resolution on the check-in, upload, and read
// paths.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/repo"
)

var (
	// ErrEventNotFound indicates that the referenced event is not known to
	// this station.
	ErrEventNotFound = errors.New("event not found")

	// ErrUserNotFound indicates that the referenced operator account does
	// not exist locally.
	ErrUserNotFound = errors.New("user not found")

	// ErrScanNotFound indicates that the requested scan-log row does not
	// exist.
	ErrScanNotFound = errors.New("scan not found")
)

// mapNotFound narrows the repo's generic not-found error to a service-level
// sentinel. Other errors, including nil, pass through unchanged.
func mapNotFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}

func findEvent(ctx context.Context, db *gorm.DB, key string) (*domain.Event, error) {
	ev, err := repo.FindEventByKey(ctx, db, key)
	return ev, mapNotFound(err, ErrEventNotFound)
}

func findEventByID(ctx context.Context, db *gorm.DB, id int) (*domain.Event, error) {
	ev, err := repo.FindEventByID(ctx, db, id)
	return ev, mapNotFound(err, ErrEventNotFound)
}

func findUser(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	u, err := repo.FindUserByUsername(ctx, db, username)
	return u, mapNotFound(err, ErrUserNotFound)
}

func findUserByID(ctx context.Context, db *gorm.DB, id int) (*domain.User, error) {
	u, err := repo.FindUserByID(ctx, db, id)
	return u, mapNotFound(err, ErrUserNotFound)
}
