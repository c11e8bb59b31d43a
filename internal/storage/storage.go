// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/C0okiesl/KopiRadar/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, chatID int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, chatID int64) error
	UpdateCurrentLocation(ctx context.Context, chatID int64, lat, lng float64) error
	UpdateFilterSwitch(ctx context.Context, chatID int64, on bool) error

	AddFilterTerm(ctx context.Context, chatID int64, name string) error
	RemoveFilterTerm(ctx context.Context, chatID int64, name string) error
	ListFilterTerms(ctx context.Context, chatID int64) ([]string, error)

	AddFavorite(ctx context.Context, chatID int64, name string) error
	RemoveFavorite(ctx context.Context, chatID int64, name string) error
	ListFavorites(ctx context.Context, chatID int64) ([]string, error)

	AddLocation(ctx context.Context, loc *model.SavedLocation) error
	RemoveLocation(ctx context.Context, chatID int64, name string) error
	ListLocations(ctx context.Context, chatID int64) ([]model.SavedLocation, error)

	HasAnnounced(ctx context.Context, chatID int64, subject string, lat, lng float64, expire string) (bool, error)
	RecordAnnounced(ctx context.Context, chatID int64, subject string, lat, lng float64, expire string) error
	PruneAnnounced(ctx context.Context, olderThan time.Time) (int64, error)

	AddGeofence(ctx context.Context, g *model.Geofence) error
	RemoveGeofence(ctx context.Context, name string) error
	ListGeofences(ctx context.Context) ([]model.Geofence, error)

	Close() error
}
