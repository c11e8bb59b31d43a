// Package radar implements the polling-and-notification engine: per-user
// state, feed querying, event filtering, deduplication, and digest building.
package radar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/C0okiesl/KopiRadar/internal/feed"
	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/geofence"
	"github.com/C0okiesl/KopiRadar/internal/model"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

// Config holds the engine's runtime settings.
type Config struct {
	DefaultLat       float64
	DefaultLng       float64
	HistoryRetention time.Duration
}

// Service owns the user cache and runs poll cycles. Cycles for the same user
// are serialized: a manual trigger and a scheduled tick never overlap.
type Service struct {
	store  storage.Storage
	feed   *feed.Client
	geo    geocode.Geocoder
	fences *geofence.Registry
	cfg    Config
	log    *slog.Logger

	cache *cache

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a Service. Call Load before first use.
func New(store storage.Storage, feedClient *feed.Client, geo geocode.Geocoder, fences *geofence.Registry, cfg Config, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		feed:   feedClient,
		geo:    geo,
		fences: fences,
		cfg:    cfg,
		log:    log,
		cache:  newCache(),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// Load populates the in-memory cache from persistent storage.
func (s *Service) Load(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		st := &userState{lat: u.Lat, lng: u.Lng, filterOn: u.FilterOn}

		if st.filters, err = s.store.ListFilterTerms(ctx, u.ChatID); err != nil {
			return fmt.Errorf("load filters for %d: %w", u.ChatID, err)
		}
		if st.favorites, err = s.store.ListFavorites(ctx, u.ChatID); err != nil {
			return fmt.Errorf("load favorites for %d: %w", u.ChatID, err)
		}
		if st.locations, err = s.store.ListLocations(ctx, u.ChatID); err != nil {
			return fmt.Errorf("load locations for %d: %w", u.ChatID, err)
		}

		s.cache.put(u.ChatID, st)
	}

	s.log.Info("cache loaded", "users", len(users))
	return nil
}

// ChatIDs returns all registered chat IDs.
func (s *Service) ChatIDs() []int64 {
	return s.cache.chatIDs()
}

// IsRegistered reports whether the chat has a user record.
func (s *Service) IsRegistered(chatID int64) bool {
	return s.cache.has(chatID)
}

// EnsureUser provisions a user record with the default coordinate if the
// chat is unknown. It must run before the first tick for a new chat.
func (s *Service) EnsureUser(ctx context.Context, chatID int64) error {
	if s.cache.has(chatID) {
		return nil
	}

	u := &model.User{ChatID: chatID, Lat: s.cfg.DefaultLat, Lng: s.cfg.DefaultLng}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create user %d: %w", chatID, err)
	}
	s.cache.put(chatID, &userState{lat: u.Lat, lng: u.Lng})

	s.log.Info("provisioned new user", "chat_id", chatID)
	return nil
}

// RemoveUser deletes the user and everything tied to the chat.
func (s *Service) RemoveUser(ctx context.Context, chatID int64) error {
	if err := s.store.DeleteUser(ctx, chatID); err != nil {
		return fmt.Errorf("delete user %d: %w", chatID, err)
	}
	s.cache.remove(chatID)
	return nil
}

// SetCurrentLocation updates the user's current coordinate.
func (s *Service) SetCurrentLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	if err := s.store.UpdateCurrentLocation(ctx, chatID, lat, lng); err != nil {
		return err
	}
	s.cache.setCoordinate(chatID, lat, lng)
	return nil
}

// SetFilterSwitch toggles the user's exclude filter.
func (s *Service) SetFilterSwitch(ctx context.Context, chatID int64, on bool) error {
	if err := s.store.UpdateFilterSwitch(ctx, chatID, on); err != nil {
		return err
	}
	s.cache.setFilterOn(chatID, on)
	return nil
}

// AddFilterTerms adds lowercase terms to the user's exclude set.
func (s *Service) AddFilterTerms(ctx context.Context, chatID int64, names []string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if err := s.store.AddFilterTerm(ctx, chatID, name); err != nil {
			return err
		}
		s.cache.addFilterTerm(chatID, name)
	}
	return nil
}

// RemoveFilterTerms removes terms from the user's exclude set.
func (s *Service) RemoveFilterTerms(ctx context.Context, chatID int64, names []string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if err := s.store.RemoveFilterTerm(ctx, chatID, name); err != nil {
			return err
		}
		s.cache.removeFilterTerm(chatID, name)
	}
	return nil
}

// FilterTerms returns the user's exclude set.
func (s *Service) FilterTerms(chatID int64) []string {
	return s.cache.filterTerms(chatID)
}

// AddFavorites adds terms to the user's favorites.
func (s *Service) AddFavorites(ctx context.Context, chatID int64, names []string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if err := s.store.AddFavorite(ctx, chatID, name); err != nil {
			return err
		}
		s.cache.addFavorite(chatID, name)
	}
	return nil
}

// RemoveFavorites removes terms from the user's favorites.
func (s *Service) RemoveFavorites(ctx context.Context, chatID int64, names []string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if err := s.store.RemoveFavorite(ctx, chatID, name); err != nil {
			return err
		}
		s.cache.removeFavorite(chatID, name)
	}
	return nil
}

// Favorites returns the user's favorite terms.
func (s *Service) Favorites(chatID int64) []string {
	return s.cache.favorites(chatID)
}

// AddSavedLocation saves a named coordinate for the user.
func (s *Service) AddSavedLocation(ctx context.Context, chatID int64, name string, lat, lng float64) error {
	loc := &model.SavedLocation{ChatID: chatID, Name: name, Lat: lat, Lng: lng}
	if err := s.store.AddLocation(ctx, loc); err != nil {
		return err
	}
	s.cache.putLocation(chatID, *loc)
	return nil
}

// RemoveSavedLocation deletes a saved location by name.
func (s *Service) RemoveSavedLocation(ctx context.Context, chatID int64, name string) error {
	if err := s.store.RemoveLocation(ctx, chatID, name); err != nil {
		return err
	}
	s.cache.removeLocation(chatID, name)
	return nil
}

// SavedLocations returns the user's saved locations.
func (s *Service) SavedLocations(chatID int64) []model.SavedLocation {
	return s.cache.locations(chatID)
}

// FindSavedLocation looks up a saved location by case-insensitive name.
func (s *Service) FindSavedLocation(chatID int64, name string) (model.SavedLocation, bool) {
	for _, l := range s.cache.locations(chatID) {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return model.SavedLocation{}, false
}

// Fences exposes the geofence registry.
func (s *Service) Fences() *geofence.Registry {
	return s.fences
}

// RunCycle performs one poll-filter-dedup cycle for the chat and returns the
// digest, or "" when there is nothing new to report. Cycles for the same
// chat are serialized; concurrent calls for different chats proceed in
// parallel.
func (s *Service) RunCycle(ctx context.Context, chatID int64) (string, error) {
	lock := s.userLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	lat, lng, ok := s.cache.coordinate(chatID)
	if !ok {
		if err := s.EnsureUser(ctx, chatID); err != nil {
			return "", err
		}
		lat, lng = s.cfg.DefaultLat, s.cfg.DefaultLng
	}

	resp, err := s.feed.Query(ctx, lat, lng)
	if err != nil {
		return "", fmt.Errorf("query feed: %w", err)
	}

	return s.processEvents(ctx, chatID, resp.Events), nil
}

// PruneHistory drops announced entries older than the retention window.
func (s *Service) PruneHistory(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.HistoryRetention)
	return s.store.PruneAnnounced(ctx, cutoff)
}

func (s *Service) userLock(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[chatID] = lock
	}
	return lock
}
