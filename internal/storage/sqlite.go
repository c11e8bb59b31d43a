package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/C0okiesl/KopiRadar/internal/model"
	"github.com/C0okiesl/KopiRadar/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user record and populates its CreatedAt.
func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, lat, lng, filter_on, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ChatID, user.Lat, user.Lng, boolToInt(user.FilterOn), now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetUser returns a single user by chat ID.
func (s *SQLite) GetUser(ctx context.Context, chatID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, lat, lng, filter_on, created_at FROM users WHERE chat_id = ?`, chatID,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListUsers returns all registered users ordered by chat ID.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, lat, lng, filter_on, created_at FROM users ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and all records tied to the chat.
func (s *SQLite) DeleteUser(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"history", "locations", "filter_terms", "favorites"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE chat_id = ?`, chatID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return tx.Commit()
}

// UpdateCurrentLocation sets the user's current coordinate.
func (s *SQLite) UpdateCurrentLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET lat = ?, lng = ? WHERE chat_id = ?`, lat, lng, chatID,
	)
	if err != nil {
		return fmt.Errorf("update current location: %w", err)
	}
	return requireRow(res)
}

// UpdateFilterSwitch toggles the user's exclude filter.
func (s *SQLite) UpdateFilterSwitch(ctx context.Context, chatID int64, on bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET filter_on = ? WHERE chat_id = ?`, boolToInt(on), chatID,
	)
	if err != nil {
		return fmt.Errorf("update filter switch: %w", err)
	}
	return requireRow(res)
}

// AddFilterTerm adds a term to the user's exclude set. Adding an existing
// term is a no-op.
func (s *SQLite) AddFilterTerm(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO filter_terms (chat_id, name) VALUES (?, ?)`, chatID, name,
	)
	if err != nil {
		return fmt.Errorf("insert filter term: %w", err)
	}
	return nil
}

// RemoveFilterTerm removes a term from the user's exclude set.
func (s *SQLite) RemoveFilterTerm(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM filter_terms WHERE chat_id = ? AND name = ?`, chatID, name,
	)
	if err != nil {
		return fmt.Errorf("delete filter term: %w", err)
	}
	return nil
}

// ListFilterTerms returns the user's exclude set in insertion order.
func (s *SQLite) ListFilterTerms(ctx context.Context, chatID int64) ([]string, error) {
	return s.listNames(ctx, "filter_terms", chatID)
}

// AddFavorite adds a term to the user's favorites.
func (s *SQLite) AddFavorite(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (chat_id, name) VALUES (?, ?)`, chatID, name,
	)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// RemoveFavorite removes a term from the user's favorites.
func (s *SQLite) RemoveFavorite(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE chat_id = ? AND name = ?`, chatID, name,
	)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the user's favorite terms in insertion order.
func (s *SQLite) ListFavorites(ctx context.Context, chatID int64) ([]string, error) {
	return s.listNames(ctx, "favorites", chatID)
}

// AddLocation saves a named coordinate for the user. Saving a name that
// already exists replaces its coordinate.
func (s *SQLite) AddLocation(ctx context.Context, loc *model.SavedLocation) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (chat_id, name, lat, lng) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id, name) DO UPDATE SET lat = excluded.lat, lng = excluded.lng`,
		loc.ChatID, loc.Name, loc.Lat, loc.Lng,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		loc.ID = id
	}
	return nil
}

// RemoveLocation deletes a saved location by name.
func (s *SQLite) RemoveLocation(ctx context.Context, chatID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM locations WHERE chat_id = ? AND name = ?`, chatID, name,
	)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

// ListLocations returns the user's saved locations in insertion order.
func (s *SQLite) ListLocations(ctx context.Context, chatID int64) ([]model.SavedLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, name, lat, lng FROM locations WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locs []model.SavedLocation
	for rows.Next() {
		var l model.SavedLocation
		if err := rows.Scan(&l.ID, &l.ChatID, &l.Name, &l.Lat, &l.Lng); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// HasAnnounced checks whether the exact sighting tuple was already announced
// to the user.
func (s *SQLite) HasAnnounced(ctx context.Context, chatID int64, subject string, lat, lng float64, expire string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history
		 WHERE chat_id = ? AND subject = ? AND lat = ? AND lng = ? AND expire = ?`,
		chatID, subject, lat, lng, expire,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return count > 0, nil
}

// RecordAnnounced records a sighting as announced. Recording the identical
// tuple again is a no-op.
func (s *SQLite) RecordAnnounced(ctx context.Context, chatID int64, subject string, lat, lng float64, expire string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO history (chat_id, subject, lat, lng, expire, announced_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, subject, lat, lng, expire, now,
	)
	if err != nil {
		return fmt.Errorf("record announced: %w", err)
	}
	return nil
}

// PruneAnnounced deletes history entries announced before the cutoff and
// returns the number of rows removed.
func (s *SQLite) PruneAnnounced(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM history WHERE announced_at < ?`, olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AddGeofence inserts a named bounding box and populates its ID.
func (s *SQLite) AddGeofence(ctx context.Context, g *model.Geofence) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO geofences (name, min_lat, max_lat, min_lng, max_lng, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.Name, g.MinLat, g.MaxLat, g.MinLng, g.MaxLng, now,
	)
	if err != nil {
		return fmt.Errorf("insert geofence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id
	g.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// RemoveGeofence deletes a geofence by exact name. Returns ErrNotFound when
// no geofence has that name.
func (s *SQLite) RemoveGeofence(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geofences WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}
	return requireRow(res)
}

// ListGeofences returns all geofences in registration order.
func (s *SQLite) ListGeofences(ctx context.Context) ([]model.Geofence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, min_lat, max_lat, min_lng, max_lng, created_at FROM geofences ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query geofences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fences []model.Geofence
	for rows.Next() {
		var g model.Geofence
		var created string
		if err := rows.Scan(&g.ID, &g.Name, &g.MinLat, &g.MaxLat, &g.MinLng, &g.MaxLng, &created); err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		g.CreatedAt, _ = time.Parse(timeLayout, created)
		fences = append(fences, g)
	}
	return fences, rows.Err()
}

func (s *SQLite) listNames(ctx context.Context, table string, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM `+table+` WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var u model.User
	var filterOn int
	var created sql.NullString
	err := row.Scan(&u.ChatID, &u.Lat, &u.Lng, &filterOn, &created)
	if err != nil {
		return nil, err
	}
	u.FilterOn = filterOn == 1
	if created.Valid {
		u.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &u, nil
}
