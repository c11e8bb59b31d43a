// Package model defines the domain types used across the application.
package model

import "time"

// User represents one registered chat and its radar state.
type User struct {
	ChatID    int64
	Lat       float64
	Lng       float64
	FilterOn  bool
	CreatedAt time.Time
}

// SavedLocation is a named coordinate a user can switch to with /setlocation.
type SavedLocation struct {
	ID     int64
	ChatID int64
	Name   string
	Lat    float64
	Lng    float64
}

// ExpireUnknown is the display string used when the feed reports no
// expiration timestamp for a sighting.
const ExpireUnknown = "Can't Find Expire Time"

// HistoryEntry records one sighting that has already been announced to a
// user. Dedup matches on the exact (Subject, Lat, Lng, Expire) tuple.
type HistoryEntry struct {
	ChatID      int64
	Subject     string
	Lat         float64
	Lng         float64
	Expire      string
	AnnouncedAt time.Time
}

// Geofence is a named axis-aligned bounding box used to label coordinates
// with a human-meaningful place name.
type Geofence struct {
	ID        int64
	Name      string
	MinLat    float64
	MaxLat    float64
	MinLng    float64
	MaxLng    float64
	CreatedAt time.Time
}

// Contains reports whether the point lies within the box, bounds inclusive.
func (g Geofence) Contains(lat, lng float64) bool {
	return g.MinLat <= lat && lat <= g.MaxLat &&
		g.MinLng <= lng && lng <= g.MaxLng
}
