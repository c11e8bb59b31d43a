// Package geofence manages named bounding boxes and classifies coordinates.
package geofence

import (
	"context"
	"fmt"

	"github.com/C0okiesl/KopiRadar/internal/model"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

// Registry stores named rectangular regions. Boxes are computed as
// center ± radius on both axes; classification uses inclusive bounds.
type Registry struct {
	store  storage.Storage
	radius float64
}

// New creates a Registry with the given classification radius.
func New(store storage.Storage, radius float64) *Registry {
	return &Registry{store: store, radius: radius}
}

// Register stores a geofence centered on the coordinate.
func (r *Registry) Register(ctx context.Context, name string, centerLat, centerLng float64) (*model.Geofence, error) {
	if name == "" {
		return nil, fmt.Errorf("geofence name is required")
	}

	g := &model.Geofence{
		Name:   name,
		MinLat: centerLat - r.radius,
		MaxLat: centerLat + r.radius,
		MinLng: centerLng - r.radius,
		MaxLng: centerLng + r.radius,
	}
	if err := r.store.AddGeofence(ctx, g); err != nil {
		return nil, fmt.Errorf("add geofence %q: %w", name, err)
	}
	return g, nil
}

// Unregister removes a geofence by exact name. Returns storage.ErrNotFound
// when no such geofence exists.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	return r.store.RemoveGeofence(ctx, name)
}

// Classify returns the name of the first registered geofence containing the
// point, in registration order. The second return is false when no geofence
// contains it.
func (r *Registry) Classify(ctx context.Context, lat, lng float64) (string, bool, error) {
	fences, err := r.store.ListGeofences(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list geofences: %w", err)
	}
	for _, g := range fences {
		if g.Contains(lat, lng) {
			return g.Name, true, nil
		}
	}
	return "", false, nil
}

// Names returns all registered geofence names in registration order.
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	fences, err := r.store.ListGeofences(ctx)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	var names []string
	for _, g := range fences {
		names = append(names, g.Name)
	}
	return names, nil
}
