// Package geocode resolves coordinates to addresses and back.
package geocode

import (
	"context"
	"errors"
)

// ErrNoResult is returned when the provider has no usable result for the
// query. Callers fall back to raw coordinates.
var ErrNoResult = errors.New("no geocoding result")

// Place is a resolved address.
type Place struct {
	FormattedAddress string
	Lat              float64
	Lng              float64
}

// Geocoder resolves coordinates and free-form addresses.
type Geocoder interface {
	// Reverse returns the formatted address for a coordinate.
	Reverse(ctx context.Context, lat, lng float64) (string, error)
	// Forward resolves a free-form address to a place.
	Forward(ctx context.Context, address string) (*Place, error)
}

// Disabled is a Geocoder that never resolves anything. Used when no API key
// is configured.
type Disabled struct{}

// Reverse always reports no result.
func (Disabled) Reverse(context.Context, float64, float64) (string, error) {
	return "", ErrNoResult
}

// Forward always reports no result.
func (Disabled) Forward(context.Context, string) (*Place, error) {
	return nil, ErrNoResult
}
