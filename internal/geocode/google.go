package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const googleEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Google is a Geocoder backed by the Google Maps Geocoding API.
type Google struct {
	client   HTTPClient
	key      string
	endpoint string
}

// NewGoogle creates a Google geocoder with the given API key.
func NewGoogle(client HTTPClient, key string) *Google {
	return &Google{client: client, key: key, endpoint: googleEndpoint}
}

// NewGoogleWithEndpoint creates a Google geocoder against a custom endpoint
// (useful for testing).
func NewGoogleWithEndpoint(client HTTPClient, key, endpoint string) *Google {
	return &Google{client: client, key: key, endpoint: endpoint}
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Reverse returns the formatted address of the best result for a coordinate.
func (g *Google) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))

	resp, err := g.lookup(ctx, q)
	if err != nil {
		return "", err
	}
	if resp.Results[0].FormattedAddress == "" {
		return "", ErrNoResult
	}
	return resp.Results[0].FormattedAddress, nil
}

// Forward resolves a free-form address to its best-matching place.
func (g *Google) Forward(ctx context.Context, address string) (*Place, error) {
	q := url.Values{}
	q.Set("address", address)

	resp, err := g.lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	best := resp.Results[0]
	if best.FormattedAddress == "" {
		return nil, ErrNoResult
	}
	return &Place{
		FormattedAddress: best.FormattedAddress,
		Lat:              best.Geometry.Location.Lat,
		Lng:              best.Geometry.Location.Lng,
	}, nil
}

func (g *Google) lookup(ctx context.Context, q url.Values) (*googleResponse, error) {
	q.Set("key", g.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, ErrNoResult
	}
	return &resp, nil
}
