// Package feed queries the sighting feed and decodes its responses.
package feed

import (
	"encoding/json"
	"time"

	"github.com/C0okiesl/KopiRadar/internal/model"
)

// EventKind classifies a raw feed record.
type EventKind string

// Kinds assigned during decoding.
const (
	KindSubject      EventKind = "subject"
	KindLure         EventKind = "lure"
	KindUnrecognized EventKind = "unrecognized"
)

// Event is the fixed internal shape a raw feed record is decoded into.
// Unrecognized records, and records without coordinates, carry no usable
// payload beyond their kind.
type Event struct {
	Kind      EventKind
	Subject   string
	Lat       float64
	Lng       float64
	ExpireMs  int64
	HasCoord  bool
	HasExpiry bool
}

// ExpireText renders the event's expiration for display, in local time.
func (e Event) ExpireText() string {
	if !e.HasExpiry {
		return model.ExpireUnknown
	}
	return time.UnixMilli(e.ExpireMs).Format("2006-01-02 15:04:05")
}

// Response is a decoded feed payload.
type Response struct {
	Events []Event
}

type rawRecord struct {
	PokemonID             string    `json:"pokemon_id"`
	Latitude              *float64  `json:"latitude"`
	Longitude             *float64  `json:"longitude"`
	ExpirationTimestampMs *int64    `json:"expiration_timestamp_ms"`
	LureInfo              *lureInfo `json:"lure_info"`
}

type lureInfo struct {
	ActivePokemonID string `json:"active_pokemon_id"`
}

type rawResponse struct {
	Result *[]rawRecord `json:"result"`
}

// Decode parses a feed body. A body is well-formed only when it is valid
// JSON carrying a "result" field; anything else returns false so the caller
// can retry.
func Decode(body []byte) (*Response, bool) {
	if len(body) == 0 {
		return nil, false
	}
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false
	}
	if raw.Result == nil {
		return nil, false
	}

	resp := &Response{}
	for _, r := range *raw.Result {
		resp.Events = append(resp.Events, classify(r))
	}
	return resp, true
}

func classify(r rawRecord) Event {
	e := Event{Kind: KindUnrecognized}

	switch {
	case r.PokemonID != "":
		e.Kind = KindSubject
		e.Subject = r.PokemonID
	case r.LureInfo != nil && r.LureInfo.ActivePokemonID != "":
		e.Kind = KindLure
		e.Subject = r.LureInfo.ActivePokemonID
	default:
		return e
	}

	if r.Latitude != nil && r.Longitude != nil {
		e.HasCoord = true
		e.Lat = *r.Latitude
		e.Lng = *r.Longitude
	}
	if r.ExpirationTimestampMs != nil {
		e.HasExpiry = true
		e.ExpireMs = *r.ExpirationTimestampMs
	}
	return e
}
