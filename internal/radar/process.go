package radar

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/C0okiesl/KopiRadar/internal/feed"
)

// processEvents turns a decoded feed response into the outbound digest for
// one chat. Events are handled in feed order. An empty string means nothing
// new to report.
func (s *Service) processEvents(ctx context.Context, chatID int64, events []feed.Event) string {
	filterOn := s.cache.filterOn(chatID)
	exclude := make(map[string]struct{})
	for _, name := range s.cache.filterTerms(chatID) {
		exclude[name] = struct{}{}
	}

	var blocks strings.Builder
	var summary strings.Builder

	for _, e := range events {
		if e.Kind == feed.KindUnrecognized {
			continue
		}

		subject := e.Subject
		if filterOn {
			if _, excluded := exclude[strings.ToLower(subject)]; excluded {
				// Excluded events are suppressed before any history write,
				// so turning the filter off later can still announce them.
				s.log.Debug("subject excluded by filter", "chat_id", chatID, "subject", subject)
				continue
			}
		}

		if !e.HasCoord {
			continue
		}

		expire := e.ExpireText()

		seen, err := s.store.HasAnnounced(ctx, chatID, subject, e.Lat, e.Lng, expire)
		if err != nil {
			s.log.Error("check history", "chat_id", chatID, "subject", subject, "error", err)
			continue
		}
		if seen {
			s.log.Debug("already announced", "chat_id", chatID, "subject", subject, "expire", expire)
			continue
		}

		if err := s.store.RecordAnnounced(ctx, chatID, subject, e.Lat, e.Lng, expire); err != nil {
			// Announcing without a durable record risks a repeat
			// notification next cycle; skip until the write succeeds.
			s.log.Error("record announced", "chat_id", chatID, "subject", subject, "error", err)
			continue
		}

		blocks.WriteString(s.formatBlock(ctx, subject, expire, e.Lat, e.Lng))
		summary.WriteString(strings.ToUpper(subject))
		summary.WriteString(" ")
	}

	if blocks.Len() == 0 {
		return ""
	}
	return summary.String() + "\n\n" + blocks.String()
}

func (s *Service) formatBlock(ctx context.Context, subject, expire string, lat, lng float64) string {
	address, err := s.geo.Reverse(ctx, lat, lng)
	if err != nil {
		s.log.Debug("reverse geocode unavailable", "lat", lat, "lng", lng, "error", err)
		address = coordText(lat, lng)
	}

	mapLink := "https://www.google.com/maps/place/" + floatText(lat) + "," + floatText(lng)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n%s\n%s\n", subject, expire, address, mapLink)

	fence, inFence, err := s.fences.Classify(ctx, lat, lng)
	if err != nil {
		s.log.Error("classify geofence", "lat", lat, "lng", lng, "error", err)
		inFence = false
	}
	if inFence {
		b.WriteString(strings.ToUpper(fence))
		b.WriteString("\n\n")
	} else {
		b.WriteString(coordText(lat, lng))
		b.WriteString("\n\n")
	}
	return b.String()
}

func coordText(lat, lng float64) string {
	return "(" + floatText(lat) + "," + floatText(lng) + ")"
}

func floatText(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
