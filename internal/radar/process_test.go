package radar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/C0okiesl/KopiRadar/internal/feed"
	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/geofence"
	"github.com/C0okiesl/KopiRadar/internal/model"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

type stubGeocoder struct {
	address string
}

func (s stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	if s.address == "" {
		return "", geocode.ErrNoResult
	}
	return s.address, nil
}

func (s stubGeocoder) Forward(context.Context, string) (*geocode.Place, error) {
	return nil, geocode.ErrNoResult
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, geo geocode.Geocoder) (*Service, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fences := geofence.New(store, 0.003)
	cfg := Config{DefaultLat: 1.3490515, DefaultLng: 103.9414295, HistoryRetention: 7 * 24 * time.Hour}
	svc := New(store, nil, geo, fences, cfg, discardLogger())
	return svc, store
}

func subjectEvent(name string, lat, lng float64) feed.Event {
	return feed.Event{Kind: feed.KindSubject, Subject: name, Lat: lat, Lng: lng, HasCoord: true}
}

func TestProcessExcludeScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := svc.AddFilterTerms(ctx, 100, []string{"pidgey"}); err != nil {
		t.Fatalf("add filter terms: %v", err)
	}
	if err := svc.SetFilterSwitch(ctx, 100, true); err != nil {
		t.Fatalf("set filter switch: %v", err)
	}

	events := []feed.Event{
		subjectEvent("pidgey", 1.30, 103.80),
		subjectEvent("eevee", 1.31, 103.81),
	}

	got := svc.processEvents(ctx, 100, events)

	want := "EEVEE \n\n" +
		"eevee: Can't Find Expire Time\n" +
		"(1.31,103.81)\n" +
		"https://www.google.com/maps/place/1.31,103.81\n" +
		"(1.31,103.81)\n\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("digest mismatch (-want +got):\n%s", diff)
	}

	// excluded events never touch the history ledger
	seen, err := store.HasAnnounced(ctx, 100, "pidgey", 1.30, 103.80, model.ExpireUnknown)
	if err != nil {
		t.Fatalf("has announced: %v", err)
	}
	if seen {
		t.Error("pidgey should not be recorded while excluded")
	}
	seen, err = store.HasAnnounced(ctx, 100, "eevee", 1.31, 103.81, model.ExpireUnknown)
	if err != nil {
		t.Fatalf("has announced: %v", err)
	}
	if !seen {
		t.Error("eevee should be recorded")
	}
}

func TestProcessDedupSuppression(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	events := []feed.Event{
		subjectEvent("eevee", 1.31, 103.81),
		subjectEvent("snorlax", 1.29, 103.78),
	}

	first := svc.processEvents(ctx, 100, events)
	if first == "" {
		t.Fatal("expected digest on first pass")
	}

	second := svc.processEvents(ctx, 100, events)
	if second != "" {
		t.Errorf("expected empty digest on repeat pass, got %q", second)
	}
}

func TestProcessDedupIsPerUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	for _, chatID := range []int64{100, 200} {
		if err := svc.EnsureUser(ctx, chatID); err != nil {
			t.Fatalf("ensure user %d: %v", chatID, err)
		}
	}

	events := []feed.Event{subjectEvent("eevee", 1.31, 103.81)}

	if got := svc.processEvents(ctx, 100, events); got == "" {
		t.Fatal("expected digest for first user")
	}
	if got := svc.processEvents(ctx, 200, events); got == "" {
		t.Error("second user should still be notified")
	}
}

func TestProcessFilterOffAnnouncesExcluded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := svc.AddFilterTerms(ctx, 100, []string{"pidgey"}); err != nil {
		t.Fatalf("add filter terms: %v", err)
	}
	// filter switch stays off

	got := svc.processEvents(ctx, 100, []feed.Event{subjectEvent("pidgey", 1.30, 103.80)})
	if !strings.Contains(got, "pidgey:") {
		t.Errorf("expected pidgey announced with filter off, got %q", got)
	}
}

func TestProcessExcludeIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := svc.AddFilterTerms(ctx, 100, []string{"Pidgey"}); err != nil {
		t.Fatalf("add filter terms: %v", err)
	}
	if err := svc.SetFilterSwitch(ctx, 100, true); err != nil {
		t.Fatalf("set filter switch: %v", err)
	}

	got := svc.processEvents(ctx, 100, []feed.Event{subjectEvent("PIDGEY", 1.30, 103.80)})
	if got != "" {
		t.Errorf("expected excluded digest to be empty, got %q", got)
	}
}

func TestProcessSkipsUnusableEvents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	events := []feed.Event{
		{Kind: feed.KindUnrecognized},
		{Kind: feed.KindSubject, Subject: "zubat"}, // no coordinates
	}
	if got := svc.processEvents(ctx, 100, events); got != "" {
		t.Errorf("expected empty digest, got %q", got)
	}
}

func TestProcessGeofenceLine(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if _, err := svc.Fences().Register(ctx, "sp20", 1.2869952, 103.7818955); err != nil {
		t.Fatalf("register fence: %v", err)
	}

	got := svc.processEvents(ctx, 100, []feed.Event{subjectEvent("eevee", 1.2870, 103.7819)})
	if !strings.Contains(got, "SP20\n") {
		t.Errorf("expected upper-cased fence name in digest, got %q", got)
	}
}

func TestProcessReverseGeocodedAddress(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, stubGeocoder{address: "20 Science Park Dr, Singapore"})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	got := svc.processEvents(ctx, 100, []feed.Event{subjectEvent("eevee", 1.2870, 103.7819)})
	if !strings.Contains(got, "20 Science Park Dr, Singapore\n") {
		t.Errorf("expected geocoded address line, got %q", got)
	}
}

func TestProcessLureEvent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, geocode.Disabled{})

	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	expireMs := int64(1483228800000)
	events := []feed.Event{
		{Kind: feed.KindLure, Subject: "snorlax", Lat: 1.29, Lng: 103.78, HasCoord: true, HasExpiry: true, ExpireMs: expireMs},
	}

	got := svc.processEvents(ctx, 100, events)
	wantHeader := fmt.Sprintf("snorlax: %s\n", time.UnixMilli(expireMs).Format("2006-01-02 15:04:05"))
	if !strings.Contains(got, wantHeader) {
		t.Errorf("expected header %q in digest %q", wantHeader, got)
	}
	if !strings.HasPrefix(got, "SNORLAX ") {
		t.Errorf("expected summary line to lead digest, got %q", got)
	}
}
