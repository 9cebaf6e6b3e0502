package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nexview/radarsync/internal/overlay"
	"github.com/nexview/radarsync/internal/player"
	"github.com/nexview/radarsync/internal/prefs"
	"github.com/nexview/radarsync/internal/radar"
	"github.com/nexview/radarsync/internal/source"
	"github.com/nexview/radarsync/internal/view"
)

// stubRadar answers every fetch path; set failAll to simulate a dead
// upstream.
type stubRadar struct {
	failAll bool
}

func (s *stubRadar) frame(code string) radar.Frame {
	return radar.Frame{
		SourceCode: code,
		Field:      radar.FieldReflectivity,
		Timestamp:  time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Image:      []byte("png"),
	}
}

func (s *stubRadar) FetchImage(_ context.Context, code string, _ radar.Field) (radar.Frame, error) {
	if s.failAll {
		return radar.Frame{}, errors.New("upstream down")
	}
	return s.frame(code), nil
}

func (s *stubRadar) FetchSeries(_ context.Context, code string, _ radar.Field, n int) ([]radar.Frame, error) {
	if s.failAll {
		return nil, errors.New("upstream down")
	}
	return []radar.Frame{s.frame(code)}, nil
}

func (s *stubRadar) FetchForecast(_ context.Context, code string, _ radar.Field, _, _ int) ([]radar.Frame, error) {
	if s.failAll {
		return nil, errors.New("upstream down")
	}
	f := s.frame(code)
	f.IsForecast = true
	f.LeadTimeMinutes = 5
	return []radar.Frame{f}, nil
}

func (s *stubRadar) FetchCached(_ context.Context, _ radar.SlotFile, _ radar.Field) (radar.Frame, error) {
	return radar.Frame{}, errors.New("cache miss")
}

func (s *stubRadar) Slots(context.Context) ([]radar.TimelineSlot, error) {
	return nil, nil
}

func newTestApp(t *testing.T, stub *stubRadar) *fiber.App {
	t.Helper()

	catalog, err := source.Load()
	if err != nil {
		t.Fatalf("catalog load failed: %v", err)
	}
	store, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatalf("prefs open failed: %v", err)
	}

	surface := overlay.NewMemorySurface()
	reg := overlay.NewRegistry(surface, 0.8)
	pl := player.New(reg, time.Hour)
	t.Cleanup(pl.Stop)

	sess := view.NewSession(catalog, reg, surface, pl, view.Fetchers{
		Image:    stub,
		Series:   stub,
		Forecast: stub,
		Cached:   stub,
		Index:    stub,
	}, nil, view.Config{})

	app := fiber.New()
	RegisterRoutes(app, Deps{Session: sess, Catalog: catalog, Prefs: store})
	return app
}

func TestHealthAndStations(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/stations", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestLoadSourceEndpoint(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/view/sources/KOKX", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	// Unknown station maps to 404.
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/view/sources/XXXX", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	// Bad field query maps to 400.
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/view/sources/KOKX?field=temperature", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestAnimationValidation(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	// Missing station list should return 400.
	req := httptest.NewRequest(http.MethodPost, "/api/view/animation", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Unknown field value should also return 400.
	req = httptest.NewRequest(http.MethodPost, "/api/view/animation",
		strings.NewReader(`{"stations":["KOKX"],"field":"temperature"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestAnimationUpstreamFailure(t *testing.T) {
	app := newTestApp(t, &stubRadar{failAll: true})

	req := httptest.NewRequest(http.MethodPost, "/api/view/animation",
		strings.NewReader(`{"stations":["KOKX","KDIX"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestShapeValidation(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	req := httptest.NewRequest(http.MethodPost, "/api/view/shape",
		strings.NewReader(`{"type":"triangle"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Circle without a radius is rejected even though the type is known.
	req = httptest.NewRequest(http.MethodPost, "/api/view/shape",
		strings.NewReader(`{"type":"circle","center":{"lat":40.8,"lon":-72.8}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	req := httptest.NewRequest(http.MethodPost, "/api/preferences/station",
		strings.NewReader(`{"station":"KAMX"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/preferences", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestMutatingEndpointsReturnViewState(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	type stateBody struct {
		Count  int `json:"count"`
		Player struct {
			Mode    string `json:"mode"`
			Playing bool   `json:"playing"`
		} `json:"player"`
		Selection []string `json:"selection"`
	}

	req := httptest.NewRequest(http.MethodPost, "/api/view/animation",
		strings.NewReader(`{"stations":["KOKX","KDIX"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var state stateBody
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if state.Player.Mode != "normal" || !state.Player.Playing {
		t.Fatalf("expected playing animation in view state, got %+v", state.Player)
	}
	if state.Count != 2 {
		t.Fatalf("expected both layers in view state, got %d", state.Count)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/view/shape",
		strings.NewReader(`{"type":"circle","center":{"lat":40.8655,"lon":-72.8637},"radiusMeters":1000}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	state = stateBody{}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(state.Selection) != 1 || state.Selection[0] != "KOKX" {
		t.Fatalf("expected selection in view state, got %v", state.Selection)
	}
}

func TestTimelineUnknownSlot(t *testing.T) {
	app := newTestApp(t, &stubRadar{})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/timeline/nope/load", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
