// Package upstream fetches radar imagery, frame series and forecasts
// from the imagery backend over HTTP, with retry, exponential backoff
// and a circuit breaker on the transport.
package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nexview/radarsync/internal/radar"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// Client talks to the radar imagery backend. It implements
// radar.ImageFetcher, radar.SeriesFetcher and radar.ForecastFetcher.
type Client struct {
	baseURL string
	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "radar-upstream",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: cb,
	}
}

// framePayload mirrors one frame object in upstream responses.
type framePayload struct {
	Image       string       `json:"image"`
	Timestamp   string       `json:"timestamp"`
	Bounds      radar.Bounds `json:"bounds"`
	LeadTimeMin int          `json:"lead_time_min"`
	IsForecast  bool         `json:"is_forecast"`
}

// FetchImage returns the latest single frame for a source.
func (c *Client) FetchImage(ctx context.Context, code string, field radar.Field) (radar.Frame, error) {
	values := url.Values{}
	values.Set("field", string(field))

	var payload struct {
		framePayload
		Error string `json:"error"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/radar/%s", code), values, &payload); err != nil {
		return radar.Frame{}, err
	}
	if payload.Error != "" || payload.Image == "" {
		// The backend answered but had nothing to render.
		return radar.Frame{}, fmt.Errorf("%w: %s", radar.ErrEmptyResult, orUnavailable(payload.Error))
	}
	return decodeFrame(code, field, payload.framePayload)
}

// FetchSeries returns up to count recent frames for a source, oldest
// first.
func (c *Client) FetchSeries(ctx context.Context, code string, field radar.Field, count int) ([]radar.Frame, error) {
	values := url.Values{}
	values.Set("field", string(field))
	values.Set("frames", strconv.Itoa(count))

	var payload struct {
		Frames []framePayload `json:"frames"`
		Error  string         `json:"error"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/radar/%s/animation", code), values, &payload); err != nil {
		return nil, err
	}
	return decodeFrames(code, field, payload.Frames, payload.Error)
}

// FetchForecast returns extrapolated frames for a source, ordered by
// lead time.
func (c *Client) FetchForecast(ctx context.Context, code string, field radar.Field, leadTimes, stepMinutes int) ([]radar.Frame, error) {
	values := url.Values{}
	values.Set("field", string(field))
	values.Set("lead_times", strconv.Itoa(leadTimes))
	values.Set("timestep_min", strconv.Itoa(stepMinutes))

	var payload struct {
		Frames []framePayload `json:"frames"`
		Error  string         `json:"error"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/radar/%s/forecast", code), values, &payload); err != nil {
		return nil, err
	}

	frames, err := decodeFrames(code, field, payload.Frames, payload.Error)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		frames[i].IsForecast = true
	}
	return frames, nil
}

func decodeFrames(code string, field radar.Field, payloads []framePayload, upstreamErr string) ([]radar.Frame, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: %s", radar.ErrEmptyResult, orUnavailable(upstreamErr))
	}

	frames := make([]radar.Frame, 0, len(payloads))
	for _, p := range payloads {
		f, err := decodeFrame(code, field, p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func decodeFrame(code string, field radar.Field, p framePayload) (radar.Frame, error) {
	img, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		return radar.Frame{}, fmt.Errorf("decode image for %s: %w", code, err)
	}

	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return radar.Frame{}, fmt.Errorf("parse timestamp for %s: %w", code, err)
	}

	return radar.Frame{
		SourceCode:      code,
		Field:           field,
		Timestamp:       ts,
		Image:           img,
		Bounds:          p.Bounds,
		LeadTimeMinutes: p.LeadTimeMin,
		IsForecast:      p.IsForecast,
	}, nil
}

// parseTimestamp accepts RFC3339 or the backend's bare layout.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func orUnavailable(msg string) string {
	if msg == "" {
		return "no frames available"
	}
	return msg
}

// getJSON executes a GET with retries, exponential backoff and the
// circuit breaker, then decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	var attempt int

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode()), nil)
		if err != nil {
			return err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return resp, nil
		})

		if err == nil {
			resp := result.(*http.Response)
			defer resp.Body.Close()
			if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
				return fmt.Errorf("decode upstream response: %w", decErr)
			}
			return nil
		}

		// An open circuit propagates immediately, no point retrying.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= c.backoff.MaxRetries {
			return err
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}
