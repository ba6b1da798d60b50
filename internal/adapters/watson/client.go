// internal/adapters/watson/client.go
package watson

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_tones/internal/adapters/observability"
	"hotel_tones/internal/domain"
)

const (
	DefaultBaseURL = "https://gateway-lon.watsonplatform.net/tone-analyzer/api"
	DefaultVersion = "2016-05-19"
)

type Client struct {
	base    string
	version string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
}

func New(base, version, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		version: version,
		hc:      &http.Client{Timeout: 30 * time.Second},
		key:     key,
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Version is the tone service API version this client pins.
func (c *Client) Version() string { return c.version }

// APIError is a non-success answer from the tone service.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tone service status %d: %s", e.Code, e.Message)
}

var ErrEmptyText = errors.New("watson: empty text")

// Tone analyzes a whole document. Sentence-level output is switched off.
func (c *Client) Tone(ctx context.Context, text string) (domain.ToneResponse, error) {
	var out domain.ToneResponse
	if strings.TrimSpace(text) == "" {
		return out, ErrEmptyText
	}
	q := url.Values{}
	q.Set("version", c.version)
	q.Set("sentences", "false")
	u := c.base + "/v3/tone?" + q.Encode()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return out, err
	}
	return out, c.post(ctx, u, body, &out)
}

// post sends JSON with client-side rate limiting and retries, decoding into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) post(ctx context.Context, u string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.SetBasicAuth("apikey", c.key)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotel-tones/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("watson", "tone", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("watson", "tone", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode tone response: %w", err)
			}
			return nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			lastErr = apiError(resp)
			if wait == 0 {
				wait = backoff(i)
			}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return apiError(resp)
		}
	}

	return lastErr
}

// apiError reads the service error body ({"code":…,"error":…}) and closes it.
func apiError(resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	e := &APIError{Code: resp.StatusCode}
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"description"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		e.Message = payload.Error
		if payload.Description != "" {
			e.Message += ": " + payload.Description
		}
	} else {
		e.Message = strings.TrimSpace(string(b))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
