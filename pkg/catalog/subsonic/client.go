// Package subsonic implements the catalog client against the Subsonic REST
// API (Navidrome and compatible servers). Requests use salted-MD5 token
// authentication, responses are cached with a TTL, transient failures are
// retried with exponential backoff behind a circuit breaker.
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mveroni/cadenza/pkg/catalog"
)

const apiVersion = "1.16.1"

// Config for the Subsonic client.
type Config struct {
	// BaseURL of the server, e.g. "http://localhost:4533". The /rest/
	// suffix is appended automatically.
	BaseURL    string
	Username   string
	Password   string
	ClientName string

	// Timeout per HTTP request.
	Timeout time.Duration

	// RetryAttempts is the number of tries per request (minimum 1).
	RetryAttempts int

	// CacheTTL for GET responses. Zero disables the cache.
	CacheTTL time.Duration

	// RequestHook, when set, observes every completed API request with a
	// status of "ok" or "error". Cache hits are not reported.
	RequestHook func(endpoint, status string)
}

// Stats is a snapshot of the client's counters.
type Stats struct {
	Requests        uint64
	Errors          uint64
	CacheHits       uint64
	AvgResponseTime time.Duration
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// Client talks to a Subsonic-compatible server.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	stats Stats
}

var _ catalog.Client = (*Client)(nil)

// New creates a client. The connection is not verified; call Ping for that.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "cadenza"
	}

	base := strings.TrimRight(cfg.BaseURL, "/") + "/rest/"

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "subsonic",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("catalog circuit breaker state change",
				"from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     log,
		cache:   make(map[string]cacheEntry),
	}
}

// authParams returns the token auth query parameters with a fresh salt.
func (c *Client) authParams() url.Values {
	salt := make([]byte, 8)
	rand.Read(salt)
	saltHex := hex.EncodeToString(salt)

	sum := md5.Sum([]byte(c.cfg.Password + saltHex))

	v := url.Values{}
	v.Set("u", c.cfg.Username)
	v.Set("t", hex.EncodeToString(sum[:]))
	v.Set("s", saltHex)
	v.Set("v", apiVersion)
	v.Set("c", c.cfg.ClientName)
	v.Set("f", "json")
	return v
}

// cacheKey hashes the endpoint plus the sorted non-auth parameters so the
// per-request salt does not defeat caching.
func cacheKey(endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Get(k))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// get performs a GET against endpoint with retries, breaker and cache, and
// returns the raw response body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := cacheKey(endpoint, params)

	if c.cfg.CacheTTL > 0 {
		c.mu.Lock()
		if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expires) {
			c.stats.CacheHits++
			c.mu.Unlock()
			return entry.body, nil
		}
		c.mu.Unlock()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.doOnce(ctx, endpoint, params)
		if err == nil {
			if c.cfg.CacheTTL > 0 {
				c.mu.Lock()
				c.cache[key] = cacheEntry{body: body, expires: time.Now().Add(c.cfg.CacheTTL)}
				c.mu.Unlock()
			}
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	q := c.authParams()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	reqURL := c.baseURL + endpoint + "?" + q.Encode()

	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("subsonic: build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("subsonic: %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("subsonic: %s: unexpected status %d", endpoint, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("subsonic: %s: read body: %w", endpoint, err)
		}
		return body, nil
	})

	c.mu.Lock()
	c.stats.Requests++
	c.stats.AvgResponseTime = time.Duration(
		float64(c.stats.AvgResponseTime)*0.9 + float64(time.Since(start))*0.1)
	c.mu.Unlock()

	if c.cfg.RequestHook != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.cfg.RequestHook(endpoint, status)
	}

	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// StreamURL builds the playback URL for a song, including auth parameters.
func (c *Client) StreamURL(songID string) string {
	q := c.authParams()
	q.Set("id", songID)
	return c.baseURL + "stream.view?" + q.Encode()
}

// CoverArtURL builds the cover art URL for an entity. size 0 means the
// server default.
func (c *Client) CoverArtURL(id string, size int) string {
	q := c.authParams()
	q.Set("id", id)
	if size > 0 {
		q.Set("size", fmt.Sprint(size))
	}
	return c.baseURL + "getCoverArt.view?" + q.Encode()
}

// InvalidateCache drops all cached responses.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
