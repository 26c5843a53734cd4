package subsonic_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mveroni/cadenza/pkg/catalog/subsonic"
)

const password = "sesame"

func okBody(inner string) string {
	if inner == "" {
		return `{"subsonic-response":{"status":"ok","version":"1.16.1"}}`
	}
	return fmt.Sprintf(`{"subsonic-response":{"status":"ok","version":"1.16.1",%s}}`, inner)
}

func newClient(t *testing.T, handler http.Handler, ttl time.Duration) (*subsonic.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := subsonic.New(subsonic.Config{
		BaseURL:       srv.URL,
		Username:      "admin",
		Password:      password,
		ClientName:    "cadenza-test",
		RetryAttempts: 1,
		CacheTTL:      ttl,
	}, nil)
	return c, srv
}

func TestClient_TokenAuth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		salt := q.Get("s")
		if salt == "" {
			t.Error("missing salt")
		}
		sum := md5.Sum([]byte(password + salt))
		if got := q.Get("t"); got != hex.EncodeToString(sum[:]) {
			t.Errorf("token mismatch: got %s", got)
		}
		if q.Get("u") != "admin" || q.Get("f") != "json" || q.Get("v") != "1.16.1" {
			t.Errorf("unexpected auth params: %v", q)
		}
		fmt.Fprint(w, okBody(""))
	})
	c, _ := newClient(t, handler, 0)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestClient_SaltsAreDistinct(t *testing.T) {
	var salts []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		salts = append(salts, r.URL.Query().Get("s"))
		fmt.Fprint(w, okBody(""))
	})
	c, _ := newClient(t, handler, 0)

	for i := 0; i < 3; i++ {
		if err := c.Ping(context.Background()); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
	}
	seen := map[string]bool{}
	for _, s := range salts {
		if seen[s] {
			t.Fatalf("salt reused: %s", s)
		}
		seen[s] = true
	}
}

func TestClient_CacheWithinTTL(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, okBody(`"genres":{"genre":[{"value":"Rock","songCount":10,"albumCount":2}]}`))
	})
	c, _ := newClient(t, handler, time.Minute)

	for i := 0; i < 3; i++ {
		genres, err := c.Genres(context.Background())
		if err != nil {
			t.Fatalf("genres: %v", err)
		}
		if len(genres) != 1 || genres[0].Name != "Rock" {
			t.Fatalf("genres: got %+v", genres)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits with warm cache: got %d, want 1", got)
	}
	if got := c.Stats().CacheHits; got != 2 {
		t.Errorf("cache hits: got %d, want 2", got)
	}
}

func TestClient_CacheKeyIncludesParams(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, okBody(`"album":{"id":"a1","name":"X","song":[]}`))
	})
	c, _ := newClient(t, handler, time.Minute)

	if _, err := c.AlbumSongs(context.Background(), "a1"); err != nil {
		t.Fatalf("album a1: %v", err)
	}
	if _, err := c.AlbumSongs(context.Background(), "a2"); err != nil {
		t.Fatalf("album a2: %v", err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("server hits for distinct ids: got %d, want 2", got)
	}
}

func TestClient_NotFoundIsNilNotError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response":{"status":"failed","error":{"code":70,"message":"not found"}}}`)
	})
	c, _ := newClient(t, handler, 0)

	songs, err := c.AlbumSongs(context.Background(), "missing")
	if err != nil {
		t.Fatalf("not-found must not error: %v", err)
	}
	if songs != nil {
		t.Errorf("songs: got %+v, want nil", songs)
	}
}

func TestClient_OtherAPIErrorsSurface(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response":{"status":"failed","error":{"code":40,"message":"wrong credentials"}}}`)
	})
	c, _ := newClient(t, handler, 0)

	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *subsonic.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 40 {
		t.Errorf("error: got %v", err)
	}
}

func TestClient_SearchParsesAllKinds(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okBody(`"searchResult3":{
			"artist":[{"id":"ar1","name":"Beethoven","albumCount":3}],
			"album":[{"id":"al1","name":"Symphonies","artist":"Beethoven","artistId":"ar1"}],
			"song":[{"id":"s1","title":"Ode to Joy","artist":"Beethoven","artistId":"ar1","albumId":"al1"}]}`))
	})
	c, _ := newClient(t, handler, 0)

	res, err := c.Search(context.Background(), "beethoven", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Artists) != 1 || res.Artists[0].Name != "Beethoven" {
		t.Errorf("artists: got %+v", res.Artists)
	}
	if len(res.Albums) != 1 || res.Albums[0].ArtistID != "ar1" {
		t.Errorf("albums: got %+v", res.Albums)
	}
	if len(res.Songs) != 1 || res.Songs[0].Title != "Ode to Joy" {
		t.Errorf("songs: got %+v", res.Songs)
	}
}

func TestClient_ArtistsFlattenIndexes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okBody(`"artists":{"index":[
			{"name":"B","artist":[{"id":"1","name":"Beethoven"}]},
			{"name":"M","artist":[{"id":"2","name":"Mozart"},{"id":"3","name":"Mahler"}]}]}`))
	})
	c, _ := newClient(t, handler, 0)

	artists, err := c.Artists(context.Background())
	if err != nil {
		t.Fatalf("artists: %v", err)
	}
	if len(artists) != 3 {
		t.Fatalf("artists: got %d, want 3", len(artists))
	}
	if artists[2].Name != "Mahler" {
		t.Errorf("order: got %+v", artists)
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, okBody(""))
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := subsonic.New(subsonic.Config{
		BaseURL:       srv.URL,
		Username:      "admin",
		Password:      password,
		RetryAttempts: 3,
	}, nil)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping after retry: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("attempts: got %d, want 2", got)
	}
}

func TestClient_RequestHookReportsStatus(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, okBody(""))
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var statuses []string
	c := subsonic.New(subsonic.Config{
		BaseURL:       srv.URL,
		Username:      "admin",
		Password:      password,
		RetryAttempts: 2,
		RequestHook: func(endpoint, status string) {
			if endpoint != "ping.view" {
				t.Errorf("endpoint: got %s, want ping.view", endpoint)
			}
			statuses = append(statuses, status)
		},
	}, nil)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping after retry: %v", err)
	}
	if len(statuses) != 2 || statuses[0] != "error" || statuses[1] != "ok" {
		t.Errorf("hook statuses: got %v, want [error ok]", statuses)
	}
}

func TestClient_StreamURLCarriesAuth(t *testing.T) {
	c := subsonic.New(subsonic.Config{
		BaseURL:  "http://example.test",
		Username: "admin",
		Password: password,
	}, nil)

	u := c.StreamURL("song42")
	for _, want := range []string{"/rest/stream.view?", "id=song42", "u=admin", "t=", "s="} {
		if !strings.Contains(u, want) {
			t.Errorf("stream url missing %q: %s", want, u)
		}
	}
}
