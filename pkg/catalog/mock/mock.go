// Package mock provides an in-memory catalog client for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/mveroni/cadenza/pkg/catalog"
)

// Client serves catalog queries from in-memory slices. The zero value is an
// empty catalog.
type Client struct {
	mu sync.Mutex

	ArtistList   []catalog.Artist
	AlbumList    []catalog.Album
	SongList     []catalog.Song
	PlaylistList []catalog.Playlist
	GenreList    []catalog.Genre

	// ByAlbum and ByPlaylist map ids to their songs.
	ByAlbum    map[string][]catalog.Song
	ByPlaylist map[string][]catalog.Song

	// PingErr is returned by Ping when set.
	PingErr error

	// SearchCalls counts Search invocations.
	SearchCalls int
}

var _ catalog.Client = (*Client)(nil)

func (c *Client) Ping(context.Context) error { return c.PingErr }

func (c *Client) Search(_ context.Context, query string, count int) (catalog.SearchResult, error) {
	c.mu.Lock()
	c.SearchCalls++
	c.mu.Unlock()

	q := strings.ToLower(query)
	var out catalog.SearchResult
	for _, a := range c.ArtistList {
		if strings.Contains(strings.ToLower(a.Name), q) && len(out.Artists) < count {
			out.Artists = append(out.Artists, a)
		}
	}
	for _, a := range c.AlbumList {
		if strings.Contains(strings.ToLower(a.Name), q) && len(out.Albums) < count {
			out.Albums = append(out.Albums, a)
		}
	}
	for _, s := range c.SongList {
		if len(out.Songs) >= count {
			break
		}
		if strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Artist), q) {
			out.Songs = append(out.Songs, s)
		}
	}
	return out, nil
}

func (c *Client) Artists(context.Context) ([]catalog.Artist, error) {
	return c.ArtistList, nil
}

func (c *Client) Genres(context.Context) ([]catalog.Genre, error) {
	return c.GenreList, nil
}

func (c *Client) Playlists(context.Context) ([]catalog.Playlist, error) {
	return c.PlaylistList, nil
}

func (c *Client) AlbumSongs(_ context.Context, albumID string) ([]catalog.Song, error) {
	return c.ByAlbum[albumID], nil
}

func (c *Client) PlaylistSongs(_ context.Context, playlistID string) ([]catalog.Song, error) {
	return c.ByPlaylist[playlistID], nil
}

func (c *Client) RandomSongs(_ context.Context, count int, filter catalog.RandomFilter) ([]catalog.Song, error) {
	var out []catalog.Song
	for _, s := range c.SongList {
		if len(out) >= count {
			break
		}
		if filter.Genre != "" && !strings.EqualFold(s.Genre, filter.Genre) {
			continue
		}
		if filter.FromYear > 0 && s.Year < filter.FromYear {
			continue
		}
		if filter.ToYear > 0 && s.Year > filter.ToYear {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
