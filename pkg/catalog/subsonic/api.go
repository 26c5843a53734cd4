package subsonic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mveroni/cadenza/pkg/catalog"
)

// notFoundCode is the Subsonic error for a missing entity. It maps to an
// empty result rather than an error.
const notFoundCode = 70

// APIError is a Subsonic-level error carried in an HTTP 200 response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("subsonic: api error %d: %s", e.Code, e.Message)
}

// Wire types. The Subsonic JSON schema nests everything under
// "subsonic-response".

type envelope struct {
	Response payload `json:"subsonic-response"`
}

type payload struct {
	Status string    `json:"status"`
	Error  *APIError `json:"error"`

	Artists *struct {
		Index []struct {
			Artist []wireArtist `json:"artist"`
		} `json:"index"`
	} `json:"artists"`

	Genres *struct {
		Genre []wireGenre `json:"genre"`
	} `json:"genres"`

	Playlists *struct {
		Playlist []wirePlaylist `json:"playlist"`
	} `json:"playlists"`

	SearchResult3 *struct {
		Artist []wireArtist `json:"artist"`
		Album  []wireAlbum  `json:"album"`
		Song   []wireSong   `json:"song"`
	} `json:"searchResult3"`

	Album *struct {
		wireAlbum
		Song []wireSong `json:"song"`
	} `json:"album"`

	Playlist *struct {
		wirePlaylist
		Entry []wireSong `json:"entry"`
	} `json:"playlist"`

	RandomSongs *struct {
		Song []wireSong `json:"song"`
	} `json:"randomSongs"`
}

type wireArtist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
	CoverArt   string `json:"coverArt"`
}

type wireAlbum struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	ArtistID  string `json:"artistId"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
	Year      int    `json:"year"`
	Genre     string `json:"genre"`
	CoverArt  string `json:"coverArt"`
}

type wireSong struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ArtistID string `json:"artistId"`
	Album    string `json:"album"`
	AlbumID  string `json:"albumId"`
	Track    int    `json:"track"`
	Year     int    `json:"year"`
	Genre    string `json:"genre"`
	Duration int    `json:"duration"`
	CoverArt string `json:"coverArt"`
}

type wirePlaylist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Public    bool   `json:"public"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
}

type wireGenre struct {
	Value      string `json:"value"`
	SongCount  int    `json:"songCount"`
	AlbumCount int    `json:"albumCount"`
}

// call performs a request and unwraps the envelope. A not-found API error is
// reported through the second return value; other API errors are returned as
// *APIError.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (*payload, bool, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, false, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("subsonic: %s: decode response: %w", endpoint, err)
	}

	if env.Response.Status != "ok" {
		if env.Response.Error != nil {
			if env.Response.Error.Code == notFoundCode {
				return nil, true, nil
			}
			return nil, false, env.Response.Error
		}
		return nil, false, fmt.Errorf("subsonic: %s: status %q", endpoint, env.Response.Status)
	}
	return &env.Response, false, nil
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.call(ctx, "ping.view", nil)
	return err
}

// Search runs a full-text search over artists, albums and songs.
func (c *Client) Search(ctx context.Context, query string, count int) (catalog.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("artistCount", fmt.Sprint(count))
	params.Set("albumCount", fmt.Sprint(count))
	params.Set("songCount", fmt.Sprint(count))

	p, _, err := c.call(ctx, "search3.view", params)
	if err != nil {
		return catalog.SearchResult{}, err
	}

	var out catalog.SearchResult
	if p.SearchResult3 == nil {
		return out, nil
	}
	for _, a := range p.SearchResult3.Artist {
		out.Artists = append(out.Artists, artistFromWire(a))
	}
	for _, a := range p.SearchResult3.Album {
		out.Albums = append(out.Albums, albumFromWire(a))
	}
	for _, s := range p.SearchResult3.Song {
		out.Songs = append(out.Songs, songFromWire(s))
	}
	return out, nil
}

// Artists lists all artists, flattening the server's index grouping.
func (c *Client) Artists(ctx context.Context) ([]catalog.Artist, error) {
	p, _, err := c.call(ctx, "getArtists.view", nil)
	if err != nil {
		return nil, err
	}
	if p.Artists == nil {
		return nil, nil
	}
	var out []catalog.Artist
	for _, idx := range p.Artists.Index {
		for _, a := range idx.Artist {
			out = append(out, artistFromWire(a))
		}
	}
	return out, nil
}

// Genres lists all genres.
func (c *Client) Genres(ctx context.Context) ([]catalog.Genre, error) {
	p, _, err := c.call(ctx, "getGenres.view", nil)
	if err != nil {
		return nil, err
	}
	if p.Genres == nil {
		return nil, nil
	}
	out := make([]catalog.Genre, 0, len(p.Genres.Genre))
	for _, g := range p.Genres.Genre {
		out = append(out, catalog.Genre{
			Name:       g.Value,
			SongCount:  g.SongCount,
			AlbumCount: g.AlbumCount,
		})
	}
	return out, nil
}

// Playlists lists all playlists visible to the configured user.
func (c *Client) Playlists(ctx context.Context) ([]catalog.Playlist, error) {
	p, _, err := c.call(ctx, "getPlaylists.view", nil)
	if err != nil {
		return nil, err
	}
	if p.Playlists == nil {
		return nil, nil
	}
	out := make([]catalog.Playlist, 0, len(p.Playlists.Playlist))
	for _, pl := range p.Playlists.Playlist {
		out = append(out, playlistFromWire(pl))
	}
	return out, nil
}

// AlbumSongs returns an album's songs in track order. A missing album is
// (nil, nil).
func (c *Client) AlbumSongs(ctx context.Context, albumID string) ([]catalog.Song, error) {
	params := url.Values{}
	params.Set("id", albumID)

	p, notFound, err := c.call(ctx, "getAlbum.view", params)
	if err != nil || notFound {
		return nil, err
	}
	if p.Album == nil {
		return nil, nil
	}
	out := make([]catalog.Song, 0, len(p.Album.Song))
	for _, s := range p.Album.Song {
		out = append(out, songFromWire(s))
	}
	return out, nil
}

// PlaylistSongs returns a playlist's songs in order. A missing playlist is
// (nil, nil).
func (c *Client) PlaylistSongs(ctx context.Context, playlistID string) ([]catalog.Song, error) {
	params := url.Values{}
	params.Set("id", playlistID)

	p, notFound, err := c.call(ctx, "getPlaylist.view", params)
	if err != nil || notFound {
		return nil, err
	}
	if p.Playlist == nil {
		return nil, nil
	}
	out := make([]catalog.Song, 0, len(p.Playlist.Entry))
	for _, s := range p.Playlist.Entry {
		out = append(out, songFromWire(s))
	}
	return out, nil
}

// RandomSongs returns up to count random songs matching filter.
func (c *Client) RandomSongs(ctx context.Context, count int, filter catalog.RandomFilter) ([]catalog.Song, error) {
	params := url.Values{}
	params.Set("size", fmt.Sprint(count))
	if filter.Genre != "" {
		params.Set("genre", filter.Genre)
	}
	if filter.FromYear > 0 {
		params.Set("fromYear", fmt.Sprint(filter.FromYear))
	}
	if filter.ToYear > 0 {
		params.Set("toYear", fmt.Sprint(filter.ToYear))
	}

	p, _, err := c.call(ctx, "getRandomSongs.view", params)
	if err != nil {
		return nil, err
	}
	if p.RandomSongs == nil {
		return nil, nil
	}
	out := make([]catalog.Song, 0, len(p.RandomSongs.Song))
	for _, s := range p.RandomSongs.Song {
		out = append(out, songFromWire(s))
	}
	return out, nil
}

func artistFromWire(a wireArtist) catalog.Artist {
	return catalog.Artist{ID: a.ID, Name: a.Name, AlbumCount: a.AlbumCount, CoverArt: a.CoverArt}
}

func albumFromWire(a wireAlbum) catalog.Album {
	return catalog.Album{
		ID: a.ID, Name: a.Name, Artist: a.Artist, ArtistID: a.ArtistID,
		SongCount: a.SongCount, Duration: a.Duration, Year: a.Year,
		Genre: a.Genre, CoverArt: a.CoverArt,
	}
}

func songFromWire(s wireSong) catalog.Song {
	return catalog.Song{
		ID: s.ID, Title: s.Title, Artist: s.Artist, ArtistID: s.ArtistID,
		Album: s.Album, AlbumID: s.AlbumID, Track: s.Track, Year: s.Year,
		Genre: s.Genre, Duration: s.Duration, CoverArt: s.CoverArt,
	}
}

func playlistFromWire(p wirePlaylist) catalog.Playlist {
	return catalog.Playlist{
		ID: p.ID, Name: p.Name, Owner: p.Owner, Public: p.Public,
		SongCount: p.SongCount, Duration: p.Duration,
	}
}
