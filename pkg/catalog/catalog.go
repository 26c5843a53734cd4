// Package catalog defines the music catalog model and the client interface
// the interpreter and player resolve entities against. The concrete Subsonic
// implementation lives in the subsonic subpackage.
package catalog

import "context"

// Artist is a catalog artist entry.
type Artist struct {
	ID         string
	Name       string
	AlbumCount int
	CoverArt   string
}

// Album is a catalog album entry.
type Album struct {
	ID        string
	Name      string
	Artist    string
	ArtistID  string
	SongCount int
	Duration  int
	Year      int
	Genre     string
	CoverArt  string
}

// Song is a playable track.
type Song struct {
	ID       string
	Title    string
	Artist   string
	ArtistID string
	Album    string
	AlbumID  string
	Track    int
	Year     int
	Genre    string
	Duration int
	CoverArt string
}

// Playlist is a user playlist.
type Playlist struct {
	ID        string
	Name      string
	Owner     string
	Public    bool
	SongCount int
	Duration  int
}

// Genre is a catalog genre with usage counts.
type Genre struct {
	Name       string
	SongCount  int
	AlbumCount int
}

// SearchResult aggregates a full-text search across entity kinds.
type SearchResult struct {
	Artists []Artist
	Albums  []Album
	Songs   []Song
}

// RandomFilter narrows RandomSongs. Zero values mean no constraint.
type RandomFilter struct {
	Genre    string
	FromYear int
	ToYear   int
}

// Client is the read surface of the music catalog.
type Client interface {
	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error

	// Search runs a full-text search returning up to count results per
	// entity kind.
	Search(ctx context.Context, query string, count int) (SearchResult, error)

	// Artists lists all artists.
	Artists(ctx context.Context) ([]Artist, error)

	// Genres lists all genres.
	Genres(ctx context.Context) ([]Genre, error)

	// Playlists lists all playlists visible to the configured user.
	Playlists(ctx context.Context) ([]Playlist, error)

	// AlbumSongs returns the songs of an album in track order. A missing
	// album yields (nil, nil).
	AlbumSongs(ctx context.Context, albumID string) ([]Song, error)

	// PlaylistSongs returns the songs of a playlist in order. A missing
	// playlist yields (nil, nil).
	PlaylistSongs(ctx context.Context, playlistID string) ([]Song, error)

	// RandomSongs returns up to count random songs matching filter.
	RandomSongs(ctx context.Context, count int, filter RandomFilter) ([]Song, error)
}
