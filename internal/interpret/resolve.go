package interpret

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"
)

// resolve finds the catalog entity a play target refers to. Cached lists are
// tried in priority order (artists, playlists, genres); each list runs the
// full match cascade before the next is consulted. Anything still unresolved
// goes to a remote search.
func (in *Interpreter) resolve(ctx context.Context, target string) *Entity {
	in.mu.RLock()
	artists := in.artists
	playlists := in.playlists
	genres := in.genres
	in.mu.RUnlock()

	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	if idx, conf := bestMatch(target, names); idx >= 0 {
		a := artists[idx]
		return &Entity{
			Kind:       "artist",
			Name:       a.Name,
			ID:         a.ID,
			Confidence: conf,
			Metadata:   map[string]any{"album_count": a.AlbumCount},
		}
	}

	names = names[:0]
	for _, p := range playlists {
		names = append(names, p.Name)
	}
	if idx, conf := bestMatch(target, names); idx >= 0 {
		p := playlists[idx]
		return &Entity{
			Kind:       "playlist",
			Name:       p.Name,
			ID:         p.ID,
			Confidence: conf,
			Metadata:   map[string]any{"song_count": p.SongCount},
		}
	}

	if idx, conf := bestMatch(target, genres); idx >= 0 {
		return &Entity{
			Kind:       "genre",
			Name:       genres[idx],
			Confidence: conf,
		}
	}

	return in.searchRemote(ctx, target)
}

// bestMatch runs the three-stage cascade over names: exact match, substring
// containment, then edit-distance similarity. It returns the winning index
// and confidence, or (-1, 0).
//
// The substring confidence divides the target length by the candidate length
// in both containment directions, capped at 0.9 and accepted from 0.6 up.
func bestMatch(target string, names []string) (int, float64) {
	if len(names) == 0 {
		return -1, 0
	}
	t := strings.ToLower(target)

	lower := make([]string, len(names))
	for i, n := range names {
		lower[i] = strings.ToLower(n)
	}

	for i, n := range lower {
		if n == t {
			return i, 1.0
		}
	}

	for i, n := range lower {
		if len(n) == 0 {
			continue
		}
		if strings.Contains(n, t) || strings.Contains(t, n) {
			conf := min(float64(len(t))/float64(len(n)), 0.9)
			if conf >= 0.6 {
				return i, conf
			}
		}
	}

	bestIdx, bestRatio := -1, 0.0
	for i, n := range lower {
		if r := similarity(t, n); r >= 0.6 && r > bestRatio {
			bestIdx, bestRatio = i, r
		}
	}
	if bestIdx >= 0 {
		return bestIdx, bestRatio
	}
	return -1, 0
}

// similarity maps Levenshtein distance to a [0, 1] ratio.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

// searchRemote falls back to the catalog's full-text search, preferring
// artists over albums over songs.
func (in *Interpreter) searchRemote(ctx context.Context, target string) *Entity {
	res, err := in.client.Search(ctx, target, 5)
	if err != nil {
		in.log.Error("remote entity search failed", "target", target, "error", err)
		return nil
	}

	if len(res.Artists) > 0 {
		a := res.Artists[0]
		return &Entity{
			Kind:       "artist",
			Name:       a.Name,
			ID:         a.ID,
			Confidence: 0.8,
			Metadata:   map[string]any{"album_count": a.AlbumCount},
		}
	}
	if len(res.Albums) > 0 {
		al := res.Albums[0]
		return &Entity{
			Kind:       "album",
			Name:       al.Name,
			ID:         al.ID,
			Confidence: 0.7,
			Metadata: map[string]any{
				"artist":     al.Artist,
				"artist_id":  al.ArtistID,
				"song_count": al.SongCount,
			},
		}
	}
	if len(res.Songs) > 0 {
		s := res.Songs[0]
		return &Entity{
			Kind:       "song",
			Name:       s.Title,
			ID:         s.ID,
			Confidence: 0.6,
			Metadata: map[string]any{
				"artist":    s.Artist,
				"artist_id": s.ArtistID,
				"album":     s.Album,
				"album_id":  s.AlbumID,
			},
		}
	}
	return nil
}
