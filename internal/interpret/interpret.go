package interpret

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mveroni/cadenza/pkg/catalog"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Stats is a snapshot of the interpreter's counters.
type Stats struct {
	Processed     uint64
	Matched       uint64
	BelowCutoff   uint64
	AvgConfidence float64
	CachedArtists int
	CachedLists   int
	CachedGenres  int
}

// Interpreter parses transcripts into Commands, resolving play targets
// against a cached snapshot of the catalog.
type Interpreter struct {
	client    catalog.Client
	threshold float64
	log       *slog.Logger

	mu        sync.RWMutex
	artists   []catalog.Artist
	playlists []catalog.Playlist
	genres    []string
	stats     Stats
}

// New creates an interpreter. Call Refresh before first use to populate the
// entity cache; until then resolution falls through to remote search.
func New(client catalog.Client, confidenceThreshold float64, log *slog.Logger) *Interpreter {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{
		client:    client,
		threshold: confidenceThreshold,
		log:       log,
	}
}

// Refresh reloads the entity cache from the catalog.
func (in *Interpreter) Refresh(ctx context.Context) error {
	artists, err := in.client.Artists(ctx)
	if err != nil {
		return fmt.Errorf("interpret: refresh artists: %w", err)
	}
	genres, err := in.client.Genres(ctx)
	if err != nil {
		return fmt.Errorf("interpret: refresh genres: %w", err)
	}
	playlists, err := in.client.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("interpret: refresh playlists: %w", err)
	}

	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}

	in.mu.Lock()
	in.artists = artists
	in.playlists = playlists
	in.genres = names
	in.mu.Unlock()

	in.log.Info("entity cache refreshed",
		"artists", len(artists), "playlists", len(playlists), "genres", len(names))
	return nil
}

// Process parses a transcript into a Command.
func (in *Interpreter) Process(ctx context.Context, text string) Command {
	normalized := normalize(text)
	kind, target := identify(normalized)

	var cmd Command
	switch kind {
	case Play:
		cmd = in.processPlay(ctx, target, text)
	case Volume:
		cmd = processVolume(target, normalized, text)
	default:
		cmd = Command{
			Type:       kind,
			Target:     target,
			Confidence: 0.8,
			RawText:    text,
		}
		if kind == Unknown {
			cmd.Confidence = 0
		}
	}

	in.mu.Lock()
	in.stats.Processed++
	if cmd.Confidence >= in.threshold {
		in.stats.Matched++
	} else {
		in.stats.BelowCutoff++
	}
	in.stats.AvgConfidence = in.stats.AvgConfidence*0.9 + cmd.Confidence*0.1
	in.mu.Unlock()

	in.log.Info("command interpreted",
		"text", text, "type", cmd.Type, "confidence", cmd.Confidence)
	return cmd
}

func (in *Interpreter) processPlay(ctx context.Context, target, raw string) Command {
	if target == "" {
		// A bare play verb means "play something": random playback at low
		// confidence.
		return Command{
			Type:       Play,
			Action:     PlayRandom,
			Confidence: 0.3,
			RawText:    raw,
		}
	}

	entity := in.resolve(ctx, target)
	if entity == nil {
		return Command{
			Type:       Play,
			Target:     target,
			Confidence: 0.2,
			RawText:    raw,
		}
	}

	return Command{
		Type:   Play,
		Action: actionFor(entity.Kind),
		Target: entity.Name,
		Parameters: map[string]any{
			"entity_type": entity.Kind,
			"entity_id":   entity.ID,
			"metadata":    entity.Metadata,
		},
		Confidence: entity.Confidence,
		RawText:    raw,
	}
}

func processVolume(target, normalized, raw string) Command {
	level := -1
	if n, err := strconv.Atoi(target); err == nil {
		level = min(100, max(0, n))
	} else if strings.Contains(normalized, "alto") || strings.Contains(normalized, "forte") {
		level = 80
	} else if strings.Contains(normalized, "basso") || strings.Contains(normalized, "piano") {
		level = 30
	}

	cmd := Command{
		Type:       Volume,
		Parameters: map[string]any{},
		Confidence: 0.5,
		RawText:    raw,
	}
	if level >= 0 {
		cmd.Parameters["level"] = level
		cmd.Confidence = 0.9
	}
	return cmd
}

func actionFor(kind string) Action {
	switch kind {
	case "artist":
		return PlayArtist
	case "album":
		return PlayAlbum
	case "song":
		return PlaySong
	case "playlist":
		return PlayPlaylist
	case "genre":
		return PlayGenre
	default:
		return PlayRandom
	}
}

// normalize lowercases, strips punctuation and collapses whitespace.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = punctRe.ReplaceAllString(text, "")
	return spaceRe.ReplaceAllString(text, " ")
}

// Stats returns a snapshot of the interpreter counters.
func (in *Interpreter) Stats() Stats {
	in.mu.RLock()
	defer in.mu.RUnlock()
	st := in.stats
	st.CachedArtists = len(in.artists)
	st.CachedLists = len(in.playlists)
	st.CachedGenres = len(in.genres)
	return st
}
