package interpret_test

import (
	"context"
	"testing"

	"github.com/mveroni/cadenza/internal/interpret"
	"github.com/mveroni/cadenza/pkg/catalog"
	catmock "github.com/mveroni/cadenza/pkg/catalog/mock"
)

func newInterpreter(t *testing.T) (*interpret.Interpreter, *catmock.Client) {
	t.Helper()
	client := &catmock.Client{
		ArtistList: []catalog.Artist{
			{ID: "1", Name: "Beethoven", AlbumCount: 10},
			{ID: "2", Name: "Mozart", AlbumCount: 15},
			{ID: "3", Name: "Bach", AlbumCount: 8},
		},
		PlaylistList: []catalog.Playlist{
			{ID: "p1", Name: "Favorites", SongCount: 50},
			{ID: "p2", Name: "Relax", SongCount: 30},
		},
		GenreList: []catalog.Genre{
			{Name: "Classical"}, {Name: "Rock"}, {Name: "Jazz"},
		},
	}
	in := interpret.New(client, 0.7, nil)
	if err := in.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return in, client
}

func TestProcess_PlayExactArtist(t *testing.T) {
	in, _ := newInterpreter(t)

	cmd := in.Process(context.Background(), "riproduci Beethoven")
	if cmd.Type != interpret.Play {
		t.Fatalf("type: got %s", cmd.Type)
	}
	if cmd.Action != interpret.PlayArtist {
		t.Errorf("action: got %s", cmd.Action)
	}
	if cmd.Confidence != 1.0 {
		t.Errorf("confidence: got %f, want 1.0", cmd.Confidence)
	}
	if cmd.Parameters["entity_id"] != "1" {
		t.Errorf("entity id: got %v", cmd.Parameters["entity_id"])
	}
	if cmd.Target != "Beethoven" {
		t.Errorf("target: got %q", cmd.Target)
	}
}

func TestProcess_VolumeWithLevel(t *testing.T) {
	in, _ := newInterpreter(t)

	cmd := in.Process(context.Background(), "volume al 70")
	if cmd.Type != interpret.Volume {
		t.Fatalf("type: got %s", cmd.Type)
	}
	if cmd.Parameters["level"] != 70 {
		t.Errorf("level: got %v, want 70", cmd.Parameters["level"])
	}
	if cmd.Confidence != 0.9 {
		t.Errorf("confidence: got %f, want 0.9", cmd.Confidence)
	}
}

func TestProcess_VolumeQualitativeWords(t *testing.T) {
	in, _ := newInterpreter(t)

	for _, tc := range []struct {
		text  string
		level int
	}{
		{"alza il volume", -1}, // no qualitative word, level unset
		{"volume 101", 100},    // clamped
	} {
		cmd := in.Process(context.Background(), tc.text)
		if cmd.Type != interpret.Volume {
			t.Fatalf("%q: type got %s", tc.text, cmd.Type)
		}
		if tc.level < 0 {
			if _, ok := cmd.Parameters["level"]; ok {
				t.Errorf("%q: unexpected level %v", tc.text, cmd.Parameters["level"])
			}
			if cmd.Confidence != 0.5 {
				t.Errorf("%q: confidence got %f, want 0.5", tc.text, cmd.Confidence)
			}
		} else if cmd.Parameters["level"] != tc.level {
			t.Errorf("%q: level got %v, want %d", tc.text, cmd.Parameters["level"], tc.level)
		}
	}
}

func TestProcess_GibberishIsUnknown(t *testing.T) {
	in, _ := newInterpreter(t)

	cmd := in.Process(context.Background(), "xyzqqq")
	if cmd.Type != interpret.Unknown {
		t.Fatalf("type: got %s", cmd.Type)
	}
	if cmd.Confidence >= 0.5 {
		t.Errorf("confidence: got %f, want < 0.5", cmd.Confidence)
	}
}

func TestProcess_BarePlayIsRandom(t *testing.T) {
	in, _ := newInterpreter(t)

	// "riproduci" alone carries no target; it becomes random playback at
	// low confidence.
	cmd := in.Process(context.Background(), "riproduci")
	if cmd.Type != interpret.Play || cmd.Action != interpret.PlayRandom {
		t.Fatalf("got %s/%s", cmd.Type, cmd.Action)
	}
	if cmd.Confidence != 0.3 {
		t.Errorf("confidence: got %f, want 0.3", cmd.Confidence)
	}
}

func TestProcess_UnresolvedTargetLowConfidence(t *testing.T) {
	in, _ := newInterpreter(t)

	cmd := in.Process(context.Background(), "riproduci qualcosa di inesistente")
	if cmd.Type != interpret.Play {
		t.Fatalf("type: got %s", cmd.Type)
	}
	if cmd.Action != "" {
		t.Errorf("action: got %s, want none", cmd.Action)
	}
	if cmd.Confidence != 0.2 {
		t.Errorf("confidence: got %f, want 0.2", cmd.Confidence)
	}
}

func TestProcess_PauseVerbOrdering(t *testing.T) {
	in, _ := newInterpreter(t)

	// A bare "stop" is claimed by the pause group, which precedes stop.
	cmd := in.Process(context.Background(), "stop")
	if cmd.Type != interpret.Pause {
		t.Errorf("bare stop: got %s, want pause", cmd.Type)
	}

	cmd = in.Process(context.Background(), "pausa")
	if cmd.Type != interpret.Pause {
		t.Errorf("pausa: got %s", cmd.Type)
	}
	if cmd.Confidence != 0.8 {
		t.Errorf("pausa confidence: got %f, want 0.8", cmd.Confidence)
	}
}

func TestProcess_NextAndPrevious(t *testing.T) {
	in, _ := newInterpreter(t)

	if cmd := in.Process(context.Background(), "prossimo brano"); cmd.Type != interpret.Next {
		t.Errorf("prossimo brano: got %s", cmd.Type)
	}
	if cmd := in.Process(context.Background(), "canzone precedente"); cmd.Type != interpret.Previous {
		t.Errorf("canzone precedente: got %s", cmd.Type)
	}
}

func TestProcess_PlayGenre(t *testing.T) {
	in, _ := newInterpreter(t)

	cmd := in.Process(context.Background(), "suona jazz")
	if cmd.Action != interpret.PlayGenre {
		t.Fatalf("action: got %s, want %s", cmd.Action, interpret.PlayGenre)
	}
	if cmd.Target != "Jazz" {
		t.Errorf("target: got %q", cmd.Target)
	}
}

func TestProcess_PlayPlaylistSubstring(t *testing.T) {
	in, _ := newInterpreter(t)

	// "favorites" matches the playlist case-insensitively and exactly.
	cmd := in.Process(context.Background(), "riproduci favorites")
	if cmd.Action != interpret.PlayPlaylist {
		t.Fatalf("action: got %s", cmd.Action)
	}
	if cmd.Confidence != 1.0 {
		t.Errorf("confidence: got %f, want 1.0", cmd.Confidence)
	}
}

func TestProcess_FuzzyArtistMatch(t *testing.T) {
	in, _ := newInterpreter(t)

	// One edit away from "mozart"; resolved through the similarity stage.
	cmd := in.Process(context.Background(), "riproduci mozzart")
	if cmd.Action != interpret.PlayArtist {
		t.Fatalf("action: got %s", cmd.Action)
	}
	if cmd.Target != "Mozart" {
		t.Errorf("target: got %q", cmd.Target)
	}
	if cmd.Confidence < 0.6 || cmd.Confidence >= 1.0 {
		t.Errorf("confidence: got %f, want in [0.6, 1.0)", cmd.Confidence)
	}
}

func TestProcess_RemoteFallbackPrefersArtists(t *testing.T) {
	in, client := newInterpreter(t)
	client.SongList = []catalog.Song{
		{ID: "s9", Title: "Stairway to Heaven", Artist: "Led Zeppelin", ArtistID: "a9"},
	}

	cmd := in.Process(context.Background(), "riproduci stairway to heaven")
	if cmd.Action != interpret.PlaySong {
		t.Fatalf("action: got %s", cmd.Action)
	}
	if cmd.Confidence != 0.6 {
		t.Errorf("confidence: got %f, want 0.6", cmd.Confidence)
	}
	if client.SearchCalls == 0 {
		t.Error("remote search not consulted")
	}
}

func TestProcess_StatsTrackThreshold(t *testing.T) {
	in, _ := newInterpreter(t)

	in.Process(context.Background(), "riproduci Beethoven") // 1.0, above
	in.Process(context.Background(), "xyzqqq")              // 0, below

	st := in.Stats()
	if st.Processed != 2 {
		t.Errorf("processed: got %d, want 2", st.Processed)
	}
	if st.Matched != 1 || st.BelowCutoff != 1 {
		t.Errorf("matched/below: got %d/%d, want 1/1", st.Matched, st.BelowCutoff)
	}
	if st.CachedArtists != 3 {
		t.Errorf("cached artists: got %d, want 3", st.CachedArtists)
	}
}
