// Package interpret turns transcripts into structured music commands. A
// transcript is normalized, matched against ordered verb patterns, and any
// play target is resolved against the cached catalog entities with a fuzzy
// cascade.
package interpret

// CommandType classifies a parsed command.
type CommandType string

const (
	Play     CommandType = "play"
	Pause    CommandType = "pause"
	Stop     CommandType = "stop"
	Next     CommandType = "next"
	Previous CommandType = "previous"
	Volume   CommandType = "volume"
	Shuffle  CommandType = "shuffle"
	Repeat   CommandType = "repeat"
	Info     CommandType = "info"
	Unknown  CommandType = "unknown"
)

// Action refines a Play command by resolved entity kind.
type Action string

const (
	PlaySong     Action = "play_song"
	PlayAlbum    Action = "play_album"
	PlayArtist   Action = "play_artist"
	PlayPlaylist Action = "play_playlist"
	PlayGenre    Action = "play_genre"
	PlayRandom   Action = "play_random"
)

// Command is the structured result of interpretation.
type Command struct {
	Type       CommandType
	Action     Action
	Target     string
	Parameters map[string]any
	Confidence float64
	RawText    string
}

// Entity is a resolved catalog entity.
type Entity struct {
	Kind       string // artist, album, song, playlist, genre
	Name       string
	ID         string
	Confidence float64
	Metadata   map[string]any
}
