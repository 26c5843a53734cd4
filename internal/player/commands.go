package player

import (
	"context"
	"fmt"
	"strings"

	"github.com/mveroni/cadenza/internal/interpret"
	"github.com/mveroni/cadenza/pkg/catalog"
)

func (c *Controller) play(ctx context.Context, cmd interpret.Command) Result {
	switch cmd.Action {
	case interpret.PlayArtist:
		return c.playArtist(ctx, cmd)
	case interpret.PlayAlbum:
		return c.playAlbum(ctx, cmd)
	case interpret.PlaySong:
		return c.playSong(cmd)
	case interpret.PlayPlaylist:
		return c.playPlaylist(ctx, cmd)
	case interpret.PlayGenre:
		return c.playGenre(ctx, cmd)
	case interpret.PlayRandom:
		return c.playRandom(ctx)
	default:
		return c.fail("Azione di riproduzione non specificata")
	}
}

func entityID(cmd interpret.Command) string {
	if cmd.Parameters == nil {
		return ""
	}
	id, _ := cmd.Parameters["entity_id"].(string)
	return id
}

func entityMetadata(cmd interpret.Command) map[string]any {
	if cmd.Parameters == nil {
		return nil
	}
	meta, _ := cmd.Parameters["metadata"].(map[string]any)
	return meta
}

func (c *Controller) playArtist(ctx context.Context, cmd interpret.Command) Result {
	artistID := entityID(cmd)
	name := cmd.Target
	if artistID == "" {
		return c.fail("Artista '%s' non trovato", name)
	}

	res, err := c.client.Search(ctx, name, 50)
	if err != nil {
		return c.fail("Errore nella riproduzione: %v", err)
	}
	if len(res.Songs) == 0 {
		return c.fail("Nessun brano trovato per l'artista '%s'", name)
	}

	// Keep only the resolved artist's songs; if the search results never
	// carry that id, play everything it returned.
	songs := make([]catalog.Song, 0, len(res.Songs))
	for _, s := range res.Songs {
		if s.ArtistID == artistID {
			songs = append(songs, s)
		}
	}
	if len(songs) == 0 {
		songs = res.Songs
	}

	status := c.startPlayback(songs)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione avviata: %s (%d brani)", name, len(songs)),
		Data:    map[string]any{"artist": name, "song_count": len(songs)},
		Status:  status,
	}
}

func (c *Controller) playAlbum(ctx context.Context, cmd interpret.Command) Result {
	albumID := entityID(cmd)
	name := cmd.Target
	if albumID == "" {
		return c.fail("Album '%s' non trovato", name)
	}

	songs, err := c.client.AlbumSongs(ctx, albumID)
	if err != nil {
		return c.fail("Errore nella riproduzione: %v", err)
	}
	if len(songs) == 0 {
		return c.fail("Nessun brano trovato nell'album '%s'", name)
	}

	status := c.startPlayback(songs)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione album: %s (%d brani)", name, len(songs)),
		Data:    map[string]any{"album": name, "song_count": len(songs)},
		Status:  status,
	}
}

func (c *Controller) playSong(cmd interpret.Command) Result {
	songID := entityID(cmd)
	title := cmd.Target
	if songID == "" {
		return c.fail("Brano '%s' non trovato", title)
	}

	meta := entityMetadata(cmd)
	str := func(key string) string {
		if meta == nil {
			return ""
		}
		v, _ := meta[key].(string)
		return v
	}

	song := catalog.Song{
		ID:       songID,
		Title:    title,
		Artist:   str("artist"),
		ArtistID: str("artist_id"),
		Album:    str("album"),
		AlbumID:  str("album_id"),
	}

	status := c.startPlayback([]catalog.Song{song})
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione brano: %s", title),
		Data:    map[string]any{"song": title},
		Status:  status,
	}
}

func (c *Controller) playPlaylist(ctx context.Context, cmd interpret.Command) Result {
	playlistID := entityID(cmd)
	name := cmd.Target
	if playlistID == "" {
		return c.fail("Playlist '%s' non trovata", name)
	}

	songs, err := c.client.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return c.fail("Errore nella riproduzione: %v", err)
	}
	if len(songs) == 0 {
		return c.fail("Playlist '%s' è vuota", name)
	}

	status := c.startPlayback(songs)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione playlist: %s (%d brani)", name, len(songs)),
		Data:    map[string]any{"playlist": name, "song_count": len(songs)},
		Status:  status,
	}
}

func (c *Controller) playGenre(ctx context.Context, cmd interpret.Command) Result {
	genre := cmd.Target

	songs, err := c.client.RandomSongs(ctx, 50, catalog.RandomFilter{Genre: genre})
	if err != nil {
		return c.fail("Errore nella riproduzione: %v", err)
	}
	if len(songs) == 0 {
		return c.fail("Nessun brano trovato per il genere '%s'", genre)
	}

	status := c.startPlayback(songs)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione genere: %s (%d brani)", genre, len(songs)),
		Data:    map[string]any{"genre": genre, "song_count": len(songs)},
		Status:  status,
	}
}

func (c *Controller) playRandom(ctx context.Context) Result {
	songs, err := c.client.RandomSongs(ctx, 30, catalog.RandomFilter{})
	if err != nil || len(songs) == 0 {
		return c.fail("Impossibile ottenere brani casuali")
	}

	status := c.startPlayback(songs)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Riproduzione casuale avviata (%d brani)", len(songs)),
		Data:    map[string]any{"song_count": len(songs)},
		Status:  status,
	}
}

// pause toggles between playing and paused.
func (c *Controller) pause() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status.State {
	case Playing:
		c.status.State = Paused
		c.notifyLocked()
		return Result{Success: true, Message: "Riproduzione in pausa", Status: c.status}
	case Paused:
		c.status.State = Playing
		c.notifyLocked()
		return Result{Success: true, Message: "Riproduzione ripresa", Status: c.status}
	default:
		c.stats.Errors++
		return Result{Success: false, Message: "Nessuna riproduzione attiva", Status: c.status}
	}
}

func (c *Controller) stop() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.State = Stopped
	c.status.CurrentSong = nil
	c.status.Position = 0
	c.notifyLocked()
	return Result{Success: true, Message: "Riproduzione fermata", Status: c.status}
}

func (c *Controller) next() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.status.Queue) == 0 {
		c.stats.Errors++
		return Result{Success: false, Message: "Nessuna coda di riproduzione attiva", Status: c.status}
	}
	if c.status.QueuePos >= len(c.status.Queue)-1 {
		c.stats.Errors++
		return Result{Success: false, Message: "Fine della coda di riproduzione", Status: c.status}
	}

	c.status.QueuePos++
	c.status.CurrentSong = &c.status.Queue[c.status.QueuePos]
	c.status.Position = 0
	if c.status.State != Stopped {
		c.status.State = Playing
	}
	c.notifyLocked()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Prossimo brano: %s", c.status.CurrentSong.Title),
		Status:  c.status,
	}
}

func (c *Controller) previous() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.status.Queue) == 0 {
		c.stats.Errors++
		return Result{Success: false, Message: "Nessuna coda di riproduzione attiva", Status: c.status}
	}
	if c.status.QueuePos <= 0 {
		c.stats.Errors++
		return Result{Success: false, Message: "Inizio della coda di riproduzione", Status: c.status}
	}

	c.status.QueuePos--
	c.status.CurrentSong = &c.status.Queue[c.status.QueuePos]
	c.status.Position = 0
	if c.status.State != Stopped {
		c.status.State = Playing
	}
	c.notifyLocked()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Brano precedente: %s", c.status.CurrentSong.Title),
		Status:  c.status,
	}
}

func (c *Controller) setVolume(cmd interpret.Command) Result {
	level, ok := cmd.Parameters["level"].(int)
	if !ok {
		return c.fail("Livello volume non specificato")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Volume = level
	c.notifyLocked()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Volume impostato al %d%%", level),
		Status:  c.status,
	}
}

func (c *Controller) toggleShuffle() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Shuffle = !c.status.Shuffle
	c.notifyLocked()
	state := "disattivato"
	if c.status.Shuffle {
		state = "attivato"
	}
	return Result{Success: true, Message: "Shuffle " + state, Status: c.status}
}

func (c *Controller) toggleRepeat() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Repeat = !c.status.Repeat
	c.notifyLocked()
	state := "disattivato"
	if c.status.Repeat {
		state = "attivato"
	}
	return Result{Success: true, Message: "Repeat " + state, Status: c.status}
}

func (c *Controller) info() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	song := c.status.CurrentSong
	if song == nil {
		return Result{Success: true, Message: "Nessuna riproduzione attiva", Status: c.status}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "In riproduzione: %s di %s", song.Title, song.Artist)
	if song.Album != "" {
		fmt.Fprintf(&b, " dall'album %s", song.Album)
	}
	return Result{
		Success: true,
		Message: b.String(),
		Data: map[string]any{
			"song":   song.Title,
			"artist": song.Artist,
			"album":  song.Album,
			"state":  string(c.status.State),
		},
		Status: c.status,
	}
}
