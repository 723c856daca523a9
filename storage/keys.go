package storage

import (
	"fmt"
	"strings"
)

const (
	songsRoot      = "songs/"
	coverObject    = "cover.webp"
	lyricsObject   = "lyrics.lrc"
	fragmentExt    = ".webm"
	playlistCovers = "covers/playlists/"
	LyricsMimeType = "text/plain; charset=utf-8"
)

// SongPrefix is the folder owning every object of one song.
func SongPrefix(songUUID string) string {
	return songsRoot + songUUID + "/"
}

// FragmentKey addresses fragment n (1-based) of a song.
func FragmentKey(songUUID string, n int) string {
	return fmt.Sprintf("%s%d%s", SongPrefix(songUUID), n, fragmentExt)
}

// CoverKey is the song cover. The key is fixed; the object carries the
// picture's real content type.
func CoverKey(songUUID string) string {
	return SongPrefix(songUUID) + coverObject
}

func LyricsKey(songUUID string) string {
	return SongPrefix(songUUID) + lyricsObject
}

// PlaylistCoverKey names an uploaded playlist cover; the timestamp keeps
// replaced covers from being served stale by caches.
func PlaylistCoverKey(playlistID int64, unixMillis int64, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s%d-%d%s", playlistCovers, playlistID, unixMillis, ext)
}
