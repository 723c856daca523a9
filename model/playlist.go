package model

import "time"

// Playlist 歌单
type Playlist struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:255;uniqueIndex;not null"`
	Description *string   `json:"description"`
	CoverKey    *string   `json:"-" gorm:"column:cover_key;size:767"`
	SortOrder   int       `json:"sortOrder" gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Playlist) TableName() string { return "playlists" }

// PlaylistSong is a membership row; the pair is unique.
type PlaylistSong struct {
	PlaylistID int64     `gorm:"primaryKey;autoIncrement:false"`
	SongID     int64     `gorm:"primaryKey;autoIncrement:false"`
	AddedAt    time.Time `gorm:"autoCreateTime"`
}

func (PlaylistSong) TableName() string { return "playlist_songs" }

// PlaylistView is a playlist as served to clients, cover already signed.
type PlaylistView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CoverURL    *string `json:"coverUrl"`
	SortOrder   int     `json:"sortOrder"`
}

// PlaylistDetail is a playlist with its active songs.
type PlaylistDetail struct {
	PlaylistView
	Songs []SongInfo `json:"songs"`
}

// PlaylistAdminView adds the member song ids for the admin console.
type PlaylistAdminView struct {
	PlaylistView
	CreatedAt time.Time `json:"createdAt"`
	SongIDs   []int64   `json:"songIds"`
}

// PlaylistOrder assigns a sort position to one playlist.
type PlaylistOrder struct {
	ID        int64 `json:"id"`
	SortOrder int   `json:"sortOrder"`
}
