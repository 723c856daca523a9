package model

import "time"

// Song is a catalog entry. A row exists only for a completed ingestion, and
// FragmentCount matches the fragment objects under songs/{uuid}/.
type Song struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UUID          string    `json:"uuid" gorm:"column:uuid;size:36;uniqueIndex;not null"`
	Title         string    `json:"title" gorm:"size:255;not null"`
	Artist        string    `json:"artist" gorm:"size:255;not null"`
	Album         *string   `json:"album" gorm:"size:255"`
	Duration      float64   `json:"duration" gorm:"not null"` // seconds
	FragmentCount int       `json:"fragmentCount" gorm:"column:fragment_count;not null"`
	Active        bool      `json:"active" gorm:"not null"`
	UploadedAt    time.Time `json:"uploadedAt" gorm:"column:uploaded_at;autoCreateTime"`
}

func (Song) TableName() string { return "songs" }

// SongUpdate carries the admin-editable fields.
type SongUpdate struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Album  *string `json:"album"`
	Active bool    `json:"active"`
}

// FragmentURL is one signed fragment address tagged with its 1-based index.
type FragmentURL struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// SongInfo is a song with freshly signed asset URLs.
type SongInfo struct {
	Song
	CoverURL  string `json:"coverUrl"`
	LyricsURL string `json:"lyricsUrl"`
}
