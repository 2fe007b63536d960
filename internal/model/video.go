package model

import (
	"fmt"
	"strings"
	"time"
)

// NoSpeechText is the transcript text of the placeholder segment written
// when transcription finds nothing
const NoSpeechText = "[No speech detected]"

// Video is an ingested media item moving through the pipeline
type Video struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SourceURL    *string   `json:"source_url"`
	Title        *string   `json:"title"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	Duration     *float64  `json:"duration"`
	Status       Status    `gorm:"size:32;index;not null" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// MediaKey is the object storage key of the video's normalized audio
func (v *Video) MediaKey() string {
	return MediaKey(v.ID)
}

// MediaKey builds the storage key for a video's audio
func MediaKey(videoID uint) string {
	return fmt.Sprintf("media/%d.mp3", videoID)
}

// Segment is a timed span of transcript text
type Segment struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	VideoID uint    `gorm:"index;not null" json:"video_id"`
	Video   *Video  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TStart  float64 `gorm:"column:t_start" json:"t_start"`
	TEnd    float64 `gorm:"column:t_end" json:"t_end"`
	Text    string  `gorm:"type:text" json:"text"`
}

// IsPlaceholder reports whether the segment is the no-speech marker
func (s Segment) IsPlaceholder() bool {
	return strings.TrimSpace(s.Text) == NoSpeechText
}
