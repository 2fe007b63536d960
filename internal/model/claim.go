package model

import (
	"strings"
	"time"
)

// Claim is a transcript sentence judged likely to be a checkable assertion.
// SegmentID is nulled when the originating segment is deleted.
type Claim struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	VideoID       uint      `gorm:"index;not null" json:"video_id"`
	Video         *Video    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SegmentID     *uint     `gorm:"index" json:"segment_id"`
	Segment       *Segment  `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ClaimText     string    `gorm:"type:text;not null" json:"claim_text"`
	CanonicalText string    `gorm:"type:text" json:"canonical_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// Query returns the text used for retrieval and generation
func (c *Claim) Query() string {
	if q := strings.TrimSpace(c.CanonicalText); q != "" {
		return q
	}
	return strings.TrimSpace(c.ClaimText)
}
