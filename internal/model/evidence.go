package model

import "time"

// Evidence is a retrieved snippet scored against a claim.
// Similarity is nil when the snippet could not be embedded.
type Evidence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ClaimID    uint      `gorm:"index;not null" json:"claim_id"`
	Claim      *Claim    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Source     string    `gorm:"size:64" json:"source"`
	Title      *string   `json:"title"`
	URL        *string   `json:"url"`
	Snippet    string    `gorm:"type:text" json:"snippet"`
	Similarity *float64  `json:"similarity"`
	Embedding  []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// StrOrEmpty dereferences an optional string
func StrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OptionalString returns nil for an empty string
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
