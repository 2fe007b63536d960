package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Label is the outcome of a fact check
type Label string

const (
	LabelTrue         Label = "TRUE"
	LabelPartlyTrue   Label = "PARTLY_TRUE"
	LabelFalse        Label = "FALSE"
	LabelUnverifiable Label = "UNVERIFIABLE"
)

// Labels lists the allowed verdict labels in prompt order
var Labels = []Label{LabelTrue, LabelPartlyTrue, LabelFalse, LabelUnverifiable}

// Valid reports whether l is one of the four labels
func (l Label) Valid() bool {
	switch l {
	case LabelTrue, LabelPartlyTrue, LabelFalse, LabelUnverifiable:
		return true
	}
	return false
}

// Verdict is one synthesized judgment on a claim. Verdicts are append-only;
// the current one is the most recent by CreatedAt.
type Verdict struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ClaimID    uint           `gorm:"index;not null" json:"claim_id"`
	Claim      *Claim         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Label      Label          `gorm:"size:32;not null" json:"label"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `gorm:"type:text" json:"rationale"`
	Sources    datatypes.JSON `json:"sources"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// SourceList decodes the stored sources. Malformed data yields an empty list.
func (v *Verdict) SourceList() []any {
	out := []any{}
	if len(v.Sources) == 0 {
		return out
	}
	if err := json.Unmarshal(v.Sources, &out); err != nil || out == nil {
		return []any{}
	}
	return out
}

// EncodeSources serializes a sources list for storage
func EncodeSources(sources []any) datatypes.JSON {
	if sources == nil {
		sources = []any{}
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
