package pipeline

import (
	"encoding/json"

	"github.com/ppiankov/adveritas/internal/model"
)

// Reason explains why a stage did not run
type Reason string

const (
	ReasonNoVideo    Reason = "no_video"
	ReasonNoSegments Reason = "no_segments"
	ReasonNoClaim    Reason = "no_claim"
	ReasonNoVerdict  Reason = "no_verdict"
)

// IngestRequest carries either a source URL or uploaded audio
type IngestRequest struct {
	SourceURL string
	Title     string
	Audio     []byte
}

// IngestResult is returned for a newly queued video
type IngestResult struct {
	VideoID uint         `json:"video_id"`
	Status  model.Status `json:"status"`
	JobID   string       `json:"job_id,omitempty"`
}

// TranscriptionResult is the outcome of the transcription stage
type TranscriptionResult struct {
	VideoID  uint         `json:"video_id"`
	Status   model.Status `json:"status,omitempty"`
	Segments int          `json:"segments,omitempty"`
	Skipped  bool         `json:"skipped,omitempty"`
	Reason   Reason       `json:"reason,omitempty"`
}

// ExtractResult is the outcome of claim extraction
type ExtractResult struct {
	VideoID      uint         `json:"video_id"`
	CreatedCount int          `json:"created_count"`
	DeletedCount int64        `json:"deleted_count,omitempty"`
	ClaimIDs     []uint       `json:"claim_ids,omitempty"`
	Status       model.Status `json:"status,omitempty"`
	Skipped      bool         `json:"skipped,omitempty"`
	Reason       Reason       `json:"reason,omitempty"`
}

// EvidenceResult is the outcome of evidence retrieval
type EvidenceResult struct {
	ClaimID     uint   `json:"claim_id"`
	StoredCount int    `json:"stored_count"`
	Reason      Reason `json:"reason,omitempty"`
}

// VerdictResult is the outcome of verdict synthesis
type VerdictResult struct {
	ClaimID    uint        `json:"claim_id"`
	VerdictID  uint        `json:"verdict_id,omitempty"`
	Label      model.Label `json:"label,omitempty"`
	Confidence float64     `json:"confidence"`
	Fallback   bool        `json:"fallback,omitempty"`
	Reason     Reason      `json:"reason,omitempty"`
}

// LatestVerdict is the current verdict of a claim
type LatestVerdict struct {
	OK         bool        `json:"ok"`
	Reason     Reason      `json:"reason,omitempty"`
	VerdictID  uint        `json:"verdict_id,omitempty"`
	Label      model.Label `json:"label,omitempty"`
	Confidence float64     `json:"confidence"`
	Rationale  string      `json:"rationale"`
	Sources    []any       `json:"sources"`
}

// MarshalJSON writes only ok and reason when there is no verdict
func (l LatestVerdict) MarshalJSON() ([]byte, error) {
	if !l.OK {
		return json.Marshal(struct {
			OK     bool   `json:"ok"`
			Reason Reason `json:"reason"`
		}{false, l.Reason})
	}
	type plain LatestVerdict
	return json.Marshal(plain(l))
}
