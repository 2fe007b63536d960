package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/llm"
	"github.com/ppiankov/adveritas/internal/media"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/store"
	"github.com/ppiankov/adveritas/internal/telemetry"
	"github.com/ppiankov/adveritas/internal/transcribe"
	"github.com/ppiankov/adveritas/internal/worker"
)

var errNoTranscriber = errors.New("transcription disabled")

// Ingest creates a QUEUED video and enqueues its transcription. Uploaded
// audio is stored right away; URL ingests are fetched by the
// transcription stage.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	ctx, span := telemetry.StartStage(ctx, o.tracer, "ingest")
	defer func() { telemetry.End(span, err) }()

	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" && len(req.Audio) == 0 {
		return nil, fmt.Errorf("%w: either source_url or audio is required", ErrBadRequest)
	}
	if sourceURL != "" && !isWebURL(sourceURL) {
		return nil, fmt.Errorf("%w: source_url must be an absolute http(s) URL", ErrBadRequest)
	}

	v := &model.Video{
		SourceURL: model.OptionalString(sourceURL),
		Title:     model.OptionalString(strings.TrimSpace(req.Title)),
		Status:    model.StatusQueued,
	}
	if err := o.store.CreateVideo(ctx, v); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("video_id", int64(v.ID)))

	if len(req.Audio) > 0 {
		if err := o.objects.Put(ctx, v.MediaKey(), bytes.NewReader(req.Audio), media.AudioContentType); err != nil {
			if derr := o.store.DeleteVideo(ctx, v.ID); derr != nil {
				o.log.Error("failed to remove video after upload error", "video_id", v.ID, "error", derr)
			}
			return nil, fmt.Errorf("store audio: %w", err)
		}
	}

	res = &IngestResult{VideoID: v.ID, Status: v.Status}
	if o.queue != nil {
		jobID, err := o.Enqueue(ctx, worker.KindTranscribe, v.ID, nil)
		if err != nil {
			return nil, err
		}
		res.JobID = jobID
	}
	o.log.Info("video ingested", "video_id", v.ID, "source_url", sourceURL, "upload_bytes", len(req.Audio))
	return res, nil
}

// isWebURL reports whether s is an absolute http or https URL with a host
func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// RunTranscription fetches metadata and audio as needed, transcribes it and
// stores the segments together with the resulting status. Without force a
// video that already left QUEUED is not touched.
func (o *Orchestrator) RunTranscription(ctx context.Context, videoID uint, force bool) (res *TranscriptionResult, err error) {
	ctx, span := telemetry.StartStage(ctx, o.tracer, "transcribe",
		attribute.Int64("video_id", int64(videoID)), attribute.Bool("force", force))
	defer func() { telemetry.End(span, err) }()

	v, err := o.store.GetVideo(ctx, videoID)
	if errors.Is(err, store.ErrNotFound) {
		return &TranscriptionResult{VideoID: videoID, Reason: ReasonNoVideo}, nil
	}
	if err != nil {
		return nil, err
	}
	if !force && v.Status != model.StatusQueued {
		o.log.Info("transcription skipped", "video_id", videoID, "status", v.Status)
		return &TranscriptionResult{VideoID: videoID, Status: v.Status, Skipped: true}, nil
	}
	if o.transcriber == nil {
		return nil, worker.Permanent(errNoTranscriber)
	}

	sourceURL := model.StrOrEmpty(v.SourceURL)
	if sourceURL != "" && o.media != nil {
		o.enrichMetadata(ctx, v.ID, sourceURL)
	}

	audio, err := o.loadAudio(ctx, v)
	if err != nil {
		return nil, err
	}

	segs, err := o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if len(segs) == 0 {
		segs = []transcribe.Segment{transcribe.Placeholder()}
	}

	status := model.StatusNoSpeech
	if transcribe.HasSpeech(segs) {
		status = model.StatusTranscribed
	}
	rows := transcribe.ToModel(v.ID, segs)

	err = o.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.ReplaceSegments(ctx, v.ID, rows); err != nil {
			return err
		}
		return tx.SetVideoStatus(ctx, v.ID, status, force)
	})
	if err != nil {
		return nil, permanentIfRejected(err)
	}

	o.log.Info("transcription stored", "video_id", v.ID, "status", status, "segments", len(rows))
	if status == model.StatusTranscribed {
		o.chain(ctx, worker.KindExtractClaims, v.ID)
	}
	return &TranscriptionResult{VideoID: v.ID, Status: status, Segments: len(rows)}, nil
}

func (o *Orchestrator) enrichMetadata(ctx context.Context, videoID uint, sourceURL string) {
	meta := o.media.Metadata(ctx, sourceURL)
	if meta.Empty() {
		return
	}
	update := store.VideoMetadata{Title: meta.Title, ThumbnailURL: meta.ThumbnailURL}
	if meta.Duration != nil {
		update.Duration = *meta.Duration
	}
	if err := o.store.UpdateVideoMetadata(ctx, videoID, update); err != nil {
		o.log.Warn("failed to store metadata", "video_id", videoID, "error", err)
	}
}

// loadAudio reads the stored audio, downloading and storing it first for
// URL ingests that have none yet
func (o *Orchestrator) loadAudio(ctx context.Context, v *model.Video) ([]byte, error) {
	audio, err := o.objects.Get(ctx, v.MediaKey())
	if err == nil {
		return audio, nil
	}
	if !errors.Is(err, media.ErrObjectNotFound) {
		return nil, fmt.Errorf("load audio: %w", err)
	}

	sourceURL := model.StrOrEmpty(v.SourceURL)
	if sourceURL == "" || o.media == nil {
		return nil, worker.Permanent(fmt.Errorf("no audio stored for video %d", v.ID))
	}
	audio, err = o.media.FetchAudio(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if err := o.objects.Put(ctx, v.MediaKey(), bytes.NewReader(audio), media.AudioContentType); err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	o.log.Info("audio stored", "video_id", v.ID, "key", v.MediaKey(), "bytes", len(audio))
	return audio, nil
}

// ExtractClaims turns the video's transcript into claims. With overwrite the
// existing claims are replaced; the delete, insert and status update commit
// together. Without overwrite a video that already has claims is left
// untouched, so a redelivered job is a no-op.
func (o *Orchestrator) ExtractClaims(ctx context.Context, videoID uint, overwrite bool) (res *ExtractResult, err error) {
	ctx, span := telemetry.StartStage(ctx, o.tracer, "extract_claims",
		attribute.Int64("video_id", int64(videoID)), attribute.Bool("overwrite", overwrite))
	defer func() { telemetry.End(span, err) }()

	v, err := o.store.GetVideo(ctx, videoID)
	if errors.Is(err, store.ErrNotFound) {
		return &ExtractResult{VideoID: videoID, Reason: ReasonNoVideo}, nil
	}
	if err != nil {
		return nil, err
	}

	if !overwrite {
		n, err := o.store.CountClaims(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			o.log.Info("claims already extracted", "video_id", videoID, "claims", n, "status", v.Status)
			return &ExtractResult{VideoID: videoID, Status: v.Status, Skipped: true}, nil
		}
	}

	all, err := o.store.ListSegments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	segs := make([]model.Segment, 0, len(all))
	for _, seg := range all {
		if !seg.IsPlaceholder() {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		o.log.Info("no segments to extract", "video_id", videoID, "status", v.Status)
		return &ExtractResult{VideoID: videoID, Status: v.Status, Reason: ReasonNoSegments}, nil
	}

	candidates, err := o.extractor.Extract(ctx, segs)
	if err != nil {
		return nil, err
	}

	claims := make([]*model.Claim, len(candidates))
	for i, c := range candidates {
		segID := c.SegmentID
		claims[i] = &model.Claim{
			VideoID:       videoID,
			SegmentID:     &segID,
			ClaimText:     c.Text,
			CanonicalText: c.Text,
		}
	}

	// Re-running extraction on an already extracted video is a reprocessing
	// step and may move between CLAIMED and NO_CLAIMS.
	reset := overwrite || v.Status != model.StatusTranscribed
	res = &ExtractResult{VideoID: videoID}
	err = o.store.Transaction(ctx, func(tx *store.Store) error {
		locked, err := tx.LockVideo(ctx, videoID)
		if err != nil {
			return err
		}
		if overwrite {
			deleted, err := tx.DeleteClaimsForVideo(ctx, videoID)
			if err != nil {
				return err
			}
			res.DeletedCount = deleted
		} else {
			// a concurrent delivery may have committed while the
			// classifier ran
			n, err := tx.CountClaims(ctx, videoID)
			if err != nil {
				return err
			}
			if n > 0 {
				res.Status = locked.Status
				res.Skipped = true
				return nil
			}
		}
		if err := tx.CreateClaims(ctx, claims); err != nil {
			return err
		}
		res.Status = model.StatusNoClaims
		if len(claims) > 0 {
			res.Status = model.StatusClaimed
		}
		return tx.SetVideoStatus(ctx, videoID, res.Status, reset)
	})
	if err != nil {
		return nil, permanentIfRejected(err)
	}
	if res.Skipped {
		o.log.Info("claims already extracted", "video_id", videoID, "status", res.Status)
		return res, nil
	}

	res.CreatedCount = len(claims)
	for _, c := range claims {
		res.ClaimIDs = append(res.ClaimIDs, c.ID)
	}
	o.log.Info("claims extracted", "video_id", videoID, "created", res.CreatedCount,
		"deleted", res.DeletedCount, "status", res.Status)

	for _, id := range res.ClaimIDs {
		o.chain(ctx, worker.KindFetchEvidence, id)
	}
	return res, nil
}

// FetchEvidence gathers candidates for the claim and stores them ranked.
// Repeated calls add rows; nothing is deduplicated.
func (o *Orchestrator) FetchEvidence(ctx context.Context, claimID uint) (res *EvidenceResult, err error) {
	ctx, span := telemetry.StartStage(ctx, o.tracer, "fetch_evidence", attribute.Int64("claim_id", int64(claimID)))
	defer func() { telemetry.End(span, err) }()

	claim, err := o.store.GetClaim(ctx, claimID)
	if errors.Is(err, store.ErrNotFound) {
		return &EvidenceResult{ClaimID: claimID, Reason: ReasonNoClaim}, nil
	}
	if err != nil {
		return nil, err
	}

	candidates, err := o.sources.Gather(ctx, claim.Query())
	if err != nil {
		return nil, fmt.Errorf("gather evidence: %w", err)
	}
	n, err := o.ranker.RankAndStore(ctx, claim, candidates)
	if err != nil {
		return nil, err
	}

	o.log.Info("evidence fetched", "claim_id", claimID, "candidates", len(candidates), "stored", n)
	o.chain(ctx, worker.KindGenerateVerdict, claimID)
	return &EvidenceResult{ClaimID: claimID, StoredCount: n}, nil
}

// GenerateVerdict synthesizes and appends a new verdict for the claim from
// its best stored evidence. No evidence is not an error.
func (o *Orchestrator) GenerateVerdict(ctx context.Context, claimID uint) (res *VerdictResult, err error) {
	ctx, span := telemetry.StartStage(ctx, o.tracer, "generate_verdict", attribute.Int64("claim_id", int64(claimID)))
	defer func() { telemetry.End(span, err) }()

	claim, err := o.store.GetClaim(ctx, claimID)
	if errors.Is(err, store.ErrNotFound) {
		return &VerdictResult{ClaimID: claimID, Reason: ReasonNoClaim}, nil
	}
	if err != nil {
		return nil, err
	}
	if o.synthesizer == nil {
		return nil, worker.Permanent(llm.ErrDisabled)
	}

	rows, err := o.store.ListEvidence(ctx, claimID, o.evidenceLimit)
	if err != nil {
		return nil, err
	}
	evidence.SortBestFirst(rows)

	out, err := o.synthesizer.Synthesize(ctx, claim.Query(), rows)
	if err != nil {
		return nil, err
	}

	v := &model.Verdict{
		ClaimID:    claimID,
		Label:      out.Label,
		Confidence: out.Confidence,
		Rationale:  out.Rationale,
		Sources:    model.EncodeSources(out.Sources),
	}
	if err := o.store.CreateVerdict(ctx, v); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("label", string(v.Label)))
	o.log.Info("verdict generated", "claim_id", claimID, "label", v.Label,
		"confidence", v.Confidence, "evidence", len(rows), "fallback", out.Fallback)
	return &VerdictResult{
		ClaimID:    claimID,
		VerdictID:  v.ID,
		Label:      v.Label,
		Confidence: v.Confidence,
		Fallback:   out.Fallback,
	}, nil
}

// GetLatestVerdict returns the most recent verdict of the claim
func (o *Orchestrator) GetLatestVerdict(ctx context.Context, claimID uint) (*LatestVerdict, error) {
	v, err := o.store.LatestVerdict(ctx, claimID)
	if errors.Is(err, store.ErrNotFound) {
		return &LatestVerdict{OK: false, Reason: ReasonNoVerdict}, nil
	}
	if err != nil {
		return nil, err
	}
	return &LatestVerdict{
		OK:         true,
		VerdictID:  v.ID,
		Label:      v.Label,
		Confidence: v.Confidence,
		Rationale:  v.Rationale,
		Sources:    v.SourceList(),
	}, nil
}

// permanentIfRejected stops retries of a write the transition table refused
func permanentIfRejected(err error) error {
	if errors.Is(err, model.ErrInvalidTransition) {
		return worker.Permanent(err)
	}
	return err
}
