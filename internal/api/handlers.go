package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/pipeline"
	"github.com/ppiankov/adveritas/internal/worker"
)

// GET /
func (s *Server) index(c *gin.Context) {
	RespondOK(c, gin.H{"name": s.cfg.ServiceName, "version": s.cfg.Version})
}

// GET /health
func (s *Server) health(c *gin.Context) {
	if err := s.orch.Store().Ping(c.Request.Context()); err != nil {
		RespondError(c, http.StatusServiceUnavailable, "db_unavailable", err)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}

type ingestURLRequest struct {
	SourceURL string `json:"source_url" binding:"required"`
	Title     string `json:"title"`
}

// POST /videos/ingest_url
func (s *Server) ingestURL(c *gin.Context) {
	var req ingestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	res, err := s.orch.Ingest(c.Request.Context(), pipeline.IngestRequest{SourceURL: req.SourceURL, Title: req.Title})
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, queued(res.JobID, gin.H{"video_id": res.VideoID, "status": res.Status}))
}

// POST /videos/ingest (multipart: file, title)
func (s *Server) ingestUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("file is required: %w", err))
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	defer func() { _ = f.Close() }()

	audio, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if int64(len(audio)) > s.cfg.MaxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}
	if len(audio) == 0 {
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("file is empty"))
		return
	}

	res, err := s.orch.Ingest(c.Request.Context(), pipeline.IngestRequest{
		Title: c.PostForm("title"),
		Audio: audio,
	})
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, queued(res.JobID, gin.H{"video_id": res.VideoID, "status": res.Status}))
}

// GET /videos/:id
func (s *Server) getVideo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	v, err := s.orch.Store().GetVideo(c.Request.Context(), id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, v)
}

// GET /videos/:id/segments
func (s *Server) listSegments(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.orch.Store().GetVideo(ctx, id); err != nil {
		s.respondInternal(c, err)
		return
	}
	segs, err := s.orch.Store().ListSegments(ctx, id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, segs)
}

// POST /videos/:id/transcribe?force=
func (s *Server) triggerTranscription(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.orch.Store().GetVideo(c.Request.Context(), id); err != nil {
		s.respondInternal(c, err)
		return
	}
	force := boolQuery(c, "force")
	jobID, err := s.orch.Enqueue(c.Request.Context(), worker.KindTranscribe, id,
		pipeline.BoolParams(pipeline.ParamForce, force))
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, queued(jobID, gin.H{"video_id": id, "force": force}))
}

// GET /claims/video/:id
func (s *Server) listClaims(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.orch.Store().GetVideo(ctx, id); err != nil {
		s.respondInternal(c, err)
		return
	}
	claims, err := s.orch.Store().ListClaims(ctx, id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, claims)
}

// GET /claims/:id
func (s *Server) getClaim(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	claim, err := s.orch.Store().GetClaim(c.Request.Context(), id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, claim)
}

// POST /claims/video/:id/extract?overwrite=
func (s *Server) triggerExtraction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.orch.Store().GetVideo(c.Request.Context(), id); err != nil {
		s.respondInternal(c, err)
		return
	}
	overwrite := boolQuery(c, "overwrite")
	jobID, err := s.orch.Enqueue(c.Request.Context(), worker.KindExtractClaims, id,
		pipeline.BoolParams(pipeline.ParamOverwrite, overwrite))
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, queued(jobID, gin.H{"video_id": id, "overwrite": overwrite}))
}

// GET /evidence/claim/:id?limit=
func (s *Server) listEvidence(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.orch.Store().GetClaim(ctx, id); err != nil {
		s.respondInternal(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := s.orch.Store().ListEvidence(ctx, id, limit)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	evidence.SortBestFirst(rows)
	RespondOK(c, rows)
}

// POST /evidence/claim/:id/fetch
func (s *Server) triggerEvidence(c *gin.Context) {
	s.triggerClaimStage(c, worker.KindFetchEvidence)
}

// POST /verdicts/claim/:id/generate
func (s *Server) triggerVerdict(c *gin.Context) {
	s.triggerClaimStage(c, worker.KindGenerateVerdict)
}

func (s *Server) triggerClaimStage(c *gin.Context, kind worker.Kind) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := s.orch.Store().GetClaim(c.Request.Context(), id); err != nil {
		s.respondInternal(c, err)
		return
	}
	jobID, err := s.orch.Enqueue(c.Request.Context(), kind, id, nil)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, queued(jobID, gin.H{"claim_id": id}))
}

// GET /verdicts/claim/:id
func (s *Server) latestVerdict(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := s.orch.GetLatestVerdict(c.Request.Context(), id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, res)
}

// GET /verdicts/claim/:id/history
func (s *Server) verdictHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.orch.Store().GetClaim(ctx, id); err != nil {
		s.respondInternal(c, err)
		return
	}
	rows, err := s.orch.Store().ListVerdicts(ctx, id)
	if err != nil {
		s.respondInternal(c, err)
		return
	}
	RespondOK(c, rows)
}
