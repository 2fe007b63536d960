package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/adveritas/internal/pipeline"
	"github.com/ppiankov/adveritas/internal/store"
)

// APIError is the body of every error response
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError
type ErrorEnvelope struct {
	OK    bool     `json:"ok"`
	Error APIError `json:"error"`
}

// RespondError writes an error envelope
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: code},
	})
}

// RespondOK writes payload with status 200
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondInternal maps well-known errors to status codes
func (s *Server) respondInternal(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pipeline.ErrBadRequest):
		RespondError(c, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, pipeline.ErrNoQueue):
		RespondError(c, http.StatusServiceUnavailable, "no_queue", err)
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		RespondError(c, http.StatusBadRequest, "bad_id", errors.New("id must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

// boolQuery reads a boolean query flag; anything unparseable is false
func boolQuery(c *gin.Context, key string) bool {
	b, err := strconv.ParseBool(c.Query(key))
	return err == nil && b
}

// queued is the body answered by every trigger endpoint
func queued(jobID string, extra gin.H) gin.H {
	out := gin.H{"ok": true, "queued": true, "job_id": jobID}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
