// Package pipeline advances videos and claims through transcription, claim
// extraction, evidence retrieval and verdict synthesis.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/extract"
	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/media"
	"github.com/ppiankov/adveritas/internal/store"
	"github.com/ppiankov/adveritas/internal/telemetry"
	"github.com/ppiankov/adveritas/internal/transcribe"
	"github.com/ppiankov/adveritas/internal/verdict"
	"github.com/ppiankov/adveritas/internal/worker"
)

// ErrBadRequest is returned by Ingest for a missing or malformed source
var ErrBadRequest = errors.New("bad request")

// ErrNoQueue is returned by Enqueue when the orchestrator runs without a queue
var ErrNoQueue = errors.New("no job queue configured")

// MediaSource resolves metadata and audio for URL ingests
type MediaSource interface {
	Metadata(ctx context.Context, sourceURL string) media.Metadata
	FetchAudio(ctx context.Context, sourceURL string) ([]byte, error)
}

// SpeechToText turns audio into ordered transcript segments
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) ([]transcribe.Segment, error)
}

// Deps are the collaborators the stages run against. Store and Objects are
// required; a nil Transcriber or Synthesizer makes its stage fail permanently.
type Deps struct {
	Store       *store.Store
	Objects     media.ObjectStore
	Media       MediaSource
	Transcriber SpeechToText
	Extractor   *extract.ClaimExtractor
	Sources     *evidence.Registry
	Ranker      *evidence.Ranker
	Synthesizer *verdict.Synthesizer
	Queue       worker.Queue
	Tracer      trace.Tracer
	Log         *logger.Logger

	// AutoChain enqueues the next stage after each successful one
	AutoChain bool

	// EvidenceLimit caps how many stored rows are read for a verdict
	EvidenceLimit int

	// StageTimeout bounds one job invocation; 0 means no extra bound
	StageTimeout time.Duration
}

// Orchestrator runs pipeline stages and dispatches stage jobs
type Orchestrator struct {
	store         *store.Store
	objects       media.ObjectStore
	media         MediaSource
	transcriber   SpeechToText
	extractor     *extract.ClaimExtractor
	sources       *evidence.Registry
	ranker        *evidence.Ranker
	synthesizer   *verdict.Synthesizer
	queue         worker.Queue
	tracer        trace.Tracer
	log           *logger.Logger
	autoChain     bool
	evidenceLimit int
	stageTimeout  time.Duration
}

// New creates an orchestrator from its dependencies
func New(d Deps) *Orchestrator {
	limit := d.EvidenceLimit
	if limit <= 0 {
		limit = 10
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	return &Orchestrator{
		store:         d.Store,
		objects:       d.Objects,
		media:         d.Media,
		transcriber:   d.Transcriber,
		extractor:     d.Extractor,
		sources:       d.Sources,
		ranker:        d.Ranker,
		synthesizer:   d.Synthesizer,
		queue:         d.Queue,
		tracer:        tracer,
		log:           logger.OrNop(d.Log).With("service", "Pipeline"),
		autoChain:     d.AutoChain,
		evidenceLimit: limit,
		stageTimeout:  d.StageTimeout,
	}
}

// Store exposes the underlying store for read endpoints
func (o *Orchestrator) Store() *store.Store {
	return o.store
}
