package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/adveritas/internal/cache"
	"github.com/ppiankov/adveritas/internal/embed"
	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/extract"
	"github.com/ppiankov/adveritas/internal/llm"
	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/media"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/pipeline"
	"github.com/ppiankov/adveritas/internal/store"
	"github.com/ppiankov/adveritas/internal/telemetry"
	"github.com/ppiankov/adveritas/internal/transcribe"
	"github.com/ppiankov/adveritas/internal/util"
	"github.com/ppiankov/adveritas/internal/verdict"
	"github.com/ppiankov/adveritas/internal/worker"
)

// app holds every long-lived component a command needs
type app struct {
	cfg        model.Config
	log        *logger.Logger
	store      *store.Store
	queue      worker.Queue
	redis      *redis.Client
	downloader *media.Downloader
	generator  llm.Generator
	transcribe bool
	orch       *pipeline.Orchestrator
	closers    []func() error
}

type appOptions struct {
	// queue connects the configured job queue; without it stages only run inline
	queue bool
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// jobTimeout is the longest a single job may run. Without a stage bound a
// transcription job may spend the full download and transcription timeouts.
func jobTimeout(cfg model.Config) time.Duration {
	if cfg.Pipeline.StageTimeout > 0 {
		return seconds(cfg.Pipeline.StageTimeout)
	}
	return media.DefaultDownloadTimeout + seconds(cfg.Transcription.Timeout)
}

// newApp wires the store, queue, stage collaborators and orchestrator
func newApp(ctx context.Context, cfg model.Config, opts appOptions) (a *app, err error) {
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	a.store, err = store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	objects, err := media.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	if c, ok := objects.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	if opts.queue {
		if err := a.openQueue(); err != nil {
			return nil, err
		}
	}

	httpClient := util.NewHTTPClient(seconds(cfg.HTTP.Timeout), cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	limiter := worker.NewLimiter(cfg.Evidence.RequestsPerSecond, 0)

	// Media
	a.downloader = media.NewDownloader(cfg.Media.YtDlpPath, cfg.Media.FFmpegPath, 0, log)
	robots := util.NewRobotsChecker(cfg.HTTP.UserAgent, httpClient)
	page := media.NewPageFetcher(httpClient, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, robots, limiter)
	source := media.NewSource(a.downloader, page, log)

	// Transcription
	var stt pipeline.SpeechToText
	engine, err := transcribe.NewEngine(ctx, cfg.Transcription, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("transcription engine: %w", err)
	}
	if engine != nil {
		stt = transcribe.New(engine, log)
		a.transcribe = true
		if c, ok := engine.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	} else {
		log.Warn("transcription disabled: no provider configured")
	}

	// Claim extraction
	classifier := extract.NewZeroShotClient(cfg.Classifier.BaseURL, cfg.Classifier.Model, cfg.Classifier.APIKey,
		util.NewHTTPClient(seconds(cfg.Classifier.Timeout), cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy))
	extractor := extract.NewClaimExtractor(extract.NewSplitter(), classifier, cfg.Classifier.Threshold, log)

	// Evidence
	embedder, err := a.newEmbedder()
	if err != nil {
		return nil, err
	}
	sources, err := a.evidenceSources(limiter)
	if err != nil {
		return nil, err
	}
	registry := evidence.NewRegistry(log, sources...)
	ranker := evidence.NewRanker(a.store, embedder, cfg.Evidence.SnippetMax, log)

	// Verdicts
	a.generator, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if a.generator == nil {
		log.Warn("verdict synthesis disabled: no LLM provider configured")
	}
	synthesizer := verdict.NewSynthesizer(a.generator, cfg.Verdict.TopK, log)

	a.orch = pipeline.New(pipeline.Deps{
		Store:         a.store,
		Objects:       objects,
		Media:         source,
		Transcriber:   stt,
		Extractor:     extractor,
		Sources:       registry,
		Ranker:        ranker,
		Synthesizer:   synthesizer,
		Queue:         a.queue,
		Tracer:        telemetry.Tracer(),
		Log:           log,
		AutoChain:     cfg.Pipeline.AutoChain,
		EvidenceLimit: cfg.Verdict.EvidenceLimit,
		StageTimeout:  seconds(cfg.Pipeline.StageTimeout),
	})
	return a, nil
}

func (a *app) openQueue() error {
	switch strings.ToLower(a.cfg.Queue.Backend) {
	case "memory", "":
		q := worker.NewMemoryQueue(a.cfg.Queue.Buffer)
		a.queue = q
		a.closers = append(a.closers, q.Close)
	case "redis":
		client, err := worker.NewRedisClient(a.cfg.Queue.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
		// closing the queue closes the client
		q := worker.NewRedisQueue(client, a.cfg.Queue.Stream, a.cfg.Queue.Group, consumerName(), a.log)
		q.ReclaimIdle = worker.ReclaimIdleFor(jobTimeout(a.cfg))
		a.queue = q
		a.closers = append(a.closers, q.Close)
	default:
		return fmt.Errorf("unknown queue backend: %s (supported: memory, redis)", a.cfg.Queue.Backend)
	}
	return nil
}

// newEmbedder wraps the configured embedding backend in a memory, disk and,
// with a redis queue, shared redis cache
func (a *app) newEmbedder() (embed.Embedder, error) {
	cfg := a.cfg.Embedding
	inner, err := embed.New(cfg, util.NewHTTPClient(seconds(cfg.Timeout), a.cfg.HTTP.HTTPProxy, a.cfg.HTTP.HTTPSProxy, a.cfg.HTTP.NoProxy))
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	ttl := seconds(cfg.CacheTTL)
	layers := []cache.Cache{cache.NewMemoryCache(ttl, 10*time.Minute)}
	if cfg.CacheDir != "" {
		layers = append(layers, cache.NewDiskCache(cfg.CacheDir, ttl))
	}
	if a.redis != nil {
		layers = append(layers, cache.NewRedisCache(a.redis, "adveritas:emb:", ttl))
	}
	return embed.NewCachedEmbedder(inner, cache.NewLayeredCache(layers...), ttl), nil
}

func (a *app) evidenceSources(limiter *worker.Limiter) ([]evidence.Source, error) {
	cfg := a.cfg.Evidence
	client := util.NewHTTPClient(seconds(cfg.Timeout), a.cfg.HTTP.HTTPProxy, a.cfg.HTTP.HTTPSProxy, a.cfg.HTTP.NoProxy)
	ua := a.cfg.HTTP.UserAgent

	sources := []evidence.Source{
		evidence.NewWikipedia(cfg.WikipediaURL, cfg.WikipediaTopK, cfg.SnippetMax, ua, client, limiter),
	}
	if news := evidence.NewNewsAPI(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.NewsAPITopK, cfg.SnippetMax, ua, client, limiter); news != nil {
		sources = append(sources, news)
	}
	if cfg.CorpusPath != "" {
		corpus, err := evidence.OpenCorpus(cfg.CorpusPath, cfg.CorpusTopK, cfg.SnippetMax)
		if err != nil {
			return nil, fmt.Errorf("corpus: %w", err)
		}
		a.closers = append(a.closers, corpus.Close)
		sources = append(sources, corpus)
	}
	return sources, nil
}

// runner builds a job runner bound to the orchestrator
func (a *app) runner(workers int) *worker.Runner {
	if workers <= 0 {
		workers = a.cfg.Workers.Count
	}
	r := worker.NewRunner(a.queue, workers, a.cfg.Queue.MaxAttempts, a.log)
	a.orch.Register(r)
	return r
}

// Close releases components in reverse order of creation
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.log != nil {
		a.log.Sync()
	}
	return errors.Join(errs...)
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
