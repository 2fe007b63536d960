// Package evidence gathers candidate snippets for a claim and stores them
// ranked by embedding similarity.
package evidence

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/worker"
)

// Candidate is an unscored snippet returned by a source
type Candidate struct {
	Source  string
	Title   string
	URL     string
	Snippet string
}

// Source retrieves candidates for a query
type Source interface {
	// Name is the tag stored on evidence rows, e.g. "wikipedia"
	Name() string

	// Search returns at most the source's configured number of candidates
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Registry fans a query out to every registered source
type Registry struct {
	sources []Source
	log     *logger.Logger
}

// NewRegistry creates a registry. Nil sources are ignored.
func NewRegistry(log *logger.Logger, sources ...Source) *Registry {
	r := &Registry{log: logger.OrNop(log).With("service", "EvidenceRegistry")}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds a source; sources are queried in registration order
func (r *Registry) Register(s Source) {
	if s == nil {
		return
	}
	r.sources = append(r.sources, s)
}

// Sources lists the registered source names
func (r *Registry) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// Gather queries every source in order and concatenates the results.
// A source that fails permanently (bad key, rejected query) is skipped;
// any other failure aborts the gather so the stage can be retried.
func (r *Registry) Gather(ctx context.Context, query string) ([]Candidate, error) {
	var out []Candidate
	for _, s := range r.sources {
		found, err := s.Search(ctx, query)
		if err != nil {
			if worker.IsPermanent(err) {
				r.log.Warn("evidence source skipped", "source", s.Name(), "error", err)
				continue
			}
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		r.log.Debug("evidence source searched", "source", s.Name(), "found", len(found))
		out = append(out, found...)
	}
	return out, nil
}
