package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/adveritas/internal/embed"
	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/store"
)

// Ranker embeds a claim and its candidates and stores one scored evidence
// row per candidate
type Ranker struct {
	store      *store.Store
	embedder   embed.Embedder
	snippetMax int
	log        *logger.Logger
}

// NewRanker creates a ranker
func NewRanker(s *store.Store, embedder embed.Embedder, snippetMax int, log *logger.Logger) *Ranker {
	if snippetMax <= 0 {
		snippetMax = DefaultSnippetMax
	}
	return &Ranker{
		store:      s,
		embedder:   embedder,
		snippetMax: snippetMax,
		log:        logger.OrNop(log).With("service", "Ranker"),
	}
}

// Score builds evidence rows in arrival order without persisting them.
// Candidates with an empty snippet get no similarity and no vector.
func (r *Ranker) Score(ctx context.Context, claim *model.Claim, candidates []Candidate) ([]*model.Evidence, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	snippets := make([]string, len(candidates))
	slot := make([]int, len(candidates))
	var texts []string
	queryText := claim.Query()
	if queryText != "" {
		texts = append(texts, queryText)
	}
	for i, c := range candidates {
		snippets[i] = Truncate(strings.TrimSpace(c.Snippet), r.snippetMax)
		slot[i] = -1
		if snippets[i] != "" {
			slot[i] = len(texts)
			texts = append(texts, snippets[i])
		}
	}

	var vecs [][]float32
	if len(texts) > 0 {
		var err error
		vecs, err = r.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(vecs))
		}
	}

	var query []float32
	if queryText != "" {
		query = embed.Normalize(vecs[0])
	}

	rows := make([]*model.Evidence, len(candidates))
	for i, c := range candidates {
		row := &model.Evidence{
			ClaimID: claim.ID,
			Source:  c.Source,
			Title:   model.OptionalString(c.Title),
			URL:     model.OptionalString(c.URL),
			Snippet: snippets[i],
		}
		if slot[i] >= 0 {
			if vec := embed.Normalize(vecs[slot[i]]); vec != nil {
				row.Embedding = embed.Serialize(vec)
				if query != nil {
					sim := embed.Dot(query, vec)
					row.Similarity = &sim
				}
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// RankAndStore scores candidates and persists them in one transaction.
// An empty candidate list stores nothing and is not an error.
func (r *Ranker) RankAndStore(ctx context.Context, claim *model.Claim, candidates []Candidate) (int, error) {
	rows, err := r.Score(ctx, claim, candidates)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.CreateEvidence(ctx, rows)
	}); err != nil {
		return 0, fmt.Errorf("store evidence: %w", err)
	}
	r.log.Info("evidence stored", "claim_id", claim.ID, "count", len(rows))
	return len(rows), nil
}

// SortBestFirst orders rows by similarity descending with absent
// similarity last; ties keep insertion order by id
func SortBestFirst(rows []model.Evidence) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Similarity, rows[j].Similarity
		switch {
		case a == nil && b == nil:
			return rows[i].ID < rows[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return rows[i].ID < rows[j].ID
		}
	})
}
