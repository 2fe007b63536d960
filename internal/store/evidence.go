package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/model"
)

// CreateEvidence inserts rows in the given order
func (s *Store) CreateEvidence(ctx context.Context, rows []*model.Evidence) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.conn(ctx).Omit("Claim").Create(rows).Error; err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// ListEvidence returns a claim's evidence best first: similarity descending,
// rows without similarity last, ties by insertion order. limit <= 0 returns all.
func (s *Store) ListEvidence(ctx context.Context, claimID uint, limit int) ([]model.Evidence, error) {
	q := s.conn(ctx).
		Where("claim_id = ?", claimID).
		Order("CASE WHEN similarity IS NULL THEN 1 ELSE 0 END").
		Order("similarity DESC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.Evidence
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return rows, nil
}
