package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/model"
)

// CreateVerdict appends a verdict to the claim's history
func (s *Store) CreateVerdict(ctx context.Context, v *model.Verdict) error {
	if err := s.conn(ctx).Omit("Claim").Create(v).Error; err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// LatestVerdict returns the most recent verdict for a claim
func (s *Store) LatestVerdict(ctx context.Context, claimID uint) (*model.Verdict, error) {
	var v model.Verdict
	err := s.conn(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at DESC").
		Order("id DESC").
		First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// ListVerdicts returns the claim's verdict history, newest first
func (s *Store) ListVerdicts(ctx context.Context, claimID uint) ([]model.Verdict, error) {
	var out []model.Verdict
	err := s.conn(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	return out, nil
}
