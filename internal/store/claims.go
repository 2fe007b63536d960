package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/model"
)

// CreateClaims inserts claims; ids are filled in place
func (s *Store) CreateClaims(ctx context.Context, claims []*model.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	if err := s.conn(ctx).Omit("Video", "Segment").Create(claims).Error; err != nil {
		return fmt.Errorf("insert claims: %w", err)
	}
	return nil
}

// DeleteClaimsForVideo removes every claim of a video along with its
// evidence and verdicts
func (s *Store) DeleteClaimsForVideo(ctx context.Context, videoID uint) (int64, error) {
	res := s.conn(ctx).Where("video_id = ?", videoID).Delete(&model.Claim{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete claims: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GetClaim loads a claim by id
func (s *Store) GetClaim(ctx context.Context, id uint) (*model.Claim, error) {
	var c model.Claim
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListClaims returns a video's claims in insertion order
func (s *Store) ListClaims(ctx context.Context, videoID uint) ([]model.Claim, error) {
	var claims []model.Claim
	if err := s.conn(ctx).Where("video_id = ?", videoID).Order("id ASC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// CountClaims counts a video's claims
func (s *Store) CountClaims(ctx context.Context, videoID uint) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&model.Claim{}).Where("video_id = ?", videoID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}
