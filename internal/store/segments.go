package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/model"
)

// ReplaceSegments deletes the video's segments and inserts segs in order.
// Claims pointing at removed segments keep their video but lose the
// segment reference.
func (s *Store) ReplaceSegments(ctx context.Context, videoID uint, segs []model.Segment) error {
	if err := s.conn(ctx).Where("video_id = ?", videoID).Delete(&model.Segment{}).Error; err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	if len(segs) == 0 {
		return nil
	}
	rows := make([]model.Segment, len(segs))
	for i, seg := range segs {
		seg.ID = 0
		seg.VideoID = videoID
		rows[i] = seg
	}
	if err := s.conn(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert segments: %w", err)
	}
	return nil
}

// ListSegments returns the video's transcript in order
func (s *Store) ListSegments(ctx context.Context, videoID uint) ([]model.Segment, error) {
	var segs []model.Segment
	err := s.conn(ctx).
		Where("video_id = ?", videoID).
		Order("t_start ASC").
		Order("id ASC").
		Find(&segs).Error
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	return segs, nil
}

// DeleteSegment removes one segment
func (s *Store) DeleteSegment(ctx context.Context, id uint) error {
	if err := s.conn(ctx).Delete(&model.Segment{}, id).Error; err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	return nil
}
