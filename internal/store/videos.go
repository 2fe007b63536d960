package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/ppiankov/adveritas/internal/model"
)

// CreateVideo inserts a video. An empty status defaults to QUEUED.
func (s *Store) CreateVideo(ctx context.Context, v *model.Video) error {
	if v.Status == "" {
		v.Status = model.StatusQueued
	}
	if !v.Status.Valid() {
		return fmt.Errorf("create video: %w: %q", model.ErrInvalidTransition, v.Status)
	}
	if err := s.conn(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// GetVideo loads a video by id
func (s *Store) GetVideo(ctx context.Context, id uint) (*model.Video, error) {
	var v model.Video
	if err := s.conn(ctx).First(&v, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// VideoMetadata holds the optional descriptive fields of a video
type VideoMetadata struct {
	Title        string
	ThumbnailURL string
	Duration     float64
}

// UpdateVideoMetadata fills metadata. The title is only set when the video
// has none yet; empty values are ignored.
func (s *Store) UpdateVideoMetadata(ctx context.Context, id uint, meta VideoMetadata) error {
	v, err := s.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if meta.Title != "" && model.StrOrEmpty(v.Title) == "" {
		updates["title"] = meta.Title
	}
	if meta.ThumbnailURL != "" {
		updates["thumbnail_url"] = meta.ThumbnailURL
	}
	if meta.Duration > 0 {
		updates["duration"] = meta.Duration
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.conn(ctx).Model(&model.Video{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update video metadata: %w", err)
	}
	return nil
}

// LockVideo loads a video and, inside a transaction on postgres, holds its
// row lock until commit. SQLite serializes writers and ignores the clause.
func (s *Store) LockVideo(ctx context.Context, id uint) (*model.Video, error) {
	var v model.Video
	if err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// SwapVideoStatus sets the status only while it still equals from and
// reports whether the row was updated
func (s *Store) SwapVideoStatus(ctx context.Context, id uint, from, to model.Status) (bool, error) {
	res := s.conn(ctx).Model(&model.Video{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("update status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

const statusRetries = 3

// SetVideoStatus moves a video to a new status after checking the
// transition table. Rejected transitions are logged and returned as
// model.ErrInvalidTransition. The write only lands if the status checked is
// still current; a concurrent change is re-read and validated again.
func (s *Store) SetVideoStatus(ctx context.Context, id uint, to model.Status, reset bool) error {
	for attempt := 1; ; attempt++ {
		v, err := s.LockVideo(ctx, id)
		if err != nil {
			return err
		}
		if err := model.ValidateTransition(v.Status, to, reset); err != nil {
			s.log.Warn("rejected status transition", "video_id", id, "from", v.Status, "to", to, "reset", reset)
			return err
		}
		if v.Status == to {
			return nil
		}
		ok, err := s.SwapVideoStatus(ctx, id, v.Status, to)
		if err != nil {
			return err
		}
		if ok {
			s.log.Debug("video status changed", "video_id", id, "from", v.Status, "to", to)
			return nil
		}
		if attempt == statusRetries {
			return fmt.Errorf("update status of video %d: %w", id, ErrConflict)
		}
		s.log.Debug("status changed concurrently, retrying", "video_id", id, "from", v.Status, "to", to)
	}
}

// DeleteVideo removes a video together with its segments and claims
func (s *Store) DeleteVideo(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&model.Video{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete video: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
