// Package transcribe turns audio into timed transcript segments.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/model"
)

// Segment is one timed span of recognized text
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Options tune a single engine call
type Options struct {
	// VAD drops spans the engine judges to be non-speech
	VAD bool
}

// Engine is a speech-to-text backend
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, opts Options) ([]Segment, error)
}

// Placeholder is the single segment recorded when no speech is found
func Placeholder() Segment {
	return Segment{Start: 0, End: 1, Text: model.NoSpeechText}
}

// HasSpeech reports whether any segment is real transcript text
func HasSpeech(segs []Segment) bool {
	for _, s := range segs {
		if strings.TrimSpace(s.Text) != model.NoSpeechText && strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// Transcriber runs an engine with the voice-activity filter first and
// retries unfiltered when the filter removed everything
type Transcriber struct {
	engine Engine
	log    *logger.Logger
}

// New wraps an engine
func New(engine Engine, log *logger.Logger) *Transcriber {
	return &Transcriber{engine: engine, log: logger.OrNop(log)}
}

// Name returns the engine name
func (t *Transcriber) Name() string {
	return t.engine.Name()
}

// Transcribe returns ordered, trimmed, non-empty segments. When nothing is
// recognized the result is the single placeholder segment.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) ([]Segment, error) {
	segs, err := t.engine.Transcribe(ctx, audio, Options{VAD: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.engine.Name(), err)
	}
	out := clean(segs)

	if len(out) == 0 {
		t.log.Info("voice activity filter removed all content, retrying without it", "engine", t.engine.Name())
		segs, err = t.engine.Transcribe(ctx, audio, Options{VAD: false})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.engine.Name(), err)
		}
		out = clean(segs)
	}

	if len(out) == 0 {
		t.log.Warn("no speech segments found in audio", "engine", t.engine.Name())
		return []Segment{Placeholder()}, nil
	}
	return out, nil
}

// clean trims text, drops empty spans and keeps start <= end
func clean(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		out = append(out, Segment{Start: s.Start, End: s.End, Text: text})
	}
	return out
}

// ToModel converts segments into rows for videoID
func ToModel(videoID uint, segs []Segment) []model.Segment {
	rows := make([]model.Segment, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, model.Segment{VideoID: videoID, TStart: s.Start, TEnd: s.End, Text: s.Text})
	}
	return rows
}
