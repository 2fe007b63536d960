package extract

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/model"
)

// LabelFactual is the classifier label whose probability decides retention
const LabelFactual = "verifiable factual claim"

// CandidateLabels are the zero-shot labels every sentence is scored against
var CandidateLabels = []string{
	LabelFactual,
	"opinion / rhetoric",
	"question",
	"instruction",
}

// DefaultThreshold is the minimum factual-claim probability
const DefaultThreshold = 0.55

// Classifier scores a sentence against candidate labels
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (map[string]float64, error)
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(ctx context.Context, text string, labels []string) (map[string]float64, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	return f(ctx, text, labels)
}

// Candidate is a retained sentence with its score and originating segment
type Candidate struct {
	Text      string
	Score     float64
	SegmentID uint
	TStart    float64
	TEnd      float64
}

// ClaimExtractor splits transcript segments into sentences and keeps the
// ones the classifier considers factual claims
type ClaimExtractor struct {
	splitter   Splitter
	classifier Classifier
	threshold  float64
	log        *logger.Logger
}

// NewClaimExtractor creates an extractor. A non-positive threshold uses
// DefaultThreshold.
func NewClaimExtractor(splitter Splitter, classifier Classifier, threshold float64, log *logger.Logger) *ClaimExtractor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ClaimExtractor{
		splitter:   splitter,
		classifier: classifier,
		threshold:  threshold,
		log:        logger.OrNop(log).With("service", "ClaimExtractor"),
	}
}

// Threshold returns the configured retention threshold
func (e *ClaimExtractor) Threshold() float64 {
	return e.threshold
}

// Extract scores every sentence of every segment, in transcript order.
// Placeholder segments are skipped. A classifier failure aborts the whole
// extraction so the caller can retry it.
func (e *ClaimExtractor) Extract(ctx context.Context, segments []model.Segment) ([]Candidate, error) {
	var out []Candidate
	scored := 0
	for _, seg := range segments {
		if seg.IsPlaceholder() {
			continue
		}
		for _, sentence := range e.splitter.Split(seg.Text) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			probs, err := e.classifier.Classify(ctx, sentence, CandidateLabels)
			if err != nil {
				return nil, fmt.Errorf("classify sentence: %w", err)
			}
			scored++
			score := probs[LabelFactual]
			if score < e.threshold {
				continue
			}
			out = append(out, Candidate{
				Text:      sentence,
				Score:     score,
				SegmentID: seg.ID,
				TStart:    seg.TStart,
				TEnd:      seg.TEnd,
			})
		}
	}
	e.log.Debug("sentences scored", "segments", len(segments), "sentences", scored, "retained", len(out))
	return out, nil
}
