package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/adveritas/internal/model"
)

// keywordClassifier scores sentences containing "percent" or "capital" as
// factual claims
func keywordClassifier() ClassifierFunc {
	return func(ctx context.Context, text string, labels []string) (map[string]float64, error) {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "percent") || strings.Contains(lower, "capital") {
			return map[string]float64{LabelFactual: 0.91, "opinion / rhetoric": 0.05}, nil
		}
		return map[string]float64{LabelFactual: 0.12, "opinion / rhetoric": 0.7}, nil
	}
}

func TestClaimExtractor_Threshold(t *testing.T) {
	extractor := NewClaimExtractor(PunctuationSplitter{}, keywordClassifier(), 0, nil)
	if extractor.Threshold() != DefaultThreshold {
		t.Errorf("expected default threshold, got %v", extractor.Threshold())
	}

	segments := []model.Segment{
		{ID: 1, TStart: 0, TEnd: 4, Text: "I love this country. Unemployment fell to four percent last year."},
		{ID: 2, TStart: 4, TEnd: 7, Text: "Are you with me?"},
	}
	candidates, err := extractor.Extract(context.Background(), segments)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Text != "Unemployment fell to four percent last year." {
		t.Errorf("unexpected claim text %q", c.Text)
	}
	if c.SegmentID != 1 || c.TStart != 0 || c.TEnd != 4 || c.Score != 0.91 {
		t.Errorf("unexpected provenance %+v", c)
	}
}

func TestClaimExtractor_ScoreAtThresholdRetained(t *testing.T) {
	classifier := ClassifierFunc(func(ctx context.Context, text string, labels []string) (map[string]float64, error) {
		return map[string]float64{LabelFactual: 0.55}, nil
	})
	extractor := NewClaimExtractor(PunctuationSplitter{}, classifier, 0.55, nil)
	got, err := extractor.Extract(context.Background(), []model.Segment{{ID: 3, Text: "Water boils at 100 degrees."}})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected score equal to threshold to be kept, got %v %v", got, err)
	}
}

func TestClaimExtractor_SkipsPlaceholder(t *testing.T) {
	calls := 0
	classifier := ClassifierFunc(func(ctx context.Context, text string, labels []string) (map[string]float64, error) {
		calls++
		return map[string]float64{LabelFactual: 1}, nil
	})
	extractor := NewClaimExtractor(PunctuationSplitter{}, classifier, 0.5, nil)
	got, err := extractor.Extract(context.Background(), []model.Segment{{ID: 1, TStart: 0, TEnd: 1, Text: model.NoSpeechText}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 0 || calls != 0 {
		t.Errorf("placeholder must not be classified, got %d claims, %d calls", len(got), calls)
	}
}

func TestClaimExtractor_ClassifierError(t *testing.T) {
	boom := errors.New("service unavailable")
	classifier := ClassifierFunc(func(ctx context.Context, text string, labels []string) (map[string]float64, error) {
		return nil, boom
	})
	extractor := NewClaimExtractor(PunctuationSplitter{}, classifier, 0.5, nil)
	if _, err := extractor.Extract(context.Background(), []model.Segment{{Text: "Paris is the capital of France."}}); !errors.Is(err, boom) {
		t.Errorf("expected classifier error to propagate, got %v", err)
	}
}

func TestPunctuationSplitter(t *testing.T) {
	got := PunctuationSplitter{}.Split("First one.  Second one!\nThird one?   ")
	want := []string{"First one.", "Second one!", "Third one?"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if len(PunctuationSplitter{}.Split("   ")) != 0 {
		t.Error("whitespace-only text should yield no sentences")
	}
}

func TestPunktSplitter(t *testing.T) {
	s, err := NewPunktSplitter()
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	got := s.Split("The Eiffel Tower is in Paris. It is very tall. Who built it?")
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %q", len(got), got)
	}
	if got[0] != "The Eiffel Tower is in Paris." {
		t.Errorf("unexpected first sentence %q", got[0])
	}
	if len(s.Split("")) != 0 {
		t.Error("empty text should yield no sentences")
	}
}

func TestZeroShotClient_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/facebook/bart-large-mnli" {
			t.Errorf("Expected model path, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf-test" {
			t.Errorf("Expected bearer token, got %s", r.Header.Get("Authorization"))
		}
		var req zeroShotRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Parameters.CandidateLabels) != 4 || req.Parameters.MultiLabel {
			t.Errorf("unexpected parameters %+v", req.Parameters)
		}
		_ = json.NewEncoder(w).Encode(zeroShotResponse{
			Sequence: req.Inputs,
			Labels:   []string{LabelFactual, "question", "opinion / rhetoric", "instruction"},
			Scores:   []float64{0.8, 0.1, 0.07, 0.03},
		})
	}))
	defer server.Close()

	c := NewZeroShotClient(server.URL, "", "hf-test", server.Client())
	probs, err := c.Classify(context.Background(), "Paris is the capital of France.", CandidateLabels)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if probs[LabelFactual] != 0.8 || probs["question"] != 0.1 {
		t.Errorf("unexpected probabilities %v", probs)
	}
}

func TestZeroShotClient_ListShape(t *testing.T) {
	probs, err := parseZeroShot([]byte(`[{"label":"question","score":0.6},{"label":"verifiable factual claim","score":0.4}]`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if probs[LabelFactual] != 0.4 {
		t.Errorf("unexpected probabilities %v", probs)
	}
	if _, err := parseZeroShot([]byte(`{"labels":["a"],"scores":[]}`)); err == nil {
		t.Error("expected error for mismatched labels and scores")
	}
}

func TestZeroShotClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
	}))
	defer server.Close()

	c := NewZeroShotClient(server.URL, "m", "bad", server.Client())
	if _, err := c.Classify(context.Background(), "x", CandidateLabels); err == nil {
		t.Fatal("Expected error, got nil")
	}
}
