package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/store"
	"github.com/ppiankov/adveritas/internal/store/storetest"
)

func ptr(f float64) *float64 { return &f }

func seedVideo(t *testing.T, s *store.Store) *model.Video {
	t.Helper()
	v := &model.Video{SourceURL: model.OptionalString("https://example.com/v")}
	if err := s.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return v
}

func TestCreateVideo_DefaultsToQueued(t *testing.T) {
	s := storetest.New(t)
	v := seedVideo(t, s)
	if v.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.GetVideo(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Status != model.StatusQueued {
		t.Errorf("expected QUEUED, got %s", got.Status)
	}
}

func TestGetVideo_NotFound(t *testing.T) {
	s := storetest.New(t)
	if _, err := s.GetVideo(context.Background(), 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetVideoStatus_TransitionTable(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)

	if err := s.SetVideoStatus(ctx, v.ID, model.StatusClaimed, false); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected QUEUED -> CLAIMED to be rejected, got %v", err)
	}
	got, _ := s.GetVideo(ctx, v.ID)
	if got.Status != model.StatusQueued {
		t.Errorf("rejected transition must not change status, got %s", got.Status)
	}

	if err := s.SetVideoStatus(ctx, v.ID, model.StatusTranscribed, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.SetVideoStatus(ctx, v.ID, model.StatusClaimed, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, _ = s.GetVideo(ctx, v.ID)
	if got.Status != model.StatusClaimed {
		t.Errorf("expected CLAIMED, got %s", got.Status)
	}
}

func TestSwapVideoStatus_StaleStatusWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)

	// another writer moved the video on after this caller read TRANSCRIBED
	if err := s.SetVideoStatus(ctx, v.ID, model.StatusNoSpeech, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ok, err := s.SwapVideoStatus(ctx, v.ID, model.StatusTranscribed, model.StatusClaimed)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("swap from a stale status must not apply")
	}
	got, _ := s.GetVideo(ctx, v.ID)
	if got.Status != model.StatusNoSpeech {
		t.Errorf("expected NO_SPEECH to be kept, got %s", got.Status)
	}

	ok, err = s.SwapVideoStatus(ctx, v.ID, model.StatusNoSpeech, model.StatusQueued)
	if err != nil || !ok {
		t.Fatalf("expected swap from the current status to apply, got %v, %v", ok, err)
	}
}

func TestSetVideoStatus_ValidatesAgainstCommittedStatus(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)

	if err := s.SetVideoStatus(ctx, v.ID, model.StatusNoSpeech, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	err := s.Transaction(ctx, func(tx *store.Store) error {
		return tx.SetVideoStatus(ctx, v.ID, model.StatusClaimed, false)
	})
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected NO_SPEECH -> CLAIMED to be rejected, got %v", err)
	}
	got, _ := s.GetVideo(ctx, v.ID)
	if got.Status != model.StatusNoSpeech {
		t.Errorf("expected NO_SPEECH, got %s", got.Status)
	}
}

func TestUpdateVideoMetadata_KeepsExistingTitle(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := &model.Video{Title: model.OptionalString("mine")}
	if err := s.CreateVideo(ctx, v); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := s.UpdateVideoMetadata(ctx, v.ID, store.VideoMetadata{Title: "theirs", ThumbnailURL: "https://img", Duration: 12.5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, _ := s.GetVideo(ctx, v.ID)
	if model.StrOrEmpty(got.Title) != "mine" {
		t.Errorf("title should not be overwritten, got %q", model.StrOrEmpty(got.Title))
	}
	if model.StrOrEmpty(got.ThumbnailURL) != "https://img" || got.Duration == nil || *got.Duration != 12.5 {
		t.Errorf("metadata not stored: %+v", got)
	}
}

func TestListSegments_Ordered(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)

	err := s.ReplaceSegments(ctx, v.ID, []model.Segment{
		{TStart: 5, TEnd: 6, Text: "second"},
		{TStart: 0, TEnd: 1, Text: "first"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	segs, err := s.ListSegments(ctx, v.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "first" || segs[1].Text != "second" {
		t.Errorf("unexpected order: %+v", segs)
	}

	// Replacing drops the previous transcript
	if err := s.ReplaceSegments(ctx, v.ID, []model.Segment{{TStart: 0, TEnd: 2, Text: "only"}}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	segs, _ = s.ListSegments(ctx, v.ID)
	if len(segs) != 1 || segs[0].Text != "only" {
		t.Errorf("expected replaced transcript, got %+v", segs)
	}
}

func TestDeleteSegment_NullsClaimReference(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)
	if err := s.ReplaceSegments(ctx, v.ID, []model.Segment{{TStart: 0, TEnd: 1, Text: "Paris is in France."}}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	segs, _ := s.ListSegments(ctx, v.ID)

	segID := segs[0].ID
	c := &model.Claim{VideoID: v.ID, SegmentID: &segID, ClaimText: "Paris is in France.", CanonicalText: "Paris is in France."}
	if err := s.CreateClaims(ctx, []*model.Claim{c}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := s.DeleteSegment(ctx, segID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, err := s.GetClaim(ctx, c.ID)
	if err != nil {
		t.Fatalf("claim should survive segment deletion: %v", err)
	}
	if got.SegmentID != nil {
		t.Errorf("expected segment reference to be nulled, got %v", *got.SegmentID)
	}
	if got.VideoID != v.ID {
		t.Errorf("claim must keep its video, got %d", got.VideoID)
	}
}

func TestDeleteVideo_Cascades(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)
	_ = s.ReplaceSegments(ctx, v.ID, []model.Segment{{TStart: 0, TEnd: 1, Text: "x"}})
	c := &model.Claim{VideoID: v.ID, ClaimText: "x", CanonicalText: "x"}
	if err := s.CreateClaims(ctx, []*model.Claim{c}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.CreateEvidence(ctx, []*model.Evidence{{ClaimID: c.ID, Source: "wikipedia", Snippet: "x"}}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.CreateVerdict(ctx, &model.Verdict{ClaimID: c.ID, Label: model.LabelTrue, Sources: model.EncodeSources(nil)}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := s.DeleteVideo(ctx, v.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := s.GetClaim(ctx, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected claim to be cascaded, got %v", err)
	}
	segs, _ := s.ListSegments(ctx, v.ID)
	if len(segs) != 0 {
		t.Errorf("expected segments to be cascaded, got %d", len(segs))
	}
	ev, _ := s.ListEvidence(ctx, c.ID, 0)
	if len(ev) != 0 {
		t.Errorf("expected evidence to be cascaded, got %d", len(ev))
	}
}

func TestListEvidence_NullsLast(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)
	c := &model.Claim{VideoID: v.ID, ClaimText: "x"}
	_ = s.CreateClaims(ctx, []*model.Claim{c})

	rows := []*model.Evidence{
		{ClaimID: c.ID, Source: "a", Snippet: "a", Similarity: ptr(0.8)},
		{ClaimID: c.ID, Source: "b", Snippet: ""},
		{ClaimID: c.ID, Source: "c", Snippet: "c", Similarity: ptr(0.3)},
	}
	if err := s.CreateEvidence(ctx, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := s.ListEvidence(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].Source != "a" || got[1].Source != "c" || got[2].Source != "b" {
		t.Errorf("unexpected order: %s %s %s", got[0].Source, got[1].Source, got[2].Source)
	}
	if got[2].Similarity != nil {
		t.Errorf("expected absent similarity to stay nil")
	}

	limited, _ := s.ListEvidence(ctx, c.ID, 2)
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestLatestVerdict(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)
	c := &model.Claim{VideoID: v.ID, ClaimText: "x"}
	_ = s.CreateClaims(ctx, []*model.Claim{c})

	if _, err := s.LatestVerdict(ctx, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := &model.Verdict{ClaimID: c.ID, Label: model.LabelFalse, Confidence: 0.4}
	second := &model.Verdict{ClaimID: c.ID, Label: model.LabelTrue, Confidence: 0.9}
	_ = s.CreateVerdict(ctx, first)
	second.CreatedAt = first.CreatedAt.Add(1)
	_ = s.CreateVerdict(ctx, second)

	got, err := s.LatestVerdict(ctx, c.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Label != model.LabelTrue {
		t.Errorf("expected latest verdict TRUE, got %s", got.Label)
	}
	history, _ := s.ListVerdicts(ctx, c.ID)
	if len(history) != 2 {
		t.Errorf("verdicts must be append-only, got %d", len(history))
	}
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	v := seedVideo(t, s)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateClaims(ctx, []*model.Claim{{VideoID: v.ID, ClaimText: "x"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, _ := s.CountClaims(ctx, v.ID)
	if n != 0 {
		t.Errorf("expected rollback, found %d claims", n)
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := store.SQLiteDSN("a.db"); got != "a.db?_foreign_keys=on" {
		t.Errorf("unexpected dsn %q", got)
	}
	if got := store.SQLiteDSN("file:x?mode=memory"); got != "file:x?mode=memory&_foreign_keys=on" {
		t.Errorf("unexpected dsn %q", got)
	}
	if got := store.SQLiteDSN("a.db?_fk=1"); got != "a.db?_fk=1" {
		t.Errorf("unexpected dsn %q", got)
	}
}
