package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/worker"
)

type fakeEngine struct {
	withVAD    []Segment
	withoutVAD []Segment
	err        error
	calls      []Options
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Transcribe(_ context.Context, _ []byte, opts Options) ([]Segment, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	if opts.VAD {
		return f.withVAD, nil
	}
	return f.withoutVAD, nil
}

func TestTranscriber_UsesVADResult(t *testing.T) {
	eng := &fakeEngine{withVAD: []Segment{{Start: 0, End: 2, Text: "  Hello there. "}}}
	segs, err := New(eng, nil).Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(eng.calls) != 1 || !eng.calls[0].VAD {
		t.Errorf("expected a single VAD call, got %+v", eng.calls)
	}
	if len(segs) != 1 || segs[0].Text != "Hello there." {
		t.Errorf("unexpected segments: %+v", segs)
	}
	if !HasSpeech(segs) {
		t.Error("expected speech")
	}
}

func TestTranscriber_RetriesWithoutVAD(t *testing.T) {
	eng := &fakeEngine{
		withVAD:    []Segment{{Start: 0, End: 1, Text: "   "}},
		withoutVAD: []Segment{{Start: 1, End: 3, Text: "quiet words"}},
	}
	segs, err := New(eng, nil).Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(eng.calls) != 2 || eng.calls[1].VAD {
		t.Errorf("expected retry without VAD, got %+v", eng.calls)
	}
	if len(segs) != 1 || segs[0].Text != "quiet words" {
		t.Errorf("unexpected segments: %+v", segs)
	}
}

func TestTranscriber_Placeholder(t *testing.T) {
	segs, err := New(&fakeEngine{}, nil).Transcribe(context.Background(), []byte("silence"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segs) != 1 || segs[0] != Placeholder() {
		t.Fatalf("expected placeholder, got %+v", segs)
	}
	if segs[0].Start != 0 || segs[0].End != 1 || segs[0].Text != model.NoSpeechText {
		t.Errorf("unexpected placeholder %+v", segs[0])
	}
	if HasSpeech(segs) {
		t.Error("placeholder must not count as speech")
	}
}

func TestTranscriber_EngineError(t *testing.T) {
	boom := errors.New("engine down")
	if _, err := New(&fakeEngine{err: boom}, nil).Transcribe(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected engine error, got %v", err)
	}
}

func TestClean(t *testing.T) {
	got := clean([]Segment{
		{Start: -1, End: 2, Text: " a "},
		{Start: 5, End: 4, Text: "b"},
		{Start: 6, End: 7, Text: ""},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %+v", got)
	}
	if got[0].Start != 0 || got[0].Text != "a" {
		t.Errorf("unexpected first segment %+v", got[0])
	}
	if got[1].End != 5 {
		t.Errorf("expected end clamped to start, got %+v", got[1])
	}
}

func TestToModel(t *testing.T) {
	rows := ToModel(7, []Segment{{Start: 1, End: 2, Text: "x"}})
	if len(rows) != 1 || rows[0].VideoID != 7 || rows[0].TStart != 1 || rows[0].TEnd != 2 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

const verboseJSON = `{
  "task": "transcribe",
  "language": "english",
  "duration": 6.0,
  "text": "The Eiffel Tower is in Paris. Um.",
  "segments": [
    {"id": 0, "start": 0.0, "end": 3.0, "text": " The Eiffel Tower is in Paris.", "no_speech_prob": 0.01},
    {"id": 1, "start": 3.0, "end": 6.0, "text": " Um.", "no_speech_prob": 0.9}
  ]
}`

func TestWhisperEngine_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart body: %v", err)
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("expected verbose_json, got %q", r.FormValue("response_format"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseJSON))
	}))
	defer server.Close()

	eng, err := NewWhisperEngine("test-key", server.URL, "", 0.6, 0, nil)
	if err != nil {
		t.Fatalf("NewWhisperEngine failed: %v", err)
	}

	segs, err := eng.Transcribe(context.Background(), []byte("ID3"), Options{VAD: true})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segs) != 1 || segs[0].End != 3 {
		t.Errorf("expected high no-speech segment dropped, got %+v", segs)
	}

	segs, err = eng.Transcribe(context.Background(), []byte("ID3"), Options{VAD: false})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segs) != 2 {
		t.Errorf("expected all segments without VAD, got %+v", segs)
	}
}

func TestWhisperEngine_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	eng, _ := NewWhisperEngine("test-key", server.URL, "whisper-1", 0.6, 0, nil)
	_, err := eng.Transcribe(context.Background(), []byte("x"), Options{VAD: true})
	if err == nil || !worker.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestWhisperEngine_MissingKey(t *testing.T) {
	if _, err := NewWhisperEngine("", "", "", 0, 0, nil); err == nil {
		t.Error("expected error for missing key")
	}
}

func secs(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func word(w string, start, end float64) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:      w,
		StartTime: durationpb.New(secs(start)),
		EndTime:   durationpb.New(secs(end)),
	}
}

func TestSegmentsFromResponse(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{
					Transcript: "The tower is tall.",
					Confidence: 0.92,
					Words:      []*speechpb.WordInfo{word("The", 0.5, 0.7), word("tall.", 1.5, 2.0)},
				}},
				ResultEndTime: durationpb.New(secs(2.0)),
			},
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{
					Transcript: "mumble",
					Confidence: 0.1,
				}},
				ResultEndTime: durationpb.New(secs(4.0)),
			},
		},
	}

	segs := segmentsFromResponse(resp, 0.4)
	if len(segs) != 1 {
		t.Fatalf("expected low confidence result dropped, got %+v", segs)
	}
	if segs[0].Start != 0.5 || segs[0].End != 2.0 {
		t.Errorf("unexpected timing %+v", segs[0])
	}

	segs = segmentsFromResponse(resp, 0)
	if len(segs) != 2 {
		t.Fatalf("expected both results without filtering, got %+v", segs)
	}
	if segs[1].Start != 2.0 || segs[1].End != 4.0 {
		t.Errorf("expected second result to start at previous end, got %+v", segs[1])
	}
}

func TestGCPEngine_Retry(t *testing.T) {
	calls := 0
	eng := newGCPEngine("", 0.6, 0, func(context.Context, *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		calls++
		if calls == 1 {
			return nil, status.Error(codes.Unavailable, "try again")
		}
		return &speechpb.LongRunningRecognizeResponse{}, nil
	})
	if _, err := eng.Transcribe(context.Background(), []byte("x"), Options{VAD: true}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if eng.Name() != "gcp/en-US" {
		t.Errorf("unexpected name %q", eng.Name())
	}
}

func TestGCPEngine_InvalidArgumentIsPermanent(t *testing.T) {
	calls := 0
	eng := newGCPEngine("en-GB", 0.6, 0, func(context.Context, *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		calls++
		return nil, status.Error(codes.InvalidArgument, "bad encoding")
	})
	_, err := eng.Transcribe(context.Background(), []byte("x"), Options{VAD: true})
	if !worker.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries, got %d calls", calls)
	}
}
