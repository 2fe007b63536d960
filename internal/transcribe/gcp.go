package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ppiankov/adveritas/internal/worker"
)

const (
	gcpSampleRate = 16000
	gcpMaxRetries = 4
)

type recognizeFunc func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)

// GCPEngine transcribes with Google Cloud Speech-to-Text
type GCPEngine struct {
	client        *speech.Client
	recognize     recognizeFunc
	languageCode  string
	minConfidence float32
	timeout       time.Duration
}

// NewGCPEngine creates a Cloud Speech client using application default
// credentials, or GOOGLE_APPLICATION_CREDENTIALS_JSON when set
func NewGCPEngine(ctx context.Context, languageCode string, noSpeechThreshold float64, timeout time.Duration) (*GCPEngine, error) {
	c, err := speech.NewClient(ctx, gcpClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	e := newGCPEngine(languageCode, noSpeechThreshold, timeout, func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := c.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	e.client = c
	return e, nil
}

func newGCPEngine(languageCode string, noSpeechThreshold float64, timeout time.Duration, fn recognizeFunc) *GCPEngine {
	if languageCode == "" {
		languageCode = "en-US"
	}
	if noSpeechThreshold <= 0 || noSpeechThreshold > 1 {
		noSpeechThreshold = DefaultNoSpeechThreshold
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &GCPEngine{
		recognize:     fn,
		languageCode:  languageCode,
		minConfidence: float32(1 - noSpeechThreshold),
		timeout:       timeout,
	}
}

// gcpClientOptions reads inline JSON or a credentials file path from env
func gcpClientOptions() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (e *GCPEngine) Name() string {
	return "gcp/" + e.languageCode
}

// Close releases the gRPC connection
func (e *GCPEngine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *GCPEngine) Transcribe(ctx context.Context, audio []byte, opts Options) ([]Segment, error) {
	if len(audio) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_MP3,
			SampleRateHertz:            gcpSampleRate,
			AudioChannelCount:          1,
			LanguageCode:               e.languageCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	resp, err := e.recognizeWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	minConf := float32(0)
	if opts.VAD {
		minConf = e.minConfidence
	}
	return segmentsFromResponse(resp, minConf), nil
}

func (e *GCPEngine) recognizeWithRetry(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	var last error
	for attempt := 0; attempt <= gcpMaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := e.recognize(ctx, req)
		if err == nil {
			return resp, nil
		}
		last = err

		switch status.Code(err) {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
			return nil, worker.Permanent(err)
		default:
			return nil, err
		}
		if attempt == gcpMaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(worker.Backoff(attempt+1, 750*time.Millisecond, 10*time.Second)):
		}
	}
	return nil, last
}

// segmentsFromResponse makes one segment per result. A result starts where
// its first word starts, or where the previous result ended. Results whose
// top alternative reports a confidence below minConf are dropped; a zero
// confidence means the service did not report one.
func segmentsFromResponse(resp *speechpb.LongRunningRecognizeResponse, minConf float32) []Segment {
	if resp == nil {
		return nil
	}
	var segs []Segment
	prevEnd := 0.0
	for _, r := range resp.GetResults() {
		if r == nil || len(r.GetAlternatives()) == 0 || r.GetAlternatives()[0] == nil {
			continue
		}
		alt := r.GetAlternatives()[0]

		start, end := prevEnd, durToSec(r.GetResultEndTime())
		if words := alt.GetWords(); len(words) > 0 {
			start = durToSec(words[0].GetStartTime())
			if last := durToSec(words[len(words)-1].GetEndTime()); last > end {
				end = last
			}
		}
		if end > prevEnd {
			prevEnd = end
		}

		if minConf > 0 && alt.GetConfidence() > 0 && alt.GetConfidence() < minConf {
			continue
		}
		text := strings.TrimSpace(alt.GetTranscript())
		if text == "" {
			continue
		}
		segs = append(segs, Segment{Start: start, End: end, Text: text})
	}
	return segs
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}
