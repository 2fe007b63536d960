package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/pipeline"
	"github.com/ppiankov/adveritas/internal/worker"
)

var (
	stageEnqueue     bool
	ingestFile       string
	ingestTitle      string
	ingestProcess    bool
	transcribeForce  bool
	extractOverwrite bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [url]",
	Short: "Register a video from a media URL or a local audio file",
	Long: `Register a video for verification.

Without --enqueue the video is only stored; --process then runs every stage
inline: transcription, claim extraction, and evidence retrieval plus a
verdict for each extracted claim.

Examples:
  adveritas ingest https://www.youtube.com/watch?v=... --process
  adveritas ingest --file speech.mp3 --title "Budget speech"
  adveritas ingest https://example.com/talk --enqueue`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <video-id>",
	Short: "Transcribe a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0], worker.KindTranscribe, pipeline.BoolParams(pipeline.ParamForce, transcribeForce),
			func(ctx context.Context, a *app, id uint) (any, error) {
				return a.orch.RunTranscription(ctx, id, transcribeForce)
			})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <video-id>",
	Short: "Extract check-worthy claims from a transcribed video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0], worker.KindExtractClaims, pipeline.BoolParams(pipeline.ParamOverwrite, extractOverwrite),
			func(ctx context.Context, a *app, id uint) (any, error) {
				return a.orch.ExtractClaims(ctx, id, extractOverwrite)
			})
	},
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence <claim-id>",
	Short: "Retrieve and rank evidence for a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0], worker.KindFetchEvidence, nil,
			func(ctx context.Context, a *app, id uint) (any, error) {
				return a.orch.FetchEvidence(ctx, id)
			})
	},
}

var verdictCmd = &cobra.Command{
	Use:   "verdict <claim-id>",
	Short: "Synthesize a verdict for a claim from its stored evidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0], worker.KindGenerateVerdict, nil,
			func(ctx context.Context, a *app, id uint) (any, error) {
				return a.orch.GenerateVerdict(ctx, id)
			})
	},
}

var verdictShowCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show the latest verdict of a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0], "", nil,
			func(ctx context.Context, a *app, id uint) (any, error) {
				return a.orch.GetLatestVerdict(ctx, id)
			})
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "local audio file to upload")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "video title")
	ingestCmd.Flags().BoolVar(&ingestProcess, "process", false, "run every stage inline after ingesting")
	transcribeCmd.Flags().BoolVar(&transcribeForce, "force", false, "re-transcribe a video that already left QUEUED")
	extractCmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "delete existing claims before extracting")

	for _, c := range []*cobra.Command{ingestCmd, transcribeCmd, extractCmd, evidenceCmd, verdictCmd} {
		c.Flags().BoolVar(&stageEnqueue, "enqueue", false, "queue the job on the redis queue instead of running it inline")
		rootCmd.AddCommand(c)
	}
	verdictCmd.AddCommand(verdictShowCmd)
}

// openStageApp builds an app for a one-shot command. Jobs only leave the
// process through the redis queue, so --enqueue requires it.
func openStageApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if stageEnqueue && cfg.Queue.Backend != "redis" {
		return nil, fmt.Errorf("--enqueue requires queue.backend=redis (got %q)", cfg.Queue.Backend)
	}
	return newApp(ctx, cfg, appOptions{queue: stageEnqueue})
}

type stageFunc func(ctx context.Context, a *app, id uint) (any, error)

func runStage(rawID string, kind worker.Kind, params map[string]string, run stageFunc) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openStageApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if stageEnqueue {
		jobID, err := a.orch.Enqueue(ctx, kind, id, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ queued %s for %d\n", kind, id)
		return printJSON(map[string]any{"queued": true, "job_id": jobID, "kind": kind, "id": id})
	}

	res, err := run(ctx, a, id)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// processResult summarises an inline run of every stage
type processResult struct {
	Ingest        *pipeline.IngestResult        `json:"ingest"`
	Transcription *pipeline.TranscriptionResult `json:"transcription,omitempty"`
	Extraction    *pipeline.ExtractResult       `json:"extraction,omitempty"`
	Evidence      []*pipeline.EvidenceResult    `json:"evidence,omitempty"`
	Verdicts      []*pipeline.VerdictResult     `json:"verdicts,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := pipeline.IngestRequest{Title: ingestTitle}
	if len(args) == 1 {
		req.SourceURL = args[0]
	}
	if ingestFile != "" {
		if req.SourceURL != "" {
			return fmt.Errorf("give either a url or --file, not both")
		}
		audio, err := os.ReadFile(ingestFile)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		req.Audio = audio
	}
	if stageEnqueue && ingestProcess {
		return fmt.Errorf("--process and --enqueue are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openStageApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ing, err := a.orch.Ingest(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ video %d registered (%s)\n", ing.VideoID, ing.Status)
	if !ingestProcess {
		return printJSON(ing)
	}

	out, err := processVideo(ctx, a, ing)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func processVideo(ctx context.Context, a *app, ing *pipeline.IngestResult) (*processResult, error) {
	out := &processResult{Ingest: ing}

	tr, err := a.orch.RunTranscription(ctx, ing.VideoID, false)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	out.Transcription = tr
	fmt.Fprintf(os.Stderr, "✓ transcription: %s, %d segments\n", tr.Status, tr.Segments)
	if tr.Status != model.StatusTranscribed {
		return out, nil
	}

	ex, err := a.orch.ExtractClaims(ctx, ing.VideoID, false)
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}
	out.Extraction = ex
	fmt.Fprintf(os.Stderr, "✓ extraction: %d claims\n", ex.CreatedCount)

	for _, claimID := range ex.ClaimIDs {
		ev, err := a.orch.FetchEvidence(ctx, claimID)
		if err != nil {
			return nil, fmt.Errorf("evidence for claim %d: %w", claimID, err)
		}
		out.Evidence = append(out.Evidence, ev)

		vr, err := a.orch.GenerateVerdict(ctx, claimID)
		if err != nil {
			return nil, fmt.Errorf("verdict for claim %d: %w", claimID, err)
		}
		out.Verdicts = append(out.Verdicts, vr)
		fmt.Fprintf(os.Stderr, "✓ claim %d: %d sources, %s (%.2f)\n", claimID, ev.StoredCount, vr.Label, vr.Confidence)
	}
	return out, nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", raw)
	}
	return uint(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
