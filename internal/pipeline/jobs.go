package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ppiankov/adveritas/internal/worker"
)

// Job parameters
const (
	ParamForce     = "force"
	ParamOverwrite = "overwrite"
)

// Enqueue publishes a stage job and returns its id
func (o *Orchestrator) Enqueue(ctx context.Context, kind worker.Kind, entityID uint, params map[string]string) (string, error) {
	if o.queue == nil {
		return "", ErrNoQueue
	}
	job := worker.NewJob(kind, entityID, params)
	if err := o.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", kind, err)
	}
	o.log.Debug("job enqueued", "job_id", job.ID, "kind", kind, "entity_id", entityID)
	return job.ID, nil
}

// BoolParams builds job params from a single flag
func BoolParams(key string, v bool) map[string]string {
	return map[string]string{key: strconv.FormatBool(v)}
}

// chain enqueues the follow-up stage when auto-chaining is on. The stage
// that just finished has committed, so a failed enqueue is only logged.
func (o *Orchestrator) chain(ctx context.Context, kind worker.Kind, entityID uint) {
	if !o.autoChain || o.queue == nil {
		return
	}
	if _, err := o.Enqueue(ctx, kind, entityID, nil); err != nil {
		o.log.Error("failed to chain stage", "kind", kind, "entity_id", entityID, "error", err)
	}
}

// Handle runs the stage named by the job. Missing preconditions finish the
// job without error; collaborator failures are returned for retry.
func (o *Orchestrator) Handle(ctx context.Context, job worker.Job) error {
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	var (
		reason Reason
		err    error
	)
	switch job.Kind {
	case worker.KindTranscribe:
		var res *TranscriptionResult
		if res, err = o.RunTranscription(ctx, job.EntityID, job.BoolParam(ParamForce)); err == nil {
			reason = res.Reason
		}
	case worker.KindExtractClaims:
		var res *ExtractResult
		if res, err = o.ExtractClaims(ctx, job.EntityID, job.BoolParam(ParamOverwrite)); err == nil {
			reason = res.Reason
		}
	case worker.KindFetchEvidence:
		var res *EvidenceResult
		if res, err = o.FetchEvidence(ctx, job.EntityID); err == nil {
			reason = res.Reason
		}
	case worker.KindGenerateVerdict:
		var res *VerdictResult
		if res, err = o.GenerateVerdict(ctx, job.EntityID); err == nil {
			reason = res.Reason
		}
	default:
		return worker.Permanent(fmt.Errorf("unknown job kind %q", job.Kind))
	}
	if err != nil {
		return fmt.Errorf("%s %d: %w", job.Kind, job.EntityID, err)
	}
	if reason != "" {
		o.log.Info("stage not run", "kind", job.Kind, "entity_id", job.EntityID, "reason", reason)
	}
	return nil
}

// Register binds every stage kind to the runner
func (o *Orchestrator) Register(r *worker.Runner) {
	for _, kind := range []worker.Kind{
		worker.KindTranscribe,
		worker.KindExtractClaims,
		worker.KindFetchEvidence,
		worker.KindGenerateVerdict,
	} {
		r.Register(kind, o.Handle)
	}
}
