package verdict

import (
	"context"
	"fmt"

	"github.com/ppiankov/adveritas/internal/llm"
	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/worker"
)

// Synthesizer turns a claim and its ranked evidence into a verdict
type Synthesizer struct {
	gen  llm.Generator
	topK int
	log  *logger.Logger
}

// NewSynthesizer creates a synthesizer. topK <= 0 uses DefaultTopK.
// A nil generator makes every call fail permanently with llm.ErrDisabled.
func NewSynthesizer(gen llm.Generator, topK int, log *logger.Logger) *Synthesizer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Synthesizer{gen: gen, topK: topK, log: logger.OrNop(log)}
}

// TopK returns how many evidence rows are used per prompt
func (s *Synthesizer) TopK() int {
	return s.topK
}

// Synthesize prompts the generator with the first topK rows and parses the
// completion. rows must already be sorted best-first. Generator errors are
// returned; unparseable output is not an error.
func (s *Synthesizer) Synthesize(ctx context.Context, claimText string, rows []model.Evidence) (*Result, error) {
	if s.gen == nil {
		return nil, worker.Permanent(llm.ErrDisabled)
	}
	if len(rows) > s.topK {
		rows = rows[:s.topK]
	}

	prompt := BuildPrompt(claimText, BuildEvidenceBlock(rows))
	s.log.Debug("generating verdict", "provider", s.gen.Name(), "evidence", len(rows))

	resp, err := s.gen.Generate(ctx, llm.GenerateRequest{
		System: SystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generate verdict: %w", err)
	}

	res := Parse(resp.Text)
	if res.Fallback {
		s.log.Warn("could not parse model output", "provider", s.gen.Name(), "raw_len", len(resp.Text))
	}
	return &res, nil
}
