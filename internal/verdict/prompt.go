package verdict

import (
	"strings"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/model"
)

// PromptSnippetMax is the per-item snippet length inside the evidence block
const PromptSnippetMax = 300

// DefaultTopK is how many evidence rows reach the prompt
const DefaultTopK = 5

// SystemPrompt is sent as the system message on providers that support one
const SystemPrompt = "You are a fact-checking assistant. Analyze the claim against the provided evidence and return ONLY a valid JSON object."

const promptTemplate = `CLAIM: {claim}

EVIDENCE:
{evidence}

Return ONLY a valid JSON object with these exact keys:
- label: one of ["TRUE", "PARTLY_TRUE", "FALSE", "UNVERIFIABLE"]
- confidence: float between 0.0 and 1.0
- rationale: string explaining your reasoning
- sources: array of relevant source URLs

Label guidelines:
- TRUE: Evidence strongly supports the claim
- PARTLY_TRUE: Evidence partially supports the claim
- FALSE: Evidence directly contradicts the claim (proves it wrong)
- UNVERIFIABLE: No relevant evidence found OR evidence is insufficient to determine truth

IMPORTANT: If the evidence is unrelated or irrelevant to the claim, you MUST use UNVERIFIABLE, not FALSE.

Example format:
{"label": "UNVERIFIABLE", "confidence": 0.3, "rationale": "No relevant evidence found", "sources": []}
`

// BuildEvidenceBlock renders one line per row as "[title] url — snippet".
// Missing fields render empty and snippets are cut to PromptSnippetMax.
func BuildEvidenceBlock(rows []model.Evidence) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		snippet := strings.ReplaceAll(r.Snippet, "\r\n", " ")
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		snippet = evidence.Truncate(snippet, PromptSnippetMax)

		var b strings.Builder
		b.WriteString("[")
		b.WriteString(model.StrOrEmpty(r.Title))
		b.WriteString("] ")
		b.WriteString(model.StrOrEmpty(r.URL))
		b.WriteString(" — ")
		b.WriteString(snippet)
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt fills the instruction template
func BuildPrompt(claim, evidenceBlock string) string {
	r := strings.NewReplacer("{claim}", claim, "{evidence}", evidenceBlock)
	return r.Replace(promptTemplate)
}
