package verdict

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/model"
)

// Result is a parsed and normalized verdict
type Result struct {
	Label      model.Label
	Confidence float64
	Rationale  string
	Sources    []any

	// Fallback is set when the model output could not be parsed
	Fallback bool
}

const (
	fallbackConfidence = 0.2
	defaultConfidence  = 0.5
	rawPreviewMax      = 200
)

var requiredKeys = []string{"label", "confidence", "rationale", "sources"}

var (
	// one level of nesting is enough for the flat verdict object
	innerObject = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	wideObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON returns the first object-shaped substring of s. It prefers a
// balanced block, then the widest brace span, then s itself.
func ExtractJSON(s string) string {
	if m := innerObject.FindString(s); m != "" {
		return m
	}
	if m := wideObject.FindString(s); m != "" {
		return m
	}
	return s
}

// Parse turns raw model output into a normalized Result. It never fails:
// output that cannot be decoded into all four keys yields the fallback.
func Parse(raw string) Result {
	s := strings.TrimSpace(raw)
	blob := ExtractJSON(s)

	var obj map[string]any
	if err := json.Unmarshal([]byte(blob), &obj); err == nil && hasRequired(obj) {
		return Normalize(obj)
	}

	obj = nil
	if err := json5.Unmarshal([]byte(blob), &obj); err == nil && hasRequired(obj) {
		return Normalize(obj)
	}

	return fallback(s)
}

func hasRequired(obj map[string]any) bool {
	if obj == nil {
		return false
	}
	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

func fallback(s string) Result {
	return Result{
		Label:      model.LabelUnverifiable,
		Confidence: fallbackConfidence,
		Rationale:  "Parser failed. Raw response: " + evidence.Truncate(s, rawPreviewMax) + "...",
		Sources:    []any{},
		Fallback:   true,
	}
}

// Normalize coerces a decoded object into a valid Result
func Normalize(obj map[string]any) Result {
	label, ok := obj["label"]
	if !ok || label == nil {
		label = string(model.LabelUnverifiable)
	}
	conf, ok := obj["confidence"]
	if !ok {
		conf = defaultConfidence
	}
	return Result{
		Label:      NormalizeLabel(fmt.Sprint(label)),
		Confidence: NormalizeConfidence(conf),
		Rationale:  rationale(obj["rationale"]),
		Sources:    NormalizeSources(obj["sources"]),
	}
}

// NormalizeLabel uppercases, joins words with underscores and maps anything
// outside the four labels to UNVERIFIABLE
func NormalizeLabel(s string) model.Label {
	l := model.Label(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_"))
	if !l.Valid() {
		return model.LabelUnverifiable
	}
	return l
}

// NormalizeConfidence converts v to a float clamped to [0, 1].
// Values that are not numeric become 0.5.
func NormalizeConfidence(v any) float64 {
	f := defaultConfidence
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		if p, err := n.Float64(); err == nil {
			f = p
		}
	case string:
		if p, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			f = p
		}
	case bool:
		if n {
			f = 1
		} else {
			f = 0
		}
	}
	if math.IsNaN(f) {
		f = defaultConfidence
	}
	return math.Max(0, math.Min(1, f))
}

// NormalizeSources wraps a single string, drops non-list values and passes
// list elements through unchanged
func NormalizeSources(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case string:
		return []any{s}
	}
	return []any{}
}

func rationale(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	}
	return fmt.Sprint(v)
}
