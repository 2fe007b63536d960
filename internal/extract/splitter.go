package extract

import (
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Splitter breaks text into sentences. Empty sentences are never returned.
type Splitter interface {
	Split(text string) []string
}

// PunktSplitter uses the English Punkt model, which knows common
// abbreviations and initials
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSplitter loads the bundled English model
func NewPunktSplitter() (*PunktSplitter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &PunktSplitter{tokenizer: tok}, nil
}

func (s *PunktSplitter) Split(text string) []string {
	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PunctuationSplitter splits on '.', '!' and '?' followed by whitespace
type PunctuationSplitter struct{}

func (PunctuationSplitter) Split(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var out []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				flush()
			}
		}
	}
	flush()
	return out
}

// NewSplitter returns the Punkt splitter, or the punctuation splitter when
// the model cannot be loaded
func NewSplitter() Splitter {
	if s, err := NewPunktSplitter(); err == nil {
		return s
	}
	return PunctuationSplitter{}
}
