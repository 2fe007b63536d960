package evidence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Corpus is a local full-text index of reference documents used as an
// offline evidence source
type Corpus struct {
	index      bleve.Index
	topK       int
	snippetMax int
}

// CorpusDocument is one indexed reference document
type CorpusDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// OpenCorpus opens the index at path, creating it when missing
func OpenCorpus(path string, topK, snippetMax int) (*Corpus, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildCorpusMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return newCorpus(idx, topK, snippetMax), nil
}

// NewMemCorpus creates an in-memory corpus
func NewMemCorpus(topK, snippetMax int) (*Corpus, error) {
	idx, err := bleve.NewMemOnly(buildCorpusMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return newCorpus(idx, topK, snippetMax), nil
}

func newCorpus(idx bleve.Index, topK, snippetMax int) *Corpus {
	if topK <= 0 {
		topK = 3
	}
	if snippetMax <= 0 {
		snippetMax = DefaultSnippetMax
	}
	return &Corpus{index: idx, topK: topK, snippetMax: snippetMax}
}

func buildCorpusMapping() mapping.IndexMapping {
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = "en"

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "en"

	urlField := bleve.NewTextFieldMapping()
	urlField.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("Title", titleField)
	doc.AddFieldMappingsAt("Text", textField)
	doc.AddFieldMappingsAt("URL", urlField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = "en"
	return m
}

func (c *Corpus) Name() string { return "corpus" }

// Index adds or replaces documents in one batch. Documents without an ID
// are keyed by URL, then by title.
func (c *Corpus) Index(docs []CorpusDocument) (int, error) {
	batch := c.index.NewBatch()
	n := 0
	for _, d := range docs {
		id := d.ID
		if id == "" {
			id = d.URL
		}
		if id == "" {
			id = d.Title
		}
		if id == "" || strings.TrimSpace(d.Text) == "" {
			continue
		}
		if err := batch.Index(id, indexedDocument{Title: d.Title, URL: d.URL, Text: d.Text}); err != nil {
			return n, fmt.Errorf("batch index %s: %w", id, err)
		}
		n++
	}
	if err := c.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return n, nil
}

// IndexJSONL reads one CorpusDocument per line
func (c *Corpus) IndexJSONL(r io.Reader) (int, error) {
	var docs []CorpusDocument
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var d CorpusDocument
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return c.Index(docs)
}

// Count returns the number of indexed documents
func (c *Corpus) Count() (uint64, error) {
	return c.index.DocCount()
}

func (c *Corpus) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), c.topK, 0, false)
	req.Fields = []string{"Title", "URL", "Text"}

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		cand := Candidate{Source: c.Name()}
		if v, ok := hit.Fields["Title"].(string); ok {
			cand.Title = v
		}
		if v, ok := hit.Fields["URL"].(string); ok {
			cand.URL = v
		}
		if v, ok := hit.Fields["Text"].(string); ok {
			cand.Snippet = Truncate(StripHTML(v), c.snippetMax)
		}
		out = append(out, cand)
	}
	return out, nil
}

// Close releases the index
func (c *Corpus) Close() error {
	return c.index.Close()
}

type indexedDocument struct {
	Title string
	URL   string
	Text  string
}
