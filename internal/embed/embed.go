// Package embed turns text into unit-length vectors so that similarity
// between a claim and a snippet reduces to a dot product.
package embed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/adveritas/internal/model"
)

// Embedder is the embedding collaborator
type Embedder interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the backend and model, e.g. "ollama/all-minilm"
	Name() string
}

// New builds the embedder selected by cfg
func New(cfg model.EmbeddingConfig, client *http.Client) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, client), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, client)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: ollama, openai)", cfg.Provider)
	}
}

// Normalize scales v to unit length. A zero or empty vector yields nil.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot computes the dot product of two unit vectors, clamped to [-1, 1] to
// absorb float rounding. Vectors of different length score 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, dot))
}

// Serialize converts a float32 vector to little-endian bytes for storage
func Serialize(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Deserialize converts stored bytes back to a float32 vector
func Deserialize(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 60 * time.Second}
}
