package vectorstore

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder for tests. Texts that
// share words get similar vectors, so similarity search behaves sensibly
// without a model.
type HashEmbedder struct {
	dim   int
	calls atomic.Int64

	// Err, when set, is returned by every call.
	Err error
}

// NewHashEmbedder creates a HashEmbedder producing dim-sized unit vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// EmbedDocuments implements Embedder.
func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedQuery implements Embedder.
func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		vec[0] = 1
		return vec, nil
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// Dimension returns the vector size.
func (e *HashEmbedder) Dimension() int { return e.dim }

// Calls returns how many texts have been embedded.
func (e *HashEmbedder) Calls() int64 { return e.calls.Load() }
