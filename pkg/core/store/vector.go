package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// rankChunks scores candidates against the query and keeps the best limit.
func rankChunks(candidates []ScoredChunk, query []float32, limit int) []ScoredChunk {
	for i := range candidates {
		candidates[i].Score = CosineSimilarity(query, candidates[i].Embedding)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func checkDimension(dim int, updates []EmbeddingUpdate) error {
	if dim == 0 {
		return nil
	}
	for _, u := range updates {
		if len(u.Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d values, column holds %d", ErrDimensionMismatch, u.ChunkID, len(u.Vector), dim)
		}
	}
	return nil
}
