package store

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0.25, -1.5, 3e-7, 0}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestRankChunksLimit(t *testing.T) {
	candidates := []ScoredChunk{
		{}, {}, {},
	}
	candidates[0].ID, candidates[0].Embedding = 1, []float32{0, 1}
	candidates[1].ID, candidates[1].Embedding = 2, []float32{1, 0}
	candidates[2].ID, candidates[2].Embedding = 3, []float32{1, 1}

	got := rankChunks(candidates, []float32{1, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("order = [%d %d], want [2 3]", got[0].ID, got[1].ID)
	}
}
