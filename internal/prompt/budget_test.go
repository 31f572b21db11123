package prompt

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exactly four", "abcd", 1},
		{"five chars rounds up", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
		{"long text", strings.Repeat("x", 4000), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.text)
			if got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	prev := 0
	for i := 0; i <= 64; i++ {
		got := EstimateTokens(strings.Repeat("a", i))
		if got < prev {
			t.Fatalf("estimate decreased at length %d: %d < %d", i, got, prev)
		}
		prev = got
	}
}

func TestFits(t *testing.T) {
	if !Fits(6000, 8192, 2000) {
		t.Error("6000 tokens should fit in 8192-2000")
	}
	if Fits(6193, 8192, 2000) {
		t.Error("6193 tokens should not fit in 8192-2000")
	}
	if !Fits(6192, 8192, 2000) {
		t.Error("boundary value 6192 should fit")
	}
}

func TestChunkBudget(t *testing.T) {
	got := ChunkBudget(8192, 2000)
	want := 8192 - 2000 - systemOverheadTokens
	if got != want {
		t.Errorf("ChunkBudget(8192, 2000) = %d, want %d", got, want)
	}

	// A pathologically small window still yields a usable budget.
	if got := ChunkBudget(100, 50); got != minChunkBudget {
		t.Errorf("tiny window budget = %d, want %d", got, minChunkBudget)
	}
}
