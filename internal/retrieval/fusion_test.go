package retrieval

import (
	"math"
	"testing"

	"veritas.app/relay/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFuseWeightedLinearSkipsAbsentComponents(t *testing.T) {
	weights := domain.Weights{Semantic: 0.5, Keyword: 0.3, Graph: 0.2}
	got := fuse(domain.RankingWeightedLinear, 0.8, 0, 0, true, false, false, 1, 0, 0, weights)
	if !almostEqual(got, 0.8) {
		t.Fatalf("want 0.8 when only semantic present, got %v", got)
	}
}

func TestFuseWeightedLinearCombinesAllComponents(t *testing.T) {
	weights := domain.DefaultWeights()
	got := fuse(domain.RankingWeightedLinear, 1.0, 1.0, 1.0, true, true, true, 1, 1, 1, weights)
	if !almostEqual(got, 1.0) {
		t.Fatalf("want 1.0 when every component is maxed, got %v", got)
	}
}

func TestFuseMaxTakesHighestComponent(t *testing.T) {
	got := fuse(domain.RankingMax, 0.2, 0.9, 0.4, true, true, true, 1, 1, 1, domain.Weights{})
	if !almostEqual(got, 0.9) {
		t.Fatalf("want 0.9, got %v", got)
	}
}

func TestFuseReciprocalRankFusionSumsOverMethods(t *testing.T) {
	want := 1.0/(rrfK+1) + 1.0/(rrfK+2)
	got := fuse(domain.RankingReciprocalRankFusion, 0, 0, 0, true, true, false, 1, 2, 0, domain.Weights{})
	if !almostEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestFuseReciprocalRankFusionAbsentMethodContributesZero(t *testing.T) {
	got := fuse(domain.RankingReciprocalRankFusion, 0, 0, 0, false, false, false, 0, 0, 0, domain.Weights{})
	if got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}
