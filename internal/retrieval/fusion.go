package retrieval

import "veritas.app/relay/internal/domain"

const rrfK = 60.0

// fuse computes a document's fused score from its up-to-three component
// scores under the chosen ranking strategy. rank* are 1-based ranks within
// their own backend's result list, used only by reciprocal rank fusion;
// 0 means "absent from that backend".
func fuse(strategy domain.RankingStrategy, sem, key, graph float64, haveSem, haveKey, haveGraph bool, rankSem, rankKey, rankGraph int, weights domain.Weights) float64 {
	switch strategy {
	case domain.RankingReciprocalRankFusion:
		var total float64
		if haveSem {
			total += 1.0 / (rrfK + float64(rankSem))
		}
		if haveKey {
			total += 1.0 / (rrfK + float64(rankKey))
		}
		if haveGraph {
			total += 1.0 / (rrfK + float64(rankGraph))
		}
		return total
	case domain.RankingMax:
		max := 0.0
		if haveSem && sem > max {
			max = sem
		}
		if haveKey && key > max {
			max = key
		}
		if haveGraph && graph > max {
			max = graph
		}
		return max
	default: // weighted_linear
		var weightedSum, weightTotal float64
		if haveSem {
			weightedSum += weights.Semantic * sem
			weightTotal += weights.Semantic
		}
		if haveKey {
			weightedSum += weights.Keyword * key
			weightTotal += weights.Keyword
		}
		if haveGraph {
			weightedSum += weights.Graph * graph
			weightTotal += weights.Graph
		}
		if weightTotal == 0 {
			return 0
		}
		return domain.Clamp01(weightedSum / weightTotal)
	}
}
