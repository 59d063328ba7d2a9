// Package confidence combines the 0..1 confidence scores attached to prices
// and recommendations.
package confidence

import "math"

// Aggregate combines multiple confidence scores with a geometric mean, so one
// weak input drags the result down more than an arithmetic mean would.
func Aggregate(scores ...float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= Clamp(s)
	}

	return math.Pow(product, 1.0/float64(len(scores)))
}

// Degrade scales base down by factor and clamps the result.
func Degrade(base, factor float64) float64 {
	return Clamp(base * factor)
}

// Min returns the lowest score, or 0 when there are none.
func Min(scores ...float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	lowest := scores[0]
	for _, s := range scores[1:] {
		lowest = math.Min(lowest, s)
	}
	return Clamp(lowest)
}

// WeightedAverage returns the weighted mean of scores. Mismatched lengths or
// a zero total weight yield 0.
func WeightedAverage(scores []float64, weights []float64) float64 {
	if len(scores) == 0 || len(scores) != len(weights) {
		return 0
	}

	var total, weight float64
	for i := range scores {
		total += scores[i] * weights[i]
		weight += weights[i]
	}
	if weight == 0 {
		return 0
	}
	return Clamp(total / weight)
}

// Clamp bounds score to [0, 1].
func Clamp(score float64) float64 {
	return max(0, min(1, score))
}

// Round4 rounds a score to four decimal places for stable output.
func Round4(score float64) float64 {
	return math.Round(score*10000) / 10000
}
