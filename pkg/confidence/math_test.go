package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate())
	assert.Equal(t, 0.0, Aggregate(0.9, 0))
	assert.InDelta(t, 0.9, Aggregate(0.9, 0.9), 1e-9)
	assert.InDelta(t, 0.6, Aggregate(0.9, 0.4), 1e-9)
}

func TestWeightedAverage(t *testing.T) {
	assert.InDelta(t, 0.76, WeightedAverage([]float64{0.8, 0.7}, []float64{0.6, 0.4}), 1e-9)
	assert.Equal(t, 0.0, WeightedAverage([]float64{0.8}, []float64{0.6, 0.4}))
	assert.Equal(t, 0.0, WeightedAverage([]float64{0.8}, []float64{0}))
}

func TestMinDegradeClamp(t *testing.T) {
	assert.Equal(t, 0.6, Min(0.95, 0.6, 0.9))
	assert.Equal(t, 0.0, Min())
	assert.InDelta(t, 0.475, Degrade(0.95, 0.5), 1e-9)
	assert.Equal(t, 1.0, Clamp(1.4))
	assert.Equal(t, 0.0, Clamp(-0.1))
	assert.Equal(t, 0.6667, Round4(2.0/3.0))
}
