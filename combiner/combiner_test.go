package combiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fold(kind Kind, xs ...float64) float64 {
	c := New(kind)
	for _, x := range xs {
		c.Collect(x)
	}
	return c.Get()
}

func TestCombiner(t *testing.T) {
	xs := []float64{3, -2, 10, 4}
	assert.Equal(t, 15.0, fold(Sum, xs...))
	assert.Equal(t, 15.0/4, fold(Mean, xs...))
	assert.Equal(t, -2.0, fold(Min, xs...))
	assert.Equal(t, 10.0, fold(Max, xs...))
	assert.Equal(t, 4.0, fold(Count, xs...))
}

func TestCombinerEmpty(t *testing.T) {
	for _, k := range []Kind{Sum, Mean, Min, Max, Count} {
		assert.Equal(t, 0.0, fold(k), k.String())
	}
}

func TestMinMaxSeededByFirstValue(t *testing.T) {
	// a zero accumulator would win here
	assert.Equal(t, 5.0, fold(Min, 5, 7))
	assert.Equal(t, -5.0, fold(Max, -5, -7))
}

func TestAggregationLaws(t *testing.T) {
	xs := []float64{1, 8, 8, -3, 0.5}
	assert.InDelta(t, fold(Sum, xs...)/float64(len(xs)), fold(Mean, xs...), 1e-12)

	rev := make([]float64, len(xs))
	for i, x := range xs {
		rev[len(xs)-1-i] = x
	}
	for _, k := range []Kind{Min, Max} {
		assert.Equal(t, fold(k, xs...), fold(k, rev...))
		assert.Equal(t, fold(k, xs...), fold(k, append(xs, xs...)...))
	}
	// count ignores values
	assert.Equal(t, fold(Count, xs...), fold(Count, 0, 0, 0, 0, 0))
}

func TestCombinerReset(t *testing.T) {
	c := New(Max)
	c.Collect(9)
	c.Reset()
	c.Collect(-1)
	assert.Equal(t, -1.0, c.Get())
	assert.Equal(t, 1, c.Count())
}

func TestMulti(t *testing.T) {
	m := NewMulti(Mean, 3)
	m.Collect(0, 2)
	m.Collect(0, 4)
	m.Collect(1, 9)
	assert.Equal(t, []float64{3, 9, 0}, m.Get())
	assert.Equal(t, 2, m.Count(0))
	assert.Equal(t, 0, m.Count(2))
	assert.Equal(t, 3, m.Dim())

	m.Reset()
	assert.Equal(t, []float64{0, 0, 0}, m.Get())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Sum, Mean, Min, Max, Count} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("AVG")
	require.NoError(t, err)
	assert.Equal(t, Mean, got)

	_, err = ParseKind("median")
	assert.Error(t, err)
}
