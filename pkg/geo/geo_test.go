package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	t.Run("zero distance for identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, Haversine(-41.30, 174.78, -41.30, 174.78))
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		assert.InDelta(t, MetresPerDegreeLat, Haversine(0, 0, 1, 0), 0.001)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := Haversine(-41.30, 174.78, -41.29, 174.77)
		b := Haversine(-41.29, 174.77, -41.30, 174.78)
		assert.InDelta(t, a, b, 1e-9)
	})

	t.Run("wellington hundredth of a degree north", func(t *testing.T) {
		assert.InDelta(t, 1111.95, Haversine(-41.30, 174.78, -41.29, 174.78), 0.1)
	})
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, Smoothstep(0))
	assert.Equal(t, 1.0, Smoothstep(1))
	assert.Equal(t, 0.5, Smoothstep(0.5))
	assert.Equal(t, 0.0, Smoothstep(-2))
	assert.Equal(t, 1.0, Smoothstep(3))
	assert.InDelta(t, 0.216, Smoothstep(0.3), 1e-9)
}

func TestLerpAngle(t *testing.T) {
	tests := []struct {
		name     string
		a, b, t  float64
		expected float64
	}{
		{"across north going clockwise", 350, 10, 0.5, 0},
		{"across north going anticlockwise", 10, 350, 0.5, 0},
		{"simple quarter", 90, 180, 0.5, 135},
		{"start endpoint", 350, 10, 0, 350},
		{"end endpoint", 90, 180, 1, 180},
		{"negative input", -90, 90, 0.25, 225},
		{"opposite bearings", 0, 180, 0.5, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LerpAngle(tt.a, tt.b, tt.t)
			diff := BearingDifference(result, tt.expected)
			assert.InDelta(t, 0, diff, 1e-9, "got %v", result)
		})
	}
}

func TestNormalizeBearing(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeBearing(360))
	assert.Equal(t, 350.0, NormalizeBearing(-10))
	assert.Equal(t, 10.0, NormalizeBearing(730))
	assert.Equal(t, 0.0, NormalizeBearing(-1e-20))
}

func TestBearingDifference(t *testing.T) {
	assert.Equal(t, 20.0, BearingDifference(350, 10))
	assert.Equal(t, 180.0, BearingDifference(0, 180))
	assert.Equal(t, 45.0, BearingDifference(90, 45))
}

func TestMetresToDegrees(t *testing.T) {
	assert.InDelta(t, 1.0, MetresToLatDegrees(MetresPerDegreeLat), 1e-12)
	assert.InDelta(t, 2.0, MetresToLonDegrees(MetresPerDegreeLat, 60), 1e-9)
	assert.False(t, math.IsInf(MetresToLonDegrees(100, 90), 0))
}

func TestBounds(t *testing.T) {
	bounds := BoundsOf([][2]float64{{-41.3, 174.7}, {-41.2, 174.9}, {-41.25, 174.8}})

	assert.Equal(t, -41.3, bounds.MinLat)
	assert.Equal(t, -41.2, bounds.MaxLat)
	assert.Equal(t, 174.7, bounds.MinLon)
	assert.Equal(t, 174.9, bounds.MaxLon)
	assert.True(t, bounds.Contains(-41.25, 174.8))
	assert.False(t, bounds.Contains(-41.0, 174.8))
	assert.False(t, bounds.IsEmpty())
	assert.True(t, EmptyBounds().IsEmpty())
}
