package spatialindex

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitsound/pkg/geo"
)

var wellington = geo.Bounds{MinLat: -41.35, MaxLat: -41.20, MinLon: 174.70, MaxLon: 174.90}

func TestIndex_AddAndQuery(t *testing.T) {
	index := New[string](wellington, 50)

	index.AddItem(-41.30, 174.78, "near")
	index.AddItem(-41.21, 174.89, "far")

	items := index.GetItemsInRadius(-41.3005, 174.7805, 200)
	assert.Contains(t, items, "near")
	assert.NotContains(t, items, "far")

	assert.Equal(t, 2, index.Len())
	assert.Equal(t, 2, index.CellCount())
}

func TestIndex_OutOfBoundsClampsToEdge(t *testing.T) {
	index := New[string](wellington, 10)

	index.AddItem(-50, 160, "outside")

	items := index.GetItemsInRadius(wellington.MinLat, wellington.MinLon, 10)
	assert.Equal(t, []string{"outside"}, items)
}

func TestIndex_Deduplicates(t *testing.T) {
	index := New[string](wellington, 50)

	index.AddItem(-41.30, 174.78, "stop")
	index.AddItem(-41.30, 174.78, "stop")

	assert.Equal(t, []string{"stop"}, index.GetItemsInRadius(-41.30, 174.78, 100))
}

func TestIndex_DegenerateBounds(t *testing.T) {
	bounds := geo.BoundsOf([][2]float64{{-41.30, 174.78}})
	index := New[string](bounds, 50)

	index.AddItem(-41.30, 174.78, "only")

	assert.Equal(t, []string{"only"}, index.GetItemsInRadius(-41.30, 174.78, 50))
}

func TestIndex_Clear(t *testing.T) {
	index := New[string](wellington, 50)
	index.AddItem(-41.30, 174.78, "stop")

	index.Clear()

	assert.Empty(t, index.GetItemsInRadius(-41.30, 174.78, 1000))
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, 0, index.CellCount())
}

func TestIndex_NoFalseNegatives(t *testing.T) {
	tests := []struct {
		name   string
		bounds geo.Bounds
		grid   int
	}{
		{"wellington", wellington, 50},
		{"coarse", wellington, 3},
		{"high latitude", geo.Bounds{MinLat: 69.5, MaxLat: 70.5, MinLon: 18, MaxLon: 20}, 40},
		{"equator", geo.Bounds{MinLat: -0.5, MaxLat: 0.5, MinLon: 32, MaxLon: 33}, 100},
	}

	for seed, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(uint64(seed), 42))

			type anchor struct {
				id       int
				lat, lon float64
			}

			index := New[int](test.bounds, test.grid)
			var anchors []anchor
			for id := 0; id < 2000; id++ {
				a := anchor{
					id:  id,
					lat: test.bounds.MinLat + rng.Float64()*(test.bounds.MaxLat-test.bounds.MinLat),
					lon: test.bounds.MinLon + rng.Float64()*(test.bounds.MaxLon-test.bounds.MinLon),
				}
				anchors = append(anchors, a)
				index.AddItem(a.lat, a.lon, a.id)
			}

			for query := 0; query < 200; query++ {
				lat := test.bounds.MinLat + rng.Float64()*(test.bounds.MaxLat-test.bounds.MinLat)
				lon := test.bounds.MinLon + rng.Float64()*(test.bounds.MaxLon-test.bounds.MinLon)
				radius := 20 + rng.Float64()*2000

				found := map[int]bool{}
				for _, id := range index.GetItemsInRadius(lat, lon, radius) {
					found[id] = true
				}

				for _, a := range anchors {
					if geo.Haversine(lat, lon, a.lat, a.lon) <= radius {
						require.True(t, found[a.id], "anchor %d missing for query %d", a.id, query)
					}
				}
			}
		})
	}
}
