// Package spatialindex buckets static points into a uniform lat/lon grid so
// radius queries only have to look at nearby cells.
package spatialindex

import (
	"math"

	"github.com/travigo/transitsound/pkg/geo"
)

// minCellDegrees stops a zero-extent bounding box collapsing every cell to nothing
const minCellDegrees = 1e-5

type cellKey struct {
	row int
	col int
}

// Index is a uniform grid over a fixed bounding box. It is built once and read
// many times; it is not safe for concurrent writes.
type Index[T comparable] struct {
	bounds   geo.Bounds
	gridSize int

	latStep float64
	lonStep float64

	cells map[cellKey][]T
	count int
}

func New[T comparable](bounds geo.Bounds, gridSize int) *Index[T] {
	if gridSize < 1 {
		gridSize = 1
	}
	if bounds.IsEmpty() {
		bounds = geo.Bounds{}
	}

	latStep := (bounds.MaxLat - bounds.MinLat) / float64(gridSize)
	if latStep < minCellDegrees {
		latStep = minCellDegrees
	}
	lonStep := (bounds.MaxLon - bounds.MinLon) / float64(gridSize)
	if lonStep < minCellDegrees {
		lonStep = minCellDegrees
	}

	return &Index[T]{
		bounds:   bounds,
		gridSize: gridSize,
		latStep:  latStep,
		lonStep:  lonStep,
		cells:    map[cellKey][]T{},
	}
}

func (i *Index[T]) Bounds() geo.Bounds {
	return i.bounds
}

// Len is the number of items added since the last Clear
func (i *Index[T]) Len() int {
	return i.count
}

// CellCount is the number of populated cells
func (i *Index[T]) CellCount() int {
	return len(i.cells)
}

// AddItem stores item in the cell containing lat/lon. Points outside the
// bounds land in the nearest edge cell.
func (i *Index[T]) AddItem(lat, lon float64, item T) {
	key := i.cellFor(lat, lon)
	i.cells[key] = append(i.cells[key], item)
	i.count++
}

// GetItemsInRadius returns every item that could be within radiusMetres of
// lat/lon. The result may include items further away, callers must check the
// exact distance themselves.
func (i *Index[T]) GetItemsInRadius(lat, lon, radiusMetres float64) []T {
	if radiusMetres < 0 || math.IsNaN(radiusMetres) || math.IsNaN(lat) || math.IsNaN(lon) {
		return nil
	}

	latDegrees := geo.MetresToLatDegrees(radiusMetres)
	poleward := math.Min(90, math.Abs(lat)+latDegrees)
	lonDegrees := geo.MetresToLonDegrees(radiusMetres, poleward)

	rowSpan := i.span(latDegrees, i.latStep)
	colSpan := i.span(lonDegrees, i.lonStep)

	centre := i.cellFor(lat, lon)

	minRow, maxRow := max(0, centre.row-rowSpan), min(i.gridSize-1, centre.row+rowSpan)
	minCol, maxCol := max(0, centre.col-colSpan), min(i.gridSize-1, centre.col+colSpan)

	var items []T
	seen := map[T]struct{}{}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, item := range i.cells[cellKey{row: row, col: col}] {
				if _, ok := seen[item]; ok {
					continue
				}
				seen[item] = struct{}{}
				items = append(items, item)
			}
		}
	}

	return items
}

// Clear drops every item so the index can be rebuilt
func (i *Index[T]) Clear() {
	i.cells = map[cellKey][]T{}
	i.count = 0
}

// span is the number of cells either side of the centre cell to search, with
// one extra cell of margin for points near a cell edge.
func (i *Index[T]) span(degrees float64, step float64) int {
	cells := math.Ceil(degrees/step) + 1
	if math.IsInf(cells, 0) || cells > float64(i.gridSize) {
		return i.gridSize
	}
	return int(cells)
}

func (i *Index[T]) cellFor(lat, lon float64) cellKey {
	return cellKey{
		row: i.clampCell((lat - i.bounds.MinLat) / i.latStep),
		col: i.clampCell((lon - i.bounds.MinLon) / i.lonStep),
	}
}

func (i *Index[T]) clampCell(position float64) int {
	if math.IsNaN(position) || position < 0 {
		return 0
	}
	if position >= float64(i.gridSize) {
		return i.gridSize - 1
	}
	return int(position)
}
