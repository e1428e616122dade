package engine

import (
	"time"

	"github.com/travigo/transitsound/pkg/realtime/history"
	"github.com/travigo/transitsound/pkg/routeid"
	"golang.org/x/exp/slices"
)

// Snapshot is the set of lagged positions computed by one tick. A published
// snapshot is never modified.
type Snapshot struct {
	DisplayTime time.Time
	Positions   map[string]history.InterpolatedPosition
}

type GroupPositions struct {
	GroupID   routeid.ID                     `json:"group_id"`
	Positions []history.InterpolatedPosition `json:"positions"`
}

func (e *Engine) publish(displayTime time.Time) {
	positions := make(map[string]history.InterpolatedPosition, len(e.positions))
	for entityID, position := range e.positions {
		positions[entityID] = position
	}

	e.snapshot.Store(&Snapshot{
		DisplayTime: displayTime,
		Positions:   positions,
	})
}

// Snapshot returns the latest published snapshot. Safe from any goroutine.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Positions returns a copy of the latest lagged positions keyed by vehicle.
// Safe from any goroutine.
func (e *Engine) Positions() map[string]history.InterpolatedPosition {
	snapshot := e.snapshot.Load()

	positions := make(map[string]history.InterpolatedPosition, len(snapshot.Positions))
	for entityID, position := range snapshot.Positions {
		positions[entityID] = position
	}

	return positions
}

// PositionsByGroup returns the latest lagged positions grouped by route, each
// group sorted by vehicle id. Safe from any goroutine.
func (e *Engine) PositionsByGroup() map[routeid.ID][]history.InterpolatedPosition {
	return GroupBy(e.snapshot.Load().Positions)
}

// GroupBy groups positions by route id, each group sorted by vehicle id
func GroupBy(positions map[string]history.InterpolatedPosition) map[routeid.ID][]history.InterpolatedPosition {
	groups := map[routeid.ID][]history.InterpolatedPosition{}
	for _, position := range positions {
		groups[position.GroupID] = append(groups[position.GroupID], position)
	}

	for _, group := range groups {
		slices.SortFunc(group, func(a, b history.InterpolatedPosition) int {
			if a.EntityID < b.EntityID {
				return -1
			}
			if a.EntityID > b.EntityID {
				return 1
			}
			return 0
		})
	}

	return groups
}

// SortedGroups flattens grouped positions into a slice ordered by group id
func SortedGroups(groups map[routeid.ID][]history.InterpolatedPosition) []GroupPositions {
	sorted := make([]GroupPositions, 0, len(groups))
	for groupID, positions := range groups {
		sorted = append(sorted, GroupPositions{GroupID: groupID, Positions: positions})
	}

	slices.SortFunc(sorted, func(a, b GroupPositions) int {
		if a.GroupID < b.GroupID {
			return -1
		}
		if a.GroupID > b.GroupID {
			return 1
		}
		return 0
	})

	return sorted
}
