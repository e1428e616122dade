package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"github.com/travigo/transitsound/pkg/realtime/history"
	"golang.org/x/exp/slices"
)

type positionsResponse struct {
	DisplayTime time.Time                      `json:"display_time"`
	Positions   []history.InterpolatedPosition `json:"positions"`
}

type groupsResponse struct {
	DisplayTime time.Time               `json:"display_time"`
	Groups      []engine.GroupPositions `json:"groups"`
}

func PositionsRouter(router fiber.Router, realtimeEngine *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return listPositions(c, realtimeEngine)
	})
	router.Get("/groups", func(c *fiber.Ctx) error {
		return listGroups(c, realtimeEngine)
	})
}

func listPositions(c *fiber.Ctx, realtimeEngine *engine.Engine) error {
	snapshot := realtimeEngine.Snapshot()

	positions := make([]history.InterpolatedPosition, 0, len(snapshot.Positions))
	for _, position := range snapshot.Positions {
		positions = append(positions, position)
	}
	slices.SortFunc(positions, func(a, b history.InterpolatedPosition) int {
		if a.EntityID < b.EntityID {
			return -1
		}
		if a.EntityID > b.EntityID {
			return 1
		}
		return 0
	})

	return c.JSON(positionsResponse{
		DisplayTime: snapshot.DisplayTime,
		Positions:   positions,
	})
}

func listGroups(c *fiber.Ctx, realtimeEngine *engine.Engine) error {
	snapshot := realtimeEngine.Snapshot()

	return c.JSON(groupsResponse{
		DisplayTime: snapshot.DisplayTime,
		Groups:      engine.SortedGroups(engine.GroupBy(snapshot.Positions)),
	})
}
