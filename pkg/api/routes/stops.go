package routes

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"golang.org/x/exp/slices"
)

const maxNearRadius = 5000

// StopsRouter serves the stop dataset. The engine's stops and index are fixed
// after construction so they can be read from request goroutines.
func StopsRouter(router fiber.Router, realtimeEngine *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return listStops(c, realtimeEngine)
	})
	router.Get("/near", func(c *fiber.Ctx) error {
		return nearStops(c, realtimeEngine)
	})
	router.Get("/:identifier", func(c *fiber.Ctx) error {
		return getStop(c, realtimeEngine)
	})
}

func listStops(c *fiber.Ctx, realtimeEngine *engine.Engine) error {
	stops := realtimeEngine.Stops()

	boundsQuery := c.Query("bounds")
	if boundsQuery == "" {
		return c.JSON(stops)
	}

	boundsQuerySplit := strings.Split(boundsQuery, ",")
	if len(boundsQuerySplit) != 4 {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Bounds must contain 4 co-ordinates",
		})
	}

	var coordinates [4]float64
	for i, value := range boundsQuerySplit {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			c.Status(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Bounds must be numeric",
			})
		}
		coordinates[i] = parsed
	}

	// bottom left lon,lat then top right lon,lat
	bounds := geo.EmptyBounds()
	bounds.Extend(coordinates[1], coordinates[0])
	bounds.Extend(coordinates[3], coordinates[2])

	filtered := []*ctdf.Stop{}
	for _, stop := range stops {
		if bounds.Contains(stop.Latitude(), stop.Longitude()) {
			filtered = append(filtered, stop)
		}
	}

	return c.JSON(filtered)
}

type nearStop struct {
	*ctdf.Stop
	Distance float64 `json:"distance"`
}

func nearStops(c *fiber.Ctx, realtimeEngine *engine.Engine) error {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil || !ctdf.ValidCoordinates(lat, lon) {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "lat and lon must be valid co-ordinates",
		})
	}

	radius, err := strconv.ParseFloat(c.Query("radius", "250"), 64)
	if err != nil || radius <= 0 || radius > maxNearRadius {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "radius must be between 0 and 5000 metres",
		})
	}

	near := []nearStop{}
	for _, stop := range realtimeEngine.Index().GetItemsInRadius(lat, lon, radius) {
		distance := geo.Haversine(lat, lon, stop.Latitude(), stop.Longitude())
		if distance <= radius {
			near = append(near, nearStop{Stop: stop, Distance: distance})
		}
	}

	slices.SortFunc(near, func(a, b nearStop) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return 0
	})

	return c.JSON(near)
}

func getStop(c *fiber.Ctx, realtimeEngine *engine.Engine) error {
	identifier := c.Params("identifier")

	for _, stop := range realtimeEngine.Stops() {
		if stop.PrimaryIdentifier == identifier {
			return c.JSON(stop)
		}
	}

	c.Status(fiber.StatusNotFound)
	return c.JSON(fiber.Map{
		"error": "Could not find Stop matching Stop Identifier",
	})
}
