package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/api/routes"
	"github.com/travigo/transitsound/pkg/realtime/broadcast"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"github.com/travigo/transitsound/pkg/realtime/updatecache"
)

type Dependencies struct {
	Engine      *engine.Engine
	Hub         *broadcast.Hub
	UpdateCache *updatecache.Cache
}

func NewApp(deps Dependencies) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.PositionsRouter(group.Group("/positions"), deps.Engine)
	routes.StopsRouter(group.Group("/stops"), deps.Engine)
	routes.UpdatesRouter(group.Group("/updates"), deps.Hub, deps.UpdateCache)

	return webApp
}

// SetupServer serves the API until ctx is cancelled
func SetupServer(ctx context.Context, listen string, deps Dependencies) error {
	webApp := NewApp(deps)

	go func() {
		<-ctx.Done()
		// open streams only end once their subscriptions close
		deps.Hub.Close()
		if err := webApp.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down web api")
		}
	}()

	log.Info().Str("listen", listen).Msg("Starting web api")

	return webApp.Listen(listen)
}
