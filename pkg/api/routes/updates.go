package routes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/realtime/broadcast"
	"github.com/travigo/transitsound/pkg/realtime/updatecache"
	"github.com/valyala/fasthttp"
)

const streamHeartbeat = 15 * time.Second

func UpdatesRouter(router fiber.Router, hub *broadcast.Hub, cache *updatecache.Cache) {
	router.Get("/history", func(c *fiber.Ctx) error {
		return c.JSON(cache.Drain())
	})
	router.Get("/stream", func(c *fiber.Ctx) error {
		return streamUpdates(c, hub)
	})
}

// streamUpdates sends the cached history as one "history" event and then every
// live batch as an "update" event
func streamUpdates(c *fiber.Ctx, hub *broadcast.Hub) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	subscription := hub.Subscribe()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer hub.Unsubscribe(subscription.ID)

		if err := writeEvent(w, "history", subscription.History); err != nil {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case batch, ok := <-subscription.Updates:
				if !ok {
					return
				}
				if err := writeEvent(w, "update", batch); err != nil {
					log.Debug().Err(err).Str("subscriber", subscription.ID).Msg("Stream client went away")
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}

	return w.Flush()
}
