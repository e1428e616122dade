package realtime

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/config"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/realtime/broadcast"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"github.com/travigo/transitsound/pkg/realtime/updatecache"
	"github.com/travigo/transitsound/pkg/scheduler"
	"github.com/travigo/transitsound/pkg/sonification"
)

// Pipeline is the engine, the conductor and the hub sharing one scheduler
type Pipeline struct {
	Scheduler   *scheduler.Scheduler
	Engine      *engine.Engine
	Conductor   *sonification.Conductor
	UpdateCache *updatecache.Cache
	Hub         *broadcast.Hub

	cacheTask *scheduler.Task
}

func NewPipeline(cfg config.Config, stops []*ctdf.Stop, sink sonification.Sink, clock scheduler.Clock) (*Pipeline, error) {
	normalizer, err := cfg.Normalizer()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(clock)

	realtimeEngine := engine.New(cfg.Engine, stops, sched, normalizer)

	conductor := sonification.NewConductor(cfg.Sonification, sched, sink)
	conductor.Attach(realtimeEngine)

	cache := updatecache.New(cfg.UpdateCache, sched.Clock())

	return &Pipeline{
		Scheduler:   sched,
		Engine:      realtimeEngine,
		Conductor:   conductor,
		UpdateCache: cache,
		Hub:         broadcast.NewHub(cache, sched.Clock(), 0),
	}, nil
}

// Start registers the periodic work and subscribes the engine to the hub. The
// cached history is replayed first, then live batches are handed to the
// scheduler goroutine in publish order until ctx is done or the hub closes.
func (p *Pipeline) Start(ctx context.Context) {
	p.Engine.Start()
	p.cacheTask = p.UpdateCache.Schedule(p.Scheduler)

	subscription := p.Hub.Subscribe()

	history := subscription.History
	p.Scheduler.Post(func() {
		p.Engine.IngestHistorical(history)
	})

	go func() {
		for batch := range subscription.Updates {
			posted := p.Scheduler.PostContext(ctx, func() {
				p.Engine.Ingest(batch)
			})
			if !posted {
				return
			}
		}
		log.Debug().Msg("Engine subscription closed")
	}()
}

// Stop cancels all scheduled work. Call it once the scheduler goroutine has
// returned.
func (p *Pipeline) Stop() {
	p.Conductor.Stop()
	p.Engine.Stop()
	p.cacheTask.Cancel()
	p.Hub.Close()
	p.Scheduler.Stop()
}
