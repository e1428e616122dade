package realtime

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/api"
	"github.com/travigo/transitsound/pkg/config"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/dataimporter"
	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/realtime/broadcast"
	"github.com/travigo/transitsound/pkg/realtime/poller"
	"github.com/travigo/transitsound/pkg/redis_client"
	"github.com/travigo/transitsound/pkg/scheduler"
	"github.com/travigo/transitsound/pkg/sonification"
	"github.com/travigo/transitsound/pkg/spatialindex"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: []string{"TRAVIGO_CONFIG"},
	Usage:   "path to the YAML config file",
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime vehicle interpolation and sonification",
		Subcommands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll the feeds, animate vehicles and play cues",
				Flags:  []cli.Flag{configFlag},
				Action: runAction,
			},
			{
				Name:  "stops",
				Usage: "load a stop dataset and print a summary of it",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "path",
						Usage: "stop dataset, overrides the config file",
					},
					&cli.StringFlag{
						Name:  "format",
						Value: "gtfs",
						Usage: "dataset format when --path is used (gtfs or naptan)",
					},
					&cli.IntFlag{
						Name:  "sample",
						Value: 5,
						Usage: "number of stops to print",
					},
				},
				Action: stopsAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	stops, err := dataimporter.LoadStopsFile(cfg.Stops.Path, cfg.Stops.Format)
	if err != nil {
		return err
	}

	pipeline, err := NewPipeline(cfg, stops, sonification.LogSink{Logger: log.Logger}, scheduler.RealClock{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var connection *redis_client.Connection
	var bridge *broadcast.QueueBridge

	if cfg.Redis.Enabled {
		options, err := redis_client.OptionsFromEnvironment()
		if err != nil {
			return err
		}
		if connection, err = redis_client.Connect(ctx, options); err != nil {
			return err
		}
		defer connection.Close()

		if bridge, err = broadcast.NewQueueBridge(connection.Queue); err != nil {
			return err
		}
		if err := bridge.StartConsuming(pipeline.Hub); err != nil {
			return err
		}
	}

	if !cfg.PollingEnabled() && bridge == nil {
		return errors.New("no feed urls configured and redis disabled, nothing to ingest")
	}

	pipeline.Start(ctx)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := pipeline.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Scheduler stopped")
		}
	}()

	if cfg.PollingEnabled() {
		var bodyCache poller.BodyCache
		if connection != nil && cfg.Poller.CacheTTL > 0 {
			bodyCache = poller.NewBodyCache(connection.Client, cfg.Poller.CacheTTL)
		}

		feedPoller, err := poller.New(cfg.Poller, bodyCache, nil)
		if err != nil {
			return err
		}

		publish := pipeline.Hub.Publish
		if bridge != nil {
			publish = func(batch ctdf.UpdateBatch) {
				if err := bridge.PublishBatch(batch); err != nil {
					log.Error().Err(err).Msg("Failed to queue update batch, publishing locally")
					pipeline.Hub.Publish(batch)
				}
			}
		}

		go feedPoller.Run(ctx, publish)
	}

	go func() {
		err := api.SetupServer(ctx, cfg.API.Listen, api.Dependencies{
			Engine:      pipeline.Engine,
			Hub:         pipeline.Hub,
			UpdateCache: pipeline.UpdateCache,
		})
		if err != nil {
			log.Error().Err(err).Msg("Web api stopped")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case <-signals: // wait for signal
	case <-ctx.Done():
	}
	go func() {
		<-signals // hard exit on second signal (in case shutdown gets stuck)
		os.Exit(1)
	}()

	log.Info().Msg("Shutting down")

	cancel()
	<-schedulerDone
	pipeline.Stop()

	return nil
}

type stopsSummary struct {
	Stops  int
	Bounds geo.Bounds
	Cells  int
	Sample []*ctdf.Stop
}

func stopsAction(c *cli.Context) error {
	path, format := c.String("path"), c.String("format")

	if path == "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		path, format = cfg.Stops.Path, cfg.Stops.Format
	}

	stops, err := dataimporter.LoadStopsFile(path, format)
	if err != nil {
		return err
	}

	bounds := geo.EmptyBounds()
	for _, stop := range stops {
		bounds.Extend(stop.Latitude(), stop.Longitude())
	}

	index := spatialindex.New[*ctdf.Stop](bounds, config.Default().Engine.GridSize)
	for _, stop := range stops {
		index.AddItem(stop.Latitude(), stop.Longitude(), stop)
	}

	sampleSize := min(max(c.Int("sample"), 0), len(stops))

	pretty.Println(stopsSummary{
		Stops:  index.Len(),
		Bounds: bounds,
		Cells:  index.CellCount(),
		Sample: stops[:sampleSize],
	})

	return nil
}
