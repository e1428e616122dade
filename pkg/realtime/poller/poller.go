// Package poller fetches the upstream vehicle and trip update feeds and turns
// each poll into an update batch.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/dataimporter/formats/gtfs"
	"github.com/travigo/transitsound/pkg/metrics"
	"github.com/travigo/transitsound/pkg/scheduler"
)

var ErrUnsupportedFormat = errors.New("unsupported feed format")
var ErrNoFeeds = errors.New("no feed urls configured")

const (
	feedVehicles    = "vehicles"
	feedTripUpdates = "updates"
)

// BodyCache stores the last good response body per feed url
type BodyCache interface {
	Get(ctx context.Context, key any) (string, error)
	Set(ctx context.Context, key any, object string, options ...store.Option) error
}

// NewBodyCache keeps feed bodies in redis so every poller shares them
func NewBodyCache(client *redis.Client, ttl time.Duration) *cache.Cache[string] {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return cache.New[string](redisStore)
}

type Poller struct {
	config Config
	client *http.Client
	cache  BodyCache
	clock  scheduler.Clock
}

// New builds a poller. bodyCache may be nil.
func New(config Config, bodyCache BodyCache, clock scheduler.Clock) (*Poller, error) {
	if config.Format != FormatJSON && config.Format != FormatGTFSRT {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, config.Format)
	}
	if config.VehiclesURL == "" && config.TripUpdatesURL == "" {
		return nil, ErrNoFeeds
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if clock == nil {
		clock = scheduler.RealClock{}
	}

	return &Poller{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		cache:  bodyCache,
		clock:  clock,
	}, nil
}

// Poll fetches both feeds concurrently. A feed that fails leaves its half of
// the batch empty; Poll only errors when nothing could be fetched.
func (p *Poller) Poll(ctx context.Context) (ctdf.UpdateBatch, error) {
	var vehiclesBody, updatesBody []byte

	fetchers := pool.New().WithErrors().WithContext(ctx)
	if p.config.VehiclesURL != "" {
		fetchers.Go(func(ctx context.Context) error {
			body, err := p.fetch(ctx, feedVehicles, p.config.VehiclesURL)
			vehiclesBody = body
			return err
		})
	}
	if p.config.TripUpdatesURL != "" {
		fetchers.Go(func(ctx context.Context) error {
			body, err := p.fetch(ctx, feedTripUpdates, p.config.TripUpdatesURL)
			updatesBody = body
			return err
		})
	}

	fetchErr := fetchers.Wait()
	if vehiclesBody == nil && updatesBody == nil {
		if fetchErr == nil {
			fetchErr = ErrNoFeeds
		}
		return ctdf.UpdateBatch{}, fetchErr
	}
	if fetchErr != nil {
		log.Warn().Err(fetchErr).Msg("Partial feed poll")
	}

	return p.decode(vehiclesBody, updatesBody)
}

func (p *Poller) decode(vehiclesBody []byte, updatesBody []byte) (ctdf.UpdateBatch, error) {
	now := p.clock.Now()

	switch p.config.Format {
	case FormatGTFSRT:
		var vehicles []ctdf.VehicleUpdate
		var delays []ctdf.StopDelayUpdate

		for _, body := range [][]byte{vehiclesBody, updatesBody} {
			if body == nil {
				continue
			}
			feedVehicles, feedDelays, err := gtfs.DecodeRealtime(body, now)
			if err != nil {
				metrics.FeedErrors.WithLabelValues("decode").Inc()
				return ctdf.UpdateBatch{}, err
			}
			vehicles = append(vehicles, feedVehicles...)
			delays = append(delays, feedDelays...)
		}

		// A fetched vehicle feed with nothing in it still means every vehicle is gone
		if vehiclesBody != nil && vehicles == nil {
			vehicles = []ctdf.VehicleUpdate{}
		}

		return ctdf.NewUpdateBatch(now, vehicles, delays)
	default:
		batch := ctdf.UpdateBatch{Timestamp: now}

		if vehiclesBody != nil {
			if !json.Valid(vehiclesBody) {
				metrics.FeedErrors.WithLabelValues("decode").Inc()
				return ctdf.UpdateBatch{}, fmt.Errorf("vehicles feed is not valid JSON")
			}
			batch.Buses = vehiclesBody
		}
		if updatesBody != nil {
			if !json.Valid(updatesBody) {
				metrics.FeedErrors.WithLabelValues("decode").Inc()
				return ctdf.UpdateBatch{}, fmt.Errorf("trip updates feed is not valid JSON")
			}
			batch.Updates = updatesBody
		}

		return batch, nil
	}
}

func (p *Poller) fetch(ctx context.Context, feed string, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		request.Header.Set("User-Agent", "transitsound")
		for key, value := range p.config.Headers {
			request.Header.Set(key, value)
		}

		response, err := p.client.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()

		if response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(fmt.Errorf("%s feed returned %s", feed, response.Status))
		}
		if response.StatusCode != http.StatusOK {
			return fmt.Errorf("%s feed returned %s", feed, response.Status)
		}

		body, err = io.ReadAll(response.Body)
		return err
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 200 * time.Millisecond
	retry.MaxElapsedTime = p.config.MaxRetryTime

	err := backoff.Retry(operation, backoff.WithContext(retry, ctx))
	if err == nil {
		if p.cache != nil {
			if cacheErr := p.cache.Set(ctx, url, string(body)); cacheErr != nil {
				log.Error().Err(cacheErr).Str("feed", feed).Msg("Failed to cache feed body")
			}
		}
		return body, nil
	}

	metrics.FeedErrors.WithLabelValues(feed).Inc()

	if p.cache != nil {
		if cached, cacheErr := p.cache.Get(ctx, url); cacheErr == nil && cached != "" {
			log.Warn().Err(err).Str("feed", feed).Msg("Feed fetch failed, using cached body")
			return []byte(cached), nil
		}
	}

	return nil, fmt.Errorf("fetch %s feed: %w", feed, err)
}

// Run polls every Interval until ctx is cancelled, handing each batch to publish
func (p *Poller) Run(ctx context.Context, publish func(ctdf.UpdateBatch)) {
	log.Info().
		Str("vehicles", p.config.VehiclesURL).
		Str("updates", p.config.TripUpdatesURL).
		Str("format", p.config.Format).
		Dur("interval", p.config.Interval).
		Msg("Starting feed poller")

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		startTime := time.Now()

		batch, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to poll feeds")
		} else {
			publish(batch)
			log.Debug().Dur("time", time.Since(startTime)).Msg("Polled feeds")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
