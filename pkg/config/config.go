// Package config loads the transitsound YAML configuration and applies
// TRAVIGO_* environment overrides on top of it.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"github.com/travigo/transitsound/pkg/realtime/poller"
	"github.com/travigo/transitsound/pkg/realtime/updatecache"
	"github.com/travigo/transitsound/pkg/routeid"
	"github.com/travigo/transitsound/pkg/sonification"
	"github.com/travigo/transitsound/pkg/util"
	"gopkg.in/yaml.v3"
)

type StopsConfig struct {
	Path   string `yaml:"path" validate:"required"`
	Format string `yaml:"format" validate:"omitempty,oneof=gtfs naptan"`
}

type RoutesConfig struct {
	Strategy   string `yaml:"strategy" validate:"omitempty,oneof=trailing-zero passthrough expr"`
	Expression string `yaml:"expression" validate:"required_if=Strategy expr"`
}

type APIConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

type RedisConfig struct {
	// Enabled routes batches through the redis queue so several instances
	// can share one poller
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Engine       engine.Config       `yaml:"engine"`
	Sonification sonification.Config `yaml:"sonification"`
	UpdateCache  updatecache.Config  `yaml:"update_cache"`
	Poller       poller.Config       `yaml:"poller"`

	Stops  StopsConfig  `yaml:"stops"`
	Routes RoutesConfig `yaml:"routes"`
	API    APIConfig    `yaml:"api"`
	Redis  RedisConfig  `yaml:"redis"`
}

func Default() Config {
	engineConfig := engine.DefaultConfig()

	sonificationConfig := sonification.DefaultConfig()
	sonificationConfig.PlaybackDelay = engineConfig.DisplayLag

	return Config{
		Engine:       engineConfig,
		Sonification: sonificationConfig,
		UpdateCache:  updatecache.DefaultConfig(),
		Poller:       poller.DefaultConfig(),
		Stops: StopsConfig{
			Format: "gtfs",
		},
		Routes: RoutesConfig{
			Strategy: routeid.StrategyTrailingZero,
		},
		API: APIConfig{
			Listen: ":8080",
		},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	config.applyEnvironment(util.GetEnvironmentVariables())

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyEnvironment(env map[string]string) {
	util.EnvString(env, "TRAVIGO_STOPS_PATH", &c.Stops.Path)
	util.EnvString(env, "TRAVIGO_STOPS_FORMAT", &c.Stops.Format)

	util.EnvString(env, "TRAVIGO_VEHICLES_URL", &c.Poller.VehiclesURL)
	util.EnvString(env, "TRAVIGO_TRIP_UPDATES_URL", &c.Poller.TripUpdatesURL)
	util.EnvString(env, "TRAVIGO_FEED_FORMAT", &c.Poller.Format)
	util.EnvDuration(env, "TRAVIGO_POLL_INTERVAL", &c.Poller.Interval)
	util.EnvDuration(env, "TRAVIGO_FEED_CACHE_TTL", &c.Poller.CacheTTL)

	util.EnvDuration(env, "TRAVIGO_DISPLAY_LAG", &c.Engine.DisplayLag)
	util.EnvDuration(env, "TRAVIGO_TICK_INTERVAL", &c.Engine.TickInterval)
	util.EnvDuration(env, "TRAVIGO_INTERPOLATION_TOLERANCE", &c.Engine.InterpolationTolerance)
	util.EnvInt(env, "TRAVIGO_GRID_SIZE", &c.Engine.GridSize)
	util.EnvFloat(env, "TRAVIGO_PROXIMITY_THRESHOLD", &c.Engine.Arrival.ProximityThreshold)

	util.EnvDuration(env, "TRAVIGO_PLAYBACK_DELAY", &c.Sonification.PlaybackDelay)
	util.EnvDuration(env, "TRAVIGO_MAX_STALENESS", &c.Sonification.MaxStaleness)

	util.EnvString(env, "TRAVIGO_ROUTE_STRATEGY", &c.Routes.Strategy)
	util.EnvString(env, "TRAVIGO_ROUTE_EXPRESSION", &c.Routes.Expression)

	util.EnvString(env, "TRAVIGO_API_LISTEN", &c.API.Listen)
	util.EnvBool(env, "TRAVIGO_REDIS_ENABLED", &c.Redis.Enabled)
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// PollingEnabled is false when this instance only consumes batches from redis
func (c *Config) PollingEnabled() bool {
	return c.Poller.VehiclesURL != "" || c.Poller.TripUpdatesURL != ""
}

func (c *Config) Normalizer() (routeid.Normalizer, error) {
	return routeid.FromConfig(c.Routes.Strategy, c.Routes.Expression)
}
