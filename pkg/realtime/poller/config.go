package poller

import "time"

const (
	FormatJSON     = "json"
	FormatGTFSRT   = "gtfs-rt"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	VehiclesURL    string `yaml:"vehicles_url" validate:"omitempty,url"`
	TripUpdatesURL string `yaml:"trip_updates_url" validate:"omitempty,url"`
	Format         string `yaml:"format" validate:"oneof=json gtfs-rt"`

	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetryTime time.Duration `yaml:"max_retry_time" validate:"gte=0"`
	// CacheTTL is how long the last good response is kept in redis, zero
	// disables the cache
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	Headers map[string]string `yaml:"headers"`
}

func DefaultConfig() Config {
	return Config{
		Format:       FormatJSON,
		Interval:     10 * time.Second,
		Timeout:      defaultTimeout,
		MaxRetryTime: 5 * time.Second,
		CacheTTL:     5 * time.Minute,
	}
}
