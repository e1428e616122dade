package engine

import (
	"time"

	"github.com/travigo/transitsound/pkg/realtime/arrivals"
)

type Config struct {
	// DisplayLag is how far behind the wall clock positions are drawn
	DisplayLag time.Duration `yaml:"display_lag" validate:"gt=0"`
	// InterpolationTolerance is how far a lone or latest sample may be from the
	// display time and still be shown
	InterpolationTolerance time.Duration `yaml:"interpolation_tolerance" validate:"gte=0"`

	MaxHistoryAge       time.Duration `yaml:"max_history_age" validate:"gt=0"`
	MaxSamplesPerEntity int           `yaml:"max_samples_per_entity" validate:"gte=2"`

	TickInterval    time.Duration `yaml:"tick_interval" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
	// GapThreshold is the longest pause between ticks before all transient
	// state is thrown away
	GapThreshold time.Duration `yaml:"gap_threshold" validate:"gt=0"`
	// IntroWindow is how far before now the last replayed historical batch lands
	IntroWindow time.Duration `yaml:"intro_window" validate:"gte=0"`

	DelayRetention  time.Duration `yaml:"delay_retention" validate:"gt=0"`
	MinDelaySeconds int           `yaml:"min_delay_seconds" validate:"gte=0"`

	GridSize int `yaml:"grid_size" validate:"gt=0"`

	Arrival arrivals.Config `yaml:"arrival"`
}

func DefaultConfig() Config {
	return Config{
		DisplayLag:             60 * time.Second,
		InterpolationTolerance: 30 * time.Second,
		MaxHistoryAge:          3 * time.Minute,
		MaxSamplesPerEntity:    50,
		TickInterval:           50 * time.Millisecond,
		CleanupInterval:        30 * time.Second,
		GapThreshold:           10 * time.Second,
		IntroWindow:            10 * time.Second,
		DelayRetention:         10 * time.Minute,
		MinDelaySeconds:        10,
		GridSize:               50,
		Arrival:                arrivals.DefaultConfig(),
	}
}
