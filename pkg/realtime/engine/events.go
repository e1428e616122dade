package engine

import (
	"time"

	"github.com/travigo/transitsound/pkg/realtime/arrivals"
	"github.com/travigo/transitsound/pkg/routeid"
)

type ArrivalEvent struct {
	EntityID     string
	AnchorID     string
	AnchorName   string
	AnchorLat    float64
	AnchorLon    float64
	GroupID      routeid.ID
	Intensity    float64
	CrossingTime time.Time
	Distance     float64

	// EstimatedDelay is the most recent delay reported at the stop, if any
	EstimatedDelay *arrivals.DelayRecord
}

type DelayEvent struct {
	GroupID      routeid.ID
	AnchorID     string
	DelaySeconds int
	AnchorLat    float64
	AnchorLon    float64
	EffectiveAt  time.Time
}
