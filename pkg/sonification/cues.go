package sonification

import (
	"math"
	"time"

	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/routeid"
)

// maxDelaySeverity is the delay at which a disruption cue is at full strength
const maxDelaySeverity = 10 * time.Minute

type ArrivalCue struct {
	EntityID     string
	AnchorID     string
	AnchorName   string
	GroupID      routeid.ID
	Lat          float64
	Lon          float64
	Intensity    float64
	DelaySeconds int
	CrossingTime time.Time
	PlayAt       time.Time
}

type DelayCue struct {
	GroupID      routeid.ID
	AnchorID     string
	DelaySeconds int
	Lat          float64
	Lon          float64
	// Severity scales the cue from 0 to 1 by the size of the delay
	Severity float64
	// Late is false when the vehicle is running early
	Late bool
}

// GroupCue is the aggregate state of one route used for its drone voice
type GroupCue struct {
	GroupID     routeid.ID
	Vehicles    int
	CentroidLat float64
	CentroidLon float64
	MeanBearing float64
	// Spread is the mean resultant length of the bearings, 1 when every
	// vehicle points the same way and near 0 when they cancel out
	Spread float64
}

func delaySeverity(delaySeconds int) float64 {
	delay := time.Duration(math.Abs(float64(delaySeconds))) * time.Second
	return geo.Clamp(float64(delay)/float64(maxDelaySeverity), 0, 1)
}

// circularMean averages bearings on the circle
func circularMean(bearings []float64) (mean float64, resultant float64) {
	if len(bearings) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, bearing := range bearings {
		radians := bearing * math.Pi / 180
		sinSum += math.Sin(radians)
		cosSum += math.Cos(radians)
	}

	n := float64(len(bearings))
	resultant = math.Hypot(sinSum/n, cosSum/n)
	if resultant < 1e-9 {
		return 0, 0
	}

	return geo.NormalizeBearing(math.Atan2(sinSum, cosSum) * 180 / math.Pi), resultant
}
