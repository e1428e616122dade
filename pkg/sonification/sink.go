package sonification

import (
	"github.com/rs/zerolog"
)

// Sink receives cue parameters. Synthesis happens elsewhere.
type Sink interface {
	PlayArrival(cue ArrivalCue)
	PlayDelay(cue DelayCue)
	UpdateGroups(cues []GroupCue)
}

// LogSink writes every cue to a zerolog logger
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) PlayArrival(cue ArrivalCue) {
	s.Logger.Info().
		Str("vehicle", cue.EntityID).
		Str("stop", cue.AnchorID).
		Str("stopname", cue.AnchorName).
		Str("route", cue.GroupID.String()).
		Float64("intensity", cue.Intensity).
		Int("delay", cue.DelaySeconds).
		Time("crossing", cue.CrossingTime).
		Msg("Arrival cue")
}

func (s LogSink) PlayDelay(cue DelayCue) {
	s.Logger.Info().
		Str("stop", cue.AnchorID).
		Str("route", cue.GroupID.String()).
		Int("delay", cue.DelaySeconds).
		Float64("severity", cue.Severity).
		Bool("late", cue.Late).
		Msg("Disruption cue")
}

func (s LogSink) UpdateGroups(cues []GroupCue) {
	s.Logger.Debug().Int("groups", len(cues)).Msg("Group cues")
}
