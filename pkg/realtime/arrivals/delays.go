package arrivals

import (
	"time"

	"github.com/travigo/transitsound/pkg/routeid"
)

// DelayRecord is the latest reported delay at a stop
type DelayRecord struct {
	AnchorID     string
	GroupID      routeid.ID
	DelaySeconds int
	ObservedAt   time.Time
	RecordedAt   time.Time
}

// DelayTracker keeps one delay per stop, last write wins. Small delays are
// ignored and entries expire after the retention window.
type DelayTracker struct {
	retention       time.Duration
	minDelaySeconds int

	records map[string]DelayRecord
}

func NewDelayTracker(retention time.Duration, minDelaySeconds int) *DelayTracker {
	return &DelayTracker{
		retention:       retention,
		minDelaySeconds: minDelaySeconds,
		records:         map[string]DelayRecord{},
	}
}

// Significant reports whether a delay is large enough to keep
func (t *DelayTracker) Significant(delaySeconds int) bool {
	if delaySeconds < 0 {
		delaySeconds = -delaySeconds
	}
	return delaySeconds > t.minDelaySeconds
}

func (t *DelayTracker) Record(anchorID string, groupID routeid.ID, delaySeconds int, observedAt time.Time, now time.Time) (DelayRecord, bool) {
	if anchorID == "" || !t.Significant(delaySeconds) {
		return DelayRecord{}, false
	}

	record := DelayRecord{
		AnchorID:     anchorID,
		GroupID:      groupID,
		DelaySeconds: delaySeconds,
		ObservedAt:   observedAt,
		RecordedAt:   now,
	}
	t.records[anchorID] = record

	return record, true
}

func (t *DelayTracker) Lookup(anchorID string, now time.Time) (DelayRecord, bool) {
	record, ok := t.records[anchorID]
	if !ok || t.expired(record, now) {
		return DelayRecord{}, false
	}
	return record, true
}

func (t *DelayTracker) Cleanup(now time.Time) int {
	removed := 0
	for anchorID, record := range t.records {
		if t.expired(record, now) {
			delete(t.records, anchorID)
			removed++
		}
	}
	return removed
}

func (t *DelayTracker) Reset() {
	t.records = map[string]DelayRecord{}
}

func (t *DelayTracker) Len() int {
	return len(t.records)
}

func (t *DelayTracker) expired(record DelayRecord, now time.Time) bool {
	return now.Sub(record.RecordedAt) > t.retention
}
