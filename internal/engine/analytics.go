package engine

import "time"

// Rolling windows the dashboards aggregate over. All windows are measured
// backwards from "now" as supplied by the caller.
const (
	WindowDay   = 24 * time.Hour
	WindowWeek  = 7 * 24 * time.Hour
	WindowMonth = 30 * 24 * time.Hour
)

// MinSampleSize is the number of completed passes a window must contain
// before duration metrics are shown as numbers. Below it the dashboard
// reports the insufficient-data sentinel instead of a misleading zero.
// The aggregation queries always run; the sentinel only replaces the
// presentation of a genuinely thin result.
const MinSampleSize = 1

// Dashboard metric statuses. SampleInsufficient is the explicit sentinel.
// It is not an error and not a null: clients render it verbatim.
const (
	SampleOK           = "success"
	SampleInsufficient = "Not Enough Data"
)

// SampleStatus maps a completed-pass sample size to a metric status.
func SampleStatus(completed int) string {
	if completed < MinSampleSize {
		return SampleInsufficient
	}
	return SampleOK
}

// AverageDuration is the mean absence in minutes over a window, or nil
// when the sample is below MinSampleSize. totalMinutes is the sum of
// DurationMinutes over completed passes in the window.
func AverageDuration(totalMinutes, completed int) *float64 {
	if completed < MinSampleSize {
		return nil
	}
	avg := float64(totalMinutes) / float64(completed)
	return &avg
}

// RatePerTeacher divides a school-wide count across the teachers that
// produced it. A window with no deciding teachers yet divides by one so
// the figure stays defined.
func RatePerTeacher(total, teachers int) float64 {
	if teachers < 1 {
		teachers = 1
	}
	return float64(total) / float64(teachers)
}

// HourBucket pairs an hour of day (0–23) with the number of passes
// requested during it.
type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// PeakHour picks the busiest request hour, preferring the earlier hour on
// a tie so the result is stable. Returns nil for an empty window.
func PeakHour(buckets []HourBucket) *HourBucket {
	var peak *HourBucket
	for i := range buckets {
		b := buckets[i]
		if b.Count == 0 {
			continue
		}
		if peak == nil || b.Count > peak.Count || (b.Count == peak.Count && b.Hour < peak.Hour) {
			peak = &buckets[i]
		}
	}
	return peak
}
