package engine

import "testing"

func TestSampleStatus(t *testing.T) {
	if got := SampleStatus(0); got != SampleInsufficient {
		t.Fatalf("zero completed passes should be insufficient, got %q", got)
	}
	if got := SampleStatus(1); got != SampleOK {
		t.Fatalf("one completed pass meets the threshold, got %q", got)
	}
	if got := SampleStatus(40); got != SampleOK {
		t.Fatalf("large sample should be ok, got %q", got)
	}
}

func TestAverageDuration(t *testing.T) {
	if avg := AverageDuration(0, 0); avg != nil {
		t.Fatalf("empty window must yield nil, not %v", *avg)
	}
	avg := AverageDuration(45, 3)
	if avg == nil || *avg != 15 {
		t.Fatalf("expected average 15, got %v", avg)
	}
	// A completed pass with zero measured minutes still counts as data.
	avg = AverageDuration(0, 2)
	if avg == nil || *avg != 0 {
		t.Fatalf("zero-duration sample should average to 0, got %v", avg)
	}
}

func TestRatePerTeacher(t *testing.T) {
	if got := RatePerTeacher(12, 4); got != 3 {
		t.Fatalf("expected 3, got %f", got)
	}
	if got := RatePerTeacher(5, 0); got != 5 {
		t.Fatalf("zero teachers should divide by one, got %f", got)
	}
}

func TestPeakHour(t *testing.T) {
	if peak := PeakHour(nil); peak != nil {
		t.Fatalf("no buckets should yield nil, got %+v", peak)
	}
	if peak := PeakHour([]HourBucket{{Hour: 9, Count: 0}}); peak != nil {
		t.Fatalf("all-zero buckets should yield nil, got %+v", peak)
	}

	buckets := []HourBucket{
		{Hour: 8, Count: 3},
		{Hour: 10, Count: 7},
		{Hour: 13, Count: 7},
		{Hour: 14, Count: 2},
	}
	peak := PeakHour(buckets)
	if peak == nil || peak.Hour != 10 || peak.Count != 7 {
		t.Fatalf("tie should resolve to the earlier hour, got %+v", peak)
	}
}
