package latency

import (
	"testing"
	"time"
)

func TestObserveTracksSlidingWindowStats(t *testing.T) {
	m := NewMonitor("stream1", nil)
	base := time.Now()
	for i, d := range []float64{1.0, 1.1, 0.9, 1.2, 1.0} {
		m.Observe(d, base.Add(time.Duration(i)*time.Second))
	}
	r := m.Snapshot()
	if r.Samples != 5 {
		t.Fatalf("expected 5 samples, got %d", r.Samples)
	}
	if r.Min != 0.9 || r.Max != 1.2 {
		t.Fatalf("min/max wrong: %+v", r)
	}
}

func TestObserveCountsGapWhenDeltaExceedsThreshold(t *testing.T) {
	m := NewMonitor("stream1", nil)
	base := time.Now()
	m.Observe(1.0, base)
	m.Observe(1.0, base.Add(time.Second))
	// A jump much larger than 1.5x the rolling mean should count as a gap.
	m.Observe(10.0, base.Add(2*time.Second))
	r := m.Snapshot()
	if r.Gaps == 0 {
		t.Fatalf("expected at least one gap to be counted, got %+v", r)
	}
}

func TestTickBeginsOutageAfterSilence(t *testing.T) {
	m := NewMonitor("stream1", nil)
	base := time.Now()
	m.Observe(1.0, base)
	tr := m.Tick(base.Add(5 * time.Minute))
	if tr != BeginOutage {
		t.Fatalf("expected BeginOutage, got %v", tr)
	}
}

func TestTickEscalatesToCorrupted(t *testing.T) {
	m := NewMonitor("stream1", nil)
	base := time.Now()
	m.Observe(1.0, base)
	m.Tick(base.Add(5 * time.Minute))
	tr := m.Tick(base.Add(10 * time.Minute))
	if tr != BeginCorrupted {
		t.Fatalf("expected BeginCorrupted, got %v", tr)
	}
}

func TestObserveEndsOutageOnResumption(t *testing.T) {
	m := NewMonitor("stream1", nil)
	base := time.Now()
	m.Observe(1.0, base)
	m.Tick(base.Add(5 * time.Minute))
	tr := m.Observe(1.0, base.Add(5*time.Minute+time.Second))
	if tr != EndOutage {
		t.Fatalf("expected EndOutage, got %v", tr)
	}
}
