package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}
	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}
}

// ObserveDuration is how the reconciler times a full health-check sweep;
// exercise it against the package's own HealthCheckDuration histogram
// rather than a throwaway one.
func TestTimerObserveDuration_HealthCheckDuration(t *testing.T) {
	var m dto.Metric
	if err := HealthCheckDuration.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	before := m.GetHistogram().GetSampleCount()

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(HealthCheckDuration)

	if err := HealthCheckDuration.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	after := m.GetHistogram().GetSampleCount()
	if after != before+1 {
		t.Errorf("HealthCheckDuration sample count = %d, want %d", after, before+1)
	}
	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDuration() recorded zero duration")
	}
}

// ObserveDurationVec is how the orchestrator labels a backup's duration
// by server and kind; exercise it against BackupDuration, which carries
// those two labels.
func TestTimerObserveDurationVec_BackupDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(BackupDuration, "test-server", "full")

	var m dto.Metric
	if err := BackupDuration.WithLabelValues("test-server", "full").(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetHistogram().GetSampleSum(); got == 0 {
		t.Error("BackupDuration sum for test-server/full is zero")
	}
	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDurationVec() recorded zero duration")
	}
}

func TestTimerMultipleCalls(t *testing.T) {
	timer := NewTimer()

	time.Sleep(10 * time.Millisecond)
	duration1 := timer.Duration()

	time.Sleep(10 * time.Millisecond)
	duration2 := timer.Duration()

	if duration2 <= duration1 {
		t.Errorf("second Duration() call should be longer: first=%v, second=%v", duration1, duration2)
	}
}

func TestMultipleTimers(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(10 * time.Millisecond)

	timer2 := NewTimer()
	time.Sleep(10 * time.Millisecond)

	duration1 := timer1.Duration()
	duration2 := timer2.Duration()

	if duration1 <= duration2 {
		t.Errorf("timer1 should be running longer: timer1=%v, timer2=%v", duration1, duration2)
	}
}

// Mirrors the reconciler's health-check cycle accounting: one
// HealthCheckDuration observation followed by incrementing
// HealthCheckCyclesTotal.
func TestTimerObserveDuration_HealthCheckCycle(t *testing.T) {
	before := testutil.ToFloat64(HealthCheckCyclesTotal)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(HealthCheckDuration)
	HealthCheckCyclesTotal.Inc()

	after := testutil.ToFloat64(HealthCheckCyclesTotal)
	if after != before+1 {
		t.Errorf("HealthCheckCyclesTotal = %v, want %v", after, before+1)
	}
}
