package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIRequestsCounter(t *testing.T) {
	before := testutil.ToFloat64(APIRequests.WithLabelValues("/campaigns/list", "200"))
	APIRequests.WithLabelValues("/campaigns/list", "200").Inc()
	after := testutil.ToFloat64(APIRequests.WithLabelValues("/campaigns/list", "200"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestImportItemsPerResource(t *testing.T) {
	before := testutil.ToFloat64(ImportItems.WithLabelValues("canvas"))
	ImportItems.WithLabelValues("canvas").Add(3)
	after := testutil.ToFloat64(ImportItems.WithLabelValues("canvas"))
	if after-before != 3 {
		t.Errorf("counter delta = %v, want 3", after-before)
	}
}

func TestExportBatchOutcomes(t *testing.T) {
	ExportBatches.WithLabelValues("success").Inc()
	ExportBatches.WithLabelValues("failure").Inc()
	if testutil.ToFloat64(ExportBatches.WithLabelValues("success")) < 1 {
		t.Error("success counter not incremented")
	}
	if testutil.ToFloat64(ExportBatches.WithLabelValues("failure")) < 1 {
		t.Error("failure counter not incremented")
	}
}

func TestActiveJobsGauge(t *testing.T) {
	ActiveJobs.Set(0)
	ActiveJobs.Inc()
	ActiveJobs.Inc()
	ActiveJobs.Dec()
	if got := testutil.ToFloat64(ActiveJobs); got != 1 {
		t.Errorf("ActiveJobs = %v, want 1", got)
	}
	ActiveJobs.Set(0)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("test")
	time.Sleep(10 * time.Millisecond)
	d := timer.Stop()
	if d < 10*time.Millisecond {
		t.Errorf("Stop = %v, want >= 10ms", d)
	}

	// Stop is repeatable and monotonic.
	d2 := timer.Stop()
	if d2 < d {
		t.Errorf("second Stop = %v, want >= %v", d2, d)
	}
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("braze", "jsonfile")
	tracker.Increment(100)
	time.Sleep(20 * time.Millisecond)

	throughput := tracker.GetAndReset()
	if throughput <= 0 {
		t.Errorf("throughput = %v, want > 0", throughput)
	}

	// Counter reset: immediate second read reports zero records.
	time.Sleep(5 * time.Millisecond)
	if second := tracker.GetAndReset(); second != 0 {
		t.Errorf("throughput after reset = %v, want 0", second)
	}
}

func TestCollectorUptime(t *testing.T) {
	c := NewCollector("braze-import")
	all := c.GetAll()
	if all["component"] != "braze-import" {
		t.Errorf("component = %v", all["component"])
	}
	if c.StartTime().IsZero() {
		t.Error("start time not set")
	}
}
