package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	writeHistogram(&buf, "d", "help", h.Snapshot())
	out := buf.String()
	for _, line := range []string{
		`d_bucket{le="10"} 1`,
		`d_bucket{le="100"} 2`,
		`d_bucket{le="+Inf"} 3`,
		"d_sum 555",
		"d_count 3",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Fatalf("missing %q in:\n%s", line, out)
		}
	}
}

func TestRenderIncludesAllSeries(t *testing.T) {
	IncAnalysisStarted()
	IncAnalysisDiscarded()
	ObserveAnalysisDurationMs(120)

	out := Render()
	for _, name := range []string{
		"analysis_started_total",
		"analysis_completed_total",
		"analysis_failed_total",
		"analysis_discarded_total",
		"upload_rejected_total",
		"snapshot_saved_total",
		"snapshot_loaded_total",
		`analysis_duration_ms_bucket{le="250"}`,
		`analysis_duration_ms_bucket{le="+Inf"}`,
		"analysis_duration_ms_count",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("render missing %s:\n%s", name, out)
		}
	}
}
