package analytics

import (
	"testing"
)

// --- SummarizeLatencies ---

func TestSummarizeLatencies(t *testing.T) {
	samples := map[string][]float64{
		"silent-failure": {12, 3, 7, 40, 5},
		"step-timeout":   {20},
	}

	results := SummarizeLatencies(samples)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// sorted by detector name
	sf := results[0]
	if sf.Detector != "silent-failure" {
		t.Fatalf("results[0].Detector = %q", sf.Detector)
	}
	if sf.Count != 5 {
		t.Errorf("Count = %d, want 5", sf.Count)
	}
	if sf.Avg != 13.4 {
		t.Errorf("Avg = %v, want 13.4", sf.Avg)
	}
	if sf.P50 != 7.0 {
		t.Errorf("P50 = %v, want 7", sf.P50)
	}
	// rank 3.8 between 12 and 40
	if sf.P95 != 34.4 {
		t.Errorf("P95 = %v, want 34.4", sf.P95)
	}

	st := results[1]
	if st.Detector != "step-timeout" || st.Count != 1 {
		t.Fatalf("results[1] = %+v", st)
	}
	if st.Avg != 20 || st.P50 != 20 || st.P95 != 20 {
		t.Errorf("single sample stats = %v/%v/%v, want 20 across", st.Avg, st.P50, st.P95)
	}
}

func TestSummarizeLatenciesEmpty(t *testing.T) {
	if got := SummarizeLatencies(nil); got != nil {
		t.Errorf("SummarizeLatencies(nil) = %v, want nil", got)
	}
}

// --- helpers ---

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    int
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{95, 3.9},
		{100, 4},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v, %d) = %v, want %v", sorted, tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil, 50) = %v, want 0", got)
	}
}

func TestPct(t *testing.T) {
	if got := pct(1, 3); got != 33.3 {
		t.Errorf("pct(1, 3) = %v, want 33.3", got)
	}
	if got := pct(5, 0); got != 0 {
		t.Errorf("pct(5, 0) = %v, want 0", got)
	}
}

func TestAvg(t *testing.T) {
	if got := avg([]float64{1, 2}); got != 1.5 {
		t.Errorf("avg = %v, want 1.5", got)
	}
	if got := avg(nil); got != 0 {
		t.Errorf("avg(nil) = %v, want 0", got)
	}
}
