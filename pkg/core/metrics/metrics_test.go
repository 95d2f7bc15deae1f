package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestRegisterTwice(t *testing.T) {
	Register()
	Register()
}

func TestCounters(t *testing.T) {
	read := func() float64 {
		var m dto.Metric
		if err := RowsWrittenTotal.WithLabelValues("fact", "inserted").Write(&m); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		return m.GetCounter().GetValue()
	}

	before := read()
	RowsWrittenTotal.WithLabelValues("fact", "inserted").Add(3)
	if got := read(); got != before+3 {
		t.Errorf("rows_written_total = %v, want %v", got, before+3)
	}
}
