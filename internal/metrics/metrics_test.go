package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProposalsTotal.WithLabelValues("accepted").Inc()
	m.RejectionsTotal.WithLabelValues("overlap").Add(2)
	m.ExpirationsTotal.Inc()

	if got := testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("overlap")); got != 2 {
		t.Fatalf("rejections = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"schedula_reservation_proposals_total",
		"schedula_reservation_rejections_total",
		"schedula_reservation_expirations_total",
	} {
		if !names[want] {
			t.Fatalf("metric %s not registered", want)
		}
	}
}

func TestNew_NilRegistererIsUsable(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.ExpirationsTotal.Inc()
	b.ExpirationsTotal.Inc()
	if got := testutil.ToFloat64(a.ExpirationsTotal); got != 1 {
		t.Fatalf("expirations = %v, want 1", got)
	}
}
