package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func delta(t *testing.T, collector prometheus.Collector, observe func()) float64 {
	t.Helper()

	before := testutil.ToFloat64(collector)
	observe()
	after := testutil.ToFloat64(collector)
	return after - before
}

func TestLedgerRecordsAddBlock(t *testing.T) {
	m := NewLedger("")
	start := time.Now().Add(-time.Second)

	if inc := delta(t, addBlockTotal.WithLabelValues("unknown", "success"), func() {
		m.ObserveAddBlock(nil, 3, start)
	}); inc != 1 {
		t.Fatalf("expected add block success increment, got %v", inc)
	}

	if inc := delta(t, addBlockTotal.WithLabelValues("unknown", "error"), func() {
		m.ObserveAddBlock(errors.New("invalid"), 2, start)
	}); inc != 1 {
		t.Fatalf("expected add block error increment, got %v", inc)
	}
}

func TestLedgerSetTip(t *testing.T) {
	m := NewLedger("main")
	m.SetTip(7, 12)

	if got := testutil.ToFloat64(chainHeight.WithLabelValues("main")); got != 7 {
		t.Fatalf("height = %v, want 7", got)
	}
	if got := testutil.ToFloat64(utxoCount.WithLabelValues("main")); got != 12 {
		t.Fatalf("utxo count = %v, want 12", got)
	}
}

func TestLedgerValidationAndSeal(t *testing.T) {
	m := NewLedger("audit")

	if inc := delta(t, validationTotal.WithLabelValues("audit", "error"), func() {
		m.ObserveValidation(errors.New("tampered"))
	}); inc != 1 {
		t.Fatalf("expected validation error increment, got %v", inc)
	}

	m.ObserveSeal(1234)
	if n := testutil.CollectAndCount(sealNonces); n < 1 {
		t.Fatalf("seal histogram has %d series, want at least 1", n)
	}
}
