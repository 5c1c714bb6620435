// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "utxoledger"

var (
	addBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "add_block_total",
		Help:      "Count of AddBlock calls by outcome.",
	}, []string{"chain", "status"})

	addBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "add_block_duration_seconds",
		Help:      "Duration of AddBlock including mining.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "status"})

	blockTxs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "block_transactions",
		Help:      "Number of transactions per appended block, coinbase included.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"chain"})

	sealNonces = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "consensus",
		Name:      "seal_nonce",
		Help:      "Winning nonce of each sealed block.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
	}, []string{"chain"})

	chainHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "height",
		Help:      "Index of the chain tip.",
	}, []string{"chain"})

	utxoCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "utxo_count",
		Help:      "Number of unspent outputs.",
	}, []string{"chain"})

	validationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "chain_validation_total",
		Help:      "Count of full chain validations by outcome.",
	}, []string{"chain", "status"})
)

// Ledger tracks metrics for one chain.
type Ledger struct {
	chain string
}

// NewLedger constructs a Ledger; an empty chain name becomes "unknown".
func NewLedger(chain string) *Ledger {
	if chain == "" {
		chain = "unknown"
	}
	return &Ledger{chain: chain}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveAddBlock records an AddBlock outcome and duration.
func (m *Ledger) ObserveAddBlock(err error, txs int, started time.Time) {
	s := status(err)
	addBlockTotal.WithLabelValues(m.chain, s).Inc()
	addBlockDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	if err == nil {
		blockTxs.WithLabelValues(m.chain).Observe(float64(txs))
	}
}

// ObserveSeal records the nonce a block was sealed with.
func (m *Ledger) ObserveSeal(nonce uint64) {
	sealNonces.WithLabelValues(m.chain).Observe(float64(nonce))
}

// SetTip records the tip height and UTXO set size.
func (m *Ledger) SetTip(height uint64, utxos int) {
	chainHeight.WithLabelValues(m.chain).Set(float64(height))
	utxoCount.WithLabelValues(m.chain).Set(float64(utxos))
}

// ObserveValidation records a full chain validation outcome.
func (m *Ledger) ObserveValidation(err error) {
	validationTotal.WithLabelValues(m.chain, status(err)).Inc()
}
