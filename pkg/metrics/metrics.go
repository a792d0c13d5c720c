package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	RelayTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_transactions_total",
		Help: "The total number of relayTransaction calls by outcome",
	}, []string{"status"})

	RelayTransactionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayclient_transaction_seconds",
		Help:    "Time taken to relay a transaction end to end",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms with 10 buckets doubling in size
	}, []string{"status"})

	RelayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_relay_attempts_total",
		Help: "The total number of relay attempts by relay and outcome",
	}, []string{"relay_url", "status"})

	RelayingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_relaying_errors_total",
		Help: "Total number of relaying errors by relay and error type",
	}, []string{"relay_url", "error_type"})

	PingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_ping_errors_total",
		Help: "Total number of failed or filtered relay pings",
	}, []string{"relay_url"})

	RelayFailuresRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_relay_failures_recorded_total",
		Help: "Number of failures saved in the relay directory",
	}, []string{"relay_url"})

	BroadcastResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayclient_broadcast_results_total",
		Help: "Outcome of the client side broadcast of relayed transactions",
	}, []string{"result"})

	AvailableRelays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayclient_available_relays",
		Help: "The number of relays that answered the last ping round",
	})

	KnownRelays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayclient_known_relays",
		Help: "The number of relays known after the last directory refresh",
	})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayclient_network_gas_price_gwei",
		Help: "Current network gas price in gwei",
	})

	Initializations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayclient_initializations_total",
		Help: "Number of times the relay client performed its one-time initialization",
	})
)
