package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Total readings stored
var ReadingsReceived = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "esp32_readings_received_total",
		Help: "The total number of readings accepted from the device",
	},
)

// Rejected POSTs, labeled by reason ("malformed", "validation", "too_large")
var ReadingsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "esp32_readings_rejected_total",
		Help: "The total number of POSTs rejected without touching the store",
	},
	[]string{"reason"},
)

var WebsocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "esp32_websocket_clients",
		Help: "Number of connected live-update clients",
	},
)

var LastReadingTimestamp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "esp32_last_reading_timestamp_seconds",
		Help: "Unix time at which the latest reading was stored",
	},
)

// observeReading records a successful store write.
func observeReading(at time.Time) {
	ReadingsReceived.Inc()
	LastReadingTimestamp.Set(float64(at.Unix()))
}
