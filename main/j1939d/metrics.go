package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "j1939_frames_total",
		Help: "Raw CAN frames pulled from the source.",
	})
	malformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "j1939_malformed_records_total",
		Help: "Log records that could not be parsed.",
	})
	filteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "j1939_filtered_frames_total",
		Help: "Frames that were not vehicle position broadcasts.",
	})
	positionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "j1939_positions_total",
		Help: "Vehicle positions decoded and delivered.",
	})
)

func init() {
	prometheus.MustRegister(framesTotal, malformedTotal, filteredTotal, positionsTotal)
}

// serveMetrics exposes the registered metrics over HTTP in the background.
func serveMetrics(listen string) {
	http.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))
	go func() {
		if err := http.ListenAndServe(listen, nil); err != nil {
			log.WithField("err", err).Error("metrics server stopped")
		}
	}()
}
