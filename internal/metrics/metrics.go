// Package metrics exposes simulation counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveTransportables  prometheus.Gauge
	WaitingTransportables *prometheus.GaugeVec // kind label
	RunningVehicles       prometheus.Gauge
	TriggeredVehicles     prometheus.Gauge // waiting for their first rider
	SimTime               prometheus.Gauge // seconds

	StageEvents            *prometheus.CounterVec // type, kind labels
	TransportablesFinished *prometheus.CounterVec // kind, outcome labels
	Reservations           prometheus.Counter

	RideWaitingTime prometheus.Histogram
	RideRouteLength prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	RowsStored *prometheus.CounterVec // result label: ok|error

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	StepLength prometheus.Gauge // seconds
}

func NewCollector(stepLength time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTransportables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_active_transportables",
			Help: "Number of persons and containers with an unfinished plan.",
		}),
		WaitingTransportables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ridesim_waiting_transportables",
			Help: "Number of transportables waiting for a ride.",
		}, []string{"kind"}),
		RunningVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_running_vehicles",
			Help: "Number of vehicles on the network.",
		}),
		TriggeredVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_triggered_vehicles_waiting",
			Help: "Number of triggered vehicles waiting for their first rider.",
		}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_time_seconds",
			Help: "Current simulation time.",
		}),
		StageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridesim_stage_events_total",
			Help: "Ride stage transitions.",
		}, []string{"type", "kind"}),
		TransportablesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridesim_transportables_finished_total",
			Help: "Transportables that completed or aborted their plan.",
		}, []string{"kind", "outcome"}),
		Reservations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ridesim_taxi_reservations_total",
			Help: "Total taxi reservations handed to the dispatcher.",
		}),
		RideWaitingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridesim_ride_waiting_seconds",
			Help:    "Time spent waiting before boarding.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		RideRouteLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridesim_ride_route_length_meters",
			Help:    "Distance driven during completed rides.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 14),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ridesim_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ridesim_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		RowsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridesim_ride_rows_stored_total",
			Help: "Ride rows written to the results database.",
		}, []string{"result"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridesim_tick_duration_seconds",
			Help:    "Wall time of one simulation step.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridesim_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		StepLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridesim_step_length_seconds",
			Help: "Simulation step length in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveTransportables, c.WaitingTransportables, c.RunningVehicles, c.TriggeredVehicles, c.SimTime,
		c.StageEvents, c.TransportablesFinished, c.Reservations,
		c.RideWaitingTime, c.RideRouteLength,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.RowsStored, c.TickDuration, c.PublishDuration, c.StepLength,
	)

	c.StepLength.Set(stepLength.Seconds())

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}

// NATSPublishedInc and the methods below let the collector serve as the
// publisher's metrics sink.
func (c *Collector) NATSPublishedInc() { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
