package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	Rooms           prometheus.Gauge
	Connections     prometheus.Gauge
	MatchesStarted  prometheus.Counter
	MatchesFinished prometheus.Counter
	SlowClients     prometheus.Counter
	LedgerWrites    *prometheus.CounterVec // result=ok|error
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_rooms",
			Help: "Rooms currently held by the coordinator.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_connections",
			Help: "Open WebSocket connections.",
		}),
		MatchesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_matches_started_total",
			Help: "Rooms that moved from waiting to playing.",
		}),
		MatchesFinished: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_matches_finished_total",
			Help: "Rooms that moved from playing to finished.",
		}),
		SlowClients: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_slow_clients_total",
			Help: "Connections dropped because their send buffer was full.",
		}),
		LedgerWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_ledger_writes_total",
			Help: "Score ledger writes at match end by result.",
		}, []string{"result"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
