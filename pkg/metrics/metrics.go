// Package metrics defines the harness's Prometheus gauges and serves them
// over HTTP for an operator's Prometheus to scrape. cmd/dataplane-harness
// serves the registry when metrics are enabled, but nothing in the harness
// sets any of the gauges during a run, so a scrape carries no run state.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the harness's live gauges and counters.
type Registry struct {
	reg *prometheus.Registry

	PlaneState      *prometheus.GaugeVec
	PlaneFlooding   *prometheus.GaugeVec
	T1ToVlanHits    prometheus.Gauge
	VlanToT1Hits    prometheus.Gauge
	NeighborLACPDown *prometheus.GaugeVec
	NeighborBGPDown  *prometheus.GaugeVec
	DisruptionSeconds prometheus.Gauge
}

// New constructs and registers the harness's metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		PlaneState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "plane_state",
			Help:      "Current reachability state per plane: 0=init 1=up 2=partial 3=down.",
		}, []string{"plane"}),
		PlaneFlooding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "plane_flooding",
			Help:      "1 if the plane is currently classified as flooding.",
		}, []string{"plane"}),
		T1ToVlanHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "t1_to_vlan_hits",
			Help:      "Most recent T1->VLAN probe reply count.",
		}),
		VlanToT1Hits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "vlan_to_t1_hits",
			Help:      "Most recent VLAN->T1 probe reply count.",
		}),
		NeighborLACPDown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "neighbor_lacp_down_seconds",
			Help:      "Total observed LACP-down seconds per neighbor.",
		}, []string{"neighbor"}),
		NeighborBGPDown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "neighbor_bgp_down_seconds",
			Help:      "Total observed BGP-down seconds per neighbor.",
		}, []string{"neighbor", "afi"}),
		DisruptionSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataplane_harness",
			Name:      "last_disruption_seconds",
			Help:      "Duration of the longest reconstructed dataplane disruption.",
		}),
	}

	reg.MustRegister(r.PlaneState, r.PlaneFlooding, r.T1ToVlanHits, r.VlanToT1Hits, r.NeighborLACPDown, r.NeighborBGPDown, r.DisruptionSeconds)
	return r
}

// Serve starts an HTTP server exposing /metrics and blocks until ctx is
// cancelled or the server errors out.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
