package report

import (
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"github.com/aristanetworks/dataplane-harness/pkg/neighbor"
	"github.com/aristanetworks/dataplane-harness/pkg/sniff"
)

// TestReport is the final, serializable outcome of one run.
type TestReport struct {
	TestID     string          `json:"test_id"`
	DUTHost    string          `json:"dut_host"`
	RebootKind config.RebootKind `json:"reboot_kind"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	Duration   time.Duration   `json:"duration_ns"`
	Success    bool            `json:"success"`

	NoRoutingStart time.Time                 `json:"no_routing_start"`
	NoRoutingStop  time.Time                 `json:"no_routing_stop"`
	Disruptions    []sniff.DisruptionRecord  `json:"disruptions,omitempty"`

	Neighbors []*neighbor.Report `json:"neighbors"`

	Fails map[string][]string `json:"fails,omitempty"`
	Info  map[string][]string `json:"info,omitempty"`
}

// OutageDuration is the dataplane outage window length.
func (r *TestReport) OutageDuration() time.Duration {
	return r.NoRoutingStop.Sub(r.NoRoutingStart)
}

// GracefulDuration is the elapsed time from reboot trigger to dataplane
// recovery, used for the graceful_limit check.
func (r *TestReport) GracefulDuration(rebootStart time.Time) time.Duration {
	return r.NoRoutingStop.Sub(rebootStart)
}
