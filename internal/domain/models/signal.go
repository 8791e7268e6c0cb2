package models

import (
	"fmt"
	"strings"
	"time"
)

// Sample is one archived measurement: epoch seconds (fractional) and value.
type Sample struct {
	Time float64
	Val  float64
}

// Signal is a named, time-ordered series of samples.
type Signal struct {
	PV      string
	Samples []Sample
}

// Server selects which archiver appliance instance to query.
type Server string

const (
	ServerLCLS Server = "LCLS"
	ServerSSRL Server = "SSRL"
)

// ParseServer validates a server name (case-insensitive).
func ParseServer(s string) (Server, error) {
	switch Server(strings.ToUpper(s)) {
	case ServerLCLS:
		return ServerLCLS, nil
	case ServerSSRL:
		return ServerSSRL, nil
	default:
		return "", fmt.Errorf("%w: invalid server %q, choose LCLS or SSRL", ErrConfig, s)
	}
}

// TimeWindow is the absolute retrieval window, wall-clock interpreted as UTC.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Validate checks the start < end invariant.
func (w TimeWindow) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: window start %v is not before end %v", ErrConfig, w.Start, w.End)
	}
	return nil
}

// StartSec and EndSec expose window bounds as epoch seconds for sample math.
func (w TimeWindow) StartSec() float64 { return EpochSec(w.Start) }

func (w TimeWindow) EndSec() float64 { return EpochSec(w.End) }

// EpochSec converts a time to fractional epoch seconds.
func EpochSec(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpochSec converts fractional epoch seconds back to a time.
func FromEpochSec(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9)).UTC()
}

// RawDataset holds per-PV raw samples after a batch fetch. A PV that failed
// to fetch is present with a nil sample slice. PVs preserves configured order.
type RawDataset struct {
	Window TimeWindow
	PVs    []string
	Data   map[string][]Sample
}

// Samples returns the raw samples for a PV, nil if absent or failed.
func (d *RawDataset) Samples(pv string) []Sample {
	if d == nil {
		return nil
	}
	return d.Data[pv]
}

// AlignedDataset is the aligned, uniformly resampled result. Vals is indexed
// [pv][time]; out-of-coverage points are NaN.
type AlignedDataset struct {
	StartTime    time.Time
	PVs          []string
	RelTime      []float64
	Vals         [][]float64
	DurationHour float64
	Description  string
}
