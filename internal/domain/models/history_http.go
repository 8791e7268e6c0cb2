package models

import (
	"encoding/json"
	"math"
)

// JSONFloat marshals NaN as null so aligned rows survive JSON encoding.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// HistoryRequest triggers a batch fetch over the configured window.
type HistoryRequest struct {
	Refetch bool `json:"refetch" query:"refetch" default:"false"`
}

// HistoryResponse summarizes a batch fetch: per-PV sample counts and any
// per-PV failures (reported, not fatal).
type HistoryResponse struct {
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Counts   map[string]int    `json:"counts"`
	Failures map[string]string `json:"failures,omitempty"`
}

// AlignRequest runs alignment and resampling, optionally refetching first.
type AlignRequest struct {
	Refetch bool `json:"refetch" default:"false"`
}

// AlignResponse carries the aligned dataset with NaN-safe values.
type AlignResponse struct {
	StartTime    string        `json:"start_time"`
	PVs          []string      `json:"pvs"`
	RelTime      []float64     `json:"rel_time_sec"`
	Vals         [][]JSONFloat `json:"vals"`
	DurationHour float64       `json:"duration_hour"`
	Description  string        `json:"description"`
}

// NewAlignResponse converts an AlignedDataset to its wire form.
func NewAlignResponse(ds *AlignedDataset) *AlignResponse {
	vals := make([][]JSONFloat, len(ds.Vals))
	for i, row := range ds.Vals {
		r := make([]JSONFloat, len(row))
		for j, v := range row {
			r[j] = JSONFloat(v)
		}
		vals[i] = r
	}
	return &AlignResponse{
		StartTime:    ds.StartTime.UTC().Format("01/02/2006 15:04:05"),
		PVs:          ds.PVs,
		RelTime:      ds.RelTime,
		Vals:         vals,
		DurationHour: ds.DurationHour,
		Description:  ds.Description,
	}
}

// SetBasePVRequest reconfigures the alignment reference. Either base_pv or
// base_id selects the PV; base_pv wins when both are present.
type SetBasePVRequest struct {
	BasePV      string      `json:"base_pv"`
	BaseID      *int        `json:"base_id"`
	ValRanges   [][]float64 `json:"val_ranges" validate:"omitempty,dive,len=2"`
	BridgeSec   float64     `json:"bridge_sec" default:"1" validate:"gt=0"`
	ResampleSec float64     `json:"resample_sec" default:"1" validate:"gt=0"`
	Trim        *bool       `json:"trim"`
}

// ConfigResponse is the read-only view of retriever configuration.
type ConfigResponse struct {
	Server       string     `json:"server"`
	PVs          []string   `json:"pvs"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	DurationHour float64    `json:"duration_hour"`
	Align        AlignSetup `json:"align"`
}
