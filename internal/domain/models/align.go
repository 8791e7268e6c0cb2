package models

import "fmt"

// ValueRange is an inclusive [Low, High] band of valid base PV values.
type ValueRange struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Contains reports whether v falls inside the range, bounds inclusive.
func (r ValueRange) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// AlignSetup configures trimming, bridging, and resampling against a base PV.
type AlignSetup struct {
	BasePV      string       `json:"base_pv" yaml:"base_pv"`
	BaseID      int          `json:"base_id" yaml:"base_id"`
	ValRanges   []ValueRange `json:"val_ranges" yaml:"val_ranges"`
	BridgeSec   float64      `json:"bridge_sec" yaml:"bridge_sec"`
	ResampleSec float64      `json:"resample_sec" yaml:"resample_sec"`
	Trim        bool         `json:"trim" yaml:"trim"`
}

// DefaultAlignSetup mirrors the archiver client defaults: first PV as base,
// one broad valid range, 1s bridge and 1s resample grid, trimming on.
func DefaultAlignSetup(basePV string) AlignSetup {
	return AlignSetup{
		BasePV:      basePV,
		BaseID:      0,
		ValRanges:   []ValueRange{{Low: 1e3, High: 1e5}},
		BridgeSec:   1,
		ResampleSec: 1,
		Trim:        true,
	}
}

// Validate checks every field an alignment run depends on.
func (s AlignSetup) Validate() error {
	if s.BasePV == "" {
		return fmt.Errorf("%w: align setup requires base_pv", ErrConfig)
	}
	if s.BaseID < 0 {
		return fmt.Errorf("%w: align setup base_id must be >= 0", ErrConfig)
	}
	if len(s.ValRanges) == 0 {
		return fmt.Errorf("%w: align setup requires at least one value range", ErrConfig)
	}
	for i, r := range s.ValRanges {
		if r.Low > r.High {
			return fmt.Errorf("%w: value range %d has low %g > high %g", ErrConfig, i, r.Low, r.High)
		}
	}
	if s.BridgeSec <= 0 {
		return fmt.Errorf("%w: align setup bridge_sec must be > 0", ErrConfig)
	}
	if s.ResampleSec <= 0 {
		return fmt.Errorf("%w: align setup resample_sec must be > 0", ErrConfig)
	}
	return nil
}

// InRange reports whether v is inside any configured range (union semantics).
func (s AlignSetup) InRange(v float64) bool {
	for _, r := range s.ValRanges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}
