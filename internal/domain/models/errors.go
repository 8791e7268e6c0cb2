package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks invalid or inconsistent configuration. Fatal to the
	// call that raised it; no state is mutated.
	ErrConfig = errors.New("invalid configuration")

	// ErrNoDataInRange means no base PV samples survived trimming.
	ErrNoDataInRange = errors.New("align: no data in range")

	// ErrEmptyTimeAxis means an empty cumulative time axis reached the resampler.
	ErrEmptyTimeAxis = errors.New("resample: empty time axis")
)

// FetchError is a per-PV retrieval failure. It is collected and reported by
// the batch fetch, never aborting the other PVs.
type FetchError struct {
	PV  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch pv %s: %v", e.PV, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
