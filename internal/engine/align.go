package engine

import (
	"fmt"
	"math"
	"time"

	"ArchPull/internal/domain/models"
	"ArchPull/pkg/logger"
)

// Engine aligns raw per-PV samples against a base PV: trims the base to its
// valid value ranges, bridges trimmed gaps with a fixed seam duration, and
// projects every PV onto the kept base timeline.
type Engine struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log}
}

// AlignResult is the pre-resample aligned view: one matrix column per kept
// base sample.
type AlignResult struct {
	StartTime time.Time
	CumTime   []float64
	Vals      [][]float64
	KeptIdx   []int
}

// Align computes the bridged cumulative axis from the base PV and
// cross-interpolates all PVs onto it. Returns ErrNoDataInRange when trimming
// removes everything (or the base has no samples at all).
func (e *Engine) Align(raw *models.RawDataset, setup models.AlignSetup) (*AlignResult, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	base := raw.Samples(setup.BasePV)
	if len(base) == 0 {
		return nil, fmt.Errorf("base pv %q has no samples: %w", setup.BasePV, models.ErrNoDataInRange)
	}

	// base timestamps relative to the base's first sample
	relTime := make([]float64, len(base))
	for i, s := range base {
		relTime[i] = s.Time - base[0].Time
	}

	keptIdx, err := e.keepIndices(base, setup)
	if err != nil {
		return nil, err
	}

	// positions in keptIdx where the raw index jumps: a trimmed gap
	var breaks []int
	for p := 1; p < len(keptIdx); p++ {
		if keptIdx[p] != keptIdx[p-1]+1 {
			breaks = append(breaks, p)
		}
	}

	// cumulative time: true deltas between kept samples, except across a
	// trimmed gap where the configured bridge duration is substituted so
	// removed intervals never show up as dead time
	cum := make([]float64, len(keptIdx))
	bi := 0
	for p := 1; p < len(keptIdx); p++ {
		d := relTime[keptIdx[p]] - relTime[keptIdx[p-1]]
		if bi < len(breaks) && breaks[bi] == p {
			d = setup.BridgeSec
			bi++
		}
		cum[p] = cum[p-1] + d
	}

	// synchronized absolute start: with no trimmed gaps it is simply the
	// first kept sample; otherwise the kept sample at the first gap
	startIdx := keptIdx[0]
	if len(breaks) > 0 {
		startIdx = keptIdx[breaks[0]]
	}
	startTime := models.FromEpochSec(base[startIdx].Time)

	// query coordinates for secondary PVs: the base's true relative times at
	// the kept samples, not the bridged axis, so seams do not shift reads
	queries := make([]float64, len(keptIdx))
	for p, idx := range keptIdx {
		queries[p] = relTime[idx]
	}

	vals := make([][]float64, len(raw.PVs))
	for i, pv := range raw.PVs {
		vals[i] = e.projectRow(pv, raw.Samples(pv), base, keptIdx, queries, setup)
	}

	return &AlignResult{
		StartTime: startTime,
		CumTime:   cum,
		Vals:      vals,
		KeptIdx:   keptIdx,
	}, nil
}

// keepIndices computes the sorted base-sample indices whose values fall in
// any configured range. With trimming off, every index is kept.
func (e *Engine) keepIndices(base []models.Sample, setup models.AlignSetup) ([]int, error) {
	kept := make([]int, 0, len(base))
	if !setup.Trim {
		for i := range base {
			kept = append(kept, i)
		}
		return kept, nil
	}
	for i, s := range base {
		if setup.InRange(s.Val) {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return nil, models.ErrNoDataInRange
	}
	return kept, nil
}

// projectRow builds one matrix row for a PV at the kept base positions.
func (e *Engine) projectRow(pv string, data, base []models.Sample, keptIdx []int, queries []float64, setup models.AlignSetup) []float64 {
	row := make([]float64, len(keptIdx))

	switch {
	case pv == setup.BasePV:
		for p, idx := range keptIdx {
			row[p] = base[idx].Val
		}
	case len(data) == 0:
		e.log.Warn("no samples for pv, row left empty", logger.String("pv", pv))
		for p := range row {
			row[p] = math.NaN()
		}
	case len(data) == 1:
		e.log.Warn("only one sample for pv, filling row with it", logger.String("pv", pv))
		for p := range row {
			row[p] = data[0].Val
		}
	default:
		xs := make([]float64, len(data))
		ys := make([]float64, len(data))
		for i, s := range data {
			xs[i] = s.Time - data[0].Time
			ys[i] = s.Val
		}
		// shift queries into this PV's own relative frame
		offset := base[0].Time - data[0].Time
		q := make([]float64, len(queries))
		for i, v := range queries {
			q[i] = v + offset
		}
		row = Interp(q, xs, ys)
	}
	return row
}
