package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ArchPull/internal/domain/models"
	drepo "ArchPull/internal/domain/repository"
	"ArchPull/internal/engine"
	"ArchPull/pkg/logger"
	"ArchPull/pkg/util"
)

const axisDescription = "index is relative time in seconds after trim"

// Retriever owns retrieval configuration and state: it fans fetches out over
// a bounded worker pool, then runs alignment and resampling over the merged
// results. Datasets are replaced wholesale, never mutated in place.
type Retriever struct {
	mu sync.Mutex

	src     drepo.SampleSource
	engine  *engine.Engine
	store   drepo.DatasetStore
	metrics drepo.Metrics
	log     *logger.Logger

	pvs          []string
	server       models.Server
	startTime    time.Time
	endTime      time.Time
	durationHour float64
	setup        models.AlignSetup
	workers      int

	raw     *models.RawDataset
	aligned *models.AlignedDataset
}

// Params carries retriever construction inputs. StartTime/EndTime are
// operator wall-clock strings (MM/DD/YYYY HH:MM:SS); any two of start, end,
// and duration determine the window.
type Params struct {
	PVs          []string
	Server       string
	StartTime    string
	EndTime      string
	DurationHour float64
	Setup        *models.AlignSetup
	Workers      int
}

// Option configures optional retriever collaborators.
type Option func(*Retriever)

// WithDatasetStore enables aligned-dataset persistence.
func WithDatasetStore(store drepo.DatasetStore) Option {
	return func(r *Retriever) { r.store = store }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// New validates the configuration and builds a retriever.
func New(src drepo.SampleSource, eng *engine.Engine, log *logger.Logger, p Params, opts ...Option) (*Retriever, error) {
	if log == nil {
		log = logger.Nop()
	}
	if len(p.PVs) == 0 {
		return nil, fmt.Errorf("%w: at least one pv is required", models.ErrConfig)
	}

	server, err := models.ParseServer(p.Server)
	if err != nil {
		return nil, err
	}

	start, end, dur, err := resolveWindow(p.StartTime, p.EndTime, p.DurationHour)
	if err != nil {
		return nil, err
	}

	setup := models.DefaultAlignSetup(p.PVs[0])
	if p.Setup != nil {
		setup = *p.Setup
		if err := setup.Validate(); err != nil {
			return nil, err
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 8
	}

	r := &Retriever{
		src:          src,
		engine:       eng,
		log:          log,
		pvs:          append([]string(nil), p.PVs...),
		server:       server,
		startTime:    start,
		endTime:      end,
		durationHour: dur,
		setup:        setup,
		workers:      workers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// resolveWindow derives the missing member of {start, end, duration} and
// checks consistency when all three are supplied.
func resolveWindow(startStr, endStr string, durHour float64) (time.Time, time.Time, float64, error) {
	start, hasStart := util.ParseWallClock(startStr)
	if startStr != "" && !hasStart {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: bad start time %q, want MM/DD/YYYY HH:MM:SS", models.ErrConfig, startStr)
	}
	end, hasEnd := util.ParseWallClock(endStr)
	if endStr != "" && !hasEnd {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: bad end time %q, want MM/DD/YYYY HH:MM:SS", models.ErrConfig, endStr)
	}
	hasDur := durHour != 0

	switch {
	case hasStart && hasEnd && hasDur:
		actual := end.Sub(start).Hours()
		if math.Abs(actual-durHour) > 1e-6 {
			return time.Time{}, time.Time{}, 0, fmt.Errorf(
				"%w: start, end, and duration disagree: end-start is %.6f h, duration is %.6f h",
				models.ErrConfig, actual, durHour)
		}
	case hasStart && hasEnd:
		durHour = end.Sub(start).Hours()
	case hasEnd && hasDur:
		start = end.Add(-util.HoursToDuration(durHour))
	case hasStart && hasDur:
		end = start.Add(util.HoursToDuration(durHour))
	default:
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: need two of start, end, duration", models.ErrConfig)
	}

	if durHour <= 0 || !start.Before(end) {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: window start %v must precede end %v", models.ErrConfig, start, end)
	}
	return start, end, durHour, nil
}

type fetchResult struct {
	pv      string
	samples []models.Sample
	err     error
}

// GetHistory fetches every configured PV concurrently and merges the results
// into a fresh RawDataset. Per-PV failures are reported and stored as empty
// entries; the call fails only when no PVs are configured.
func (r *Retriever) GetHistory(ctx context.Context) (*models.RawDataset, error) {
	r.mu.Lock()
	pvs := append([]string(nil), r.pvs...)
	server := r.server
	win := models.TimeWindow{Start: r.startTime, End: r.endTime}
	workers := r.workers
	r.mu.Unlock()

	if len(pvs) == 0 {
		return nil, fmt.Errorf("%w: no pvs configured", models.ErrConfig)
	}
	started := time.Now()

	jobs := make(chan string)
	results := make(chan fetchResult)

	if workers > len(pvs) {
		workers = len(pvs)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pv := range jobs {
				t0 := time.Now()
				samples, err := r.src.Fetch(ctx, server, pv, win)
				if r.metrics != nil {
					r.metrics.RecordFetch(pv, time.Since(t0).Seconds(), len(samples))
				}
				results <- fetchResult{pv: pv, samples: samples, err: err}
			}
		}()
	}
	go func() {
		for _, pv := range pvs {
			jobs <- pv
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// single-writer merge; workers share nothing mutable
	raw := &models.RawDataset{
		Window: win,
		PVs:    pvs,
		Data:   make(map[string][]models.Sample, len(pvs)),
	}
	done := 0
	for res := range results {
		done++
		if res.err != nil {
			r.log.Warn("pv fetch failed",
				logger.String("pv", res.pv),
				logger.Error(res.err),
				logger.Int("done", done),
				logger.Int("total", len(pvs)),
			)
			if r.metrics != nil {
				r.metrics.RecordError("fetch")
			}
			raw.Data[res.pv] = nil
			continue
		}
		r.log.Info("pv fetched",
			logger.String("pv", res.pv),
			logger.Int("samples", len(res.samples)),
			logger.Int("done", done),
			logger.Int("total", len(pvs)),
		)
		raw.Data[res.pv] = res.samples
	}

	if r.metrics != nil {
		r.metrics.RecordLatency("get_history", time.Since(started).Seconds())
	}

	r.mu.Lock()
	r.raw = raw
	r.mu.Unlock()
	return raw, nil
}

// AlignHistory aligns and resamples the current raw dataset, fetching first
// when none is present. On alignment or resample failure the previously
// stored aligned dataset is left untouched.
func (r *Retriever) AlignHistory(ctx context.Context) (*models.AlignedDataset, error) {
	r.mu.Lock()
	raw := r.raw
	setup := r.setup
	r.mu.Unlock()

	if raw == nil {
		r.log.Info("no raw data available, fetching")
		var err error
		raw, err = r.GetHistory(ctx)
		if err != nil {
			return nil, err
		}
	}

	started := time.Now()
	res, err := r.engine.Align(raw, setup)
	if err != nil {
		return nil, err
	}

	grid, vals, err := engine.Resample(res.CumTime, res.Vals, setup.ResampleSec)
	if err != nil {
		return nil, err
	}

	totalSec := res.CumTime[len(res.CumTime)-1]
	aligned := &models.AlignedDataset{
		StartTime:    res.StartTime,
		PVs:          raw.PVs,
		RelTime:      grid,
		Vals:         vals,
		DurationHour: totalSec / 3600,
		Description:  axisDescription,
	}

	if r.metrics != nil {
		r.metrics.RecordAlignedHours(aligned.DurationHour)
		r.metrics.RecordLatency("align_history", time.Since(started).Seconds())
	}
	r.log.Info("history aligned",
		logger.Int("points", len(grid)),
		logger.Float64("duration_hour", aligned.DurationHour),
	)

	if r.store != nil {
		if err := r.store.SaveAligned(ctx, aligned); err != nil {
			// persistence is best-effort; the in-memory dataset stands
			r.log.Warn("aligned dataset persist failed", logger.Error(err))
			if r.metrics != nil {
				r.metrics.RecordError("persist")
			}
		}
	}

	r.mu.Lock()
	r.aligned = aligned
	r.mu.Unlock()
	return aligned, nil
}

// SetBasePV reconfigures the alignment reference. basePV wins over baseID
// when both are given; either must resolve to a configured PV.
func (r *Retriever) SetBasePV(basePV string, baseID int, valRanges []models.ValueRange, bridgeSec, resampleSec float64, trim bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case basePV != "":
		found := -1
		for i, pv := range r.pvs {
			if pv == basePV {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("%w: base pv %q is not among the configured pvs", models.ErrConfig, basePV)
		}
		baseID = found
	case baseID >= 0 && baseID < len(r.pvs):
		basePV = r.pvs[baseID]
	default:
		return fmt.Errorf("%w: base id %d is out of range [0, %d)", models.ErrConfig, baseID, len(r.pvs))
	}

	setup := models.AlignSetup{
		BasePV:      basePV,
		BaseID:      baseID,
		ValRanges:   valRanges,
		BridgeSec:   bridgeSec,
		ResampleSec: resampleSec,
		Trim:        trim,
	}
	if len(setup.ValRanges) == 0 {
		setup.ValRanges = r.setup.ValRanges
	}
	if err := setup.Validate(); err != nil {
		return err
	}
	r.setup = setup
	return nil
}

// --- typed accessors ---

func (r *Retriever) PVs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pvs...)
}

// SetPVs replaces the configured PV list and drops stale datasets.
func (r *Retriever) SetPVs(pvs []string) error {
	if len(pvs) == 0 {
		return fmt.Errorf("%w: at least one pv is required", models.ErrConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pvs = append([]string(nil), pvs...)
	r.raw = nil
	r.aligned = nil
	return nil
}

func (r *Retriever) Server() models.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.server
}

func (r *Retriever) SetServer(name string) error {
	server, err := models.ParseServer(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.server = server
	return nil
}

func (r *Retriever) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startTime
}

// SetStartTime moves the window start; the end is recomputed from the stored
// duration.
func (r *Retriever) SetStartTime(s string) error {
	t, ok := util.ParseWallClock(s)
	if !ok {
		return fmt.Errorf("%w: bad start time %q, want MM/DD/YYYY HH:MM:SS", models.ErrConfig, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startTime = t
	r.endTime = t.Add(util.HoursToDuration(r.durationHour))
	return nil
}

func (r *Retriever) EndTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endTime
}

// SetEndTime moves the window end; the start is recomputed from the stored
// duration.
func (r *Retriever) SetEndTime(s string) error {
	t, ok := util.ParseWallClock(s)
	if !ok {
		return fmt.Errorf("%w: bad end time %q, want MM/DD/YYYY HH:MM:SS", models.ErrConfig, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endTime = t
	r.startTime = t.Add(-util.HoursToDuration(r.durationHour))
	return nil
}

func (r *Retriever) DurationHour() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durationHour
}

// SetDurationHour changes the window length; the start is recomputed from
// the stored end.
func (r *Retriever) SetDurationHour(h float64) error {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: duration must be a positive number of hours, got %g", models.ErrConfig, h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durationHour = h
	r.startTime = r.endTime.Add(-util.HoursToDuration(h))
	return nil
}

func (r *Retriever) AlignSetup() models.AlignSetup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup
}

func (r *Retriever) SetAlignSetup(setup models.AlignSetup) error {
	if err := setup.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setup = setup
	return nil
}

// RawDataset returns the last fetched dataset, nil before the first fetch.
func (r *Retriever) RawDataset() *models.RawDataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raw
}

// AlignedDataset returns the last aligned dataset, nil before the first
// successful alignment.
func (r *Retriever) AlignedDataset() *models.AlignedDataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aligned
}
