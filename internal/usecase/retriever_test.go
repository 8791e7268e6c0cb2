package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ArchPull/internal/domain/models"
	"ArchPull/internal/engine"
	"ArchPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned samples per PV and fails the PVs listed in fail.
type fakeSource struct {
	mu      sync.Mutex
	data    map[string][]models.Sample
	fail    map[string]bool
	fetches int
}

func (f *fakeSource) Fetch(_ context.Context, _ models.Server, pv string, _ models.TimeWindow) ([]models.Sample, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.fail[pv] {
		return nil, &models.FetchError{PV: pv, Err: fmt.Errorf("pv not archived")}
	}
	return f.data[pv], nil
}

const testEpoch = 1.6e9

func flatSeries(n int, val float64) []models.Sample {
	samples := make([]models.Sample, n)
	for i := range samples {
		samples[i] = models.Sample{Time: testEpoch + float64(i), Val: val}
	}
	return samples
}

func testParams(pvs ...string) Params {
	return Params{
		PVs:       pvs,
		Server:    "LCLS",
		StartTime: "06/05/2023 08:00:00",
		EndTime:   "06/05/2023 09:00:00",
	}
}

func newTestRetriever(t *testing.T, src *fakeSource, p Params, opts ...Option) *Retriever {
	t.Helper()
	r, err := New(src, engine.New(logger.Nop()), logger.Nop(), p, opts...)
	require.NoError(t, err)
	return r
}

func TestNewRequiresPVs(t *testing.T) {
	_, err := New(&fakeSource{}, engine.New(nil), nil, testParams())
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestNewRejectsUnknownServer(t *testing.T) {
	p := testParams("PV:A")
	p.Server = "ALS"
	_, err := New(&fakeSource{}, engine.New(nil), nil, p)
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestResolveWindow(t *testing.T) {
	start := "06/05/2023 08:00:00"
	end := "06/05/2023 10:00:00"

	t.Run("start and duration derive end", func(t *testing.T) {
		s, e, dur, err := resolveWindow(start, "", 2)
		require.NoError(t, err)
		assert.Equal(t, 2.0, dur)
		assert.Equal(t, 2*time.Hour, e.Sub(s))
	})
	t.Run("end and duration derive start", func(t *testing.T) {
		s, e, _, err := resolveWindow("", end, 2)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, e.Sub(s))
	})
	t.Run("start and end derive duration", func(t *testing.T) {
		_, _, dur, err := resolveWindow(start, end, 0)
		require.NoError(t, err)
		assert.Equal(t, 2.0, dur)
	})
	t.Run("all three must agree", func(t *testing.T) {
		_, _, _, err := resolveWindow(start, end, 2)
		require.NoError(t, err)
		_, _, _, err = resolveWindow(start, end, 3)
		require.ErrorIs(t, err, models.ErrConfig)
	})
	t.Run("one parameter is not enough", func(t *testing.T) {
		_, _, _, err := resolveWindow(start, "", 0)
		require.ErrorIs(t, err, models.ErrConfig)
	})
	t.Run("malformed time is rejected", func(t *testing.T) {
		_, _, _, err := resolveWindow("2023-06-05 08:00:00", "", 2)
		require.ErrorIs(t, err, models.ErrConfig)
	})
	t.Run("end before start is rejected", func(t *testing.T) {
		_, _, _, err := resolveWindow(end, start, 0)
		require.ErrorIs(t, err, models.ErrConfig)
	})
}

func TestGetHistoryMergesWorkerResults(t *testing.T) {
	src := &fakeSource{
		data: map[string][]models.Sample{
			"PV:A": flatSeries(600, 5000),
			"PV:B": flatSeries(600, 6000),
			"PV:C": flatSeries(600, 7000),
		},
	}
	r := newTestRetriever(t, src, testParams("PV:A", "PV:B", "PV:C"))

	raw, err := r.GetHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, raw.Data, 3)
	for _, pv := range []string{"PV:A", "PV:B", "PV:C"} {
		assert.Len(t, raw.Data[pv], 600, pv)
	}
	assert.Equal(t, 3, src.fetches)
	assert.Same(t, raw, r.RawDataset())
}

func TestGetHistoryKeepsPartialResults(t *testing.T) {
	src := &fakeSource{
		data: map[string][]models.Sample{"PV:A": flatSeries(600, 5000)},
		fail: map[string]bool{"PV:B": true},
	}
	r := newTestRetriever(t, src, testParams("PV:A", "PV:B"))

	raw, err := r.GetHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Data["PV:A"], 600)
	assert.Nil(t, raw.Data["PV:B"]) // failed PV keeps an empty slot
}

func TestAlignHistoryFetchesWhenNoRawData(t *testing.T) {
	src := &fakeSource{
		data: map[string][]models.Sample{
			"PV:A": flatSeries(600, 5000),
			"PV:B": flatSeries(600, 6000),
		},
	}
	r := newTestRetriever(t, src, testParams("PV:A", "PV:B"))
	require.Nil(t, r.RawDataset())

	aligned, err := r.AlignHistory(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r.RawDataset()) // fetched implicitly
	assert.Equal(t, []string{"PV:A", "PV:B"}, aligned.PVs)
	require.Len(t, aligned.Vals, 2)
	assert.Len(t, aligned.Vals[0], len(aligned.RelTime))
	assert.InDelta(t, 599.0/3600, aligned.DurationHour, 1e-9)
	assert.Same(t, aligned, r.AlignedDataset())
}

func TestAlignHistoryFailureKeepsPriorDataset(t *testing.T) {
	src := &fakeSource{
		data: map[string][]models.Sample{"PV:A": flatSeries(600, 5000)},
	}
	r := newTestRetriever(t, src, testParams("PV:A"))

	first, err := r.AlignHistory(context.Background())
	require.NoError(t, err)

	// shrink the valid range so trimming rejects every base sample
	setup := r.AlignSetup()
	setup.ValRanges = []models.ValueRange{{Low: 1, High: 2}}
	require.NoError(t, r.SetAlignSetup(setup))

	_, err = r.AlignHistory(context.Background())
	require.ErrorIs(t, err, models.ErrNoDataInRange)
	assert.Same(t, first, r.AlignedDataset())
}

func TestSetBasePV(t *testing.T) {
	src := &fakeSource{}
	r := newTestRetriever(t, src, testParams("PV:A", "PV:B", "PV:C"))

	t.Run("by name", func(t *testing.T) {
		require.NoError(t, r.SetBasePV("PV:B", 0, nil, 2, 1, true))
		setup := r.AlignSetup()
		assert.Equal(t, "PV:B", setup.BasePV)
		assert.Equal(t, 1, setup.BaseID)
		assert.NotEmpty(t, setup.ValRanges) // inherited from the prior setup
	})
	t.Run("name wins over id", func(t *testing.T) {
		require.NoError(t, r.SetBasePV("PV:C", 0, nil, 1, 1, true))
		assert.Equal(t, 2, r.AlignSetup().BaseID)
	})
	t.Run("by id", func(t *testing.T) {
		require.NoError(t, r.SetBasePV("", 0, nil, 1, 1, true))
		assert.Equal(t, "PV:A", r.AlignSetup().BasePV)
	})
	t.Run("unknown name", func(t *testing.T) {
		err := r.SetBasePV("PV:NOPE", 0, nil, 1, 1, true)
		require.ErrorIs(t, err, models.ErrConfig)
	})
	t.Run("id out of range", func(t *testing.T) {
		err := r.SetBasePV("", 3, nil, 1, 1, true)
		require.ErrorIs(t, err, models.ErrConfig)
	})
	t.Run("explicit ranges replace inherited ones", func(t *testing.T) {
		ranges := []models.ValueRange{{Low: 10, High: 20}}
		require.NoError(t, r.SetBasePV("PV:A", 0, ranges, 1, 1, true))
		assert.Equal(t, ranges, r.AlignSetup().ValRanges)
	})
}

func TestWindowAccessorsRecompute(t *testing.T) {
	src := &fakeSource{}
	r := newTestRetriever(t, src, testParams("PV:A")) // one hour window

	require.NoError(t, r.SetStartTime("06/05/2023 12:00:00"))
	assert.Equal(t, time.Hour, r.EndTime().Sub(r.StartTime()))

	require.NoError(t, r.SetEndTime("06/06/2023 00:00:00"))
	assert.Equal(t, time.Hour, r.EndTime().Sub(r.StartTime()))

	require.NoError(t, r.SetDurationHour(2))
	assert.Equal(t, 2*time.Hour, r.EndTime().Sub(r.StartTime()))
	assert.Equal(t, 2.0, r.DurationHour())

	require.ErrorIs(t, r.SetDurationHour(0), models.ErrConfig)
	require.ErrorIs(t, r.SetDurationHour(-1), models.ErrConfig)
	require.ErrorIs(t, r.SetStartTime("not a time"), models.ErrConfig)
	require.ErrorIs(t, r.SetEndTime("not a time"), models.ErrConfig)
}

func TestSetPVsDropsStaleDatasets(t *testing.T) {
	src := &fakeSource{
		data: map[string][]models.Sample{"PV:A": flatSeries(600, 5000)},
	}
	r := newTestRetriever(t, src, testParams("PV:A"))

	_, err := r.AlignHistory(context.Background())
	require.NoError(t, err)
	require.NotNil(t, r.RawDataset())
	require.NotNil(t, r.AlignedDataset())

	require.NoError(t, r.SetPVs([]string{"PV:B"}))
	assert.Nil(t, r.RawDataset())
	assert.Nil(t, r.AlignedDataset())
	assert.Equal(t, []string{"PV:B"}, r.PVs())

	require.ErrorIs(t, r.SetPVs(nil), models.ErrConfig)
}
