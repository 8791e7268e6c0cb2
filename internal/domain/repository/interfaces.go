package repository

import (
	"context"

	"ArchPull/internal/domain/models"
)

// SampleSource fetches one PV's raw samples over a window, boundary-extended
// so the returned series spans the full window when any data exists.
type SampleSource interface {
	Fetch(ctx context.Context, server models.Server, pv string, win models.TimeWindow) ([]models.Sample, error)
}

// DatasetStore persists aligned datasets.
type DatasetStore interface {
	SaveAligned(ctx context.Context, ds *models.AlignedDataset) error
}

// Metrics abstracts operational metrics recording.
type Metrics interface {
	RecordFetch(pv string, seconds float64, samples int)
	RecordError(kind string)
	RecordAlignedHours(hours float64)
	RecordLatency(op string, seconds float64)
}
