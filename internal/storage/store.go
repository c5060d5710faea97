package storage

import (
	"context"

	"mgsearch/internal/model"
)

// Store defines persistence operations for the index's learned state: the
// current coordinate system, the history of build runs, and per-run
// best-fitness traces.
type Store interface {
	Init(ctx context.Context) error
	SaveCoordSystem(ctx context.Context, cs model.CoordSystem) error
	GetCoordSystem(ctx context.Context, name string) (model.CoordSystem, bool, error)
	SaveBuildRecord(ctx context.Context, record model.BuildRecord) error
	ListBuildRecords(ctx context.Context, name string) ([]model.BuildRecord, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
