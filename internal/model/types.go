// Package model defines the persistent record types shared between the
// coordinate system storage and its backends.
package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// CoordSystem is the learned landmark coordinate system of one index: a
// small subset of reference samples whose distances to every other sample
// serve as a reduced-dimensional embedding.
type CoordSystem struct {
	VersionedRecord
	Name         string   `json:"name"`
	Landmarks    []string `json:"landmarks"`
	Metric       string   `json:"metric"`
	KmerSize     int      `json:"kmer_size"`
	BestFitness  float64  `json:"best_fitness"`
	RunID        string   `json:"run_id"`
	CreatedAtUTC string   `json:"created_at_utc"`
}

// BuildRecord documents one evolutionary build run and the hyperparameters
// that produced it.
type BuildRecord struct {
	VersionedRecord
	RunID           string  `json:"run_id"`
	Name            string  `json:"name"`
	CreatedAtUTC    string  `json:"created_at_utc"`
	Metric          string  `json:"metric"`
	SampleCount     int     `json:"sample_count"`
	CoordSystemSize int     `json:"coord_system_size"`
	Generations     int     `json:"generations"`
	GenerationsRun  int     `json:"generations_run"`
	PopulationSize  int     `json:"population_size"`
	MutationRate    float64 `json:"mutation_rate"`
	NFittest        int     `json:"n_fittest"`
	NRandomUnfit    int     `json:"n_random_unfit"`
	LegendSize      int     `json:"legend_size"`
	IdleThreshold   int     `json:"idle_threshold"`
	Seed            int64   `json:"seed"`
	Converged       bool    `json:"converged"`
	BestFitness     float64 `json:"best_fitness"`
}
