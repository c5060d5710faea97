// Package config defines the YAML configuration surface of one index
// working directory.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"mgsearch/internal/metric"
)

// Genetic carries the hyperparameters of the evolutionary landmark search.
type Genetic struct {
	CoordSystemSize  int     `yaml:"coord_system_size"`
	Generations      int     `yaml:"generations"`
	MutationRate     float64 `yaml:"mutation_rate"`
	PopulationSize   int     `yaml:"population_size"`
	SelectRate       float64 `yaml:"select_rate"`
	RandomSelectRate float64 `yaml:"random_select_rate"`
	LegendSize       int     `yaml:"legend_size"`
	IdleThreshold    int     `yaml:"idle_threshold"`
}

// Config is the persisted configuration of one index.
type Config struct {
	Name     string  `yaml:"name"`
	Metric   string  `yaml:"metric"`
	KmerSize int     `yaml:"kmer_size"`
	Store    string  `yaml:"store"`
	DBPath   string  `yaml:"db_path"`
	Workers  int     `yaml:"workers"`
	Seed     int64   `yaml:"seed"`
	Genetic  Genetic `yaml:"genetic"`
}

// Default returns the configuration a fresh index starts from.
func Default(name string) Config {
	return Config{
		Name:     name,
		Metric:   "jsd",
		KmerSize: 50,
		Store:    "sqlite",
		DBPath:   "index.db",
		Workers:  runtime.NumCPU(),
		Seed:     42,
		Genetic: Genetic{
			CoordSystemSize:  10,
			Generations:      1000,
			MutationRate:     0.1,
			PopulationSize:   100,
			SelectRate:       0.25,
			RandomSelectRate: 0.1,
			LegendSize:       15,
			IdleThreshold:    5,
		},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every field eagerly so misconfiguration fails before any
// expensive work starts.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: index name is required")
	}
	if _, err := metric.ByName(c.Metric); err != nil {
		return err
	}
	if c.KmerSize <= 0 {
		return fmt.Errorf("config: kmer_size must be > 0, got %d", c.KmerSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be > 0, got %d", c.Workers)
	}
	g := c.Genetic
	if g.CoordSystemSize < 2 {
		return fmt.Errorf("config: coord_system_size must be >= 2, got %d", g.CoordSystemSize)
	}
	if g.Generations <= 0 {
		return fmt.Errorf("config: generations must be > 0, got %d", g.Generations)
	}
	if g.MutationRate < 0 || g.MutationRate > 1 {
		return fmt.Errorf("config: mutation_rate must be in [0, 1], got %v", g.MutationRate)
	}
	if g.PopulationSize < 2 {
		return fmt.Errorf("config: population_size must be >= 2, got %d", g.PopulationSize)
	}
	if g.SelectRate <= 0 || g.SelectRate > 1 {
		return fmt.Errorf("config: select_rate must be in (0, 1], got %v", g.SelectRate)
	}
	if g.RandomSelectRate < 0 || g.RandomSelectRate > 1 {
		return fmt.Errorf("config: random_select_rate must be in [0, 1], got %v", g.RandomSelectRate)
	}
	if g.SelectRate+g.RandomSelectRate > 1 {
		return fmt.Errorf("config: select_rate + random_select_rate must not exceed 1")
	}
	if g.LegendSize <= 0 {
		return fmt.Errorf("config: legend_size must be > 0, got %d", g.LegendSize)
	}
	if g.IdleThreshold < 0 {
		return fmt.Errorf("config: idle_threshold must be >= 0, got %d", g.IdleThreshold)
	}
	return nil
}
