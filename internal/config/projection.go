package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/projpred/internal/fsutil"
)

// ProjectionConfig holds the tuning parameters of a projection run. Fields
// are pointers so a partial file only overrides what it names; the Get*
// methods provide defaults for the rest.
type ProjectionConfig struct {
	// Solver
	Method         *string  `json:"method,omitempty" yaml:"method,omitempty"`
	NumIters       *int     `json:"num_iters,omitempty" yaml:"num_iters,omitempty"`
	LearningRate   *float64 `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	Workers        *int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxEvaluations *int     `json:"max_evaluations,omitempty" yaml:"max_evaluations,omitempty"`

	// Posterior-predictive generation
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// ELPD
	ELPDWarnK *float64 `json:"elpd_warn_k,omitempty" yaml:"elpd_warn_k,omitempty"`
}

// projectionEnv is the environment overlay. Unset variables leave the
// pointers nil.
type projectionEnv struct {
	Method         *string  `env:"PROJPRED_METHOD"`
	NumIters       *int     `env:"PROJPRED_NUM_ITERS"`
	LearningRate   *float64 `env:"PROJPRED_LEARNING_RATE"`
	Workers        *int     `env:"PROJPRED_WORKERS"`
	MaxEvaluations *int     `env:"PROJPRED_MAX_EVALUATIONS"`
	Seed           *uint64  `env:"PROJPRED_SEED"`
	ELPDWarnK      *float64 `env:"PROJPRED_ELPD_WARN_K"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyProjectionConfig returns a ProjectionConfig with all fields set to nil.
func EmptyProjectionConfig() *ProjectionConfig {
	return &ProjectionConfig{}
}

// DefaultProjectionConfig returns a config with every field set to its default.
func DefaultProjectionConfig() *ProjectionConfig {
	c := EmptyProjectionConfig()
	return &ProjectionConfig{
		Method:         ptrString(c.GetMethod()),
		NumIters:       ptrInt(c.GetNumIters()),
		LearningRate:   ptrFloat64(c.GetLearningRate()),
		Workers:        ptrInt(c.GetWorkers()),
		MaxEvaluations: ptrInt(c.GetMaxEvaluations()),
		Seed:           ptrUint64(c.GetSeed()),
		ELPDWarnK:      ptrFloat64(c.GetELPDWarnK()),
	}
}

const maxFileSize = 1 * 1024 * 1024 // 1MB

// LoadProjectionConfig loads a ProjectionConfig from a JSON or YAML file.
// Fields omitted from the file retain their default values, so partial
// configs are safe.
func LoadProjectionConfig(fsys fsutil.FileSystem, path string) (*ProjectionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", len(data), maxFileSize)
	}

	cfg := EmptyProjectionConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays PROJPRED_* environment variables onto c.
func (c *ProjectionConfig) ApplyEnv() error {
	var raw projectionEnv
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if raw.Method != nil {
		c.Method = raw.Method
	}
	if raw.NumIters != nil {
		c.NumIters = raw.NumIters
	}
	if raw.LearningRate != nil {
		c.LearningRate = raw.LearningRate
	}
	if raw.Workers != nil {
		c.Workers = raw.Workers
	}
	if raw.MaxEvaluations != nil {
		c.MaxEvaluations = raw.MaxEvaluations
	}
	if raw.Seed != nil {
		c.Seed = raw.Seed
	}
	if raw.ELPDWarnK != nil {
		c.ELPDWarnK = raw.ELPDWarnK
	}
	return c.Validate()
}

// Validate checks that the configuration values are valid.
func (c *ProjectionConfig) Validate() error {
	if c.Method != nil {
		switch *c.Method {
		case "analytic", "gradient", "mean_field":
		default:
			return fmt.Errorf("method must be analytic, gradient or mean_field, got %q", *c.Method)
		}
	}
	if c.NumIters != nil && *c.NumIters <= 0 {
		return fmt.Errorf("num_iters must be positive, got %d", *c.NumIters)
	}
	if c.LearningRate != nil && *c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", *c.LearningRate)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MaxEvaluations != nil && *c.MaxEvaluations <= 0 {
		return fmt.Errorf("max_evaluations must be positive, got %d", *c.MaxEvaluations)
	}
	if c.ELPDWarnK != nil && (*c.ELPDWarnK <= 0 || *c.ELPDWarnK > 1) {
		return fmt.Errorf("elpd_warn_k must be in (0, 1], got %f", *c.ELPDWarnK)
	}
	return nil
}

// GetMethod returns the method value or the default.
func (c *ProjectionConfig) GetMethod() string {
	if c.Method == nil {
		return "analytic"
	}
	return *c.Method
}

// GetNumIters returns the num_iters value or the default.
func (c *ProjectionConfig) GetNumIters() int {
	if c.NumIters == nil {
		return 200
	}
	return *c.NumIters
}

// GetLearningRate returns the learning_rate value or the default.
func (c *ProjectionConfig) GetLearningRate() float64 {
	if c.LearningRate == nil {
		return 0.01
	}
	return *c.LearningRate
}

// GetWorkers returns the workers value, or the number of CPUs when unset or 0.
func (c *ProjectionConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetMaxEvaluations returns the max_evaluations value or the default.
func (c *ProjectionConfig) GetMaxEvaluations() int {
	if c.MaxEvaluations == nil {
		return 4000
	}
	return *c.MaxEvaluations
}

// GetSeed returns the seed value or the default.
func (c *ProjectionConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 42
	}
	return *c.Seed
}

// GetELPDWarnK returns the elpd_warn_k value or the default.
func (c *ProjectionConfig) GetELPDWarnK() float64 {
	if c.ELPDWarnK == nil {
		return 0.7
	}
	return *c.ELPDWarnK
}
