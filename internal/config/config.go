// Package config loads winefit run settings from defaults, an optional YAML
// file, an optional .env file and WINEFIT_* environment variables, in that
// order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
)

// DefaultModelPath is where the trained forest is written when nothing else
// is configured.
const DefaultModelPath = "model/random_forest_wine_model.gob"

// ConfigEnv names the environment variable holding the YAML config path.
const ConfigEnv = "WINEFIT_CONFIG"

// Config holds every setting of a training run.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Registry RegistryConfig `yaml:"registry"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Report   ReportConfig   `yaml:"report"`
}

// ModelConfig holds the forest hyperparameters.
type ModelConfig struct {
	NEstimators     int    `yaml:"n_estimators"`
	MaxDepth        int    `yaml:"max_depth"`
	RandomState     int64  `yaml:"random_state"`
	Criterion       string `yaml:"criterion"`
	MaxFeatures     string `yaml:"max_features"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
	Bootstrap       bool   `yaml:"bootstrap"`
	OOBScore        bool   `yaml:"oob_score"`
	NJobs           int    `yaml:"n_jobs"`
}

// OutputConfig controls where the artifact is written. The parent directory
// of ModelPath must already exist unless CreateDirs is set.
type OutputConfig struct {
	ModelPath  string `yaml:"model_path"`
	CreateDirs bool   `yaml:"create_dirs"`
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// RegistryConfig enables the bbolt run ledger when Path is set.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus textfile when TextfilePath is set.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// ReportConfig enables the feature-importance chart when ImportancePlot is set.
type ReportConfig struct {
	ImportancePlot string `yaml:"importance_plot"`
}

// Default returns the settings of the reference run: two depth-1 trees with
// seed 1, written to DefaultModelPath.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			NEstimators:     2,
			MaxDepth:        1,
			RandomState:     1,
			Criterion:       "gini",
			MaxFeatures:     "sqrt",
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Bootstrap:       true,
			OOBScore:        false,
			NJobs:           1,
		},
		Output: OutputConfig{ModelPath: DefaultModelPath},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds a Config. path names a YAML file; when empty, WINEFIT_CONFIG is
// consulted, and when that is empty too only defaults and the environment
// apply. Each existing dotenv file is loaded first without overriding
// variables that are already set; missing dotenv files are skipped.
func Load(path string, dotenvFiles ...string) (*Config, error) {
	for _, f := range dotenvFiles {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, werrors.Wrapf(err, "load env file %s", f)
		}
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, werrors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return werrors.Wrapf(err, "failed to read config file %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return werrors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"WINEFIT_CRITERION":        &c.Model.Criterion,
		"WINEFIT_MAX_FEATURES":     &c.Model.MaxFeatures,
		"WINEFIT_MODEL_PATH":       &c.Output.ModelPath,
		"WINEFIT_LOG_LEVEL":        &c.Log.Level,
		"WINEFIT_LOG_FORMAT":       &c.Log.Format,
		"WINEFIT_LOG_FILE":         &c.Log.File,
		"WINEFIT_REGISTRY_PATH":    &c.Registry.Path,
		"WINEFIT_METRICS_TEXTFILE": &c.Metrics.TextfilePath,
		"WINEFIT_IMPORTANCE_PLOT":  &c.Report.ImportancePlot,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"WINEFIT_N_ESTIMATORS":      &c.Model.NEstimators,
		"WINEFIT_MAX_DEPTH":         &c.Model.MaxDepth,
		"WINEFIT_MIN_SAMPLES_SPLIT": &c.Model.MinSamplesSplit,
		"WINEFIT_MIN_SAMPLES_LEAF":  &c.Model.MinSamplesLeaf,
		"WINEFIT_N_JOBS":            &c.Model.NJobs,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return werrors.NewValidationError(key, "must be an integer", v)
		}
		*dst = n
	}

	if v, ok := lookup("WINEFIT_RANDOM_STATE"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return werrors.NewValidationError("WINEFIT_RANDOM_STATE", "must be an integer", v)
		}
		c.Model.RandomState = n
	}

	bools := map[string]*bool{
		"WINEFIT_BOOTSTRAP":   &c.Model.Bootstrap,
		"WINEFIT_OOB_SCORE":   &c.Model.OOBScore,
		"WINEFIT_CREATE_DIRS": &c.Output.CreateDirs,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return werrors.NewValidationError(key, "must be a boolean", v)
		}
		*dst = b
	}
	return nil
}

// Validate checks the settings that can be checked without fitting.
func (c *Config) Validate() error {
	m := c.Model
	if m.NEstimators < 1 {
		return werrors.NewValidationError("model.n_estimators", "must be at least 1", m.NEstimators)
	}
	switch m.Criterion {
	case "gini", "entropy":
	default:
		return werrors.NewValidationError("model.criterion", `must be "gini" or "entropy"`, m.Criterion)
	}
	switch m.MaxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return werrors.NewValidationError("model.max_features", `must be "", "all", "sqrt" or "log2"`, m.MaxFeatures)
	}
	if m.MinSamplesSplit < 2 {
		return werrors.NewValidationError("model.min_samples_split", "must be at least 2", m.MinSamplesSplit)
	}
	if m.MinSamplesLeaf < 1 {
		return werrors.NewValidationError("model.min_samples_leaf", "must be at least 1", m.MinSamplesLeaf)
	}
	if m.OOBScore && !m.Bootstrap {
		return werrors.NewValidationError("model.oob_score", "requires bootstrap", m.OOBScore)
	}
	if m.NJobs == 0 {
		return werrors.NewValidationError("model.n_jobs", "must be positive or -1", m.NJobs)
	}
	if strings.TrimSpace(c.Output.ModelPath) == "" {
		return werrors.NewValidationError("output.model_path", "must not be empty", c.Output.ModelPath)
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return werrors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return werrors.NewValidationError("log.format", `must be "console" or "json"`, c.Log.Format)
	}
	return nil
}

// LoggerOptions converts the log settings into pkg/log options.
func (c *Config) LoggerOptions() log.Options {
	level, _ := log.ParseLevel(c.Log.Level)
	return log.Options{
		Level:      level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}
