// Package train runs the wine classification job: load the bundled dataset,
// fit a random forest, report its training accuracy and persist it.
package train

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/core/model"
	"github.com/YuminosukeSato/winefit/datasets"
	"github.com/YuminosukeSato/winefit/internal/config"
	"github.com/YuminosukeSato/winefit/internal/registry"
	"github.com/YuminosukeSato/winefit/internal/report"
	"github.com/YuminosukeSato/winefit/internal/telemetry"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
	"github.com/YuminosukeSato/winefit/sklearn/ensemble"
)

// Deps carries the collaborators of a run. Zero values are replaced by
// defaults: the global logger, stdout and time.Now. Registry and Metrics
// are optional.
type Deps struct {
	Logger   log.Logger
	Out      io.Writer
	Registry *registry.Store
	Metrics  *telemetry.Metrics
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.GetLogger()
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Result describes a finished run.
type Result struct {
	RunID        string
	Accuracy     float64
	OOBScore     *float64
	ModelPath    string
	ArtifactSize int64
	ArtifactHash string
	WeightHash   string
	PlotPath     string
	Duration     time.Duration
}

// LoadDataset returns the wine features (178x13) and labels (178x1).
func LoadDataset() (X, y *mat.Dense, err error) {
	X, y, err = datasets.LoadWineXY()
	if err != nil {
		return nil, nil, werrors.Wrap(err, "load wine dataset")
	}
	return X, y, nil
}

// NewForest builds an unfitted forest from cfg.
func NewForest(cfg config.ModelConfig, logger log.Logger) *ensemble.RandomForestClassifier {
	opts := []ensemble.RandomForestOption{
		ensemble.WithNEstimators(cfg.NEstimators),
		ensemble.WithMaxDepth(cfg.MaxDepth),
		ensemble.WithRandomState(cfg.RandomState),
		ensemble.WithMinSamplesSplit(cfg.MinSamplesSplit),
		ensemble.WithMinSamplesLeaf(cfg.MinSamplesLeaf),
		ensemble.WithMaxFeatures(cfg.MaxFeatures),
		ensemble.WithBootstrap(cfg.Bootstrap),
		ensemble.WithOOBScore(cfg.OOBScore),
		ensemble.WithNJobs(cfg.NJobs),
	}
	if cfg.Criterion != "" {
		opts = append(opts, ensemble.WithCriterion(cfg.Criterion))
	}
	if logger != nil {
		opts = append(opts, ensemble.WithLogger(logger))
	}
	return ensemble.NewRandomForestClassifier(opts...)
}

// TrainModel fits a forest on (X, y), computes its accuracy on the same data
// and prints "Model accuracy: <value>" to out.
func TrainModel(ctx context.Context, X, y mat.Matrix, cfg config.ModelConfig, logger log.Logger, out io.Writer) (*ensemble.RandomForestClassifier, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if logger == nil {
		logger = log.GetLogger()
	}

	forest := NewForest(cfg, logger)
	start := time.Now()
	if err := forest.Fit(X, y); err != nil {
		return nil, 0, werrors.Wrap(err, "fit random forest")
	}

	accuracy := forest.Score(X, y)
	logger.Info("model trained",
		log.ModelNameKey, "RandomForestClassifier",
		log.EstimatorsKey, cfg.NEstimators,
		log.RandomSeedKey, cfg.RandomState,
		log.AccuracyKey, accuracy,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if out != nil {
		if _, err := fmt.Fprintf(out, "Model accuracy: %s\n", FormatAccuracy(accuracy)); err != nil {
			return nil, 0, werrors.Wrap(err, "write accuracy")
		}
	}
	return forest, accuracy, nil
}

// FormatAccuracy renders v with the shortest representation that round-trips,
// always keeping a fractional part ("1.0", "0.6966292134831461").
func FormatAccuracy(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// SaveModel writes m to path. A missing parent directory is an error unless
// createDirs is set.
func SaveModel(m *ensemble.RandomForestClassifier, path string, createDirs bool) error {
	if dir := filepath.Dir(path); createDirs && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return werrors.Wrapf(err, "create model directory %s", dir)
		}
	}
	if err := model.SaveModel(m, path); err != nil {
		return werrors.Wrapf(err, "save model to %s", path)
	}
	return nil
}

// Run executes the whole job described by cfg.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	deps = deps.withDefaults()
	logger := deps.Logger.With(log.ComponentKey, "train")
	startedAt := deps.Now()

	fail := func(stage string, err error) (*Result, error) {
		if deps.Metrics != nil {
			deps.Metrics.ObserveFailure(stage)
			if cfg.Metrics.TextfilePath != "" {
				if werr := deps.Metrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
					logger.Warn("metrics textfile not written", werr)
				}
			}
		}
		return nil, err
	}

	bunch, err := datasets.LoadWine()
	if err != nil {
		return fail("load", werrors.Wrap(err, "load wine dataset"))
	}
	nSamples, nFeatures := bunch.Data.Dims()
	logger.Info("dataset loaded",
		log.DatasetKey, "wine",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(bunch.TargetNames),
	)

	fitStart := time.Now()
	forest, accuracy, err := TrainModel(ctx, bunch.Data, bunch.Target, cfg.Model, logger, deps.Out)
	if err != nil {
		return fail("fit", err)
	}
	fitDuration := time.Since(fitStart)

	var oob *float64
	if cfg.Model.OOBScore {
		v, err := forest.OOBScore()
		if err != nil {
			return fail("fit", err)
		}
		oob = &v
		logger.Info("out-of-bag score", log.OOBScoreKey, v)
	}

	if err := ctx.Err(); err != nil {
		return fail("save", err)
	}
	path := cfg.Output.ModelPath
	if err := SaveModel(forest, path, cfg.Output.CreateDirs); err != nil {
		return fail("save", err)
	}
	fileHash, size, err := model.HashFile(path)
	if err != nil {
		return fail("save", err)
	}
	weightHash, err := model.GetWeightHash(forest)
	if err != nil {
		return fail("save", err)
	}
	logger.Info("model saved",
		log.ArtifactPathKey, path,
		log.ArtifactSizeKey, size,
		log.ArtifactHashKey, fileHash,
	)

	result := &Result{
		Accuracy:     accuracy,
		OOBScore:     oob,
		ModelPath:    path,
		ArtifactSize: size,
		ArtifactHash: fileHash,
		WeightHash:   weightHash,
	}

	if cfg.Report.ImportancePlot != "" {
		if err := report.PlotImportances(cfg.Report.ImportancePlot, bunch.FeatureNames, forest.FeatureImportances()); err != nil {
			return fail("report", err)
		}
		result.PlotPath = cfg.Report.ImportancePlot
		logger.Debug("importance plot written", log.ArtifactPathKey, result.PlotPath)
	}

	result.Duration = deps.Now().Sub(startedAt)

	if deps.Registry != nil {
		run, err := deps.Registry.Record(registry.Run{
			StartedAt:    startedAt,
			Duration:     result.Duration,
			Accuracy:     accuracy,
			OOBScore:     oob,
			ModelPath:    path,
			ArtifactSize: size,
			ArtifactHash: fileHash,
			WeightHash:   weightHash,
			NSamples:     nSamples,
			NFeatures:    nFeatures,
			Params:       forest.GetParams(),
		})
		if err != nil {
			return fail("registry", werrors.Wrap(err, "record run"))
		}
		result.RunID = run.ID
		logger.Info("run recorded", log.RunIDKey, run.ID)
	}

	if deps.Metrics != nil {
		depths := make([]int, 0, cfg.Model.NEstimators)
		for _, dt := range forest.Estimators() {
			depths = append(depths, dt.GetDepth())
		}
		deps.Metrics.ObserveRun(telemetry.RunStats{
			Accuracy:      accuracy,
			OOBScore:      oob,
			FitDuration:   fitDuration,
			ArtifactBytes: size,
			TreeDepths:    depths,
		})
		if cfg.Metrics.TextfilePath != "" {
			if err := deps.Metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}
