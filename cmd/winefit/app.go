package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/YuminosukeSato/winefit/datasets"
	"github.com/YuminosukeSato/winefit/internal/config"
	"github.com/YuminosukeSato/winefit/internal/registry"
	"github.com/YuminosukeSato/winefit/internal/report"
	"github.com/YuminosukeSato/winefit/internal/telemetry"
	"github.com/YuminosukeSato/winefit/internal/train"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
)

const (
	// Global flags.
	flagConfig    = "config"
	flagEnvFile   = "env-file"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagLogFile   = "log-file"
	flagDebug     = "debug"

	// Training flags.
	flagModelPath       = "model-path"
	flagNEstimators     = "n-estimators"
	flagMaxDepth        = "max-depth"
	flagRandomState     = "random-state"
	flagCriterion       = "criterion"
	flagMaxFeatures     = "max-features"
	flagNJobs           = "n-jobs"
	flagOOBScore        = "oob-score"
	flagCreateDirs      = "create-dirs"
	flagRegistry        = "registry"
	flagMetricsTextfile = "metrics-textfile"
	flagImportancePlot  = "importance-plot"

	// Command flags.
	flagLimit       = "limit"
	flagAllFeatures = "all-features"
)

// cliState is filled by Before and read by the actions.
type cliState struct {
	cfg    *config.Config
	logger *log.ZerologLogger
}

func newApp(stdout, stderr io.Writer) *cli.App {
	state := &cliState{}

	return &cli.App{
		Name:      "winefit",
		Usage:     "train a random forest classifier on the wine dataset",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (also WINEFIT_CONFIG)",
			},
			&cli.StringFlag{
				Name:  flagEnvFile,
				Value: ".env",
				Usage: "load environment variables from `FILE` when it exists",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Usage: "log format: console or json",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to a rotated `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		}, trainFlags()...),
		Before: func(c *cli.Context) error {
			return state.setup(c, stderr)
		},
		After: func(c *cli.Context) error {
			if state.logger != nil {
				return state.logger.Close()
			}
			return nil
		},
		Action: state.trainAction,
		Commands: []*cli.Command{
			{
				Name:   "train",
				Usage:  "fit the forest, print its accuracy and save it (default)",
				Flags:  trainFlags(),
				Action: state.trainAction,
			},
			{
				Name:      "inspect",
				Usage:     "reload a saved model and evaluate it on the wine dataset",
				ArgsUsage: "[MODEL_PATH]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagAllFeatures,
						Usage: "list features with zero importance too",
					},
				},
				Action: state.inspectAction,
			},
			{
				Name:  "history",
				Usage: "list runs recorded in the registry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagRegistry,
						Usage: "registry database `FILE`",
					},
					&cli.IntFlag{
						Name:  flagLimit,
						Value: 10,
						Usage: "show at most `N` runs (0 for all)",
					},
				},
				Action: state.historyAction,
			},
		},
	}
}

func trainFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagModelPath, Usage: "write the model to `FILE`"},
		&cli.IntFlag{Name: flagNEstimators, Usage: "number of trees"},
		&cli.IntFlag{Name: flagMaxDepth, Usage: "maximum tree depth (-1 for unlimited)"},
		&cli.Int64Flag{Name: flagRandomState, Usage: "random seed"},
		&cli.StringFlag{Name: flagCriterion, Usage: "split criterion: gini or entropy"},
		&cli.StringFlag{Name: flagMaxFeatures, Usage: "features per split: all, sqrt or log2"},
		&cli.IntFlag{Name: flagNJobs, Usage: "parallel workers (-1 for all CPUs)"},
		&cli.BoolFlag{Name: flagOOBScore, Usage: "compute the out-of-bag score"},
		&cli.BoolFlag{Name: flagCreateDirs, Usage: "create the model directory if it is missing"},
		&cli.StringFlag{Name: flagRegistry, Usage: "record the run in the registry `FILE`"},
		&cli.StringFlag{Name: flagMetricsTextfile, Usage: "write Prometheus metrics to `FILE`"},
		&cli.StringFlag{Name: flagImportancePlot, Usage: "draw feature importances to `FILE` (png, svg, pdf)"},
	}
}

// setFlag returns the innermost context in which name was given explicitly.
func setFlag(c *cli.Context, name string) (*cli.Context, bool) {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx, true
		}
	}
	return nil, false
}

func (s *cliState) setup(c *cli.Context, stderr io.Writer) error {
	cfg, err := config.Load(c.String(flagConfig), c.String(flagEnvFile))
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		cfg.Log.Level = "debug"
	}
	if ctx, ok := setFlag(c, flagLogLevel); ok {
		cfg.Log.Level = ctx.String(flagLogLevel)
	}
	if ctx, ok := setFlag(c, flagLogFormat); ok {
		cfg.Log.Format = ctx.String(flagLogFormat)
	}
	if ctx, ok := setFlag(c, flagLogFile); ok {
		cfg.Log.File = ctx.String(flagLogFile)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.LoggerOptions()
	opts.Writer = stderr
	s.logger = log.NewZerologLogger(opts)
	log.SetLogger(s.logger)
	s.cfg = cfg
	return nil
}

// applyTrainFlags overlays explicitly given training flags on the loaded
// configuration.
func (s *cliState) applyTrainFlags(c *cli.Context) error {
	cfg := s.cfg
	strs := map[string]*string{
		flagModelPath:       &cfg.Output.ModelPath,
		flagCriterion:       &cfg.Model.Criterion,
		flagMaxFeatures:     &cfg.Model.MaxFeatures,
		flagRegistry:        &cfg.Registry.Path,
		flagMetricsTextfile: &cfg.Metrics.TextfilePath,
		flagImportancePlot:  &cfg.Report.ImportancePlot,
	}
	for name, dst := range strs {
		if ctx, ok := setFlag(c, name); ok {
			*dst = ctx.String(name)
		}
	}
	ints := map[string]*int{
		flagNEstimators: &cfg.Model.NEstimators,
		flagMaxDepth:    &cfg.Model.MaxDepth,
		flagNJobs:       &cfg.Model.NJobs,
	}
	for name, dst := range ints {
		if ctx, ok := setFlag(c, name); ok {
			*dst = ctx.Int(name)
		}
	}
	if ctx, ok := setFlag(c, flagRandomState); ok {
		cfg.Model.RandomState = ctx.Int64(flagRandomState)
	}
	bools := map[string]*bool{
		flagOOBScore:   &cfg.Model.OOBScore,
		flagCreateDirs: &cfg.Output.CreateDirs,
	}
	for name, dst := range bools {
		if ctx, ok := setFlag(c, name); ok {
			*dst = ctx.Bool(name)
		}
	}
	return cfg.Validate()
}

func (s *cliState) trainAction(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unexpected argument %q", c.Args().First())
	}
	if err := s.applyTrainFlags(c); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	deps := train.Deps{Logger: s.logger, Out: c.App.Writer}
	if s.cfg.Registry.Path != "" {
		store, err := registry.Open(s.cfg.Registry.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Registry = store
	}
	if s.cfg.Metrics.TextfilePath != "" {
		deps.Metrics = telemetry.New()
	}

	res, err := train.Run(ctx, s.cfg, deps)
	if err != nil {
		return err
	}
	s.logger.Info("run finished",
		log.ArtifactPathKey, res.ModelPath,
		log.AccuracyKey, res.Accuracy,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return nil
}

func (s *cliState) inspectAction(c *cli.Context) error {
	path := s.cfg.Output.ModelPath
	if c.Args().Present() {
		path = c.Args().First()
	}

	bunch, err := datasets.LoadWine()
	if err != nil {
		return err
	}
	rep, err := train.Inspect(path, bunch.Data, bunch.Target)
	if err != nil {
		return err
	}

	w := c.App.Writer
	report.WriteSummary(w, report.Summary{
		ModelPath:    rep.Path,
		ModelType:    rep.Weights.ModelType,
		Accuracy:     rep.Accuracy,
		OOBScore:     rep.OOBScore,
		ArtifactSize: rep.ArtifactSize,
		ArtifactHash: rep.ArtifactHash,
		WeightHash:   rep.Weights.Hash,
		Params:       rep.Weights.Hyperparameters,
	})

	labels := make([]string, len(rep.Labels))
	for i, l := range rep.Labels {
		labels[i] = fmt.Sprintf("class_%d", l)
		if l >= 0 && l < len(bunch.TargetNames) {
			labels[i] = bunch.TargetNames[l]
		}
	}
	if err := report.WriteConfusionMatrix(w, rep.Confusion, labels); err != nil {
		return err
	}
	return report.WriteImportances(w, bunch.FeatureNames, rep.Weights.FeatureImportances, c.Bool(flagAllFeatures))
}

func (s *cliState) historyAction(c *cli.Context) error {
	path := s.cfg.Registry.Path
	if ctx, ok := setFlag(c, flagRegistry); ok {
		path = ctx.String(flagRegistry)
	}
	if path == "" {
		return werrors.NewValidationError("registry.path", "history needs a registry (--registry or WINEFIT_REGISTRY_PATH)", path)
	}
	if _, err := os.Stat(path); err != nil {
		return werrors.Wrapf(err, "open registry %s", path)
	}

	store, err := registry.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(c.Int(flagLimit))
	if err != nil {
		return err
	}
	report.WriteRuns(c.App.Writer, runs)
	return nil
}
