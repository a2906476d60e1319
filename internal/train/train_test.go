package train

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/winefit/internal/config"
	"github.com/YuminosukeSato/winefit/internal/registry"
	"github.com/YuminosukeSato/winefit/internal/telemetry"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
	"github.com/YuminosukeSato/winefit/pkg/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, os.Mkdir(dir, 0o755))
	cfg := config.Default()
	cfg.Output.ModelPath = filepath.Join(dir, "random_forest_wine_model.gob")
	return cfg
}

func TestLoadDataset(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 178, r)
	assert.Equal(t, 13, c)
	yr, yc := y.Dims()
	assert.Equal(t, 178, yr)
	assert.Equal(t, 1, yc)
}

func TestFormatAccuracy(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{0.5, "0.5"},
		{124.0 / 178.0, "0.6966292134831461"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAccuracy(tt.in))
	}
}

func TestTrainModel_Defaults(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	var out bytes.Buffer
	forest, acc, err := TrainModel(context.Background(), X, y, config.Default().Model, logger, &out)
	require.NoError(t, err)

	assert.True(t, forest.IsFitted())
	assert.Len(t, forest.Estimators(), 2)
	for _, dt := range forest.Estimators() {
		assert.LessOrEqual(t, dt.GetDepth(), 1)
	}
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
	assert.Equal(t, forest.Score(X, y), acc)

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "Model accuracy: "), "accuracy printed exactly once")
	assert.Equal(t, "Model accuracy: "+FormatAccuracy(acc)+"\n", text)

	assert.True(t, logger.ContainsMessage("model trained"))
	assert.True(t, logger.ContainsField(log.AccuracyKey, acc))
}

func TestTrainModel_Reproducible(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	cfg := config.Default().Model
	_, a1, err := TrainModel(context.Background(), X, y, cfg, nil, nil)
	require.NoError(t, err)
	cfg.NJobs = -1
	_, a2, err := TrainModel(context.Background(), X, y, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestTrainModel_Canceled(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, _, err = TrainModel(ctx, X, y, config.Default().Model, nil, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestTrainModel_InvalidParams(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	cfg := config.Default().Model
	cfg.NEstimators = 0
	_, _, err = TrainModel(context.Background(), X, y, cfg, nil, nil)
	var ve *werrors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSaveModel_MissingDirectory(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)
	forest, _, err := TrainModel(context.Background(), X, y, config.Default().Model, nil, nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "a", "b")
	path := filepath.Join(dir, "forest.gob")
	err = SaveModel(forest, path, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "directory must not be created")

	// 明示的に指定した場合のみディレクトリを作成する
	require.NoError(t, SaveModel(forest, path, true))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRun_MissingModelDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Output.ModelPath = filepath.Join(t.TempDir(), "model", "random_forest_wine_model.gob")
	m := telemetry.New()
	var out bytes.Buffer

	res, err := Run(context.Background(), cfg, Deps{Out: &out, Metrics: m})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("save")))
	// 学習自体は完了しているので精度行は出力済み
	assert.True(t, strings.HasPrefix(out.String(), "Model accuracy: "))
	_, statErr := os.Stat(filepath.Dir(cfg.Output.ModelPath))
	assert.True(t, os.IsNotExist(statErr))

	cfg.Output.CreateDirs = true
	res, err = Run(context.Background(), cfg, Deps{Out: &bytes.Buffer{}})
	require.NoError(t, err)
	_, err = os.Stat(res.ModelPath)
	assert.NoError(t, err)
}

func TestRun_Defaults(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	var out bytes.Buffer

	res, err := Run(context.Background(), cfg, Deps{Logger: logger, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, cfg.Output.ModelPath, res.ModelPath)
	assert.Greater(t, res.ArtifactSize, int64(0))
	assert.Len(t, res.ArtifactHash, 16)
	assert.Len(t, res.WeightHash, 16)
	assert.Nil(t, res.OOBScore)
	assert.Empty(t, res.RunID)
	assert.Empty(t, res.PlotPath)
	assert.Equal(t, "Model accuracy: "+FormatAccuracy(res.Accuracy)+"\n", out.String())

	_, err = os.Stat(res.ModelPath)
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("dataset loaded"))
	assert.True(t, logger.ContainsMessage("model saved"))
}

func TestRun_ArtifactIsDeterministic(t *testing.T) {
	first, err := Run(context.Background(), testConfig(t), Deps{Out: &bytes.Buffer{}})
	require.NoError(t, err)
	second, err := Run(context.Background(), testConfig(t), Deps{Out: &bytes.Buffer{}})
	require.NoError(t, err)

	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, first.WeightHash, second.WeightHash)
	assert.Equal(t, first.ArtifactHash, second.ArtifactHash)
}

func TestRun_WithSideEffects(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Model.NEstimators = 5
	cfg.Model.MaxDepth = 3
	cfg.Model.OOBScore = true
	cfg.Metrics.TextfilePath = filepath.Join(dir, "metrics", "winefit.prom")
	cfg.Report.ImportancePlot = filepath.Join(dir, "plots", "importances.png")

	store, err := registry.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	m := telemetry.New()

	clock := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	res, err := Run(context.Background(), cfg, Deps{
		Out:      &bytes.Buffer{},
		Registry: store,
		Metrics:  m,
		Now:      now,
	})
	require.NoError(t, err)

	require.NotNil(t, res.OOBScore)
	assert.GreaterOrEqual(t, *res.OOBScore, 0.0)
	assert.LessOrEqual(t, *res.OOBScore, 1.0)
	assert.Equal(t, time.Second, res.Duration)
	assert.Equal(t, "run-000001", res.RunID)
	assert.Equal(t, cfg.Report.ImportancePlot, res.PlotPath)

	latest, err := store.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.Accuracy, latest.Accuracy)
	assert.Equal(t, res.ArtifactHash, latest.ArtifactHash)
	assert.Equal(t, 178, latest.NSamples)
	assert.Equal(t, float64(5), latest.Params["n_estimators"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal))
	assert.Equal(t, res.Accuracy, testutil.ToFloat64(m.Accuracy))
	assert.Equal(t, 5, testutil.CollectAndCount(m.TreeDepth))

	prom, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "winefit_runs_total 1")

	_, err = os.Stat(cfg.Report.ImportancePlot)
	assert.NoError(t, err)
}

func TestRun_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := config.Default()
	cfg.Output.ModelPath = filepath.Join(blocker, "model.gob")
	m := telemetry.New()

	res, err := Run(context.Background(), cfg, Deps{Out: &bytes.Buffer{}, Metrics: m})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("save")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsTotal))
}

func TestInspect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.OOBScore = true
	res, err := Run(context.Background(), cfg, Deps{Out: &bytes.Buffer{}})
	require.NoError(t, err)

	X, y, err := LoadDataset()
	require.NoError(t, err)
	rep, err := Inspect(res.ModelPath, X, y)
	require.NoError(t, err)

	assert.Equal(t, res.Accuracy, rep.Accuracy)
	assert.Equal(t, res.ArtifactHash, rep.ArtifactHash)
	assert.Equal(t, res.WeightHash, rep.Weights.Hash)
	assert.Equal(t, []int{0, 1, 2}, rep.Labels)
	require.NotNil(t, rep.OOBScore)
	assert.Equal(t, *res.OOBScore, *rep.OOBScore)

	total := 0.0
	diag := 0.0
	r, _ := rep.Confusion.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			total += rep.Confusion.At(i, j)
		}
		diag += rep.Confusion.At(i, i)
	}
	assert.Equal(t, 178.0, total)
	assert.InDelta(t, rep.Accuracy, diag/total, 1e-12)
}

func TestInspect_BadArtifacts(t *testing.T) {
	X, y, err := LoadDataset()
	require.NoError(t, err)

	_, err = Inspect(filepath.Join(t.TempDir(), "missing.gob"), X, y)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	corrupt := filepath.Join(t.TempDir(), "corrupt.gob")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a gob stream"), 0o600))
	_, err = Inspect(corrupt, X, y)
	assert.True(t, errors.Is(err, werrors.ErrInvalidArtifact))
}
