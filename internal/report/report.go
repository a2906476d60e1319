// Package report renders training results for people: terminal tables via
// go-pretty and a feature-importance bar chart via gonum/plot.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/winefit/internal/registry"
	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// Summary describes a saved model.
type Summary struct {
	ModelPath    string
	ModelType    string
	Accuracy     float64
	OOBScore     *float64
	ArtifactSize int64
	ArtifactHash string
	WeightHash   string
	Params       map[string]interface{}
}

// WriteSummary prints s as a two-column table. Parameters are listed in
// key order.
func WriteSummary(w io.Writer, s Summary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"model", s.ModelType})
	t.AppendRow(table.Row{"path", s.ModelPath})
	t.AppendRow(table.Row{"size (bytes)", s.ArtifactSize})
	t.AppendRow(table.Row{"file hash", s.ArtifactHash})
	t.AppendRow(table.Row{"weight hash", s.WeightHash})
	t.AppendRow(table.Row{"accuracy", formatScore(s.Accuracy)})
	if s.OOBScore != nil {
		t.AppendRow(table.Row{"oob score", formatScore(*s.OOBScore)})
	}

	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		t.AppendSeparator()
	}
	for _, k := range keys {
		t.AppendRow(table.Row{k, fmt.Sprint(s.Params[k])})
	}
	t.Render()
}

// WriteConfusionMatrix prints cm with true labels as rows and predicted
// labels as columns.
func WriteConfusionMatrix(w io.Writer, cm *mat.Dense, labels []string) error {
	r, c := cm.Dims()
	if r != len(labels) || c != len(labels) {
		return werrors.NewDimensionError("WriteConfusionMatrix", len(labels), r, 0)
	}

	t := newTable(w)
	header := table.Row{"true \\ pred"}
	for _, l := range labels {
		header = append(header, l)
	}
	t.AppendHeader(header)
	for i, l := range labels {
		row := table.Row{l}
		for j := 0; j < c; j++ {
			row = append(row, int(cm.At(i, j)))
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

// Importance is a named feature importance.
type Importance struct {
	Feature string
	Value   float64
}

// RankImportances pairs names with values and sorts by decreasing value.
// Ties keep feature order.
func RankImportances(names []string, importances []float64) ([]Importance, error) {
	if len(importances) == 0 {
		return nil, werrors.NewValueError("RankImportances", "no feature importances")
	}
	if len(names) != len(importances) {
		return nil, werrors.NewDimensionError("RankImportances", len(importances), len(names), 0)
	}
	ranked := make([]Importance, len(names))
	for i := range names {
		ranked[i] = Importance{Feature: names[i], Value: importances[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Value > ranked[b].Value })
	return ranked, nil
}

// WriteImportances prints the ranked feature importances. Features with zero
// importance are omitted unless all is set.
func WriteImportances(w io.Writer, names []string, importances []float64, all bool) error {
	ranked, err := RankImportances(names, importances)
	if err != nil {
		return err
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Feature", "Importance"})
	for i, imp := range ranked {
		if !all && imp.Value == 0 {
			continue
		}
		t.AppendRow(table.Row{i + 1, imp.Feature, strconv.FormatFloat(imp.Value, 'f', 4, 64)})
	}
	t.Render()
	return nil
}

// WriteRuns prints registry runs in the order given.
func WriteRuns(w io.Writer, runs []registry.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "Accuracy", "OOB", "Hash", "Path"})
	for _, r := range runs {
		oob := "-"
		if r.OOBScore != nil {
			oob = formatScore(*r.OOBScore)
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond).String(),
			formatScore(r.Accuracy),
			oob,
			r.ArtifactHash,
			r.ModelPath,
		})
	}
	t.SetCaption("%d run(s)", len(runs))
	t.Render()
}

// PlotImportances draws a bar chart of feature importances, highest first,
// and saves it to path. The image format follows the file extension (png,
// svg, pdf, ...).
func PlotImportances(path string, names []string, importances []float64) error {
	ranked, err := RankImportances(names, importances)
	if err != nil {
		return err
	}

	values := make(plotter.Values, len(ranked))
	labels := make([]string, len(ranked))
	for i, imp := range ranked {
		values[i] = imp.Value
		labels[i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature importances"
	p.Y.Label.Text = "Mean decrease in impurity"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return werrors.Wrap(err, "build importance bars")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 2.5

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return werrors.Wrapf(err, "create plot directory %s", dir)
		}
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return werrors.Wrapf(err, "save importance plot %s", path)
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
