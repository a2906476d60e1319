package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// CSVOption configures LoadCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	header      bool
	labelColumn int
	targetNames []string
	descr       string
}

// WithHeader treats the first record as column names.
func WithHeader(header bool) CSVOption {
	return func(c *csvConfig) { c.header = header }
}

// WithLabelColumn selects the label column. Negative values count from the
// end, so -1 (the default) is the last column.
func WithLabelColumn(col int) CSVOption {
	return func(c *csvConfig) { c.labelColumn = col }
}

// WithTargetNames sets the class names, indexed by label.
func WithTargetNames(names ...string) CSVOption {
	return func(c *csvConfig) { c.targetNames = names }
}

// WithDescr sets the Bunch description.
func WithDescr(descr string) CSVOption {
	return func(c *csvConfig) { c.descr = descr }
}

// LoadCSV reads a numeric table with one integer label column into a Bunch.
//
// Every row must have the same number of fields, every feature cell must
// parse as a finite float and every label as a non-negative integer.
func LoadCSV(r io.Reader, opts ...CSVOption) (*Bunch, error) {
	cfg := &csvConfig{labelColumn: -1}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var (
		header   []string
		features []float64
		labels   []float64
		nCols    int
		labelCol int
		row      int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if werrors.As(err, &parseErr) {
				return nil, werrors.NewValueError("LoadCSV",
					fmt.Sprintf("line %d: %v", parseErr.Line, parseErr.Err))
			}
			return nil, werrors.Wrap(err, "LoadCSV: read")
		}

		if nCols == 0 {
			nCols = len(record)
			if nCols < 2 {
				return nil, werrors.NewValueError("LoadCSV",
					fmt.Sprintf("need at least one feature and one label column, got %d columns", nCols))
			}
			labelCol = cfg.labelColumn
			if labelCol < 0 {
				labelCol += nCols
			}
			if labelCol < 0 || labelCol >= nCols {
				return nil, werrors.NewValidationError("label_column", "out of range", cfg.labelColumn)
			}
			if cfg.header {
				header = append([]string(nil), record...)
				continue
			}
		}

		for col, cell := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, werrors.NewValueError("LoadCSV",
					fmt.Sprintf("row %d, column %d: cannot parse %q as a number", row, col, cell))
			}
			if col == labelCol {
				if value < 0 || value != math.Trunc(value) {
					return nil, werrors.NewValueError("LoadCSV",
						fmt.Sprintf("row %d, column %d: label %q is not a non-negative integer", row, col, cell))
				}
				labels = append(labels, value)
				continue
			}
			features = append(features, value)
		}
		row++
	}

	if row == 0 {
		return nil, werrors.NewValueError("LoadCSV", werrors.ErrEmptyData.Error())
	}

	nFeatures := nCols - 1
	X := mat.NewDense(row, nFeatures, features)
	if err := werrors.CheckMatrix("LoadCSV", X, row, nFeatures); err != nil {
		return nil, err
	}

	bunch := &Bunch{
		Data:         X,
		Target:       mat.NewDense(row, 1, labels),
		FeatureNames: featureNames(header, labelCol, nFeatures),
		TargetNames:  cfg.targetNames,
		Descr:        cfg.descr,
	}
	if len(bunch.TargetNames) == 0 {
		for _, label := range bunch.Labels() {
			bunch.TargetNames = append(bunch.TargetNames, fmt.Sprintf("class_%d", label))
		}
	}
	return bunch, nil
}

func featureNames(header []string, labelCol, nFeatures int) []string {
	names := make([]string, 0, nFeatures)
	if header == nil {
		for i := 0; i < nFeatures; i++ {
			names = append(names, fmt.Sprintf("feature_%d", i))
		}
		return names
	}
	for i, name := range header {
		if i != labelCol {
			names = append(names, strings.TrimSpace(name))
		}
	}
	return names
}

// Labels returns the distinct labels in ascending order.
func (b *Bunch) Labels() []int {
	counts := b.ClassCounts()
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// ClassCounts returns the number of samples per label.
func (b *Bunch) ClassCounts() map[int]int {
	counts := make(map[int]int)
	n, _ := b.Target.Dims()
	for i := 0; i < n; i++ {
		counts[int(b.Target.At(i, 0))]++
	}
	return counts
}
