package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "winefit: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "winefit: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			// ModelError型にキャスト可能か確認
			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}

			// ModelError型へのキャストのみ確認
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 10, 0)

	// 基本的なエラーメッセージの確認
	want := "winefit: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 10"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// DimensionError型にキャスト可能か確認
	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}

	// DimensionError型へのキャストのみ確認
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "Predict")

	// 基本的なエラーメッセージの確認
	want := "winefit: RandomForestClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// NotFittedError型にキャスト可能か確認
	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		param   string
		value   interface{}
		message string
		wantMsg string
	}{
		{
			name:    "with message",
			op:      "SetParam",
			param:   "n_estimators",
			value:   -2,
			message: "must be positive",
			wantMsg: "winefit: SetParam: n_estimators: -2 (must be positive)",
		},
		{
			name:    "without message",
			op:      "SetParam",
			param:   "max_depth",
			value:   0,
			message: "",
			wantMsg: "winefit: SetParam: max_depth: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.message != "" {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v (%s)", tt.param, tt.value, tt.message))
			} else {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v", tt.param, tt.value))
			}

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// ValueError型にキャスト可能か確認
			var valErr *ValueError
			if !As(err, &valErr) {
				t.Error("Error should be castable to *ValueError")
			}
		})
	}
}

func TestWrapAndIs(t *testing.T) {
	// 元のエラー
	baseErr := ErrInvalidArtifact

	// ラップ
	wrapped := Wrap(baseErr, "in model.LoadModel")

	// Is関数でチェック
	if !Is(wrapped, ErrInvalidArtifact) {
		t.Error("Expected Is(wrapped, ErrInvalidArtifact) to be true")
	}

	// エラーメッセージの確認
	if !strings.Contains(wrapped.Error(), "in model.LoadModel") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	// 元のエラー
	baseErr := ErrEmptyData

	// フォーマット付きラップ
	wrapped := Wrapf(baseErr, "in %s: expected %d, got %d", "Predict", 10, 5)

	// Is関数でチェック
	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	// エラーメッセージの確認
	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	// エラーチェーンの作成
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	// チェーン全体を確認
	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	// スタックトレースの確認（詳細表示）
	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("max_features", "must be one of sqrt, log2, all", "cube")

	want := "winefit: validation failed for parameter 'max_features': must be one of sqrt, log2, all (got: cube)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Fatal("Error should be castable to *ValidationError")
	}
	if valErr.ParamName != "max_features" {
		t.Errorf("ParamName = %v, want max_features", valErr.ParamName)
	}
}

func TestCheckMatrix(t *testing.T) {
	data := [][]float64{
		{1, 2},
		{3, math.NaN()},
		{math.Inf(1), 0},
	}
	m := matrixFunc(func(i, j int) float64 { return data[i][j] })

	err := CheckMatrix("Fit", m, 3, 2)
	if err == nil {
		t.Fatal("Expected error for NaN input")
	}

	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("Expected NumericalInstabilityError, got %T", err)
	}
	if numErr.Row != 1 {
		t.Errorf("Row = %d, want 1", numErr.Row)
	}

	if err := CheckMatrix("Fit", m, 1, 2); err != nil {
		t.Errorf("Expected no error for finite rows, got %v", err)
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("oob_score", "samples never left out of bag", 0))

	if len(got) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "samples never left out of bag") {
		t.Errorf("Unexpected warning message: %v", got[0])
	}
}

type matrixFunc func(i, j int) float64

func (f matrixFunc) At(i, j int) float64 { return f(i, j) }
