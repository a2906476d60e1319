// Package metrics は分類モデルの評価指標を提供します。
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winefit/pkg/errors"
)

// checkPair は2つのラベルベクトルの入力検証を行う
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.IsEmpty() || yPred.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// Accuracy は正解率（予測が一致したサンプルの割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は列ベクトル（n×1行列）形式の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yTrueVec, yPredVec, err := columnPair("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(yTrueVec, yPredVec)
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	accuracy, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - accuracy, nil
}

// ConfusionMatrix は混同行列を計算する
//
// 行が正解ラベル、列が予測ラベルに対応する。labels が nil の場合は yTrue と yPred に
// 現れるラベルを昇順に並べたものを使う。labels に含まれないラベルのサンプルは無視される。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []int) (*mat.Dense, []int, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	if labels == nil {
		labels = uniqueLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}

	index := make(map[int]int, len(labels))
	for i, label := range labels {
		if _, dup := index[label]; dup {
			return nil, nil, errors.NewValueError("ConfusionMatrix", fmt.Sprintf("duplicate label %d", label))
		}
		index[label] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		row, okTrue := index[int(yTrue.AtVec(i))]
		col, okPred := index[int(yPred.AtVec(i))]
		if !okTrue || !okPred {
			continue
		}
		cm.Set(row, col, cm.At(row, col)+1)
	}
	return cm, append([]int(nil), labels...), nil
}

// ConfusionMatrixFromColumns は列ベクトル形式の入力に対して混同行列を計算する
func ConfusionMatrixFromColumns(yTrue, yPred mat.Matrix, labels []int) (*mat.Dense, []int, error) {
	yTrueVec, yPredVec, err := columnPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	return ConfusionMatrix(yTrueVec, yPredVec, labels)
}

// columnPair は n×1 行列の組を VecDense に変換する
func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}

	return mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)), nil
}

func uniqueLabels(vectors ...*mat.VecDense) []int {
	seen := make(map[int]bool)
	for _, v := range vectors {
		for i := 0; i < v.Len(); i++ {
			seen[int(v.AtVec(i))] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}
