// Package datasets は学習用の同梱データセットを提供します。
package datasets

import (
	"bytes"
	_ "embed"

	"gonum.org/v1/gonum/mat"
)

//go:embed wine_data.csv
var wineCSV []byte

// Bunch はデータセットと付随情報をまとめた構造体
type Bunch struct {
	// Data は特徴量行列 (n_samples x n_features)
	Data *mat.Dense
	// Target はクラスラベルの列ベクトル (n_samples x 1)
	Target *mat.Dense
	// FeatureNames は特徴量の名前
	FeatureNames []string
	// TargetNames はラベル順のクラス名
	TargetNames []string
	// Descr はデータセットの説明
	Descr string
}

const wineDescr = `Wine recognition dataset

Results of a chemical analysis of wines grown in the same region in Italy
by three different cultivators. 178 samples, 13 numeric attributes, three
classes (class_0: 59, class_1: 71, class_2: 48).

Source: UCI Machine Learning Repository, Wine Data Set.`

// LoadWine は同梱のWineデータセットを読み込む
//
// 呼び出すたびに新しい行列を返すため、戻り値を変更しても他の呼び出しには影響しない。
func LoadWine() (*Bunch, error) {
	return LoadCSV(bytes.NewReader(wineCSV),
		WithHeader(true),
		WithTargetNames("class_0", "class_1", "class_2"),
		WithDescr(wineDescr),
	)
}

// LoadWineXY は特徴量行列とラベルのみを返す
func LoadWineXY() (X, y *mat.Dense, err error) {
	bunch, err := LoadWine()
	if err != nil {
		return nil, nil, err
	}
	return bunch.Data, bunch.Target, nil
}
