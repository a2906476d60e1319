package model

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// WeightsVersion は ModelWeights のフォーマットバージョン
const WeightsVersion = "1"

// ModelWeights は学習済みモデルの要約を表す構造体（inspect・レジストリ用）
type ModelWeights struct {
	// ModelType はモデルの種類（RandomForestClassifier, DecisionTreeClassifier等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Classes は学習時に観測したクラスラベル
	Classes []int `json:"classes"`

	// NFeatures は学習時の特徴量数
	NFeatures int `json:"n_features"`

	// FeatureImportances は正規化された不純度減少量
	FeatureImportances []float64 `json:"feature_importances,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（木の深さ、葉の数等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`

	// Hash はgobエンコード結果のxxhash
	Hash string `json:"hash,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return werrors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return werrors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Classes) > 0 {
		return werrors.NewValidationError("classes", "unfitted model should not have classes", mw.Classes)
	}
	if mw.IsFitted && len(mw.Classes) == 0 {
		return werrors.NewValidationError("classes", "fitted model must have classes", mw.Classes)
	}
	if len(mw.FeatureImportances) > 0 && len(mw.FeatureImportances) != mw.NFeatures {
		return werrors.NewValidationError("feature_importances",
			fmt.Sprintf("expected %d values", mw.NFeatures), len(mw.FeatureImportances))
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:          mw.ModelType,
		Version:            mw.Version,
		NFeatures:          mw.NFeatures,
		IsFitted:           mw.IsFitted,
		Hash:               mw.Hash,
		Classes:            make([]int, len(mw.Classes)),
		FeatureImportances: make([]float64, len(mw.FeatureImportances)),
		Hyperparameters:    make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:           make(map[string]interface{}, len(mw.Metadata)),
	}

	copy(clone.Classes, mw.Classes)
	copy(clone.FeatureImportances, mw.FeatureImportances)

	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// GetWeightHash はモデルのgobエンコード結果のxxhashを16桁の16進数で返す
//
// 同じプロセス内で同じ学習結果からは同じ値が得られる。
func GetWeightHash(model interface{}) (string, error) {
	digest := xxhash.New()
	if err := gob.NewEncoder(digest).Encode(model); err != nil {
		return "", werrors.NewModelError("GetWeightHash", "encode", err)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// HashFile は保存済みファイルの内容のxxhashを返す
func HashFile(filename string) (string, int64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", 0, werrors.NewModelError("HashFile", "open", err)
	}
	defer file.Close()

	digest := xxhash.New()
	n, err := io.Copy(digest, file)
	if err != nil {
		return "", 0, werrors.NewModelError("HashFile", "read", err)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), n, nil
}
