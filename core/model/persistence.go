package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 同じディレクトリに一時ファイルを書き出してからリネームするため、途中で失敗しても
// 既存のファイルが壊れることはない。保存先ディレクトリは作成しない。
// ディレクトリが存在しない場合はそのままエラーを返す。
//
// パラメータ:
//   - model: 保存するモデル（gob.GobEncoderを実装したポインタ）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(2))
//	// ... モデルの学習 ...
//	err := model.SaveModel(rf, "model/random_forest_wine_model.gob")
func SaveModel(model interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return werrors.NewModelError("SaveModel", "create", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = SaveModelToWriter(model, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return werrors.NewModelError("SaveModel", "sync", err)
	}
	if err = tmp.Close(); err != nil {
		return werrors.NewModelError("SaveModel", "close", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return werrors.NewModelError("SaveModel", "chmod", err)
	}
	if err = os.Rename(tmpName, filename); err != nil {
		return werrors.NewModelError("SaveModel", "rename", err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier()
//	err := model.LoadModel(rf, "model/random_forest_wine_model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return werrors.NewModelError("LoadModel", "open", err)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return werrors.NewModelError("SaveModel", "encode", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
//
// 読み込み先はポインタでなければならない。
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return werrors.NewModelError("LoadModel", "decode", fmt.Errorf("%w: %v", werrors.ErrInvalidArtifact, err))
	}
	return nil
}
