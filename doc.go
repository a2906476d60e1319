// Package winefit trains a random forest classifier on the classic wine
// recognition dataset and stores the fitted model on disk.
//
// WineFit offers a scikit-learn-like API for the pieces it needs, so the
// training step reads the same way it would in Python.
//
// # Installation
//
//	go install github.com/YuminosukeSato/winefit/cmd/winefit@latest
//
// # Quick Start
//
// Running the command without arguments reproduces the reference run: two
// depth-1 trees seeded with 1, fitted on all 178 samples, and prints a
// single line to stdout:
//
//	$ winefit
//	Model accuracy: <training accuracy>
//
// The model is written to model/random_forest_wine_model.gob; the model
// directory must already exist unless --create-dirs is given. The same run
// from Go:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/winefit/core/model"
//	    "github.com/YuminosukeSato/winefit/datasets"
//	    "github.com/YuminosukeSato/winefit/sklearn/ensemble"
//	)
//
//	func main() {
//	    X, y, err := datasets.LoadWineXY()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    rf := ensemble.NewRandomForestClassifier(
//	        ensemble.WithNEstimators(2),
//	        ensemble.WithRandomState(1),
//	        ensemble.WithMaxDepth(1),
//	    )
//	    if err := rf.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Model accuracy:", rf.Score(X, y))
//
//	    if err := model.SaveModel(rf, "forest.gob"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Packages
//
//   - datasets: the embedded wine dataset and a CSV loader
//   - sklearn/tree: CART DecisionTreeClassifier
//   - sklearn/ensemble: RandomForestClassifier
//   - metrics: accuracy and confusion matrices
//   - core/model: estimator interfaces, gob persistence, weight summaries
//   - core/parallel: worker-pool helpers used to fit trees concurrently
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
//   - internal/...: configuration, run ledger, metrics and reports used by
//     cmd/winefit
//
// # Configuration
//
// cmd/winefit reads an optional YAML file (--config or WINEFIT_CONFIG), an
// optional .env file and WINEFIT_* variables. See internal/config for the
// full list of keys.
package winefit
