// Command winefit trains a random forest on the bundled wine dataset,
// prints its training accuracy and saves it to disk.
package main

import (
	"os"

	"github.com/YuminosukeSato/winefit/pkg/log"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.GetLogger().Error("winefit failed", err)
		os.Exit(1)
	}
}
