// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	"github.com/relabs-tech/stillcam/internal/app"
	"github.com/relabs-tech/stillcam/internal/logging"
)

func main() {
	level := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	log := logging.Logger()
	if err := logging.Setup(*level, ""); err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	log.Info("starting stillcam (mock console)")

	if err := app.RunMockConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
