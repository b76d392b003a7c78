// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	"github.com/relabs-tech/stillcam/internal/app"
	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/logging"
)

func main() {
	configPath := flag.String("config", "./stillcam_config.txt", "path to configuration file")
	flag.Parse()

	log := logging.Logger()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	log.Info("starting stillcam accelerometer producer (IMU → MQTT)")

	if err := app.RunAccelProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
