package app

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/logging"
)

// RunAccelProducer samples the accelerometer and publishes each reading
// on the accel topic for capture sessions using MOTION_FEED=mqtt.
func RunAccelProducer() error {
	cfg := config.Get()
	log := logging.For("accel-producer")
	log.Info("starting stillcam accelerometer producer (IMU → MQTT)")

	reader, err := newReader(cfg)
	if err != nil {
		return err
	}
	if cfg.IMUSPIDevice == "" {
		log.Warn("IMU_SPI_DEVICE not set, publishing mock samples")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Publish faster than the session samples so MQTTFeed's throttle
	// always has a fresh reading.
	period := cfg.SampleInterval() / 2
	if period < 20*time.Millisecond {
		period = 20 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Infof("publishing to %s every %v", cfg.TopicAccel, period)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		sample, err := reader.ReadSample()
		if err != nil {
			log.Warnf("accel read error: %v", err)
			continue
		}
		payload, err := json.Marshal(sample)
		if err != nil {
			log.Warnf("json marshal error (accel): %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicAccel, 0, false, payload); token.WaitTimeout(time.Second) && token.Error() != nil {
			log.Warnf("MQTT publish error (accel): %v", token.Error())
			continue
		}
		log.Tracef("accel x=%.3f y=%.3f z=%.3f", sample.X, sample.Y, sample.Z)
	}
}
