package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/stillcam/internal/camera"
	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/face"
	"github.com/relabs-tech/stillcam/internal/motion"
	"github.com/relabs-tech/stillcam/internal/sensors"
)

// mockShake is how long the mock accelerometer keeps moving before it
// settles.
const mockShake = 5 * time.Second

// sessionOptions maps configuration onto session options.
func sessionOptions(cfg *config.Config) capture.Options {
	opts := capture.DefaultOptions()
	opts.SampleInterval = cfg.SampleInterval()
	opts.Tolerance = cfg.MotionTolerance
	opts.Warmup = cfg.Warmup()
	opts.Detector = detectorSettings(cfg)
	return opts
}

func detectorSettings(cfg *config.Config) face.Settings {
	s := face.DefaultSettings()
	s.Mode = face.Mode(cfg.DetectorMode)
	s.DetectLandmarks = cfg.DetectorLandmarks == "all"
	s.RunClassifications = cfg.DetectorClassifications == "all"
	return s
}

// newReader opens the accelerometer, or the mock one when no SPI device
// is configured.
func newReader(cfg *config.Config) (motion.Reader, error) {
	if cfg.IMUSPIDevice == "" {
		return sensors.NewMockAccel(mockShake), nil
	}
	return sensors.NewAccelSource(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
}

func newFeed(cfg *config.Config, client mqtt.Client) (motion.Feed, error) {
	switch cfg.MotionFeed {
	case "sensor":
		r, err := sensors.NewAccelSource(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
		if err != nil {
			return nil, err
		}
		return motion.NewTickerFeed(r, cfg.SampleInterval()), nil
	case "mock":
		return motion.NewTickerFeed(sensors.NewMockAccel(mockShake), cfg.SampleInterval()), nil
	case "mqtt":
		return motion.NewMQTTFeed(client, cfg.TopicAccel), nil
	default:
		return nil, fmt.Errorf("unknown motion feed %q", cfg.MotionFeed)
	}
}

func newDetector(cfg *config.Config) face.Detector {
	if cfg.DetectorURL == "" {
		return face.NewMockDetector(200*time.Millisecond, nil)
	}
	return face.NewWSDetector(cfg.DetectorURL)
}

// newCamera returns the configured camera and a func releasing it.
func newCamera(cfg *config.Config, client mqtt.Client) (camera.Camera, func()) {
	if cfg.CameraBackend == "mock" {
		return camera.NewMockCamera(300 * time.Millisecond), func() {}
	}
	cam := camera.NewMQTTCamera(client, cfg.TopicCaptureRequest, cfg.TopicCaptureSaved)
	return cam, cam.Close
}
