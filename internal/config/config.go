package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string `validate:"required"`
	MQTTClientIDCapture  string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicAccel          string `validate:"required"`
	TopicSessionState   string `validate:"required"`
	TopicCaptureRequest string
	TopicCaptureSaved   string

	// Motion gate
	MotionFeed           string  `validate:"oneof=sensor mqtt mock"`
	MotionSampleInterval int     `validate:"gt=0"` // milliseconds
	MotionTolerance      float64 `validate:"gt=0"`
	MotionWarmup         int     `validate:"gte=0"` // milliseconds

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte `validate:"lte=3"`

	// Face detector
	DetectorURL             string
	DetectorMode            string `validate:"oneof=fast accurate"`
	DetectorLandmarks       string `validate:"oneof=none all"`
	DetectorClassifications string `validate:"oneof=none all"`

	// Camera
	CameraBackend string `validate:"oneof=mqtt mock"`

	// GPS (optional, geotags capture requests)
	GPSSerialPort string
	GPSBaudRate   int

	// Web Server
	WebServerPort int `validate:"gt=0,lte=65535"`

	// Display
	DisplayUpdateInterval int // milliseconds
	// Width of the camera preview the face coordinates refer to.
	DisplayPreviewWidth int `validate:"gt=0"`

	// Logging
	LogLevel string `validate:"oneof=trace debug info warn error"`
	LogFile  string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal() and Get().
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config with every optional value filled in.
func Defaults() *Config {
	return &Config{
		MQTTClientIDCapture:     "stillcam-capture",
		MQTTClientIDProducer:    "stillcam-accel-producer",
		MQTTClientIDConsole:     "stillcam-console",
		MQTTClientIDDisplay:     "stillcam-display",
		TopicAccel:              "stillcam/motion/accel",
		TopicSessionState:       "stillcam/session/state",
		TopicCaptureRequest:     "stillcam/camera/capture",
		TopicCaptureSaved:       "stillcam/camera/saved",
		MotionFeed:              "mqtt",
		MotionSampleInterval:    500,
		MotionTolerance:         1,
		MotionWarmup:            2000,
		DetectorMode:            "accurate",
		DetectorLandmarks:       "all",
		DetectorClassifications: "none",
		CameraBackend:           "mqtt",
		GPSBaudRate:             9600,
		WebServerPort:           8080,
		DisplayUpdateInterval:   250,
		DisplayPreviewWidth:     640,
		LogLevel:                "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromValues(values)
}

// FromValues builds a Config from already parsed KEY=VALUE pairs.
func FromValues(values map[string]string) (*Config, error) {
	cfg := Defaults()

	// Sorted so the first reported error is stable.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CAPTURE":
		c.MQTTClientIDCapture = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ACCEL":
		c.TopicAccel = value
	case "TOPIC_SESSION_STATE":
		c.TopicSessionState = value
	case "TOPIC_CAPTURE_REQUEST":
		c.TopicCaptureRequest = value
	case "TOPIC_CAPTURE_SAVED":
		c.TopicCaptureSaved = value

	// Motion gate
	case "MOTION_FEED":
		c.MotionFeed = strings.ToLower(value)
	case "MOTION_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MOTION_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.MotionSampleInterval = interval
	case "MOTION_TOLERANCE":
		tol, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MOTION_TOLERANCE %q: %w", value, err)
		}
		c.MotionTolerance = tol
	case "MOTION_WARMUP":
		warmup, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MOTION_WARMUP %q: %w", value, err)
		}
		c.MotionWarmup = warmup

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// Face detector
	case "DETECTOR_URL":
		c.DetectorURL = value
	case "DETECTOR_MODE":
		c.DetectorMode = strings.ToLower(value)
	case "DETECTOR_LANDMARKS":
		c.DetectorLandmarks = strings.ToLower(value)
	case "DETECTOR_CLASSIFICATIONS":
		c.DetectorClassifications = strings.ToLower(value)

	// Camera
	case "CAMERA_BACKEND":
		c.CameraBackend = strings.ToLower(value)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_PREVIEW_WIDTH":
		width, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_PREVIEW_WIDTH %q: %w", value, err)
		}
		c.DisplayPreviewWidth = width

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FILE":
		c.LogFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

var validate = validator.New()

// validate checks required fields and value ranges declared in struct tags,
// plus the cross-field rules tags cannot express.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MotionFeed == "sensor" && c.IMUSPIDevice == "" {
		return fmt.Errorf("IMU_SPI_DEVICE is required when MOTION_FEED=sensor")
	}
	if c.CameraBackend == "mqtt" && (c.TopicCaptureRequest == "" || c.TopicCaptureSaved == "") {
		return fmt.Errorf("TOPIC_CAPTURE_REQUEST and TOPIC_CAPTURE_SAVED are required when CAMERA_BACKEND=mqtt")
	}
	return nil
}

// SampleInterval returns the motion feed period as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.MotionSampleInterval) * time.Millisecond
}

// Warmup returns the delay before the motion gate is armed.
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.MotionWarmup) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
