package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stillcam_config.txt")
	content := `# comment
MQTT_BROKER=tcp://broker:1883
MOTION_FEED=mock
MOTION_SAMPLE_INTERVAL=250
MOTION_TOLERANCE=0.5
MOTION_WARMUP=1500
CAMERA_BACKEND=mock
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("expected broker tcp://broker:1883, got %q", cfg.MQTTBroker)
	}
	if cfg.SampleInterval() != 250*time.Millisecond {
		t.Errorf("expected 250ms interval, got %v", cfg.SampleInterval())
	}
	if cfg.MotionTolerance != 0.5 {
		t.Errorf("expected tolerance 0.5, got %v", cfg.MotionTolerance)
	}
	if cfg.Warmup() != 1500*time.Millisecond {
		t.Errorf("expected 1500ms warmup, got %v", cfg.Warmup())
	}
	// Untouched keys keep their defaults.
	if cfg.DetectorMode != "accurate" || cfg.DetectorLandmarks != "all" || cfg.DetectorClassifications != "none" {
		t.Errorf("unexpected detector defaults: %s/%s/%s", cfg.DetectorMode, cfg.DetectorLandmarks, cfg.DetectorClassifications)
	}
}

func TestFromValuesErrors(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr string
	}{
		{
			name:    "unknown key",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "NOPE": "1"},
			wantErr: "unknown config key",
		},
		{
			name:    "missing broker",
			values:  map[string]string{"MOTION_FEED": "mock"},
			wantErr: "MQTTBroker",
		},
		{
			name:    "bad tolerance",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "MOTION_TOLERANCE": "abc"},
			wantErr: "invalid MOTION_TOLERANCE",
		},
		{
			name:    "non positive tolerance",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "MOTION_TOLERANCE": "0"},
			wantErr: "MotionTolerance",
		},
		{
			name:    "accel range out of bounds",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "IMU_ACCEL_RANGE": "4"},
			wantErr: "IMU_ACCEL_RANGE must be 0-3",
		},
		{
			name:    "unknown feed",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "MOTION_FEED": "bluetooth"},
			wantErr: "MotionFeed",
		},
		{
			name:    "sensor feed needs spi device",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "MOTION_FEED": "sensor"},
			wantErr: "IMU_SPI_DEVICE is required",
		},
		{
			name:    "mqtt camera needs topics",
			values:  map[string]string{"MQTT_BROKER": "tcp://x:1883", "TOPIC_CAPTURE_SAVED": ""},
			wantErr: "TOPIC_CAPTURE_REQUEST and TOPIC_CAPTURE_SAVED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromValues(tt.values)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
