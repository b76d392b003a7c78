// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/stillcam/internal/logging"
	"github.com/relabs-tech/stillcam/internal/motion"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// LSB per g for accel ranges 0..3 (±2g, ±4g, ±8g, ±16g).
var accelSensitivity = [4]float64{16384, 8192, 4096, 2048}

// CountsToMS2 converts a raw accelerometer reading to m/s² for the given
// full-scale range setting.
func CountsToMS2(raw int16, accelRange byte) float64 {
	if int(accelRange) >= len(accelSensitivity) {
		accelRange = 0
	}
	return float64(raw) / accelSensitivity[accelRange] * StandardGravity
}

type accelSource struct {
	imu        *mpu9250.MPU9250
	accelRange byte
	log        *logrus.Entry
}

// NewAccelSource initializes an MPU9250 over SPI and returns it as a
// motion sample reader.
func NewAccelSource(spiDev, csPin string, accelRange byte) (motion.Reader, error) {
	log := logging.For("imu")

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("imu: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("imu: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("imu: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("imu: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("imu: initialization: %w", err)
	}

	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("imu: set accel range: %w", err)
	}
	log.Infof("accelerometer range set to %d (±%dg)", accelRange, []int{2, 4, 8, 16}[accelRange])

	testResult, err := imu.SelfTest()
	if err != nil {
		log.Warnf("self-test failed: %v", err)
	} else {
		log.Infof("self-test passed, accel deviation X: %.2f%%, Y: %.2f%%, Z: %.2f%%",
			testResult.AccelDeviation.X, testResult.AccelDeviation.Y, testResult.AccelDeviation.Z)
	}

	// Calibrate only removes bias, so the device must be at rest here.
	if err := imu.Calibrate(); err != nil {
		log.Warnf("calibration failed: %v", err)
	} else {
		log.Info("calibration complete")
	}

	return &accelSource{imu: imu, accelRange: accelRange, log: log}, nil
}

// ReadSample reads the three accelerometer axes.
func (s *accelSource) ReadSample() (motion.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu: accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu: accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu: accel Z: %w", err)
	}

	return motion.Sample{
		Source: "imu",
		Time:   time.Now(),
		X:      CountsToMS2(ax, s.accelRange),
		Y:      CountsToMS2(ay, s.accelRange),
		Z:      CountsToMS2(az, s.accelRange),
	}, nil
}
