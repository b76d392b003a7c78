package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// Tracker keeps the latest fix read from an NMEA stream.
type Tracker struct {
	log *logrus.Entry

	mu      sync.RWMutex
	current Fix
	have    bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{log: logging.For("gps")}
}

// Latest returns the most recent valid fix.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.have && t.current.Valid()
}

// RunSerial opens the GPS serial port and feeds the tracker until ctx is
// done or the port fails.
func (t *Tracker) RunSerial(ctx context.Context, portName string, baud int) error {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("gps: open %s: %w", portName, err)
	}
	t.log.Infof("serial port opened on %s at %d baud", portName, baud)

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = t.Run(port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Run consumes NMEA sentences from r until it fails.
func (t *Tracker) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}
		t.Feed(line)
	}
}

// Feed applies one NMEA line. Unparseable or irrelevant lines are ignored.
func (t *Tracker) Feed(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		t.log.Tracef("NMEA parse error: %v (line: %q)", err, line)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		t.current.Time = m.Time.String()
		t.current.Date = m.Date.String()
		t.current.Latitude = m.Latitude
		t.current.Longitude = m.Longitude
		t.current.Validity = string(m.Validity)
		t.have = true
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		t.current.Altitude = m.Altitude
		t.current.FixQual = m.FixQuality
	}
}
