package gps

import (
	"math"
	"strings"
	"testing"
)

const (
	rmcValid = "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70"
	rmcVoid  = "$GPRMC,220516,V,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*67"
	gga      = "$GPGGA,172814.0,3723.46587704,N,12202.26957864,W,2,6,1.2,18.893,M,-25.669,M,2.0,0031*4F"
)

func TestTrackerFeed(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Latest(); ok {
		t.Fatal("expected no fix before any sentence")
	}

	tr.Feed("garbage")
	tr.Feed("$GPRMC,broken*00")
	if _, ok := tr.Latest(); ok {
		t.Fatal("expected no fix from unparseable input")
	}

	tr.Feed(rmcValid + "\r\n")
	fix, ok := tr.Latest()
	if !ok {
		t.Fatal("expected a valid fix after RMC")
	}
	if math.Abs(fix.Latitude-51.5636) > 0.001 || math.Abs(fix.Longitude+0.704) > 0.001 {
		t.Errorf("unexpected position %.4f, %.4f", fix.Latitude, fix.Longitude)
	}

	tr.Feed(gga)
	fix, _ = tr.Latest()
	if math.Abs(fix.Altitude-18.893) > 1e-6 {
		t.Errorf("expected altitude 18.893, got %v", fix.Altitude)
	}
}

func TestTrackerVoidFix(t *testing.T) {
	tr := NewTracker()
	if err := tr.Run(strings.NewReader(rmcVoid + "\n")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := tr.Latest(); ok {
		t.Error("expected void fix to be reported as unavailable")
	}
}
