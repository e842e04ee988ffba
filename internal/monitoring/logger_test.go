package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("angle %d accepted", 90)
	if captured != "angle 90 accepted" {
		t.Errorf("captured = %q", captured)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("dropped %s", "line")
	SetLogger(nil)
}

func TestMetricsHelpersDoNotPanic(t *testing.T) {
	RecordCommand(ResultOK)
	RecordCommand(ResultRange)
	RecordCommand(ResultFormat)
	SetCommandedAngle(135)
	ObserveMove(0.002)
	if MetricsHandler() == nil {
		t.Fatal("MetricsHandler returned nil")
	}
}
