package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrapForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))
	l.Info("sizing_decision", String("constraint", "RISK"), Int("lots", 7), Float64("risk", 200000))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["constraint"] != "RISK" {
		t.Fatalf("unexpected constraint field: %v", fields["constraint"])
	}
	if fields["lots"] != int64(7) {
		t.Fatalf("unexpected lots field: %v (%T)", fields["lots"], fields["lots"])
	}
}

func TestNewZapLoggerUnknownLevelFallsBack(t *testing.T) {
	if _, err := NewZapLogger("verbose"); err != nil {
		t.Fatalf("expected fallback to info, got %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Warn("ignored", Bool("x", true))
}
