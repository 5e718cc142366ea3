package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewBuildsAWorkingSink(t *testing.T) {
	sink, err := New()
	if err != nil {
		t.Fatalf("unexpected error building sink: %v", err)
	}
	defer sink.Sync()

	// Must not panic for any of the four levels the core emits.
	sink.Log(Debug, "debug message")
	sink.Log(Notice, "notice message")
	sink.Log(Warning, "warning message")
	sink.Log(Error, "error message")
}

func TestLevelStrings(t *testing.T) {
	cases := map[Level]string{
		Debug:   "debug",
		Notice:  "notice",
		Warning: "warning",
		Error:   "error",
		Level(99): "unknown",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}

func TestWrapUsesTheGivenLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := Wrap(zap.New(core))

	sink.Log(Warning, "disk almost full", zap.String("device", "eth0"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry through the wrapped logger, got %d", len(entries))
	}
	if entries[0].Message != "disk almost full" || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestNilSinkLogIsSafe(t *testing.T) {
	var s *ZapSink
	s.Log(Warning, "should not panic")
	if err := s.Sync(); err != nil {
		t.Fatalf("expected nil sink Sync to be a no-op, got %v", err)
	}
}
