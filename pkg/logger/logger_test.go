package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, "text"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := SetLevelString("info"); err != nil {
		t.Fatalf("set level: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "stage finished",
		String("stage", "clean"),
		Int64("records", 42),
		Bool("combiner", true),
		Duration("took", time.Second),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"stage finished", "stage=clean", "records=42", "combiner=true", "took=1s", "error=boom", "source=logger_test.go"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, "json"); err != nil {
		t.Fatalf("init: %v", err)
	}

	l := Named("graph").With(String("run_id", "r-1"))
	l.Warn(context.Background(), "dropped record")

	out := buf.String()
	if !strings.Contains(out, `"component":"graph"`) || !strings.Contains(out, `"run_id":"r-1"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, "text"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	Get().Debug(context.Background(), "hidden")
	Get().Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := InitWithWriter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNop(t *testing.T) {
	Nop().Error(context.Background(), "nothing happens", String("k", "v"))
}
