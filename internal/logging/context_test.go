package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"shortline/internal/logging"
	"shortline/internal/services"
)

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithChannel(ctx, "daily-facts")
	ctx = services.WithJobID(ctx, 123)
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	if record[logging.FieldChannel] != "daily-facts" {
		t.Fatalf("missing channel field: %v", record)
	}
	if record[logging.FieldJobID] != float64(123) {
		t.Fatalf("missing job id field: %v", record)
	}
	if record[logging.FieldRequestID] != "req-xyz" {
		t.Fatalf("missing request id field: %v", record)
	}
}

func TestWithContextEmptyContextReturnsSameLogger(t *testing.T) {
	logger := logging.NewNop()
	if got := logging.WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected the original logger for a bare context")
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected a usable logger for nil input")
	}
}
