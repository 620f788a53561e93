package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := NewJSON(&buf, slog.LevelInfo, "balance-api")
	logger.Debug("dropped")
	logger.Info("kept", "account_id", 7)

	var rec map[string]any

	err := json.Unmarshal(buf.Bytes(), &rec)
	if err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}

	if rec["msg"] != "kept" || rec["service"] != "balance-api" || rec["account_id"] != float64(7) {
		t.Fatalf("unexpected record: %v", rec)
	}
}
