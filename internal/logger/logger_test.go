package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestConfigureLevelAndJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	defer Configure(Config{Level: "info"})

	Info().Msg("dropped")
	Warn().Str("class_id", "c1").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["class_id"] != "c1" || line["level"] != "warn" {
		t.Fatalf("unexpected entry %v", line)
	}
}
