package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nathoo/fable/config"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf)
	log.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&config.Config{LogLevel: "warn", LogFormat: "text"}, &buf)

	log.Info("quiet")
	if buf.Len() != 0 {
		t.Error("info should be filtered at warn level")
	}
	log.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}
