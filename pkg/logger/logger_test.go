package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithOutput("warn", "json", &buf); err != nil {
		t.Fatalf("InitWithOutput: %v", err)
	}

	Infof("hidden %d", 1)
	WithFields(Fields{"session_id": "abc"}).Warnf("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %q", buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "shown 2" || entry["session_id"] != "abc" || entry["level"] != "warning" {
		t.Errorf("entry = %v", entry)
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput("chatty", "text", &buf)

	Debugf("hidden")
	Infof("visible")

	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Errorf("output = %q", out)
	}
}
