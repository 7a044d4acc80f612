package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCombine(t *testing.T) {
	all := Combine(
		[]Log{Pend(INFO, "one"), Pend(DEBUG, "two")},
		nil,
		[]Log{PendErr(ERROR, "three", errors.New("boom"))},
	)

	if len(all) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(all))
	}

	for i, want := range []string{"one", "two", "three"} {
		if all[i].Message != want {
			t.Errorf("log %d: expected %q got %q", i, want, all[i].Message)
		}
	}
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer

	e := New(FormatJSON, &buf)
	e.Emit([]Log{Pend(WARN, "careful"), PendErr(ERROR, "broken", errors.New("boom"))})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", len(lines), buf.String())
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &doc); err != nil {
		t.Fatalf("output is not JSON:%v", err)
	}

	if doc["level"] != "error" || doc["message"] != "broken" || doc["error"] != "boom" {
		t.Errorf("unexpected JSON log: %v", doc)
	}
}

func TestEmitPlain(t *testing.T) {
	var buf bytes.Buffer

	e := New(FormatPlain, &buf)
	e.Emit([]Log{Pend(INFO, "hello")})

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("plain output missing message: %q", buf.String())
	}
}
