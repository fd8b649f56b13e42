package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	l := NewLogger(path, nil)
	l.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	if err := l.Log(Event{Actor: "admin", Action: "session.revoke", Target: "sid-1", Outcome: OutcomeSuccess, ClientID: "c-1", RequestID: "r-1"}); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if err := l.Log(Event{Actor: "emp", Action: "auth.login", Outcome: OutcomeFailure}); err != nil {
		t.Fatalf("Log() second error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line: %v", err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(events))
	}
	first := events[0]
	if first.Actor != "admin" || first.Action != "session.revoke" || first.ClientID != "c-1" || first.RequestID != "r-1" {
		t.Fatalf("unexpected audit event content: %+v", first)
	}
	if first.At != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected timestamp %q", first.At)
	}
	if events[1].Outcome != OutcomeFailure {
		t.Fatalf("unexpected outcome %q", events[1].Outcome)
	}
}

func TestLoggerWithoutFileMirrorsToZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger("", zap.New(core))

	if err := l.Log(Event{Actor: "admin", Action: "session.clear", Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one mirrored entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["action"]; got != "session.clear" {
		t.Fatalf("unexpected action field %v", got)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	if err := l.Log(Event{Action: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
