package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Line is not valid JSON: %v", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to scan log file: %v", err)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(filepath.Join(tmpDir, "nested"), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if len(filename) < len("events-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_SeedRun(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogSeedStart("run-1", "embedded", 2)
	logger.LogSeedCountry("run-1", "FR", 6, 4)
	logger.LogSeedComplete("run-1", 2, 20, 57, 1500*time.Millisecond)
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	if events[0].Event != EventSeedStart || events[0].Source != "embedded" || events[0].Version != 2 {
		t.Errorf("Unexpected start event: %+v", events[0])
	}
	if events[1].ISOCode != "FR" || events[1].Extra["numbers"] != "4" {
		t.Errorf("Unexpected country event: %+v", events[1])
	}
	if events[2].Duration != 1500 || events[2].Extra["countries"] != "20" {
		t.Errorf("Unexpected complete event: %+v", events[2])
	}
	for _, e := range events {
		if e.RunID != "run-1" {
			t.Errorf("Expected run_id run-1, got %q", e.RunID)
		}
		if e.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set automatically")
		}
	}
}

func TestEventLogger_LogError(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogError(EventConstraint, "run-2", errors.New("UNIQUE constraint failed"))
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Level != LevelError || events[0].Event != EventConstraint {
		t.Errorf("Unexpected error event: %+v", events[0])
	}
	if events[0].Error != "UNIQUE constraint failed" {
		t.Errorf("Unexpected error text %q", events[0].Error)
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogSeedCountry("run", "DE", 6, 4) // debug, filtered
	logger.LogSettingsWrite("direct_call", "true")
	logger.LogSeedSkip("run", "already seeded", 1)
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event after filtering, got %d", len(events))
	}
	if events[0].Event != EventSeedSkip || events[0].Reason != "already seeded" {
		t.Errorf("Unexpected event: %+v", events[0])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.LogSettingsWrite("app_theme", "dark")
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readEvents(t, logger.Path())); got != 200 {
		t.Errorf("Expected 200 events, got %d", got)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogSeedStart("run", "file", 1); err != nil {
		t.Errorf("NullLogger should not error: %v", err)
	}
	if err := logger.LogError(EventError, "run", errors.New("boom")); err != nil {
		t.Errorf("NullLogger should not error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger close should not error: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("NullLogger path should be empty, got %q", logger.Path())
	}
}
