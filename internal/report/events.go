package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventSeedStart    EventType = "seed_start"
	EventSeedCountry  EventType = "seed_country"
	EventSeedComplete EventType = "seed_complete"
	EventSeedSkip     EventType = "seed_skip"
	EventSnapshot     EventType = "snapshot"
	EventConstraint   EventType = "constraint"
	EventSettings     EventType = "settings"
	EventError        EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is a single audit record
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	RunID     string            `json:"run_id,omitempty"`
	Source    string            `json:"source,omitempty"`
	ISOCode   string            `json:"iso_code,omitempty"`
	Key       string            `json:"key,omitempty"`
	Version   int               `json:"version,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSeedStart logs the beginning of a seed run
func (l *EventLogger) LogSeedStart(runID, source string, version int) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSeedStart,
		RunID:   runID,
		Source:  source,
		Version: version,
	})
}

// LogSeedCountry logs one country written by a seed run
func (l *EventLogger) LogSeedCountry(runID, isoCode string, names, numbers int) error {
	return l.Log(&Event{
		Level:   LevelDebug,
		Event:   EventSeedCountry,
		RunID:   runID,
		ISOCode: isoCode,
		Extra: map[string]string{
			"names":   strconv.Itoa(names),
			"numbers": strconv.Itoa(numbers),
		},
	})
}

// LogSeedComplete logs a committed seed run
func (l *EventLogger) LogSeedComplete(runID string, version, countries, numbers int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSeedComplete,
		RunID:    runID,
		Version:  version,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"countries": strconv.Itoa(countries),
			"numbers":   strconv.Itoa(numbers),
		},
	})
}

// LogSeedSkip logs a seed run that found nothing to do
func (l *EventLogger) LogSeedSkip(runID, reason string, version int) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSeedSkip,
		RunID:   runID,
		Version: version,
		Reason:  reason,
	})
}

// LogSnapshot logs installation of a prepackaged database
func (l *EventLogger) LogSnapshot(source, dest string, installed bool) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventSnapshot,
		Source: source,
		Extra: map[string]string{
			"dest":      dest,
			"installed": strconv.FormatBool(installed),
		},
	})
}

// LogSettingsWrite logs a preference change
func (l *EventLogger) LogSettingsWrite(key, value string) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventSettings,
		Key:   key,
		Extra: map[string]string{"value": value},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, runID string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		RunID: runID,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
