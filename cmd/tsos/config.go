package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/travel-sos/internal/locale"
	"github.com/franz/travel-sos/internal/report"
	"github.com/franz/travel-sos/internal/repository"
	"github.com/franz/travel-sos/internal/seed"
	"github.com/franz/travel-sos/internal/settings"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (TSOS_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// effectiveLanguage resolves the display language for this run. It is
// recomputed on every invocation since the locale may change between runs.
func effectiveLanguage() string {
	if lang := viper.GetString("language"); lang != "" {
		return locale.Resolve(lang)
	}
	return locale.DeviceLanguage()
}

func eventLevel() report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	}
	return report.LevelInfo
}

// openEventLog opens the JSONL event log, or a null logger if that fails
func openEventLog() *report.EventLogger {
	events, err := report.NewEventLogger(GetConfigString("events_dir", "artifacts"), eventLevel())
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", events.Path())
	return events
}

// seedDocument returns the configured seed file, or the bundled dataset
func seedDocument() (*seed.Document, string, error) {
	if path := viper.GetString("seed_file"); path != "" {
		doc, err := seed.ParseFile(path)
		return doc, path, err
	}
	doc, err := seed.Bundled()
	return doc, "bundled", err
}

// openStore opens the reference database and makes sure it is seeded.
// A configured snapshot is installed first when no database exists yet.
// Any failure here is fatal for the command.
func openStore(ctx context.Context, events *report.EventLogger) (*store.Store, error) {
	dbPath := GetConfigString("db", "tsos.db")

	if snapshot := viper.GetString("snapshot"); snapshot != "" {
		installed, err := seed.InstallSnapshot(ctx, snapshot, dbPath, events)
		if err != nil {
			return nil, err
		}
		if installed {
			util.InfoLog("Installed database snapshot from %s", snapshot)
		}
	}

	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{Logger: util.Logger()})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}

	doc, source, err := seedDocument()
	if err != nil {
		db.Close()
		return nil, err
	}
	loader := seed.New(&seed.Config{
		Store:        db,
		Logger:       util.Logger(),
		Events:       events,
		ShowProgress: util.ShowProgress(),
	})
	if _, err := loader.Load(ctx, doc, seed.Options{Source: source}); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSettings(events *report.EventLogger) (*settings.Store, error) {
	return settings.Open(GetConfigString("settings_db", "tsos-settings.db"), settings.Options{
		Logger: util.Logger(),
		Events: events,
	})
}

func newRepository(db *store.Store) *repository.Countries {
	return repository.NewCountries(db, repository.Options{
		Logger:          util.Logger(),
		SearchDebounce:  GetConfigDuration("search_debounce", repository.DefaultSearchDebounce),
		SearchMinLength: GetConfigInt("search_min_length", repository.DefaultSearchMinLength),
	})
}
