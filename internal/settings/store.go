package settings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/travel-sos/internal/live"
	"github.com/franz/travel-sos/internal/report"
	"github.com/franz/travel-sos/internal/util"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Options configures a settings Store
type Options struct {
	Logger *zap.Logger
	Events *report.EventLogger
	Retry  *util.RetryConfig
}

// Store is the preference store
type Store struct {
	db      *sql.DB
	changes *live.Notifier
	logger  *zap.Logger
	events  *report.EventLogger
	retry   *util.RetryConfig
}

// Open opens or creates the settings file at path
func Open(path string, opts Options) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open settings: %v", util.ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. Failing to create the preferences table is
// fatal: nothing else in the store could be trusted.
func New(db *sql.DB, opts Options) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize settings: %v", util.ErrStorageUnavailable, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := opts.Retry
	if retry == nil {
		retry = util.DefaultRetryConfig()
	}
	return &Store{
		db:      db,
		changes: live.NewNotifier(),
		logger:  logger.Named("settings"),
		events:  opts.Events,
		retry:   retry,
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Changed implements live.Source
func (s *Store) Changed() <-chan struct{} {
	return s.changes.Changed()
}

func (s *Store) read(ctx context.Context) (Preferences, error) {
	prefs := Defaults()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return prefs, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Defaults(), fmt.Errorf("failed to scan setting: %w", err)
		}
		// A single bad value falls back alone
		if err := prefs.apply(key, value); err != nil {
			s.logger.Warn("ignoring stored setting", zap.String("key", key), zap.String("value", value), zap.Error(err))
		}
	}
	if err := rows.Err(); err != nil {
		return Defaults(), fmt.Errorf("failed to read settings: %w", err)
	}
	return prefs, nil
}

func (s *Store) fallback(err error) Preferences {
	s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
	return Defaults()
}

// Load returns the current preferences, or the defaults when they cannot
// be read.
func (s *Store) Load(ctx context.Context) Preferences {
	prefs, err := s.read(ctx)
	if err != nil {
		return s.fallback(err)
	}
	return prefs
}

// Watch delivers the preferences now and after every write until ctx is done
func (s *Store) Watch(ctx context.Context) <-chan Preferences {
	return live.Stream(ctx, s, s.read, s.fallback)
}

func watchField[T any](ctx context.Context, s *Store, field func(Preferences) T) <-chan T {
	return live.Map(ctx, s.Watch(ctx), field)
}

// OnboardingComplete is the live onboarding_complete flag
func (s *Store) OnboardingComplete(ctx context.Context) <-chan bool {
	return watchField(ctx, s, func(p Preferences) bool { return p.OnboardingComplete })
}

// IsFirstLaunch is the live is_first_launch flag
func (s *Store) IsFirstLaunch(ctx context.Context) <-chan bool {
	return watchField(ctx, s, func(p Preferences) bool { return p.IsFirstLaunch })
}

// AppTheme is the live theme
func (s *Store) AppTheme(ctx context.Context) <-chan Theme {
	return watchField(ctx, s, func(p Preferences) Theme { return p.AppTheme })
}

// DirectCall is the live direct_call flag
func (s *Store) DirectCall(ctx context.Context) <-chan bool {
	return watchField(ctx, s, func(p Preferences) bool { return p.DirectCall })
}

// ConfirmBeforeCall is the live confirm_before_call flag
func (s *Store) ConfirmBeforeCall(ctx context.Context) <-chan bool {
	return watchField(ctx, s, func(p Preferences) bool { return p.ConfirmBeforeCall })
}

// DefaultCountryID is the live default country; nil when unset
func (s *Store) DefaultCountryID(ctx context.Context) <-chan *int64 {
	return watchField(ctx, s, func(p Preferences) *int64 { return p.DefaultCountryID })
}

// Update applies every change in p in one transaction. Nothing is written
// if any part fails.
func (s *Store) Update(ctx context.Context, p Patch) error {
	changes, err := p.changes()
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	err = util.Retry(ctx, s.retry, func() error {
		return s.write(ctx, changes)
	}, "settings update")
	if err != nil {
		s.events.LogError(report.EventSettings, "", err)
		return err
	}

	for _, c := range changes {
		value := ""
		if c.value != nil {
			value = *c.value
		}
		s.events.LogSettingsWrite(c.key, value)
	}
	s.changes.Notify()
	return nil
}

func (s *Store) write(ctx context.Context, changes []change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings update: %w", err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		if c.value == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, c.key)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO preferences (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, c.key, *c.value)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", c.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// Set writes one key from its text form
func (s *Store) Set(ctx context.Context, key, value string) error {
	p, err := ParsePatch(key, value)
	if err != nil {
		return err
	}
	return s.Update(ctx, p)
}

// Reset removes every stored preference so the defaults apply again
func (s *Store) Reset(ctx context.Context) error {
	err := util.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM preferences`)
		return err
	}, "settings reset")
	if err != nil {
		s.events.LogError(report.EventSettings, "", err)
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	s.changes.Notify()
	return nil
}
