package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/franz/travel-sos/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"), Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS preferences`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := New(db, Options{
		Logger: zap.NewNop(),
		Retry:  &util.RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	return mock, s
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func ptr[T any](v T) *T { return &v }

func TestDefaultsOnFirstLaunch(t *testing.T) {
	s := newTestStore(t)
	prefs := s.Load(context.Background())

	assert.Equal(t, Defaults(), prefs)
	assert.False(t, prefs.OnboardingComplete)
	assert.True(t, prefs.IsFirstLaunch)
	assert.Equal(t, ThemeSystem, prefs.AppTheme)
	assert.False(t, prefs.DirectCall)
	assert.True(t, prefs.ConfirmBeforeCall)
	assert.Nil(t, prefs.DefaultCountryID)
}

func TestDirectCallRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flow := s.DirectCall(ctx)
	assert.False(t, recv(t, flow))

	require.NoError(t, s.Update(ctx, Patch{DirectCall: ptr(true)}))
	assert.True(t, recv(t, flow))
}

func TestEveryWriteReemits(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	theme := s.AppTheme(ctx)
	assert.Equal(t, ThemeSystem, recv(t, theme))

	require.NoError(t, s.Update(ctx, Patch{AppTheme: ptr(ThemeDark)}))
	assert.Equal(t, ThemeDark, recv(t, theme))

	// An unrelated write still delivers the current value
	require.NoError(t, s.Update(ctx, Patch{OnboardingComplete: ptr(true)}))
	assert.Equal(t, ThemeDark, recv(t, theme))
}

func TestMultiKeyUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, Patch{
		OnboardingComplete: ptr(true),
		IsFirstLaunch:      ptr(false),
		ConfirmBeforeCall:  ptr(false),
		DefaultCountryID:   ptr(int64(7)),
	}))

	prefs := s.Load(ctx)
	assert.True(t, prefs.OnboardingComplete)
	assert.False(t, prefs.IsFirstLaunch)
	assert.False(t, prefs.ConfirmBeforeCall)
	require.NotNil(t, prefs.DefaultCountryID)
	assert.Equal(t, int64(7), *prefs.DefaultCountryID)

	require.NoError(t, s.Update(ctx, Patch{ClearDefaultCountry: true}))
	assert.Nil(t, s.Load(ctx).DefaultCountryID)
}

func TestInvalidPatchWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, Patch{DirectCall: ptr(true), AppTheme: ptr(Theme("sepia"))})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
	assert.Equal(t, Defaults(), s.Load(ctx))

	err = s.Update(ctx, Patch{DefaultCountryID: ptr(int64(1)), ClearDefaultCountry: true})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Update(ctx, Patch{DirectCall: ptr(true), AppTheme: ptr(ThemeLight)}))
	flow := s.Watch(ctx)
	assert.True(t, recv(t, flow).DirectCall)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, Defaults(), recv(t, flow))
}

func TestSetAndGetText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyAppTheme, "Dark"))
	require.NoError(t, s.Set(ctx, KeyDefaultCountryID, "12"))
	require.NoError(t, s.Set(ctx, KeyDirectCall, "1"))

	prefs := s.Load(ctx)
	for key, want := range map[string]string{
		KeyAppTheme:          "dark",
		KeyDefaultCountryID:  "12",
		KeyDirectCall:        "true",
		KeyConfirmBeforeCall: "true",
	} {
		got, err := prefs.Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}

	require.NoError(t, s.Set(ctx, KeyDefaultCountryID, ""))
	got, err := s.Load(ctx).Get(KeyDefaultCountryID)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = prefs.Get("volume")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func TestParsePatchRejects(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{KeyDirectCall, "sometimes"},
		{KeyAppTheme, "sepia"},
		{KeyDefaultCountryID, "-3"},
		{KeyDefaultCountryID, "FR"},
		{"volume", "11"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := ParsePatch(tt.key, tt.value)
			assert.ErrorIs(t, err, util.ErrInvalidConfig)
		})
	}
}

func TestCorruptValueFallsBackForThatKeyOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO preferences (key, value) VALUES ('direct_call', 'banana'), ('app_theme', 'dark')`)
	require.NoError(t, err)

	prefs := s.Load(ctx)
	assert.False(t, prefs.DirectCall)
	assert.Equal(t, ThemeDark, prefs.AppTheme)
}

func TestReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	ctx := context.Background()

	s, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, Patch{OnboardingComplete: ptr(true)}))
	require.NoError(t, s.Close())

	s, err = Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.Load(ctx).OnboardingComplete)
}

func TestReadFailureYieldsDefaults(t *testing.T) {
	mock, s := setupMockStore(t)

	mock.ExpectQuery(`SELECT key, value FROM preferences`).
		WillReturnError(errors.New("disk I/O error"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, recv(t, s.DirectCall(ctx)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredValueThenReadFailure(t *testing.T) {
	mock, s := setupMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT key, value FROM preferences`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow("direct_call", "true"))
	mock.ExpectQuery(`SELECT key, value FROM preferences`).
		WillReturnError(errors.New("database disk image is malformed"))

	assert.True(t, s.Load(ctx).DirectCall)
	assert.False(t, s.Load(ctx).DirectCall, "a failed read serves the default")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteFailureRollsBack(t *testing.T) {
	mock, s := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs(KeyOnboardingComplete, "true").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs(KeyDirectCall, "true").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Update(context.Background(), Patch{OnboardingComplete: ptr(true), DirectCall: ptr(true)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRetriesWhenLocked(t *testing.T) {
	mock, s := setupMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs(KeyAppTheme, "light").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Update(context.Background(), Patch{AppTheme: ptr(ThemeLight)}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaFailureIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS preferences`).
		WillReturnError(errors.New("file is not a database"))

	_, err = New(db, Options{})
	assert.ErrorIs(t, err, util.ErrStorageUnavailable)
}
