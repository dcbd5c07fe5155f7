package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/travel-sos/internal/report"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const franceDoc = `
version: 1
serviceTypes:
  - code: POLICE
    icon: local_police
    names:
      - { lang: en, name: Police }
  - code: FIRE
    icon: fire
    names:
      - { lang: fr, name: Pompiers }
countries:
  - isoCode: FR
    names:
      - { lang: en, name: France }
      - { lang: fr, name: France }
    services:
      - { type: POLICE, number: "17" }
      - { type: FIRE, number: "18" }
`

func mustParse(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	return doc
}

func newTestLoader(t *testing.T) (*Loader, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(&Config{Store: s, Logger: zap.NewNop()}), s
}

func TestLoad_FranceScenario(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	result, err := loader.Load(ctx, mustParse(t, franceDoc), Options{Source: "test"})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Countries)
	assert.Equal(t, 2, result.Numbers)
	assert.NotEmpty(t, result.RunID)

	all, err := s.GetAllCountries(ctx, "en")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "FR", all[0].ISOCode)
	assert.Equal(t, "France", all[0].LocalizedName)

	found, err := s.SearchCountries(ctx, "Fra", "en")
	require.NoError(t, err)
	require.Len(t, found, 1)
	frID := found[0].CountryID

	details, err := s.GetCountryDetails(ctx, frID)
	require.NoError(t, err)
	require.Len(t, details.Services, 2)

	byCode := map[string]store.EmergencyServiceDetails{}
	for _, svc := range details.Services {
		byCode[svc.ServiceType.ServiceCode] = svc
	}
	assert.Equal(t, "17", byCode["POLICE"].Number.Number)
	assert.Equal(t, "Police", byCode["POLICE"].NameIn("en"))
	assert.Equal(t, "18", byCode["FIRE"].Number.Number)
	assert.Empty(t, byCode["FIRE"].NameIn("en"), "no English FIRE name was seeded and none is invented")

	info, err := s.GetSeedInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.SeedInfo{Version: 1, Source: "test"}, info)
}

func TestLoad_IdempotentSecondRun(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	doc, err := Bundled()
	require.NoError(t, err)

	_, err = loader.Load(ctx, doc, Options{Source: "embedded"})
	require.NoError(t, err)
	before, err := s.Counts(ctx)
	require.NoError(t, err)

	doc, err = Bundled()
	require.NoError(t, err)
	result, err := loader.Load(ctx, doc, Options{Source: "embedded"})
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	after, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoad_ForceReseedDoesNotDuplicate(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	_, err := loader.Load(ctx, mustParse(t, franceDoc), Options{})
	require.NoError(t, err)
	before, err := s.Counts(ctx)
	require.NoError(t, err)
	fr, err := s.GetCountryByISO(ctx, "FR")
	require.NoError(t, err)

	result, err := loader.Load(ctx, mustParse(t, franceDoc), Options{Force: true})
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	after, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	again, err := s.GetCountryByISO(ctx, "FR")
	require.NoError(t, err)
	assert.Equal(t, fr.ID, again.ID, "ids survive a reseed")
}

func TestLoad_NewerVersionUpgrades(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	_, err := loader.Load(ctx, mustParse(t, franceDoc), Options{})
	require.NoError(t, err)

	upgraded := strings.Replace(franceDoc, "version: 1", "version: 2", 1)
	upgraded = strings.Replace(upgraded, `{ lang: fr, name: Pompiers }`, `{ lang: fr, name: Pompiers }
      - { lang: en, name: Fire }`, 1)

	result, err := loader.Load(ctx, mustParse(t, upgraded), Options{})
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	fr, err := s.GetCountryByISO(ctx, "FR")
	require.NoError(t, err)
	details, err := s.GetCountryDetails(ctx, fr.ID)
	require.NoError(t, err)
	for _, svc := range details.Services {
		if svc.ServiceType.ServiceCode == "FIRE" {
			assert.Equal(t, "Fire", svc.NameIn("en"))
		}
	}

	// The same version again is a no-op
	result, err = loader.Load(ctx, mustParse(t, upgraded), Options{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestLoad_PrepopulatedWithoutSeedInfoIsLeftAlone(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, s.Transaction(ctx, func(tx *store.Tx) error {
		_, err := tx.UpsertCountry(ctx, "IT")
		return err
	}))

	result, err := loader.Load(ctx, mustParse(t, franceDoc), Options{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Countries)
}

func TestLoad_MalformedDocumentWritesNothing(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx := context.Background()

	bad := strings.Replace(franceDoc, `type: FIRE, number: "18"`, `type: WATER, number: "18"`, 1)
	_, err := loader.Load(ctx, mustParse(t, bad), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrMalformedSeed))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, *counts)
}

func TestLoad_CancelledContextRollsBack(t *testing.T) {
	loader, s := newTestLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := Bundled()
	require.NoError(t, err)
	_, err = loader.Load(ctx, doc, Options{})
	require.Error(t, err)

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Countries)
	assert.Zero(t, counts.ServiceTypes)
}

func TestLoad_WritesEvents(t *testing.T) {
	dir := t.TempDir()
	events, err := report.NewEventLogger(dir, report.LevelDebug)
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	defer s.Close()

	loader := New(&Config{Store: s, Events: events})
	_, err = loader.Load(context.Background(), mustParse(t, franceDoc), Options{Source: "test"})
	require.NoError(t, err)
	require.NoError(t, events.Close())

	data, err := os.ReadFile(events.Path())
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"event":"seed_start"`)
	assert.Contains(t, text, `"iso_code":"FR"`)
	assert.Contains(t, text, `"event":"seed_complete"`)
}

func TestLoad_ConstraintFailureIsLoggedAsConstraint(t *testing.T) {
	dir := t.TempDir()
	events, err := report.NewEventLogger(dir, report.LevelDebug)
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(dir, "constraint.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(`CREATE TRIGGER reject_countries BEFORE INSERT ON countries
		BEGIN SELECT RAISE(ABORT, 'read-only: constraint failed'); END`)
	require.NoError(t, err)

	loader := New(&Config{Store: s, Events: events})
	_, err = loader.Load(context.Background(), mustParse(t, franceDoc), Options{Source: "test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConstraint)
	require.NoError(t, events.Close())

	data, err := os.ReadFile(events.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"constraint"`)
	assert.NotContains(t, string(data), `"event":"seed_complete"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		problem string
	}{
		{
			name:    "missing iso code",
			mutate:  func(s string) string { return strings.Replace(s, "isoCode: FR", "isoCode: \"\"", 1) },
			problem: "isoCode is required",
		},
		{
			name:    "invalid iso code",
			mutate:  func(s string) string { return strings.Replace(s, "isoCode: FR", "isoCode: XQ", 1) },
			problem: "ISO 3166-1",
		},
		{
			name:    "lowercase iso code",
			mutate:  func(s string) string { return strings.Replace(s, "isoCode: FR", "isoCode: fr", 1) },
			problem: "ISO 3166-1",
		},
		{
			name:    "missing icon",
			mutate:  func(s string) string { return strings.Replace(s, "icon: fire", "icon: \"\"", 1) },
			problem: "icon is required",
		},
		{
			name:    "bad language",
			mutate:  func(s string) string { return strings.Replace(s, "{ lang: fr, name: France }", "{ lang: FR, name: France }", 1) },
			problem: "ISO 639-1",
		},
		{
			name:    "missing english name",
			mutate:  func(s string) string { return strings.Replace(s, "{ lang: en, name: France }", "{ lang: de, name: Frankreich }", 1) },
			problem: `"en" name is required`,
		},
		{
			name:    "unknown service type",
			mutate:  func(s string) string { return strings.Replace(s, "type: POLICE, number", "type: SHERIFF, number", 1) },
			problem: "unknown service type",
		},
		{
			name:    "empty number",
			mutate:  func(s string) string { return strings.Replace(s, `number: "17"`, `number: ""`, 1) },
			problem: "not a dialable number",
		},
		{
			name: "missing services key",
			mutate: func(s string) string {
				return strings.Replace(s, `    services:
      - { type: POLICE, number: "17" }
      - { type: FIRE, number: "18" }
`, "", 1)
			},
			problem: "services are required",
		},
		{
			name:    "null services",
			mutate:  func(s string) string { return s[:strings.Index(s, "    services:")] + "    services:\n" },
			problem: "services are required",
		},
		{
			name: "missing service type names key",
			mutate: func(s string) string {
				return strings.Replace(s, `    names:
      - { lang: fr, name: Pompiers }
`, "", 1)
			},
			problem: "(FIRE): names are required",
		},
		{
			name: "conflicting duplicate country",
			mutate: func(s string) string {
				return s + `  - isoCode: FR
    names:
      - { lang: en, name: Gaul }
`
			},
			problem: "defined twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.mutate(franceDoc))
			err := doc.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.problem)
		})
	}
}

func TestValidate_IdenticalDuplicatesFold(t *testing.T) {
	doc := mustParse(t, franceDoc+`  - isoCode: FR
    names:
      - { lang: en, name: France }
      - { lang: fr, name: France }
    services:
      - { type: POLICE, number: "17" }
      - { type: FIRE, number: "18" }
`)
	require.NoError(t, doc.Validate())
	assert.Len(t, doc.Countries, 1)
}

func TestValidate_ExplicitEmptyListsAccepted(t *testing.T) {
	doc := mustParse(t, franceDoc+`  - isoCode: MC
    names:
      - { lang: en, name: Monaco }
    services: []
`)
	doc.ServiceTypes[1].Names = []LocalizedName{}
	require.NoError(t, doc.Validate())
	assert.Len(t, doc.Countries, 2)
}

func TestParse(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		doc, err := Parse(strings.NewReader(`{"serviceTypes":[{"code":"POLICE","icon":"p","names":[{"lang":"en","name":"Police"}]}],
			"countries":[{"isoCode":"IT","names":[{"lang":"en","name":"Italy"}],"services":[{"type":"POLICE","number":"113"}]}]}`))
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Version, "version defaults to 1")
		require.NoError(t, doc.Validate())
		assert.Equal(t, "IT", doc.Countries[0].ISOCode)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse(strings.NewReader("version: 1\ncountrys: []\n"))
		assert.ErrorIs(t, err, util.ErrMalformedSeed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Parse(strings.NewReader(""))
		assert.ErrorIs(t, err, util.ErrMalformedSeed)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		require.NoError(t, os.WriteFile(path, []byte(franceDoc), 0o644))
		doc, err := ParseFile(path)
		require.NoError(t, err)
		assert.Len(t, doc.Countries, 1)
	})
}

func TestBundledDocumentIsValid(t *testing.T) {
	doc, err := Bundled()
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	supported := []string{"de", "en", "es", "fr", "it", "pt"}
	for _, c := range doc.Countries {
		for _, lang := range supported {
			assert.True(t, hasLang(c.Names, lang), "%s lacks a %s name", c.ISOCode, lang)
		}
		assert.NotEmpty(t, c.Services, "%s has no numbers", c.ISOCode)
	}
}

func TestInstallSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Build a seeded database to act as the bundled asset
	assetPath := filepath.Join(dir, "asset.db")
	asset, err := store.Open(assetPath)
	require.NoError(t, err)
	_, err = New(&Config{Store: asset}).Load(ctx, mustParse(t, franceDoc), Options{Source: "asset"})
	require.NoError(t, err)
	// Fold the WAL into the main file so a plain copy carries the data
	_, err = asset.DB().Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	require.NoError(t, err)
	require.NoError(t, asset.Close())

	dbPath := filepath.Join(dir, "live.db")
	installed, err := InstallSnapshot(ctx, assetPath, dbPath, report.NullLogger())
	require.NoError(t, err)
	assert.True(t, installed)

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()
	fr, err := s.GetCountryByISO(ctx, "FR")
	require.NoError(t, err)
	assert.NotNil(t, fr)

	installed, err = InstallSnapshot(ctx, assetPath, dbPath, report.NullLogger())
	require.NoError(t, err)
	assert.False(t, installed)
}
