package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a write transaction over the reference tables.
// Obtain one through Store.Transaction.
type Tx struct {
	tx *sql.Tx
}

// UpsertServiceType inserts a service type or updates the icon of the
// existing one with the same code. Returns the row id, which is stable
// across upserts.
func (t *Tx) UpsertServiceType(ctx context.Context, code, icon string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO emergency_service_types (service_code, icon) VALUES (?, ?)
		ON CONFLICT(service_code) DO UPDATE SET icon = excluded.icon
		RETURNING id
	`, code, icon).Scan(&id)
	if err != nil {
		return 0, classify("upsert service type", err)
	}
	return id, nil
}

// UpsertServiceTypeName sets the name of a service type in one language
func (t *Tx) UpsertServiceTypeName(ctx context.Context, serviceTypeID int64, languageCode, name string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO service_type_names (service_type_id, language_code, name) VALUES (?, ?, ?)
		ON CONFLICT(service_type_id, language_code) DO UPDATE SET name = excluded.name
	`, serviceTypeID, languageCode, name)
	return classify("upsert service type name", err)
}

// UpsertCountry inserts a country or returns the id of the existing one
// with the same ISO code.
func (t *Tx) UpsertCountry(ctx context.Context, isoCode string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO countries (iso_code) VALUES (?)
		ON CONFLICT(iso_code) DO UPDATE SET iso_code = excluded.iso_code
		RETURNING id
	`, isoCode).Scan(&id)
	if err != nil {
		return 0, classify("upsert country", err)
	}
	return id, nil
}

// UpsertCountryName sets the name of a country in one language. The search
// index follows through triggers within the same transaction.
func (t *Tx) UpsertCountryName(ctx context.Context, countryID int64, languageCode, name string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO country_names (country_id, language_code, name) VALUES (?, ?, ?)
		ON CONFLICT(country_id, language_code) DO UPDATE SET name = excluded.name
	`, countryID, languageCode, name)
	return classify("upsert country name", err)
}

// UpsertEmergencyNumber records a number for a country and service type.
// The same number for the same pair is stored once.
func (t *Tx) UpsertEmergencyNumber(ctx context.Context, n *EmergencyNumber) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO emergency_numbers (country_id, service_type_id, number, description)
		VALUES (?, ?, ?, NULLIF(?, ''))
		ON CONFLICT(country_id, service_type_id, number) DO UPDATE SET description = excluded.description
		RETURNING id
	`, n.CountryID, n.ServiceTypeID, n.Number, n.Description).Scan(&n.ID)
	return classify("upsert emergency number", err)
}

// InsertCountry inserts a new country; a duplicate ISO code is a
// *ConstraintError.
func (t *Tx) InsertCountry(ctx context.Context, c *Country) error {
	result, err := t.tx.ExecContext(ctx, `INSERT INTO countries (iso_code) VALUES (?)`, c.ISOCode)
	if err != nil {
		return classify("insert country", err)
	}
	c.ID, err = result.LastInsertId()
	return err
}

// InsertCountryName inserts a new name; a second name for the same
// (country, language) pair or an unknown country is a *ConstraintError.
func (t *Tx) InsertCountryName(ctx context.Context, n *CountryName) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO country_names (country_id, language_code, name) VALUES (?, ?, ?)
	`, n.CountryID, n.LanguageCode, n.Name)
	if err != nil {
		return classify("insert country name", err)
	}
	n.ID, err = result.LastInsertId()
	return err
}

// UpdateCountryName renames an existing name row
func (t *Tx) UpdateCountryName(ctx context.Context, id int64, name string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE country_names SET name = ? WHERE id = ?`, name, id)
	return classify("update country name", err)
}

// InsertEmergencyNumber inserts a new number; unknown country or service
// type is a *ConstraintError.
func (t *Tx) InsertEmergencyNumber(ctx context.Context, n *EmergencyNumber) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO emergency_numbers (country_id, service_type_id, number, description)
		VALUES (?, ?, ?, NULLIF(?, ''))
	`, n.CountryID, n.ServiceTypeID, n.Number, n.Description)
	if err != nil {
		return classify("insert emergency number", err)
	}
	n.ID, err = result.LastInsertId()
	return err
}

// DeleteCountry removes a country; its names and numbers cascade.
// Returns false when no such country existed.
func (t *Tx) DeleteCountry(ctx context.Context, id int64) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM countries WHERE id = ?`, id)
	if err != nil {
		return false, classify("delete country", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountCountries returns the number of countries visible to the transaction
func (t *Tx) CountCountries(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM countries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count countries: %w", err)
	}
	return n, nil
}

// SetSeedInfo records the seed document version applied to the database
func (t *Tx) SetSeedInfo(ctx context.Context, info SeedInfo) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO seed_info (id, version, source, seeded_at) VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			source = excluded.source,
			seeded_at = excluded.seeded_at
	`, info.Version, info.Source)
	return classify("set seed info", err)
}

// SeedInfo returns the recorded seed version, or nil, nil when unseeded
func (t *Tx) SeedInfo(ctx context.Context) (*SeedInfo, error) {
	return scanSeedInfo(t.tx.QueryRowContext(ctx, `SELECT version, source FROM seed_info WHERE id = 1`))
}

// DeleteCountry removes a country and, by cascade, its names and numbers.
// Returns false when no such country existed.
func (s *Store) DeleteCountry(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.Transaction(ctx, func(tx *Tx) error {
		var err error
		deleted, err = tx.DeleteCountry(ctx, id)
		return err
	})
	return deleted, err
}

// GetSeedInfo returns the recorded seed version, or nil, nil when the
// database has never been seeded.
func (s *Store) GetSeedInfo(ctx context.Context) (*SeedInfo, error) {
	return scanSeedInfo(s.db.QueryRowContext(ctx, `SELECT version, source FROM seed_info WHERE id = 1`))
}

func scanSeedInfo(row *sql.Row) (*SeedInfo, error) {
	info := &SeedInfo{}
	var source sql.NullString
	err := row.Scan(&info.Version, &source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seed info: %w", err)
	}
	info.Source = source.String
	return info, nil
}
