package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SearchCountries matches query against the names in languageCode and
// returns one item per matching country ordered by that name, then id.
//
// The query is matched as a word sequence: every word must appear in order
// and the last word may be incomplete, so "united st" finds "United States".
// Case and diacritics are ignored. A blank query returns no results without
// touching the database.
func (s *Store) SearchCountries(ctx context.Context, query, languageCode string) ([]CountryListItem, error) {
	match, ok := matchExpression(query)
	if !ok {
		return []CountryListItem{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.iso_code, cn.name
		FROM country_names_fts f
		JOIN country_names cn ON cn.id = f.rowid
		JOIN countries c ON c.id = cn.country_id
		WHERE country_names_fts MATCH ? AND cn.language_code = ?
		ORDER BY c.id
	`, match, languageCode)
	if err != nil {
		return nil, fmt.Errorf("failed to search countries: %w", err)
	}
	defer rows.Close()

	return scanListItems(rows, languageCode)
}

// matchExpression builds an FTS5 phrase-prefix query from free text.
// Returns false when the text holds nothing searchable.
func matchExpression(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if !strings.ContainsFunc(query, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return "", false
	}
	phrase := strings.Join(strings.Fields(query), " ")
	return `"` + strings.ReplaceAll(phrase, `"`, `""`) + `"*`, true
}

// GetAllCountries returns every country that has a name in languageCode,
// ordered by that name, then id. Countries without such a name are omitted.
func (s *Store) GetAllCountries(ctx context.Context, languageCode string) ([]CountryListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.iso_code, cn.name
		FROM countries c
		JOIN country_names cn ON cn.country_id = c.id
		WHERE cn.language_code = ?
		ORDER BY c.id
	`, languageCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	defer rows.Close()

	return scanListItems(rows, languageCode)
}

// scanListItems reads rows that arrive in id order and sorts them by name
// with the collation of languageCode.
func scanListItems(rows *sql.Rows, languageCode string) ([]CountryListItem, error) {
	items := []CountryListItem{}
	for rows.Next() {
		var item CountryListItem
		if err := rows.Scan(&item.CountryID, &item.ISOCode, &item.LocalizedName); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByName(items, languageCode)
	return items, nil
}

// sortByName orders items by name ignoring case, so "Österreich" sorts with
// the O's and "États-Unis" with the E's. Equal names keep id order.
func sortByName(items []CountryListItem, languageCode string) {
	tag, err := language.Parse(languageCode)
	if err != nil {
		tag = language.Und
	}
	col := collate.New(tag, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return col.CompareString(items[i].LocalizedName, items[j].LocalizedName) < 0
	})
}

// GetCountry retrieves a country by id. Returns nil, nil when absent.
func (s *Store) GetCountry(ctx context.Context, id int64) (*Country, error) {
	c := &Country{}
	err := s.db.QueryRowContext(ctx, `SELECT id, iso_code FROM countries WHERE id = ?`, id).
		Scan(&c.ID, &c.ISOCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country: %w", err)
	}
	return c, nil
}

// GetCountryByISO retrieves a country by ISO code (case-insensitive).
// Returns nil, nil when absent.
func (s *Store) GetCountryByISO(ctx context.Context, isoCode string) (*Country, error) {
	c := &Country{}
	err := s.db.QueryRowContext(ctx, `SELECT id, iso_code FROM countries WHERE iso_code = ?`,
		strings.ToUpper(strings.TrimSpace(isoCode))).Scan(&c.ID, &c.ISOCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country by iso code: %w", err)
	}
	return c, nil
}

// GetCountryDetails assembles a country with all its names and every
// emergency number joined to its service type and that type's names.
// Returns nil, nil when no country has that id.
func (s *Store) GetCountryDetails(ctx context.Context, countryID int64) (*CountryDetails, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	details := &CountryDetails{}
	err = tx.QueryRowContext(ctx, `SELECT id, iso_code FROM countries WHERE id = ?`, countryID).
		Scan(&details.Country.ID, &details.Country.ISOCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get country: %w", err)
	}

	details.Country.Names, err = countryNames(ctx, tx, countryID)
	if err != nil {
		return nil, err
	}

	details.Services, err = countryServices(ctx, tx, countryID)
	if err != nil {
		return nil, err
	}

	return details, nil
}

func countryNames(ctx context.Context, tx *sql.Tx, countryID int64) ([]CountryName, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, country_id, language_code, name
		FROM country_names WHERE country_id = ?
		ORDER BY language_code
	`, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query country names: %w", err)
	}
	defer rows.Close()

	names := []CountryName{}
	for rows.Next() {
		var n CountryName
		if err := rows.Scan(&n.ID, &n.CountryID, &n.LanguageCode, &n.Name); err != nil {
			return nil, fmt.Errorf("failed to scan country name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func countryServices(ctx context.Context, tx *sql.Tx, countryID int64) ([]EmergencyServiceDetails, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT n.id, n.country_id, n.service_type_id, n.number, COALESCE(n.description, ''),
		       t.id, t.service_code, t.icon
		FROM emergency_numbers n
		JOIN emergency_service_types t ON t.id = n.service_type_id
		WHERE n.country_id = ?
		ORDER BY t.id, n.id
	`, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emergency numbers: %w", err)
	}

	services := []EmergencyServiceDetails{}
	for rows.Next() {
		var d EmergencyServiceDetails
		if err := rows.Scan(
			&d.Number.ID, &d.Number.CountryID, &d.Number.ServiceTypeID, &d.Number.Number, &d.Number.Description,
			&d.ServiceType.ID, &d.ServiceType.ServiceCode, &d.ServiceType.Icon,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan emergency number: %w", err)
		}
		services = append(services, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	names, err := serviceTypeNamesFor(ctx, tx, countryID)
	if err != nil {
		return nil, err
	}
	for i := range services {
		services[i].ServiceNames = names[services[i].ServiceType.ID]
		if services[i].ServiceNames == nil {
			services[i].ServiceNames = []ServiceTypeName{}
		}
	}

	return services, nil
}

// serviceTypeNamesFor loads the names of every service type used by a country
func serviceTypeNamesFor(ctx context.Context, tx *sql.Tx, countryID int64) (map[int64][]ServiceTypeName, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, service_type_id, language_code, name
		FROM service_type_names
		WHERE service_type_id IN (
			SELECT service_type_id FROM emergency_numbers WHERE country_id = ?
		)
		ORDER BY service_type_id, language_code
	`, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query service type names: %w", err)
	}
	defer rows.Close()

	byType := make(map[int64][]ServiceTypeName)
	for rows.Next() {
		var n ServiceTypeName
		if err := rows.Scan(&n.ID, &n.ServiceTypeID, &n.LanguageCode, &n.Name); err != nil {
			return nil, fmt.Errorf("failed to scan service type name: %w", err)
		}
		byType[n.ServiceTypeID] = append(byType[n.ServiceTypeID], n)
	}
	return byType, rows.Err()
}

// GetServiceTypes returns every service type ordered by code
func (s *Store) GetServiceTypes(ctx context.Context) ([]ServiceType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service_code, icon FROM emergency_service_types ORDER BY service_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query service types: %w", err)
	}
	defer rows.Close()

	types := []ServiceType{}
	for rows.Next() {
		var t ServiceType
		if err := rows.Scan(&t.ID, &t.ServiceCode, &t.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan service type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Counts returns the number of rows in each reference table
func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM countries),
			(SELECT COUNT(*) FROM country_names),
			(SELECT COUNT(*) FROM emergency_service_types),
			(SELECT COUNT(*) FROM service_type_names),
			(SELECT COUNT(*) FROM emergency_numbers)
	`).Scan(&c.Countries, &c.CountryNames, &c.ServiceTypes, &c.ServiceTypeNames, &c.EmergencyNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}
