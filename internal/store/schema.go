package store

// Schema v1 - reference data for countries, service types and numbers
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS countries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  iso_code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS country_names (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  country_id INTEGER NOT NULL REFERENCES countries(id) ON DELETE CASCADE,
  language_code TEXT NOT NULL,
  name TEXT NOT NULL,
  UNIQUE (country_id, language_code)
);

CREATE INDEX IF NOT EXISTS idx_country_names_lang ON country_names(language_code, name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS emergency_service_types (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  service_code TEXT NOT NULL UNIQUE,
  icon TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_type_names (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  service_type_id INTEGER NOT NULL REFERENCES emergency_service_types(id) ON DELETE CASCADE,
  language_code TEXT NOT NULL,
  name TEXT NOT NULL,
  UNIQUE (service_type_id, language_code)
);

CREATE TABLE IF NOT EXISTS emergency_numbers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  country_id INTEGER NOT NULL REFERENCES countries(id) ON DELETE CASCADE,
  service_type_id INTEGER NOT NULL REFERENCES emergency_service_types(id) ON DELETE CASCADE,
  number TEXT NOT NULL,
  description TEXT,
  UNIQUE (country_id, service_type_id, number)
);

CREATE INDEX IF NOT EXISTS idx_emergency_numbers_country ON emergency_numbers(country_id);
CREATE INDEX IF NOT EXISTS idx_emergency_numbers_service ON emergency_numbers(service_type_id);

-- Full-text projection of country_names.name
CREATE VIRTUAL TABLE IF NOT EXISTS country_names_fts USING fts5(
  name, content='country_names', content_rowid='id',
  tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS country_names_ai AFTER INSERT ON country_names BEGIN
  INSERT INTO country_names_fts(rowid, name) VALUES (new.id, new.name);
END;
CREATE TRIGGER IF NOT EXISTS country_names_ad AFTER DELETE ON country_names BEGIN
  INSERT INTO country_names_fts(country_names_fts, rowid, name) VALUES ('delete', old.id, old.name);
END;
CREATE TRIGGER IF NOT EXISTS country_names_au AFTER UPDATE ON country_names BEGIN
  INSERT INTO country_names_fts(country_names_fts, rowid, name) VALUES ('delete', old.id, old.name);
  INSERT INTO country_names_fts(rowid, name) VALUES (new.id, new.name);
END;
`

// Schema v2 - seed bookkeeping
const schemaV2 = `
CREATE TABLE IF NOT EXISTS seed_info (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  version INTEGER NOT NULL,
  source TEXT,
  seeded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
