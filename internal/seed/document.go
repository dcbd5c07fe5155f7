// Package seed populates the reference database from a bundled document
// describing service types, countries, their localized names and numbers.
//
// A document is validated as a whole before anything is written and is
// applied in a single transaction, so a database is either fully seeded or
// left untouched.
package seed

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed data/emergency_numbers.yaml
var bundled embed.FS

const bundledPath = "data/emergency_numbers.yaml"

// Document is the seed file. JSON documents decode too, YAML being a superset.
type Document struct {
	Version      int                `yaml:"version" json:"version"`
	ServiceTypes []ServiceTypeEntry `yaml:"serviceTypes" json:"serviceTypes"`
	Countries    []CountryEntry     `yaml:"countries" json:"countries"`
}

// LocalizedName is a display name in one language
type LocalizedName struct {
	Lang string `yaml:"lang" json:"lang"`
	Name string `yaml:"name" json:"name"`
}

// ServiceTypeEntry describes one service type
type ServiceTypeEntry struct {
	Code  string          `yaml:"code" json:"code"`
	Icon  string          `yaml:"icon" json:"icon"`
	Names []LocalizedName `yaml:"names" json:"names"`
}

// CountryEntry describes one country and its numbers
type CountryEntry struct {
	ISOCode  string          `yaml:"isoCode" json:"isoCode"`
	Names    []LocalizedName `yaml:"names" json:"names"`
	Services []ServiceEntry  `yaml:"services" json:"services"`
}

// ServiceEntry is one number of a country. Description is optional.
type ServiceEntry struct {
	Type        string `yaml:"type" json:"type"`
	Number      string `yaml:"number" json:"number"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ValidationError lists every problem found in a document.
// It matches util.ErrMalformedSeed with errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "malformed seed document: " + e.Problems[0]
	}
	return fmt.Sprintf("malformed seed document (%d problems): %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == util.ErrMalformedSeed
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Problems: []string{"document is empty"}}
		}
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedSeed, err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	return &doc, nil
}

// ParseFile reads and decodes a document from disk
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Bundled returns the dataset compiled into the binary
func Bundled() (*Document, error) {
	data, err := bundled.ReadFile(bundledPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled seed: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Validate checks required fields, code formats and references, and folds
// exact duplicates. Duplicates of a natural key with different content are
// rejected.
//
// A missing or null names/services list is an error. An explicit empty list
// ([]) is accepted.
func (d *Document) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if d.Version < 0 {
		addf("version must not be negative")
	}
	if len(d.ServiceTypes) == 0 {
		addf("no service types")
	}
	if len(d.Countries) == 0 {
		addf("no countries")
	}

	types := make(map[string]ServiceTypeEntry)
	var uniqueTypes []ServiceTypeEntry
	for i, st := range d.ServiceTypes {
		where := fmt.Sprintf("serviceTypes[%d]", i)
		if st.Code == "" {
			addf("%s: code is required", where)
			continue
		}
		if !isServiceCode(st.Code) {
			addf("%s: code %q must be uppercase ASCII letters, digits or underscores", where, st.Code)
		}
		if strings.TrimSpace(st.Icon) == "" {
			addf("%s (%s): icon is required", where, st.Code)
		}
		if st.Names == nil {
			addf("%s (%s): names are required", where, st.Code)
		}
		validateNames(where+" ("+st.Code+")", st.Names, addf)

		if prev, ok := types[st.Code]; ok {
			if !reflect.DeepEqual(prev, st) {
				addf("%s: service type %s defined twice with different content", where, st.Code)
			}
			continue
		}
		types[st.Code] = st
		uniqueTypes = append(uniqueTypes, st)
	}

	countries := make(map[string]CountryEntry)
	var uniqueCountries []CountryEntry
	for i, c := range d.Countries {
		where := fmt.Sprintf("countries[%d]", i)
		if c.ISOCode == "" {
			addf("%s: isoCode is required", where)
			continue
		}
		where += " (" + c.ISOCode + ")"
		if !isRegionCode(c.ISOCode) {
			addf("%s: isoCode must be an ISO 3166-1 alpha-2 code", where)
		}
		if len(c.Names) == 0 {
			addf("%s: names are required", where)
		}
		validateNames(where, c.Names, addf)
		if !hasLang(c.Names, store.FallbackLanguage) {
			addf("%s: a %q name is required", where, store.FallbackLanguage)
		}

		if c.Services == nil {
			addf("%s: services are required", where)
		}
		for j, svc := range c.Services {
			swhere := fmt.Sprintf("%s.services[%d]", where, j)
			if svc.Type == "" {
				addf("%s: type is required", swhere)
			} else if _, ok := types[svc.Type]; !ok {
				addf("%s: unknown service type %q", swhere, svc.Type)
			}
			if !isPhoneNumber(svc.Number) {
				addf("%s: number %q is not a dialable number", swhere, svc.Number)
			}
		}

		if prev, ok := countries[c.ISOCode]; ok {
			if !reflect.DeepEqual(prev, c) {
				addf("%s: country defined twice with different content", where)
			}
			continue
		}
		countries[c.ISOCode] = c
		uniqueCountries = append(uniqueCountries, c)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	d.ServiceTypes = uniqueTypes
	d.Countries = uniqueCountries
	return nil
}

func validateNames(where string, names []LocalizedName, addf func(string, ...any)) {
	seen := make(map[string]string)
	for _, n := range names {
		if !isLanguageCode(n.Lang) {
			addf("%s: language %q must be a lowercase ISO 639-1 code", where, n.Lang)
		}
		if strings.TrimSpace(n.Name) == "" {
			addf("%s: name for %q is empty", where, n.Lang)
		}
		if prev, ok := seen[n.Lang]; ok && prev != n.Name {
			addf("%s: conflicting names for %q", where, n.Lang)
		}
		seen[n.Lang] = n.Name
	}
}

func hasLang(names []LocalizedName, lang string) bool {
	for _, n := range names {
		if n.Lang == lang {
			return true
		}
	}
	return false
}

func isLanguageCode(s string) bool {
	if len(s) != 2 || strings.ToLower(s) != s {
		return false
	}
	base, err := language.ParseBase(s)
	return err == nil && base.String() == s
}

func isRegionCode(s string) bool {
	if len(s) != 2 || strings.ToUpper(s) != s {
		return false
	}
	region, err := language.ParseRegion(s)
	return err == nil && region.IsCountry() && region.String() == s
}

func isServiceCode(s string) bool {
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return s != ""
}

func isPhoneNumber(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '*' || r == '#' || r == ' ' || r == '-':
		default:
			return false
		}
	}
	return digits > 0
}
