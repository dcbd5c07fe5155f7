// Package repository exposes the country queries as live subscriptions.
//
// Every read returns a channel that delivers the current result and then a
// fresh result after each committed write, until the caller's context is
// cancelled. Read failures are logged and delivered as empty results so a
// subscription never ends on its own.
package repository

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/franz/travel-sos/internal/live"
	"github.com/franz/travel-sos/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultSearchDebounce  = 300 * time.Millisecond
	DefaultSearchMinLength = 2
)

// Queries is the storage capability the repository is built on.
// *store.Store implements it.
type Queries interface {
	live.Source
	SearchCountries(ctx context.Context, query, languageCode string) ([]store.CountryListItem, error)
	GetAllCountries(ctx context.Context, languageCode string) ([]store.CountryListItem, error)
	GetCountryDetails(ctx context.Context, countryID int64) (*store.CountryDetails, error)
	GetCountryByISO(ctx context.Context, isoCode string) (*store.Country, error)
}

// CountryRepository is the read surface consumed by the CLI and the server
type CountryRepository interface {
	SearchCountries(ctx context.Context, query, languageCode string) <-chan []store.CountryListItem
	AllCountries(ctx context.Context, languageCode string) <-chan []store.CountryListItem
	CountryDetails(ctx context.Context, countryID int64) <-chan *store.CountryDetails
	CountryByISO(ctx context.Context, isoCode string) (*store.Country, error)
	SearchAsYouType(ctx context.Context, input <-chan string, languageCode string) <-chan []store.CountryListItem
}

// Options tunes the search pipeline. Zero values take the defaults.
type Options struct {
	Logger          *zap.Logger
	SearchDebounce  time.Duration
	SearchMinLength int
}

// Countries is the CountryRepository backed by Queries
type Countries struct {
	q         Queries
	logger    *zap.Logger
	debounce  time.Duration
	minLength int
}

var _ CountryRepository = (*Countries)(nil)

// NewCountries creates the repository
func NewCountries(q Queries, opts Options) *Countries {
	c := &Countries{
		q:         q,
		logger:    opts.Logger,
		debounce:  opts.SearchDebounce,
		minLength: opts.SearchMinLength,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("repository")
	if c.debounce <= 0 {
		c.debounce = DefaultSearchDebounce
	}
	if c.minLength <= 0 {
		c.minLength = DefaultSearchMinLength
	}
	return c
}

// SearchCountries is a live search. A query shorter than the minimum length
// yields a single empty result and never reaches storage.
func (c *Countries) SearchCountries(ctx context.Context, query, languageCode string) <-chan []store.CountryListItem {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < c.minLength {
		return live.Just(ctx, []store.CountryListItem{})
	}
	return live.Stream(ctx, c.q,
		func(ctx context.Context) ([]store.CountryListItem, error) {
			return c.q.SearchCountries(ctx, query, languageCode)
		},
		c.emptyList("search countries", zap.String("query", query), zap.String("lang", languageCode)),
	)
}

// AllCountries is the live list of countries named in languageCode
func (c *Countries) AllCountries(ctx context.Context, languageCode string) <-chan []store.CountryListItem {
	return live.Stream(ctx, c.q,
		func(ctx context.Context) ([]store.CountryListItem, error) {
			return c.q.GetAllCountries(ctx, languageCode)
		},
		c.emptyList("list countries", zap.String("lang", languageCode)),
	)
}

// CountryDetails is the live detail view of one country. A nil value means
// the country does not exist (or could not be read).
func (c *Countries) CountryDetails(ctx context.Context, countryID int64) <-chan *store.CountryDetails {
	return live.Stream(ctx, c.q,
		func(ctx context.Context) (*store.CountryDetails, error) {
			return c.q.GetCountryDetails(ctx, countryID)
		},
		func(err error) *store.CountryDetails {
			c.logger.Warn("country details unavailable", zap.Int64("country_id", countryID), zap.Error(err))
			return nil
		},
	)
}

// CountryByISO is a one-shot lookup. Returns nil, nil when absent.
func (c *Countries) CountryByISO(ctx context.Context, isoCode string) (*store.Country, error) {
	return c.q.GetCountryByISO(ctx, isoCode)
}

// SearchAsYouType turns raw keystroke input into search results. Input is
// debounced, unchanged queries are dropped, and a new query cancels the
// subscription of the previous one so only results for the latest input are
// delivered. Results for the latest query stay live until ctx is done or,
// once input is closed, until the latest query has delivered its result.
func (c *Countries) SearchAsYouType(ctx context.Context, input <-chan string, languageCode string) <-chan []store.CountryListItem {
	settled := live.Debounce(ctx, input, c.debounce)
	queries := live.Distinct(ctx, live.Map(ctx, settled, strings.TrimSpace))
	return live.SwitchLatest(ctx, queries, func(ctx context.Context, query string) <-chan []store.CountryListItem {
		return c.SearchCountries(ctx, query, languageCode)
	})
}

func (c *Countries) emptyList(op string, fields ...zap.Field) func(error) []store.CountryListItem {
	return func(err error) []store.CountryListItem {
		c.logger.Warn(op+" failed", append(fields, zap.Error(err))...)
		return []store.CountryListItem{}
	}
}
