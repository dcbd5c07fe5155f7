package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franz/travel-sos/internal/report"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Loader applies seed documents to a store
type Loader struct {
	store        *store.Store
	logger       *zap.Logger
	events       *report.EventLogger
	showProgress bool
}

// Config holds loader configuration
type Config struct {
	Store        *store.Store
	Logger       *zap.Logger
	Events       *report.EventLogger
	ShowProgress bool
}

// New creates a Loader
func New(cfg *Config) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		store:        cfg.Store,
		logger:       logger.Named("seed"),
		events:       cfg.Events,
		showProgress: cfg.ShowProgress,
	}
}

// Options controls a single Load
type Options struct {
	// Source names the document in seed_info and the event log
	Source string
	// Force reapplies the document even if the database is current
	Force bool
}

// Result summarises a Load
type Result struct {
	RunID        string
	Skipped      bool
	Reason       string
	Version      int
	ServiceTypes int
	Countries    int
	Names        int
	Numbers      int
	Duration     time.Duration
}

// Load validates doc and writes it in one transaction.
//
// An empty database is seeded. A seeded database is left alone unless doc
// carries a newer version than the one recorded, or opts.Force is set; in
// those cases rows are upserted by ISO code and service code so ids stay
// stable and nothing is duplicated. Any failure rolls the whole run back.
func (l *Loader) Load(ctx context.Context, doc *Document, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString(), Version: doc.Version}

	if err := doc.Validate(); err != nil {
		l.events.LogError(report.EventError, result.RunID, err)
		return nil, err
	}

	err := l.store.Transaction(ctx, func(tx *store.Tx) error {
		skip, reason, err := l.shouldSkip(ctx, tx, doc, opts)
		if err != nil {
			return err
		}
		if skip {
			result.Skipped, result.Reason = true, reason
			return nil
		}

		l.events.LogSeedStart(result.RunID, opts.Source, doc.Version)
		if err := l.apply(ctx, tx, doc, result); err != nil {
			return err
		}
		return tx.SetSeedInfo(ctx, store.SeedInfo{Version: doc.Version, Source: opts.Source})
	})
	result.Duration = time.Since(start)

	if err != nil {
		kind := report.EventError
		if errors.Is(err, util.ErrConstraint) {
			kind = report.EventConstraint
		}
		l.events.LogError(kind, result.RunID, err)
		l.logger.Error("seed failed", zap.String("run_id", result.RunID), zap.Error(err))
		return nil, fmt.Errorf("seed failed: %w", err)
	}

	if result.Skipped {
		l.events.LogSeedSkip(result.RunID, result.Reason, doc.Version)
		l.logger.Info("seed skipped", zap.String("reason", result.Reason), zap.Int("version", doc.Version))
		return result, nil
	}

	l.events.LogSeedComplete(result.RunID, doc.Version, result.Countries, result.Numbers, result.Duration)
	l.logger.Info("seed applied",
		zap.String("run_id", result.RunID),
		zap.Int("version", doc.Version),
		zap.Int("countries", result.Countries),
		zap.Int("numbers", result.Numbers),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (l *Loader) shouldSkip(ctx context.Context, tx *store.Tx, doc *Document, opts Options) (bool, string, error) {
	if opts.Force {
		return false, "", nil
	}

	count, err := tx.CountCountries(ctx)
	if err != nil {
		return false, "", err
	}
	if count == 0 {
		return false, "", nil
	}

	info, err := tx.SeedInfo(ctx)
	if err != nil {
		return false, "", err
	}
	if info == nil {
		return true, "database already populated", nil
	}
	if doc.Version > info.Version {
		l.logger.Info("upgrading seed", zap.Int("from", info.Version), zap.Int("to", doc.Version))
		return false, "", nil
	}
	return true, fmt.Sprintf("already seeded at version %d", info.Version), nil
}

func (l *Loader) apply(ctx context.Context, tx *store.Tx, doc *Document, result *Result) error {
	typeIDs := make(map[string]int64, len(doc.ServiceTypes))
	for _, st := range doc.ServiceTypes {
		id, err := tx.UpsertServiceType(ctx, st.Code, st.Icon)
		if err != nil {
			return fmt.Errorf("service type %s: %w", st.Code, err)
		}
		for _, n := range st.Names {
			if err := tx.UpsertServiceTypeName(ctx, id, n.Lang, n.Name); err != nil {
				return fmt.Errorf("service type %s name %s: %w", st.Code, n.Lang, err)
			}
		}
		typeIDs[st.Code] = id
		result.ServiceTypes++
	}

	var bar *progressbar.ProgressBar
	if l.showProgress {
		bar = progressbar.NewOptions(len(doc.Countries),
			progressbar.OptionSetDescription("Seeding countries"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	for _, c := range doc.Countries {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := tx.UpsertCountry(ctx, c.ISOCode)
		if err != nil {
			return fmt.Errorf("country %s: %w", c.ISOCode, err)
		}
		for _, n := range c.Names {
			if err := tx.UpsertCountryName(ctx, id, n.Lang, n.Name); err != nil {
				return fmt.Errorf("country %s name %s: %w", c.ISOCode, n.Lang, err)
			}
		}
		for _, svc := range c.Services {
			number := &store.EmergencyNumber{
				CountryID:     id,
				ServiceTypeID: typeIDs[svc.Type],
				Number:        svc.Number,
				Description:   svc.Description,
			}
			if err := tx.UpsertEmergencyNumber(ctx, number); err != nil {
				return fmt.Errorf("country %s number %s: %w", c.ISOCode, svc.Number, err)
			}
		}

		result.Countries++
		result.Names += len(c.Names)
		result.Numbers += len(c.Services)
		l.events.LogSeedCountry(result.RunID, c.ISOCode, len(c.Names), len(c.Services))
		if bar != nil {
			bar.Add(1)
		}
	}

	return nil
}
