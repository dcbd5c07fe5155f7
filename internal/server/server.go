// Package server exposes the repository and settings over HTTP.
// Reads are JSON snapshots; the /events routes stream live updates as
// Server-Sent Events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/franz/travel-sos/internal/repository"
	"github.com/franz/travel-sos/internal/settings"
	"github.com/franz/travel-sos/internal/store"
	"github.com/franz/travel-sos/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Settings is the preference capability the server needs.
// *settings.Store implements it.
type Settings interface {
	Load(ctx context.Context) settings.Preferences
	Watch(ctx context.Context) <-chan settings.Preferences
	Update(ctx context.Context, p settings.Patch) error
}

// Config wires a Server
type Config struct {
	Countries repository.CountryRepository
	Settings  Settings
	// Language returns the effective language for requests without ?lang=
	Language func() string
	Logger   *zap.Logger
}

// Server is the HTTP adapter
type Server struct {
	countries repository.CountryRepository
	settings  Settings
	language  func() string
	logger    *zap.Logger
	router    chi.Router
}

// New builds the router
func New(cfg Config) *Server {
	s := &Server{
		countries: cfg.Countries,
		settings:  cfg.Settings,
		language:  cfg.Language,
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("server")
	if s.language == nil {
		s.language = func() string { return store.FallbackLanguage }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/countries", func(r chi.Router) {
		r.Get("/", s.handleListCountries)
		r.Get("/search", s.handleSearchCountries)
		r.Get("/iso/{iso}", s.handleCountryByISO)
		r.Get("/{id}", s.handleCountryDetails)
		r.Get("/{id}/events", s.handleCountryEvents)
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Patch("/", s.handlePatchSettings)
		r.Get("/events", s.handleSettingsEvents)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) lang(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" {
		return l
	}
	return s.language()
}

// first takes the current snapshot of a live read
func first[T any](ctx context.Context, subscribe func(context.Context) <-chan T) (T, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, ok := <-subscribe(ctx)
	return v, ok
}

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	lang := s.lang(r)
	items, ok := first(r.Context(), func(ctx context.Context) <-chan []store.CountryListItem {
		return s.countries.AllCountries(ctx, lang)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSearchCountries(w http.ResponseWriter, r *http.Request) {
	lang, q := s.lang(r), r.URL.Query().Get("q")
	items, ok := first(r.Context(), func(ctx context.Context) <-chan []store.CountryListItem {
		return s.countries.SearchCountries(ctx, q, lang)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid country id"})
		return 0, false
	}
	return id, true
}

func (s *Server) writeDetails(w http.ResponseWriter, r *http.Request, id int64) {
	details, ok := first(r.Context(), func(ctx context.Context) <-chan *store.CountryDetails {
		return s.countries.CountryDetails(ctx, id)
	})
	if !ok {
		return
	}
	if details == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "country not found"})
		return
	}
	writeJSON(w, http.StatusOK, newCountryView(details, s.lang(r)))
}

func (s *Server) handleCountryDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.writeDetails(w, r, id)
}

func (s *Server) handleCountryByISO(w http.ResponseWriter, r *http.Request) {
	c, err := s.countries.CountryByISO(r.Context(), chi.URLParam(r, "iso"))
	if err != nil {
		s.logger.Error("country lookup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "country not found"})
		return
	}
	s.writeDetails(w, r, c.ID)
}

func (s *Server) handleCountryEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	lang := s.lang(r)
	updates := s.countries.CountryDetails(r.Context(), id)
	streamEvents(w, r, s.logger, updates, func(d *store.CountryDetails) (string, any) {
		if d == nil {
			return "absent", map[string]int64{"id": id}
		}
		return "details", newCountryView(d, lang)
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Load(r.Context()))
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.settings.Update(r.Context(), patch); err != nil {
		if errors.Is(err, util.ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("settings update failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "settings update failed"})
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Load(r.Context()))
}

func (s *Server) handleSettingsEvents(w http.ResponseWriter, r *http.Request) {
	updates := s.settings.Watch(r.Context())
	streamEvents(w, r, s.logger, updates, func(p settings.Preferences) (string, any) {
		return "settings", p
	})
}
