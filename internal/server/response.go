package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/franz/travel-sos/internal/store"
	"go.uber.org/zap"
)

// countryView is CountryDetails with names resolved for one language
type countryView struct {
	*store.CountryDetails
	Language    string       `json:"language"`
	DisplayName string       `json:"display_name"`
	Numbers     []numberView `json:"numbers"`
}

type numberView struct {
	Number      string `json:"number"`
	ServiceCode string `json:"service_code"`
	Icon        string `json:"icon"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func newCountryView(d *store.CountryDetails, lang string) countryView {
	v := countryView{
		CountryDetails: d,
		Language:       lang,
		DisplayName:    d.Country.DisplayName(lang),
		Numbers:        make([]numberView, 0, len(d.Services)),
	}
	for _, svc := range d.Services {
		v.Numbers = append(v.Numbers, numberView{
			Number:      svc.Number.Number,
			ServiceCode: svc.ServiceType.ServiceCode,
			Icon:        svc.ServiceType.Icon,
			Name:        svc.DisplayName(lang),
			Description: svc.Number.Description,
		})
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// streamEvents writes every value from updates as an SSE event until the
// client goes away or updates closes.
func streamEvents[T any](w http.ResponseWriter, r *http.Request, logger *zap.Logger, updates <-chan T, render func(T) (string, any)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			name, payload := render(v)
			data, err := json.Marshal(payload)
			if err != nil {
				logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
