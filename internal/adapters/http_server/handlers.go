// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_tones/internal/adapters/elastic"
	"hotel_tones/internal/adapters/watson"
	"hotel_tones/internal/app"
	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
	"hotel_tones/internal/shared"
)

type Handlers struct {
	Cfg      shared.Config
	Datasets *dataset.Store
	Cache    domain.Cache     // optional
	Ledger   domain.RunLedger // optional; enables the /v1 read routes
	Mapping  map[string]any

	NewAnalyzer func(apiKey string) (domain.ToneAnalyzer, error)
	NewIndexer  func(host string, port int) (domain.Indexer, error)
}

type failure struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type tonesResponse struct {
	Status string         `json:"status"`
	Hotel  string         `json:"hotel"`
	Tones  domain.ToneMap `json:"tones"`
}

type indexResponse struct {
	Status  string `json:"status"`
	RunID   string `json:"run_id"`
	Index   string `json:"index"`
	Type    string `json:"type"`
	Hotels  int    `json:"hotels"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("TONES/ElasticSearch API is Working!"))
	})
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.With(Timeout(h.Cfg.HTTPTimeout)).Post("/normalized_tones", h.normalizedTones)
	// a full run can take far longer than any request timeout
	s.mux.Post("/index_data", h.indexData)

	if h.Ledger != nil {
		s.mux.Get("/v1/runs/{id}", h.getRun)
		s.mux.Get("/v1/hotels/{name}/tones", h.storedTones)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeFail(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, failure{Status: "fail", Error: err.Error()})
}

// failStatus maps a pipeline error to an HTTP status.
func failStatus(err error) int {
	var reqErr *requestError
	var apiErr *watson.APIError
	var esErr *elastic.ResponseError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownHotel), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr), errors.As(err, &esErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func (h *Handlers) toneService(apiKey string) (*app.ToneService, error) {
	ta, err := h.NewAnalyzer(apiKey)
	if err != nil {
		return nil, &requestError{err}
	}
	return app.NewToneService(ta, h.Cache, h.Cfg.CacheTTL), nil
}

func (h *Handlers) normalizedTones(w http.ResponseWriter, r *http.Request) {
	var req ToneRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	req.withDefaults(h.Cfg)
	if err := validateRequest(req); err != nil {
		writeFail(w, failStatus(err), err)
		return
	}

	ds, err := h.Datasets.Get(req.DataPath)
	if err != nil {
		writeFail(w, http.StatusUnprocessableEntity, err)
		return
	}
	svc, err := h.toneService(req.APIKey)
	if err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	tones, err := svc.HotelTones(r.Context(), ds, req.HotelName)
	if err != nil {
		log.Warn().Err(err).Str("hotel", req.HotelName).Msg("normalized tones failed")
		writeFail(w, failStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tonesResponse{Status: "ok", Hotel: strings.ToLower(req.HotelName), Tones: tones})
}

func (h *Handlers) indexData(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	req.withDefaults(h.Cfg, h.Mapping)
	if err := validateRequest(req); err != nil {
		writeFail(w, failStatus(err), err)
		return
	}

	ds, err := h.Datasets.Get(req.DataPath)
	if err != nil {
		writeFail(w, http.StatusUnprocessableEntity, err)
		return
	}
	tones, err := h.toneService(req.APIKey)
	if err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	ix, err := h.NewIndexer(req.ESHost, int(req.ESPort))
	if err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	if p, ok := ix.(interface{ Ping(context.Context) error }); ok {
		pctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		if err := p.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("host", req.ESHost).Int("port", int(req.ESPort)).Msg("elasticsearch ping failed")
		} else {
			log.Info().Str("host", req.ESHost).Int("port", int(req.ESPort)).Msg("elasticsearch connected")
		}
		cancel()
	}

	svc := app.NewIndexingService(tones, ix, h.Ledger)
	run, err := svc.IndexDataset(r.Context(), ds, app.IndexOptions{
		Index:    req.IndexName,
		DocType:  req.TypeName,
		DataPath: req.DataPath,
		Settings: domain.IndexSettings{Shards: h.Cfg.Shards, Replicas: h.Cfg.Replicas, Mappings: req.ESMapping},
	})
	if err != nil {
		status := failStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeFail(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{
		Status:  run.Status,
		RunID:   run.ID,
		Index:   run.Index,
		Type:    run.DocType,
		Hotels:  run.Hotels,
		Indexed: run.Indexed,
		Failed:  run.Failed,
	})
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Ledger.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	writeWithETag(w, r, run)
}

func (h *Handlers) storedTones(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))
	tones, err := h.Ledger.HotelTones(r.Context(), name)
	if err != nil {
		writeFail(w, failStatus(err), err)
		return
	}
	writeWithETag(w, r, tonesResponse{Status: "ok", Hotel: name, Tones: tones})
}
