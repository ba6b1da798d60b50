package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_tones/internal/adapters/watson"
	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
	"hotel_tones/internal/shared"
)

const sampleCSV = `address,categories,city,country,latitude,longitude,name,postalCode,province,reviews.rating,reviews.text,reviews.title
1 Sea Rd,Hotels,Pismo,US,35.1,-120.6,Grand Hotel,93449,CA,5,Wonderful stay,Great
1 Sea Rd,Hotels,Pismo,US,35.1,-120.6,grand hotel,93449,CA,2,Rude staff,Bad
9 Hill Rd,Hotels,Mableton,US,33.8,-84.5,Hill Lodge,30126,GA,4,Quiet rooms,Fine
`

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Tone(ctx context.Context, text string) (domain.ToneResponse, error) {
	if s.err != nil {
		return domain.ToneResponse{}, s.err
	}
	scores := map[string][]domain.ToneScore{
		"Wonderful stay": {{ToneID: "joy", Score: 0.8}, {ToneID: "anger", Score: 0}},
		"Rude staff":     {{ToneID: "joy", Score: 0}, {ToneID: "anger", Score: 0.6}},
		"Quiet rooms":    {{ToneID: "tentative", Score: 0.4}},
	}[text]
	return domain.ToneResponse{DocumentTone: domain.DocumentTone{
		ToneCategories: []domain.ToneCategory{{CategoryID: "emotion_tone", Tones: scores}},
	}}, nil
}

type stubIndexer struct {
	host      string
	port      int
	ensureErr error
	settings  domain.IndexSettings
	docs      int
}

func (s *stubIndexer) EnsureIndex(ctx context.Context, name string, st domain.IndexSettings) error {
	s.settings = st
	return s.ensureErr
}
func (s *stubIndexer) Write(ctx context.Context, index, docType string, doc domain.HotelDocument) error {
	s.docs++
	return nil
}

type stubLedger struct{ run domain.IndexRun }

func (l *stubLedger) StartRun(ctx context.Context, run domain.IndexRun) error  { return nil }
func (l *stubLedger) FinishRun(ctx context.Context, run domain.IndexRun) error { l.run = run; return nil }
func (l *stubLedger) SaveTones(ctx context.Context, runID, hotel string, reviews int, tones domain.ToneMap) error {
	return nil
}
func (l *stubLedger) LogMiss(ctx context.Context, runID, hotel, stage, reason string) error {
	return nil
}
func (l *stubLedger) GetRun(ctx context.Context, id string) (domain.IndexRun, error) {
	if id != l.run.ID {
		return domain.IndexRun{}, domain.ErrNotFound
	}
	return l.run, nil
}
func (l *stubLedger) HotelTones(ctx context.Context, hotel string) (domain.ToneMap, error) {
	return domain.ToneMap{}, domain.ErrNotFound
}

type harness struct {
	srv      *Server
	indexer  *stubIndexer
	analyzer stubAnalyzer
	ledger   *stubLedger
	keys     []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	hs := &harness{srv: New(), indexer: &stubIndexer{}, ledger: &stubLedger{}}
	cfg := shared.Config{
		HTTPTimeout: 5 * time.Second, DataPath: path,
		ESHost: "localhost", ESPort: 9200, IndexName: "hotels", TypeName: "reviews", Shards: 1,
	}
	hs.srv.MountHandlers(&Handlers{
		Cfg:      cfg,
		Datasets: dataset.NewStore(),
		Ledger:   hs.ledger,
		Mapping:  map[string]any{"properties": map[string]any{}},
		NewAnalyzer: func(key string) (domain.ToneAnalyzer, error) {
			hs.keys = append(hs.keys, key)
			return &hs.analyzer, nil
		},
		NewIndexer: func(host string, port int) (domain.Indexer, error) {
			hs.indexer.host, hs.indexer.port = host, port
			return hs.indexer, nil
		},
	})
	return hs
}

func (hs *harness) post(path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	hs.srv.Mux().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	hs := newHarness(t)
	rec := httptest.NewRecorder()
	hs.srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TONES/ElasticSearch API is Working!", rec.Body.String())
}

func TestNormalizedTones_JSONBody(t *testing.T) {
	hs := newHarness(t)
	rec := hs.post("/normalized_tones", "application/json", `{"api_key":"k1","hotel_name":"GRAND HOTEL"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok","hotel":"grand hotel","tones":{"joy":0.8,"anger":0.6}}`, rec.Body.String())
	assert.Equal(t, []string{"k1"}, hs.keys)
	// tone ids keep first-seen order on the wire
	assert.Less(t, strings.Index(rec.Body.String(), "joy"), strings.Index(rec.Body.String(), "anger"))
}

func TestNormalizedTones_FormBodyWithJSONKey(t *testing.T) {
	hs := newHarness(t)
	form := url.Values{`{"api_key":"k2","hotel_name":"hill lodge"}`: {""}}.Encode()
	rec := hs.post("/normalized_tones", "application/x-www-form-urlencoded", form)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"tentative": 0.4}, decode(t, rec)["tones"])
}

func TestNormalizedTones_Failures(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		setup  func(hs *harness)
		status int
	}{
		{"missing api key", `{"hotel_name":"grand hotel"}`, nil, http.StatusBadRequest},
		{"malformed body", `{"hotel_name":`, nil, http.StatusBadRequest},
		{"unknown hotel", `{"api_key":"k","hotel_name":"nowhere"}`, nil, http.StatusNotFound},
		{"missing data file", `{"api_key":"k","hotel_name":"grand hotel","data_path":"/nope.csv"}`, nil, http.StatusUnprocessableEntity},
		{"tone service error", `{"api_key":"k","hotel_name":"grand hotel"}`, func(hs *harness) {
			hs.analyzer.err = &watson.APIError{Code: 401, Message: "Unauthorized"}
		}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hs := newHarness(t)
			if tc.setup != nil {
				tc.setup(hs)
			}
			rec := hs.post("/normalized_tones", "application/json", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "fail", decode(t, rec)["status"])
		})
	}
}

func TestIndexData_DefaultsAndStringPort(t *testing.T) {
	hs := newHarness(t)
	rec := hs.post("/index_data", "application/json", `{"api_key":"k","es_host":"es.local","es_port":"9300"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "hotels", out["index"])
	assert.Equal(t, "reviews", out["type"])
	assert.EqualValues(t, 2, out["indexed"])
	assert.NotEmpty(t, out["run_id"])

	assert.Equal(t, "es.local", hs.indexer.host)
	assert.Equal(t, 9300, hs.indexer.port)
	assert.Equal(t, 2, hs.indexer.docs)
	assert.Equal(t, map[string]any{"properties": map[string]any{}}, hs.indexer.settings.Mappings)
}

func TestIndexData_BadPortAndEnsureFailure(t *testing.T) {
	hs := newHarness(t)
	rec := hs.post("/index_data", "application/json", `{"api_key":"k","es_port":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.post("/index_data", "application/json", `{"api_key":"k","es_port":70000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hs.indexer.ensureErr = errors.New("dial tcp: connection refused")
	rec = hs.post("/index_data", "application/json", `{"api_key":"k"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "connection refused")
}

func TestGetRun_ETag(t *testing.T) {
	hs := newHarness(t)
	rec := hs.post("/index_data", "application/json", `{"api_key":"k"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	runID := decode(t, rec)["run_id"].(string)

	get := func(etag string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID, nil)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		rec := httptest.NewRecorder()
		hs.srv.Mux().ServeHTTP(rec, req)
		return rec
	}
	first := get("")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, runID, decode(t, first)["run_id"])
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := get(etag)
	assert.Equal(t, http.StatusNotModified, second.Code)

	rec = httptest.NewRecorder()
	hs.srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	hs := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/normalized_tones", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	hs.srv.Mux().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
