// Package elastic writes hotel documents to an Elasticsearch cluster.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/rs/zerolog/log"

	"hotel_tones/internal/adapters/observability"
	"hotel_tones/internal/domain"
)

type Indexer struct{ es *elasticsearch.Client }

// Address builds a node URL from host and port; a host that already carries
// a scheme keeps it.
func Address(host string, port int) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/") + ":" + strconv.Itoa(port)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func New(addresses ...string) (*Indexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  addresses,
		MaxRetries: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Indexer{es: es}, nil
}

// ResponseError is an error answer from the cluster.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch status %d", e.Status)
	}
	return fmt.Sprintf("elasticsearch status %d: %s: %s", e.Status, e.Type, e.Reason)
}

func (i *Indexer) Ping(ctx context.Context) error {
	start := time.Now()
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		observability.ObserveExternal("elasticsearch", "ping", 0, time.Since(start))
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()
	observability.ObserveExternal("elasticsearch", "ping", res.StatusCode, time.Since(start))
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func (i *Indexer) EnsureIndex(ctx context.Context, name string, s domain.IndexSettings) error {
	start := time.Now()
	res, err := i.es.Indices.Exists([]string{name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		observability.ObserveExternal("elasticsearch", "indices.exists", 0, time.Since(start))
		return fmt.Errorf("check index %s: %w", name, err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
	observability.ObserveExternal("elasticsearch", "indices.exists", res.StatusCode, time.Since(start))

	switch res.StatusCode {
	case 200:
		return nil
	case 404:
	default:
		return &ResponseError{Status: res.StatusCode}
	}

	mappings := s.Mappings
	if mappings == nil {
		mappings = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"settings": map[string]any{
			"number_of_shards":   s.Shards,
			"number_of_replicas": s.Replicas,
		},
		"mappings": mappings,
	})
	if err != nil {
		return fmt.Errorf("encode index settings: %w", err)
	}

	start = time.Now()
	res, err = i.es.Indices.Create(name,
		i.es.Indices.Create.WithBody(bytes.NewReader(body)),
		i.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		observability.ObserveExternal("elasticsearch", "indices.create", 0, time.Since(start))
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()
	observability.ObserveExternal("elasticsearch", "indices.create", res.StatusCode, time.Since(start))

	if res.IsError() {
		e := responseError(res)
		if e.Type == "resource_already_exists_exception" {
			return nil
		}
		return e
	}
	log.Info().Str("index", name).Int("shards", s.Shards).Int("replicas", s.Replicas).Msg("index created")
	return nil
}

func (i *Indexer) Write(ctx context.Context, index, docType string, doc domain.HotelDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	opts := []func(*esapi.IndexRequest){i.es.Index.WithContext(ctx)}
	if docType != "" {
		opts = append(opts, i.es.Index.WithDocumentType(docType))
	}

	start := time.Now()
	res, err := i.es.Index(index, bytes.NewReader(b), opts...)
	if err != nil {
		observability.ObserveExternal("elasticsearch", "index", 0, time.Since(start))
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	observability.ObserveExternal("elasticsearch", "index", res.StatusCode, time.Since(start))
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func responseError(res *esapi.Response) *ResponseError {
	e := &ResponseError{Status: res.StatusCode}
	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
	if json.Unmarshal(b, &payload) == nil {
		e.Type, e.Reason = payload.Error.Type, payload.Error.Reason
	}
	return e
}
