package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hotel_tones/internal/shared"
)

const maxBody = 1 << 20

// ToneRequest is the body of POST /normalized_tones.
type ToneRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	HotelName string `json:"hotel_name" validate:"required"`
	DataPath  string `json:"data_path" validate:"required"`
}

// IndexRequest is the body of POST /index_data.
type IndexRequest struct {
	ESHost    string         `json:"es_host" validate:"required"`
	ESPort    Port           `json:"es_port" validate:"gte=1,lte=65535"`
	APIKey    string         `json:"api_key" validate:"required"`
	DataPath  string         `json:"data_path" validate:"required"`
	IndexName string         `json:"index_name" validate:"required"`
	TypeName  string         `json:"type_name" validate:"required"`
	ESMapping map[string]any `json:"es_mapping"`
}

func (r *ToneRequest) withDefaults(c shared.Config) {
	if r.APIKey == "" {
		r.APIKey = c.ToneKey
	}
	if r.DataPath == "" {
		r.DataPath = c.DataPath
	}
}

func (r *IndexRequest) withDefaults(c shared.Config, mapping map[string]any) {
	if r.ESHost == "" {
		r.ESHost = c.ESHost
	}
	if r.ESPort == 0 {
		r.ESPort = Port(c.ESPort)
	}
	if r.APIKey == "" {
		r.APIKey = c.ToneKey
	}
	if r.DataPath == "" {
		r.DataPath = c.DataPath
	}
	if r.IndexName == "" {
		r.IndexName = c.IndexName
	}
	if r.TypeName == "" {
		r.TypeName = c.TypeName
	}
	if r.ESMapping == nil {
		r.ESMapping = mapping
	}
}

// Port accepts a JSON number or a numeric string.
type Port int

func (p *Port) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("es_port: %q is not a port number", s)
	}
	*p = Port(n)
	return nil
}

// requestError marks a body that could not be decoded or validated.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// decodeRequest fills dst from a JSON body. A form body whose only key is the
// JSON object is accepted too. An empty body leaves dst untouched.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return &requestError{fmt.Errorf("read body: %w", err)}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if isForm(r) && body[0] != '{' {
		if body, err = formPayload(body); err != nil {
			return &requestError{err}
		}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return &requestError{fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded"
}

func formPayload(body []byte) ([]byte, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	if len(vals) != 1 {
		return nil, errors.New("form body must carry a single JSON key")
	}
	for k, v := range vals {
		// a JSON object containing '=' is split by the form encoding
		if len(v) == 1 && v[0] != "" {
			k += "=" + v[0]
		}
		return []byte(k), nil
	}
	return nil, nil
}

func validateRequest(v any) error {
	if err := shared.Validate(v); err != nil {
		return &requestError{err}
	}
	return nil
}
