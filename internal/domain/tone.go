package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToneResponse mirrors the tone service payload for one document.
type ToneResponse struct {
	DocumentTone DocumentTone `json:"document_tone"`
}

type DocumentTone struct {
	ToneCategories []ToneCategory `json:"tone_categories,omitempty"`
	// Tones is the flat shape returned by newer service versions.
	Tones []ToneScore `json:"tones,omitempty"`
}

type ToneCategory struct {
	CategoryID   string      `json:"category_id"`
	CategoryName string      `json:"category_name"`
	Tones        []ToneScore `json:"tones"`
}

type ToneScore struct {
	ToneID   string  `json:"tone_id"`
	ToneName string  `json:"tone_name,omitempty"`
	Score    float64 `json:"score"`
}

// Scores flattens categories (then any flat tones) into one slice, in payload order.
func (r ToneResponse) Scores() []ToneScore {
	n := len(r.DocumentTone.Tones)
	for _, c := range r.DocumentTone.ToneCategories {
		n += len(c.Tones)
	}
	out := make([]ToneScore, 0, n)
	for _, c := range r.DocumentTone.ToneCategories {
		out = append(out, c.Tones...)
	}
	return append(out, r.DocumentTone.Tones...)
}

// ToneMap maps tone id to its mean non-zero score. Keys keep the order in
// which they were first set.
type ToneMap struct {
	ids    []string
	scores map[string]float64
	counts map[string]int
}

// Set records the mean score for id, computed over n observations.
func (m *ToneMap) Set(id string, score float64, n int) {
	if m.scores == nil {
		m.scores = make(map[string]float64)
		m.counts = make(map[string]int)
	}
	if _, ok := m.scores[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.scores[id] = score
	m.counts[id] = n
}

func (m ToneMap) Len() int { return len(m.ids) }

func (m ToneMap) IDs() []string { return append([]string(nil), m.ids...) }

func (m ToneMap) Score(id string) (float64, bool) {
	s, ok := m.scores[id]
	return s, ok
}

// Observations is the number of non-zero scores behind id's mean.
func (m ToneMap) Observations(id string) int { return m.counts[id] }

func (m ToneMap) AsMap() map[string]float64 {
	out := make(map[string]float64, len(m.ids))
	for _, id := range m.ids {
		out[id] = m.scores[id]
	}
	return out
}

func (m ToneMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.scores[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps key order. Observation counts are not part of the
// encoding and come back as zero.
func (m *ToneMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tone map: expected object, got %v", tok)
	}
	*m = ToneMap{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := kt.(string)
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("tone map %q: %w", id, err)
		}
		m.Set(id, score, 0)
	}
	_, err = dec.Token()
	return err
}
