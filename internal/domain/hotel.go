package domain

import "strconv"

// HotelDocument is the unit written to the search index.
type HotelDocument struct {
	Metadata map[string]any   `json:"metadata"`
	Reviews  []map[string]any `json:"reviews"`
	Tones    ToneMap          `json:"tones"`
}

// IndexSettings is what an index is created with.
type IndexSettings struct {
	Shards   int
	Replicas int
	Mappings map[string]any
}

func toString(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	}
	return ""
}
