package domain

import "strings"

// ReviewRecord is one CSV row: hotel metadata plus review-specific columns.
type ReviewRecord struct {
	Fields map[string]any
	Tone   *ToneResponse // set after analysis; nil for skipped reviews
}

// Str returns the field as a string, or "" when absent or null.
func (r ReviewRecord) Str(field string) string {
	switch v := r.Fields[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return strings.TrimSpace(toString(v))
	}
}

// HotelGroup holds every record sharing one lower-cased hotel name.
type HotelGroup struct {
	Name    string
	Records []ReviewRecord
}

// WithTones returns a copy of the group whose records carry the given
// responses (index-aligned). The receiver is left untouched.
func (g HotelGroup) WithTones(tones []*ToneResponse) HotelGroup {
	out := HotelGroup{Name: g.Name, Records: make([]ReviewRecord, len(g.Records))}
	copy(out.Records, g.Records)
	for i := range out.Records {
		if i < len(tones) {
			out.Records[i].Tone = tones[i]
		}
	}
	return out
}
