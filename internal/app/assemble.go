package app

import (
	"fmt"
	"sort"
	"strings"

	"hotel_tones/internal/domain"
)

// HotelMetadataFields are the hotel-level columns lifted into a document's metadata.
var HotelMetadataFields = []string{
	"name", "address", "city", "country",
	"latitude", "longitude", "postalCode", "province",
}

const (
	ReviewFieldPrefix = "reviews."
	ReviewTextField   = ReviewFieldPrefix + "text"
	// ToneField holds a review's own document tone inside the assembled review.
	ToneField = "tone"
)

// AssembleHotel builds the indexed document for one hotel group.
//
// Metadata comes from the first record only; rows of one hotel are expected
// to agree and are not reconciled. Every other column must carry the review
// prefix, which is stripped from the stored field name.
func AssembleHotel(g domain.HotelGroup, tones domain.ToneMap, metadataFields []string) (domain.HotelDocument, error) {
	if len(g.Records) == 0 {
		return domain.HotelDocument{}, fmt.Errorf("%w: %q", domain.ErrEmptyGroup, g.Name)
	}

	first := g.Records[0]
	meta := make(map[string]any, len(metadataFields))
	isMeta := make(map[string]struct{}, len(metadataFields))
	for _, f := range metadataFields {
		v, ok := first.Fields[f]
		if !ok {
			return domain.HotelDocument{}, fmt.Errorf("hotel %q: %w: %s", g.Name, domain.ErrMissingColumn, f)
		}
		meta[f] = v
		isMeta[f] = struct{}{}
	}

	reviews := make([]map[string]any, 0, len(g.Records))
	for i, rec := range g.Records {
		rv, err := reshapeReview(rec, isMeta)
		if err != nil {
			return domain.HotelDocument{}, fmt.Errorf("hotel %q review %d: %w", g.Name, i, err)
		}
		reviews = append(reviews, rv)
	}

	return domain.HotelDocument{Metadata: meta, Reviews: reviews, Tones: tones}, nil
}

func reshapeReview(rec domain.ReviewRecord, isMeta map[string]struct{}) (map[string]any, error) {
	cols := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		if _, skip := isMeta[k]; !skip {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)

	out := make(map[string]any, len(cols)+1)
	for _, k := range cols {
		name, ok := strings.CutPrefix(k, ReviewFieldPrefix)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingPrefix, k)
		}
		out[name] = rec.Fields[k]
	}
	if rec.Tone != nil {
		out[ToneField] = rec.Tone.DocumentTone
	}
	return out, nil
}
