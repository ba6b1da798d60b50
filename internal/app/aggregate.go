package app

import "hotel_tones/internal/domain"

// AggregateTones averages every tone's non-zero scores across responses.
// A zero score means "not detected" and is never averaged in; tones seen
// only at zero are left out. Keys follow first non-zero observation.
func AggregateTones(responses []domain.ToneResponse) domain.ToneMap {
	type acc struct {
		sum float64
		n   int
	}
	var order []string
	seen := make(map[string]*acc)
	for _, r := range responses {
		for _, t := range r.Scores() {
			if t.Score == 0 {
				continue
			}
			a, ok := seen[t.ToneID]
			if !ok {
				a = &acc{}
				seen[t.ToneID] = a
				order = append(order, t.ToneID)
			}
			a.sum += t.Score
			a.n++
		}
	}

	var out domain.ToneMap
	for _, id := range order {
		a := seen[id]
		out.Set(id, a.sum/float64(a.n), a.n)
	}
	return out
}
