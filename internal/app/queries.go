package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"hotel_tones/internal/adapters/observability"
	"hotel_tones/internal/domain"
)

// ToneService analyzes reviews through the tone service, with an optional
// response cache in front of it.
type ToneService struct {
	tones    domain.ToneAnalyzer
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewToneService(t domain.ToneAnalyzer, c domain.Cache, ttl time.Duration) *ToneService {
	return &ToneService{tones: t, cache: c, cacheTTL: ttl}
}

// Analyze returns the tone of one text, from cache when possible.
func (s *ToneService) Analyze(ctx context.Context, text string) (domain.ToneResponse, error) {
	key := s.cacheKey(text)
	var out domain.ToneResponse
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			observability.ObserveReview("cache")
			return out, nil
		}
	}
	out, err := s.tones.Tone(ctx, text)
	if err != nil {
		return domain.ToneResponse{}, err
	}
	observability.ObserveReview("service")
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// ReviewTones analyzes every review of g. Reviews without text are skipped
// and carry no tone. The first failed call aborts the whole hotel, so a
// partial set of responses is never aggregated.
func (s *ToneService) ReviewTones(ctx context.Context, g domain.HotelGroup) (domain.HotelGroup, []domain.ToneResponse, error) {
	perReview := make([]*domain.ToneResponse, len(g.Records))
	responses := make([]domain.ToneResponse, 0, len(g.Records))
	for i, rec := range g.Records {
		text := rec.Str(ReviewTextField)
		if strings.TrimSpace(text) == "" {
			observability.ObserveReview("skipped")
			continue
		}
		r, err := s.Analyze(ctx, text)
		if err != nil {
			return domain.HotelGroup{}, nil, fmt.Errorf("analyze review %d of %q: %w", i, g.Name, err)
		}
		perReview[i] = &r
		responses = append(responses, r)
	}
	return g.WithTones(perReview), responses, nil
}

// HotelTones computes the normalized tones of one hotel.
func (s *ToneService) HotelTones(ctx context.Context, src domain.ReviewSource, hotel string) (domain.ToneMap, error) {
	g, err := src.Group(hotel)
	if err != nil {
		return domain.ToneMap{}, err
	}
	_, responses, err := s.ReviewTones(ctx, g)
	if err != nil {
		return domain.ToneMap{}, err
	}
	return AggregateTones(responses), nil
}

func (s *ToneService) cacheKey(text string) string {
	sum := sha1.Sum([]byte(text))
	version := "default"
	if v, ok := s.tones.(interface{ Version() string }); ok {
		version = v.Version()
	}
	return fmt.Sprintf("tone:%s:%s", version, hex.EncodeToString(sum[:]))
}
