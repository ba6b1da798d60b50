package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_tones/internal/app"
	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
)

// ---- fakes ----

type fakeAnalyzer struct {
	byText map[string]domain.ToneResponse
	fail   map[string]error
	calls  int
}

func (f *fakeAnalyzer) Tone(ctx context.Context, text string) (domain.ToneResponse, error) {
	f.calls++
	if err, ok := f.fail[text]; ok {
		return domain.ToneResponse{}, err
	}
	return f.byText[text], nil
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.ToneResponse:
		*d = v.(domain.ToneResponse)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error { delete(c.store, key); return nil }

const reviewsCSV = `address,categories,city,country,latitude,longitude,name,postalCode,province,reviews.rating,reviews.text,reviews.title
1 Sea Rd,Hotels,Pismo,US,35.1,-120.6,Grand Hotel,93449,CA,5,Wonderful stay,Great
1 Sea Rd,Hotels,Pismo,US,35.1,-120.6,grand hotel,93449,CA,2,Rude staff,Bad
1 Sea Rd,Hotels,Pismo,US,35.1,-120.6,GRAND HOTEL,93449,CA,3,,Meh
9 Hill Rd,Hotels,Mableton,US,33.8,-84.5,Hill Lodge,30126,GA,4,Quiet rooms,Fine
`

func analyzerFor() *fakeAnalyzer {
	return &fakeAnalyzer{byText: map[string]domain.ToneResponse{
		"Wonderful stay": resp(tone("joy", 0.8), tone("anger", 0)),
		"Rude staff":     resp(tone("joy", 0.0), tone("anger", 0.6)),
		"Quiet rooms":    resp(tone("tentative", 0.4)),
	}}
}

// ---- tests ----

func TestAnalyze_CacheMissThenHit(t *testing.T) {
	ta := analyzerFor()
	cache := &fakeCache{}
	s := app.NewToneService(ta, cache, time.Hour)

	first, err := s.Analyze(context.Background(), "Wonderful stay")
	require.NoError(t, err)
	second, err := s.Analyze(context.Background(), "Wonderful stay")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, ta.calls, "second call must be served from cache")
	require.Len(t, cache.store, 1)
	for k := range cache.store {
		assert.True(t, strings.HasPrefix(k, "tone:default:"), k)
	}
}

func TestAnalyze_NoCache(t *testing.T) {
	ta := analyzerFor()
	s := app.NewToneService(ta, nil, 0)
	_, _ = s.Analyze(context.Background(), "Quiet rooms")
	_, _ = s.Analyze(context.Background(), "Quiet rooms")
	assert.Equal(t, 2, ta.calls)
}

func TestHotelTones_GroupsCaseInsensitively(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(reviewsCSV))
	require.NoError(t, err)
	s := app.NewToneService(analyzerFor(), nil, 0)

	got, err := s.HotelTones(context.Background(), ds, "Grand Hotel")
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"joy": 0.8, "anger": 0.6}, got.AsMap())
	assert.Equal(t, []string{"joy", "anger"}, got.IDs())
}

func TestHotelTones_UnknownHotel(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(reviewsCSV))
	require.NoError(t, err)
	s := app.NewToneService(analyzerFor(), nil, 0)

	_, err = s.HotelTones(context.Background(), ds, "nowhere")
	assert.ErrorIs(t, err, domain.ErrUnknownHotel)
}

func TestReviewTones_SkipsEmptyTextAndAnnotatesCopy(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(reviewsCSV))
	require.NoError(t, err)
	g, err := ds.Group("grand hotel")
	require.NoError(t, err)
	ta := analyzerFor()
	s := app.NewToneService(ta, nil, 0)

	annotated, responses, err := s.ReviewTones(context.Background(), g)
	require.NoError(t, err)

	assert.Len(t, responses, 2)
	assert.Equal(t, 2, ta.calls)
	assert.NotNil(t, annotated.Records[0].Tone)
	assert.NotNil(t, annotated.Records[1].Tone)
	assert.Nil(t, annotated.Records[2].Tone)
	assert.Nil(t, g.Records[0].Tone)
}

func TestReviewTones_FailureAbortsHotel(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(reviewsCSV))
	require.NoError(t, err)
	g, _ := ds.Group("grand hotel")
	boom := errors.New("tone service status 500")
	ta := analyzerFor()
	ta.fail = map[string]error{"Rude staff": boom}
	s := app.NewToneService(ta, nil, 0)

	_, responses, err := s.ReviewTones(context.Background(), g)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, responses)
}
