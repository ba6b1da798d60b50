package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "DATA_PATH", "ES_HOST", "ES_PORT", "ES_INDEX", "ES_TYPE", "TONE_RPS", "CACHE_TTL_SECONDS", "HTTP_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", c.AppEnv)
	assert.Equal(t, "hotel-reviews/7282_1.csv", c.DataPath)
	assert.Equal(t, "localhost", c.ESHost)
	assert.Equal(t, 9200, c.ESPort)
	assert.Equal(t, "hotels", c.IndexName)
	assert.Equal(t, "reviews", c.TypeName)
	assert.Equal(t, 5, c.ToneRPS)
	assert.Equal(t, 24*time.Hour, c.CacheTTL)
	assert.Equal(t, 15*time.Second, c.HTTPTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("ES_PORT", "9300")
	t.Setenv("ES_SHARDS", "3")
	t.Setenv("TONE_RPS", "not-a-number")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", c.AppEnv)
	assert.Equal(t, 9300, c.ESPort)
	assert.Equal(t, 3, c.Shards)
	assert.Equal(t, 5, c.ToneRPS, "unparsable value falls back to default")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"port out of range": {"ES_PORT", "70000"},
		"unknown env":       {"APP_ENV", "staging"},
		"bad base url":      {"TONE_BASE_URL", "not a url"},
		"zero timeout":      {"HTTP_TIMEOUT_SECONDS", "0"},
		"no shards":         {"ES_SHARDS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_UsesTagNames(t *testing.T) {
	type body struct {
		HotelName string `json:"hotel_name" validate:"required"`
	}
	err := Validate(body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hotel_name: failed required")

	err = Config{ESPort: 0}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ES_PORT")
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("reviews:\n  properties:\n    tones:\n      type: object\n"), 0o644))
	js := filepath.Join(dir, "mapping.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"reviews":{"properties":{"tones":{"type":"object"}}}}`), 0o644))

	want := map[string]any{"reviews": map[string]any{"properties": map[string]any{"tones": map[string]any{"type": "object"}}}}
	for _, p := range []string{yml, js} {
		got, err := LoadMapping(p)
		require.NoError(t, err, p)
		assert.Equal(t, want, got, p)
	}

	empty, err := LoadMapping("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadMapping(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseMapping([]byte("reviews: [unclosed"))
	assert.Error(t, err)
}
