package domain

import (
	"context"
	"time"
)

// ReviewSource is the grouped review table a pipeline run reads from.
type ReviewSource interface {
	Hotels() []string
	Group(name string) (HotelGroup, error)
}

type ToneAnalyzer interface {
	Tone(ctx context.Context, text string) (ToneResponse, error)
}

type Indexer interface {
	// EnsureIndex succeeds when the index exists afterwards, whether or not it had to be created.
	EnsureIndex(ctx context.Context, name string, settings IndexSettings) error
	Write(ctx context.Context, index, docType string, doc HotelDocument) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// RunLedger keeps a durable trail of indexing runs.
type RunLedger interface {
	StartRun(ctx context.Context, run IndexRun) error
	FinishRun(ctx context.Context, run IndexRun) error
	SaveTones(ctx context.Context, runID, hotel string, reviews int, tones ToneMap) error
	LogMiss(ctx context.Context, runID, hotel, stage, reason string) error

	GetRun(ctx context.Context, id string) (IndexRun, error)
	HotelTones(ctx context.Context, hotel string) (ToneMap, error)
}

// Miss stages.
const (
	StageTones    = "tones"
	StageAssemble = "assemble"
	StageIndex    = "index"
)

type IndexRun struct {
	ID         string    `json:"run_id"`
	Index      string    `json:"index"`
	DocType    string    `json:"type"`
	DataPath   string    `json:"data_path"`
	Status     string    `json:"status"` // running|ok|fail
	Hotels     int       `json:"hotels"`
	Indexed    int       `json:"indexed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
