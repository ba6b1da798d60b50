package app

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_tones/internal/adapters/observability"
	"hotel_tones/internal/domain"
)

type IndexingService struct {
	tones  *ToneService
	index  domain.Indexer
	ledger domain.RunLedger
	meta   []string
}

// NewIndexingService wires a run. ledger may be nil.
func NewIndexingService(t *ToneService, ix domain.Indexer, ledger domain.RunLedger) *IndexingService {
	return &IndexingService{tones: t, index: ix, ledger: ledger, meta: HotelMetadataFields}
}

type IndexOptions struct {
	Index    string
	DocType  string
	DataPath string
	Settings domain.IndexSettings
}

// IndexDataset indexes every hotel of src, one at a time. A hotel that fails
// at any stage is logged, recorded and skipped; the run carries on with the
// next one. Only a failure to prepare the index, or cancellation, ends the run early.
func (s *IndexingService) IndexDataset(ctx context.Context, src domain.ReviewSource, opts IndexOptions) (domain.IndexRun, error) {
	run := domain.IndexRun{
		ID:        ulid.Make().String(),
		Index:     opts.Index,
		DocType:   opts.DocType,
		DataPath:  opts.DataPath,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	lg := log.With().Str("run_id", run.ID).Str("index", opts.Index).Logger()

	if s.ledger != nil {
		if err := s.ledger.StartRun(ctx, run); err != nil {
			lg.Warn().Err(err).Msg("ledger: start run failed")
		}
	}

	if err := s.index.EnsureIndex(ctx, opts.Index, opts.Settings); err != nil {
		lg.Error().Err(err).Msg("ensure index failed")
		return s.finish(ctx, lg, run, "fail"), fmt.Errorf("ensure index %s: %w", opts.Index, err)
	}

	hotels := src.Hotels()
	run.Hotels = len(hotels)
	lg.Info().Int("hotels", run.Hotels).Msg("indexing started")

	for n, hotel := range hotels {
		if err := ctx.Err(); err != nil {
			lg.Warn().Err(err).Int("done", n).Msg("indexing interrupted")
			return s.finish(ctx, lg, run, "fail"), err
		}
		s.indexHotel(ctx, lg, &run, src, hotel, opts)
		lg.Debug().Int("done", n+1).Int("total", run.Hotels).Msg("progress")
	}

	return s.finish(ctx, lg, run, "ok"), nil
}

// BuildDocument runs tones, aggregation and assembly for one hotel. On
// failure it also reports which stage failed.
func (s *IndexingService) BuildDocument(ctx context.Context, src domain.ReviewSource, hotel string) (domain.HotelDocument, string, error) {
	g, err := src.Group(hotel)
	if err != nil {
		return domain.HotelDocument{}, domain.StageAssemble, err
	}
	annotated, responses, err := s.tones.ReviewTones(ctx, g)
	if err != nil {
		return domain.HotelDocument{}, domain.StageTones, err
	}
	doc, err := AssembleHotel(annotated, AggregateTones(responses), s.meta)
	if err != nil {
		return domain.HotelDocument{}, domain.StageAssemble, err
	}
	return doc, "", nil
}

func (s *IndexingService) indexHotel(ctx context.Context, lg zerolog.Logger, run *domain.IndexRun, src domain.ReviewSource, hotel string, opts IndexOptions) {
	doc, stage, err := s.BuildDocument(ctx, src, hotel)
	if err != nil {
		s.miss(ctx, lg, run, hotel, stage, err)
		return
	}
	if err := s.index.Write(ctx, opts.Index, opts.DocType, doc); err != nil {
		s.miss(ctx, lg, run, hotel, domain.StageIndex, err)
		return
	}

	run.Indexed++
	observability.ObserveHotel("indexed")
	lg.Info().Str("hotel", hotel).Int("reviews", len(doc.Reviews)).Int("tones", doc.Tones.Len()).Msg("hotel indexed")
	if s.ledger != nil {
		if err := s.ledger.SaveTones(ctx, run.ID, hotel, len(doc.Reviews), doc.Tones); err != nil {
			lg.Warn().Err(err).Str("hotel", hotel).Msg("ledger: save tones failed")
		}
	}
}

func (s *IndexingService) miss(ctx context.Context, lg zerolog.Logger, run *domain.IndexRun, hotel, stage string, err error) {
	run.Failed++
	observability.ObserveHotel(stage + "_failed")
	lg.Warn().
		Str("hotel", hotel).
		Str("stage", stage).
		Str("err_type", observability.LabelErr(err)).
		Err(err).
		Msg("hotel skipped")
	if s.ledger != nil {
		if lerr := s.ledger.LogMiss(ctx, run.ID, hotel, stage, err.Error()); lerr != nil {
			lg.Warn().Err(lerr).Str("hotel", hotel).Msg("ledger: log miss failed")
		}
	}
}

func (s *IndexingService) finish(ctx context.Context, lg zerolog.Logger, run domain.IndexRun, status string) domain.IndexRun {
	run.Status = status
	run.FinishedAt = time.Now().UTC()
	if s.ledger != nil {
		// the run row is closed even when ctx is already cancelled
		if err := s.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			lg.Warn().Err(err).Msg("ledger: finish run failed")
		}
	}
	lg.Info().
		Str("status", status).
		Int("hotels", run.Hotels).
		Int("indexed", run.Indexed).
		Int("failed", run.Failed).
		Dur("took", run.FinishedAt.Sub(run.StartedAt)).
		Msg("indexing finished")
	return run
}
