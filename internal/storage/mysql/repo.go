package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_tones/internal/domain"
)

func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Repo is the MySQL run ledger.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) StartRun(ctx context.Context, run domain.IndexRun) error {
	return r.upsertRun(ctx, run)
}

func (r *Repo) FinishRun(ctx context.Context, run domain.IndexRun) error {
	return r.upsertRun(ctx, run)
}

func (r *Repo) upsertRun(ctx context.Context, run domain.IndexRun) error {
	_, err := r.db.ExecContext(ctx, upsertRunSQL,
		run.ID,
		run.Index,
		run.DocType,
		run.DataPath,
		run.Status,
		run.Hotels,
		run.Indexed,
		run.Failed,
		run.StartedAt,
		valTime(run.FinishedAt),
	)
	return err
}

// SaveTones replaces the tones stored for hotel within run, keeping their order.
func (r *Repo) SaveTones(ctx context.Context, runID, hotel string, reviews int, tones domain.ToneMap) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteTonesSQL, runID, hotel); err != nil {
		return err
	}
	if ids := tones.IDs(); len(ids) > 0 {
		values := make([]string, 0, len(ids))
		args := make([]any, 0, len(ids)*7) // 7 params per row
		for pos, id := range ids {
			score, _ := tones.Score(id)
			values = append(values, "(?,?,?,?,?,?,?)")
			args = append(args, runID, hotel, pos, id, score, tones.Observations(id), reviews)
		}
		if _, err = tx.ExecContext(ctx, insertTonesPrefix+strings.Join(values, ","), args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) LogMiss(ctx context.Context, runID, hotel, stage, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, runID, hotel, stage, reason)
	return err
}

func (r *Repo) GetRun(ctx context.Context, id string) (domain.IndexRun, error) {
	var run domain.IndexRun
	var finished sql.NullTime
	err := r.db.QueryRowContext(ctx, getRunSQL, id).Scan(
		&run.ID,
		&run.Index,
		&run.DocType,
		&run.DataPath,
		&run.Status,
		&run.Hotels,
		&run.Indexed,
		&run.Failed,
		&run.StartedAt,
		&finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IndexRun{}, domain.ErrNotFound
		}
		return domain.IndexRun{}, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}

// HotelTones returns the tones stored by the latest run that indexed hotel.
func (r *Repo) HotelTones(ctx context.Context, hotel string) (domain.ToneMap, error) {
	hotel = strings.ToLower(hotel)
	rows, err := r.db.QueryContext(ctx, latestTonesSQL, hotel, hotel)
	if err != nil {
		return domain.ToneMap{}, err
	}
	defer rows.Close()

	var out domain.ToneMap
	for rows.Next() {
		var id string
		var score float64
		var n int
		if err := rows.Scan(&id, &score, &n); err != nil {
			return domain.ToneMap{}, err
		}
		out.Set(id, score, n)
	}
	if err := rows.Err(); err != nil {
		return domain.ToneMap{}, err
	}
	if out.Len() == 0 {
		return domain.ToneMap{}, fmt.Errorf("tones of %q: %w", hotel, domain.ErrNotFound)
	}
	return out, nil
}
