package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/geometry.report/internal/summary"
	"github.com/banshee-data/geometry.report/internal/track"
)

// ErrRunNotFound is returned by Run for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded report invocation.
type Run struct {
	ID        string            `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	Source    string            `json:"source"`
	Start     float64           `json:"position_start"`
	End       float64           `json:"position_end"`
	Charts    int               `json:"chart_count"`
	Worst     track.Class       `json:"worst"`
	Defects   int               `json:"defects"`
	Duration  time.Duration     `json:"duration_ns"`
	Channels  []summary.Channel `json:"channels,omitempty"`
}

// RecordRun stores a run and its channel summaries in one transaction.
func (db *DB) RecordRun(ctx context.Context, r Run) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_unix_ms, source, position_start, position_end,
			chart_count, worst_class, defect_count, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixMilli(), r.Source, r.Start, r.End,
		r.Charts, r.Worst.String(), r.Defects, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for _, c := range r.Channels {
		counts, err := json.Marshal(c.Counts)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO channel_summaries (
				run_id, channel_id, short_name, points, absent, class_counts,
				worst_class, exceedance, defect_count, longest_defect,
				min_value, max_value, mean_value, std_dev, p95_abs
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, c.ChannelID, c.ShortName, c.Points, c.Absent, string(counts),
			c.Worst.String(), c.Exceedance, c.Defects, c.LongestDefect,
			c.Min, c.Max, c.Mean, c.StdDev, c.P95Abs,
		)
		if err != nil {
			return fmt.Errorf("insert summary %s/%s: %w", r.ID, c.ChannelID, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first, without their
// channel summaries. A non-positive limit returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_unix_ms, source, position_start, position_end,
		       chart_count, worst_class, defect_count, duration_ms
		FROM runs
		ORDER BY created_unix_ms DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run loads one run with its channel summaries.
func (db *DB) Run(ctx context.Context, id string) (Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, created_unix_ms, source, position_start, position_end,
		       chart_count, worst_class, defect_count, duration_ms
		FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT channel_id, short_name, points, absent, class_counts,
		       worst_class, exceedance, defect_count, longest_defect,
		       min_value, max_value, mean_value, std_dev, p95_abs
		FROM channel_summaries WHERE run_id = ?
		ORDER BY rowid`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c      summary.Channel
			counts string
			worst  string
		)
		if err := rows.Scan(
			&c.ChannelID, &c.ShortName, &c.Points, &c.Absent, &counts,
			&worst, &c.Exceedance, &c.Defects, &c.LongestDefect,
			&c.Min, &c.Max, &c.Mean, &c.StdDev, &c.P95Abs,
		); err != nil {
			return Run{}, err
		}
		if err := json.Unmarshal([]byte(counts), &c.Counts); err != nil {
			return Run{}, fmt.Errorf("decode class counts of %s: %w", c.ChannelID, err)
		}
		_ = c.Worst.UnmarshalText([]byte(worst))
		r.Channels = append(r.Channels, c)
	}
	return r, rows.Err()
}

// PruneRuns deletes all but the newest keep runs and returns how many were
// removed. Channel summaries follow through the foreign key.
func (db *DB) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM runs WHERE run_id NOT IN (
			SELECT run_id FROM runs ORDER BY created_unix_ms DESC, run_id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r          Run
		createdMS  int64
		durationMS int64
		worst      string
	)
	if err := s.Scan(
		&r.ID, &createdMS, &r.Source, &r.Start, &r.End,
		&r.Charts, &worst, &r.Defects, &durationMS,
	); err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMilli(createdMS).UTC()
	r.Duration = time.Duration(durationMS) * time.Millisecond
	_ = r.Worst.UnmarshalText([]byte(worst))
	return r, nil
}
