package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/explore.replay/internal/explog"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("db: run not found")

// RunMeta describes where a run's log came from.
type RunMeta struct {
	Source  string // "simulator" or the path of a captured log
	MapFile string
	Seed    int64
	Bounds  explog.Bounds
}

// Run is a stored run's summary row.
type Run struct {
	RunID        string
	CreatedAt    time.Time
	Source       string
	MapFile      string
	Seed         int64
	Bounds       explog.Bounds
	FrameCount   int
	RobotCount   int
	AnomalyCount int
}

// SaveRun stores frames and the anomaly report in one transaction and
// returns the new run id.
func (db *DB) SaveRun(ctx context.Context, meta RunMeta, frames []explog.Frame, report *explog.Report) (string, error) {
	runID := uuid.New().String()
	robots := make(map[explog.RobotID]struct{})
	for _, f := range frames {
		for _, id := range f.IDs() {
			robots[id] = struct{}{}
		}
	}
	anomalyCount := 0
	if report != nil {
		anomalyCount = report.Total()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, source, map_file, seed, width, height,
			frame_count, robot_count, anomaly_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, db.clock.Now().UnixNano(), meta.Source, meta.MapFile, meta.Seed,
		meta.Bounds.Width, meta.Bounds.Height, len(frames), len(robots), anomalyCount,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	frameStmt, err := tx.PrepareContext(ctx, `INSERT INTO frames (run_id, seq, tick) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare frame insert: %w", err)
	}
	defer frameStmt.Close()
	robotStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO robot_states (run_id, seq, robot_id, has_position, x, y, phase, map_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare robot insert: %w", err)
	}
	defer robotStmt.Close()

	for seq, f := range frames {
		if _, err := frameStmt.ExecContext(ctx, runID, seq, f.Tick()); err != nil {
			return "", fmt.Errorf("insert frame %d: %w", seq, err)
		}
		for _, r := range f.Robots() {
			var rows sql.NullString
			if r.Map != nil {
				rows = sql.NullString{String: r.Map.String(), Valid: true}
			}
			if _, err := robotStmt.ExecContext(ctx,
				runID, seq, int(r.ID), r.HasPosition, r.Position.X, r.Position.Y, string(r.Phase), rows,
			); err != nil {
				return "", fmt.Errorf("insert robot %d of frame %d: %w", r.ID, seq, err)
			}
		}
	}

	if report != nil {
		for _, kind := range report.Kinds() {
			example := ""
			if ex := report.Examples[kind]; len(ex) > 0 {
				example = ex[0].String()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO anomalies (run_id, kind, count, first_example) VALUES (?, ?, ?, ?)`,
				runID, string(kind), report.Count(kind), example,
			); err != nil {
				return "", fmt.Errorf("insert anomaly %s: %w", kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

const runColumns = `run_id, created_at, source, map_file, seed, width, height,
	frame_count, robot_count, anomaly_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r       Run
		created int64
	)
	err := s.Scan(&r.RunID, &created, &r.Source, &r.MapFile, &r.Seed,
		&r.Bounds.Width, &r.Bounds.Height, &r.FrameCount, &r.RobotCount, &r.AnomalyCount)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

// GetRun returns one run's summary.
func (db *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AnomalyCounts returns the stored anomaly count per kind for a run.
func (db *DB) AnomalyCounts(ctx context.Context, runID string) (map[explog.AnomalyKind]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT kind, count FROM anomalies WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	counts := make(map[explog.AnomalyKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		counts[explog.AnomalyKind(kind)] = n
	}
	return counts, rows.Err()
}

// LoadFrames rebuilds a run's frames in their stored order. Maps are
// re-aligned against the stored positions, which reproduces the offsets
// computed at parse time.
func (db *DB) LoadFrames(ctx context.Context, runID string) ([]explog.Frame, error) {
	if _, err := db.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT f.seq, f.tick, r.robot_id, r.has_position, r.x, r.y, r.phase, r.map_rows
		FROM frames f
		JOIN robot_states r ON r.run_id = f.run_id AND r.seq = f.seq
		WHERE f.run_id = ?
		ORDER BY f.seq, r.robot_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var (
		frames  []explog.Frame
		robots  []explog.RobotState
		curSeq  = -1
		curTick int
	)
	flush := func() {
		if curSeq >= 0 {
			frames = append(frames, explog.NewFrame(curTick, robots))
		}
		robots = nil
	}

	for rows.Next() {
		var (
			seq, tick int
			r         explog.RobotState
			id        int
			phase     string
			mapRows   sql.NullString
		)
		if err := rows.Scan(&seq, &tick, &id, &r.HasPosition, &r.Position.X, &r.Position.Y, &phase, &mapRows); err != nil {
			return nil, fmt.Errorf("scan robot state: %w", err)
		}
		if seq != curSeq {
			flush()
			curSeq, curTick = seq, tick
		}
		r.ID = explog.RobotID(id)
		r.Phase = explog.Phase(phase)
		if mapRows.Valid {
			m, err := explog.NewLocalMap(strings.Split(mapRows.String, "\n"))
			if err != nil {
				return nil, fmt.Errorf("frame %d robot %d: stored map: %w", seq, id, err)
			}
			r.Map = &m
			if r.HasPosition {
				if a := explog.Align(r.Position, m); a.Found {
					r.Offset = a.Offset
					r.Aligned = true
				}
			}
		}
		robots = append(robots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return frames, nil
}
