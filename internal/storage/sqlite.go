//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"cellevo/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Run{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *SQLiteStore) AppendTickSummaries(ctx context.Context, runID string, summaries []model.TickSummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tick_summaries (
				run_id, tick, time, population, births, deaths,
				evaluated, shots_fired, mean_fitness, max_energy
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, tick) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range summaries {
			if _, err := stmt.ExecContext(ctx, runID, t.Tick, t.Time, t.Population, t.Births, t.Deaths,
				t.Evaluated, t.ShotsFired, t.MeanFitness, t.MaxEnergy); err != nil {
				return fmt.Errorf("insert tick %d: %w", t.Tick, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetTickSummaries(ctx context.Context, runID string) ([]model.TickSummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tick, time, population, births, deaths, evaluated, shots_fired, mean_fitness, max_energy
		FROM tick_summaries WHERE run_id = ? ORDER BY tick
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []model.TickSummary
	for rows.Next() {
		var t model.TickSummary
		if err := rows.Scan(&t.Tick, &t.Time, &t.Population, &t.Births, &t.Deaths,
			&t.Evaluated, &t.ShotsFired, &t.MeanFitness, &t.MaxEnergy); err != nil {
			return nil, false, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out) > 0, nil
}

func (s *SQLiteStore) AppendLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO lineage (run_id, agent_id, parent_id, time, bootstrap, birth_x, birth_y)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, agent_id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range lineage {
			if _, err := stmt.ExecContext(ctx, runID, int64(r.AgentID), int64(r.ParentID), r.Time,
				r.Bootstrap, r.BirthX, r.BirthY); err != nil {
				return fmt.Errorf("insert lineage %d: %w", r.AgentID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT agent_id, parent_id, time, bootstrap, birth_x, birth_y
		FROM lineage WHERE run_id = ? ORDER BY agent_id
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []model.LineageRecord
	for rows.Next() {
		var (
			r                 model.LineageRecord
			agentID, parentID int64
		)
		if err := rows.Scan(&agentID, &parentID, &r.Time, &r.Bootstrap, &r.BirthX, &r.BirthY); err != nil {
			return nil, false, err
		}
		r.AgentID = uint64(agentID)
		r.ParentID = uint64(parentID)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out) > 0, nil
}

func (s *SQLiteStore) SaveFitnessRecords(ctx context.Context, runID string, records []model.FitnessRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fitness WHERE run_id = ?`, runID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fitness (run_id, agent_id, total, offspring, history)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			history, err := EncodeFitnessHistory(r.History)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, int64(r.AgentID), r.Total, r.Offspring, history); err != nil {
				return fmt.Errorf("insert fitness %d: %w", r.AgentID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetFitnessRecords(ctx context.Context, runID string) ([]model.FitnessRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT agent_id, total, offspring, history
		FROM fitness WHERE run_id = ? ORDER BY agent_id
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []model.FitnessRecord
	for rows.Next() {
		var (
			r       model.FitnessRecord
			agentID int64
			payload []byte
		)
		if err := rows.Scan(&agentID, &r.Total, &r.Offspring, &payload); err != nil {
			return nil, false, err
		}
		r.AgentID = uint64(agentID)
		if r.History, err = DecodeFitnessHistory(payload); err != nil {
			return nil, false, fmt.Errorf("decode fitness %d: %w", agentID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out) > 0, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tick_summaries (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			time REAL NOT NULL,
			population INTEGER NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			evaluated INTEGER NOT NULL,
			shots_fired INTEGER NOT NULL,
			mean_fitness REAL NOT NULL,
			max_energy REAL NOT NULL,
			PRIMARY KEY (run_id, tick)
		);
		CREATE TABLE IF NOT EXISTS lineage (
			run_id TEXT NOT NULL,
			agent_id INTEGER NOT NULL,
			parent_id INTEGER NOT NULL,
			time REAL NOT NULL,
			bootstrap INTEGER NOT NULL,
			birth_x REAL NOT NULL,
			birth_y REAL NOT NULL,
			PRIMARY KEY (run_id, agent_id)
		);
		CREATE TABLE IF NOT EXISTS fitness (
			run_id TEXT NOT NULL,
			agent_id INTEGER NOT NULL,
			total INTEGER NOT NULL,
			offspring INTEGER NOT NULL,
			history BLOB NOT NULL,
			PRIMARY KEY (run_id, agent_id)
		);
	`)
	return err
}
