package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"raceway/internal/config"
	"raceway/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS race_results (
	id          TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL,
	map_id      INTEGER NOT NULL,
	player_id   TEXT NOT NULL,
	rank        INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_race_results_recorded_at ON race_results(recorded_at);
CREATE INDEX IF NOT EXISTS idx_race_results_room ON race_results(room_id);
`

// Store is the append-only race history audit log on SQLite. Writes funnel
// through a single writer goroutine; SQLite serializes writers anyway, and
// one writer keeps busy-timeout churn out of the engine's teardown path.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// NewStore opens (and if needed creates) the results database.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.fn(s.db)
		case <-s.shutdown:
			// Drain anything queued before the shutdown signal.
			for {
				select {
				case op := <-s.writeCh:
					op.result <- op.fn(s.db)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) executeWrite(ctx context.Context, fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("history store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordResults persists one room's final ranking in a single transaction.
func (s *Store) RecordResults(ctx context.Context, roomID string, mapID int, rankings []types.RankEntry) error {
	if len(rankings) == 0 {
		return nil
	}
	recordedAt := time.Now().UTC()

	return s.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.Prepare(`INSERT INTO race_results (id, room_id, map_id, player_id, rank, duration_ms, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range rankings {
			if _, err := stmt.Exec(uuid.NewString(), roomID, mapID, entry.PlayerID, entry.Rank, entry.Duration, recordedAt); err != nil {
				return fmt.Errorf("failed to insert result for player %s: %w", entry.PlayerID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit results: %w", err)
		}
		log.Debug().Str("room_id", roomID).Int("rows", len(rankings)).Msg("race results recorded")
		return nil
	})
}

// ListRecentResults returns up to limit rows, newest races first, rank order
// within a race.
func (s *Store) ListRecentResults(ctx context.Context, limit int) ([]*types.RaceResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, map_id, player_id, rank, duration_ms, recorded_at
		 FROM race_results ORDER BY recorded_at DESC, rank ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []*types.RaceResult
	for rows.Next() {
		var r types.RaceResult
		if err := rows.Scan(&r.ID, &r.RoomID, &r.MapID, &r.PlayerID, &r.Rank, &r.DurationMS, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the writer goroutine and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}
