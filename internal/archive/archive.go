// internal/archive/archive.go
//
// Result archive for finished party rounds.
// Responsibilities:
//   - Opening the SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Recording finished rounds and serving the all-time leaderboard.
//
// Live room state never touches the database; only completed rounds land here.

package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PlayerResult is one player's line in a finished round.
type PlayerResult struct {
	Name    string `json:"name"`
	Guesses int    `json:"guesses"`
	Solved  bool   `json:"solved"`
	Score   int    `json:"score"`
}

// RoundResult is what gets stored when a round ends.
type RoundResult struct {
	RoomID  string         `json:"roomId"`
	Round   int            `json:"round"`
	Chooser string         `json:"chooser"`
	Answer  string         `json:"answer"`
	Players []PlayerResult `json:"players"`
}

// LBRow is one leaderboard entry: the best score a player name reached in a room.
type LBRow struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
	Score  int    `json:"score"`
	Solves int    `json:"solves"`
}

// Store persists round results in SQLite.
type Store struct{ db *sql.DB }

/**
 * Open opens (and creates if missing) the archive database and migrates it.
 *
 * - Ensures the parent directory exists for relative paths (e.g. ./data/party.db).
 * - Configures busy timeout and WAL journaling, enforces foreign keys.
 */
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under concurrent rounds
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

/**
 * migrate applies the embedded migrations in lexical order.
 * Each file runs inside its own transaction and is recorded in _migrations.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// RecordRound stores a finished round and its player lines atomically.
func (s *Store) RecordRound(ctx context.Context, r RoundResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rounds(room_id, round, chooser, answer, created_at) VALUES(?,?,?,?,?)`,
		r.RoomID, r.Round, r.Chooser, r.Answer, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	roundID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range r.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO round_players(round_id, player_name, guesses, solved, score) VALUES(?,?,?,?,?)`,
			roundID, p.Name, p.Guesses, p.Solved, p.Score,
		); err != nil {
			return fmt.Errorf("insert round player: %w", err)
		}
	}
	return tx.Commit()
}

/**
 * Leaderboard returns the best scores ever reached, one row per (room, name).
 *
 * - Ordered by score DESC, then solves DESC, then name ASC.
 * - Default limit is 20 if not specified.
 */
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT rp.player_name, r.room_id, MAX(rp.score) AS best, SUM(rp.solved) AS solves
        FROM round_players rp
        JOIN rounds r ON r.id = rp.round_id
        WHERE rp.player_name <> ''
        GROUP BY r.room_id, rp.player_name
        ORDER BY best DESC, solves DESC, rp.player_name ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.Name, &r.RoomID, &r.Score, &r.Solves); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Nop discards every round; used when the archive is disabled.
type Nop struct{}

func (Nop) RecordRound(context.Context, RoundResult) error    { return nil }
func (Nop) Leaderboard(context.Context, int) ([]LBRow, error) { return []LBRow{}, nil }
func (Nop) Ping(context.Context) error                        { return nil }
func (Nop) Close() error                                      { return nil }
