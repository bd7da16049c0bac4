package main

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqliteStore keeps the same mapping as jsonStore in a single table.
type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS player_stats (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		total_seconds INTEGER NOT NULL DEFAULT 0,
		idle_seconds INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Load() (map[uint64]PlayerStats, error) {
	rows, err := s.db.Query(`SELECT id, name, first_seen, last_seen, total_seconds, idle_seconds FROM player_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}
	defer rows.Close()

	out := make(map[uint64]PlayerStats)
	for rows.Next() {
		var (
			id int64
			st PlayerStats
		)
		if err := rows.Scan(&id, &st.Name, &st.First, &st.Last, &st.Total, &st.Idle); err != nil {
			return nil, fmt.Errorf("failed to scan player stats: %w", err)
		}
		out[uint64(id)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read player stats: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) Save(stats map[uint64]PlayerStats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO player_stats (id, name, first_seen, last_seen, total_seconds, idle_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			total_seconds = excluded.total_seconds,
			idle_seconds = excluded.idle_seconds
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for id, st := range stats {
		if _, err := stmt.Exec(int64(id), st.Name, st.First, st.Last, st.Total, st.Idle); err != nil {
			return fmt.Errorf("failed to save player %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
