package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type stateStore interface {
	Load() (map[uint64]PlayerStats, error)
	Save(map[uint64]PlayerStats) error
	Close() error
}

func newStateStore(cfg Config) (stateStore, error) {
	switch cfg.Storage {
	case storageSQLite:
		return newSQLiteStore(cfg.StateFile)
	default:
		return newJSONStore(cfg.StateFile), nil
	}
}

type jsonStore struct {
	path string
}

func newJSONStore(path string) *jsonStore {
	return &jsonStore{path: path}
}

func (s *jsonStore) Load() (map[uint64]PlayerStats, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[uint64]PlayerStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var raw map[string]PlayerStats
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}

	out := make(map[uint64]PlayerStats, len(raw))
	for key, st := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: invalid player id %q", s.path, key)
		}
		out[id] = st
	}
	return out, nil
}

func (s *jsonStore) Save(stats map[uint64]PlayerStats) error {
	raw := make(map[string]PlayerStats, len(stats))
	for id, st := range stats {
		raw[strconv.FormatUint(id, 10)] = st
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling stats: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state dir: %w", err)
		}
	}
	return atomicWrite(s.path, data, 0o644)
}

func (s *jsonStore) Close() error { return nil }

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			log.Warn().Err(removeErr).Str("path", tmp).Msg("failed to remove temp file after rename failure")
		}
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// runSaveLoop saves now, every interval, and once more when ctx is done.
func runSaveLoop(ctx context.Context, store stateStore, r *roster, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	saveRoster(store, r)
	for {
		select {
		case <-ctx.Done():
			saveRoster(store, r)
			return
		case <-ticker.C:
			saveRoster(store, r)
		}
	}
}

func saveRoster(store stateStore, r *roster) {
	snap := r.snapshot()
	if err := store.Save(snap); err != nil {
		log.Error().Err(err).Msg("failed to save player stats")
		return
	}
	log.Debug().Int("players", len(snap)).Msg("player stats saved")
}
