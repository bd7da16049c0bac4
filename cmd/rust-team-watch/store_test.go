package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

var sampleStats = map[uint64]PlayerStats{
	76561198000000001: {Name: "alice", First: 1700000000, Last: 1700003600, Total: 3600, Idle: 600},
	76561198000000002: {Name: "bob", First: 1700000100, Last: 1700000100, Total: 0, Idle: 0},
}

func assertStatsEqual(t *testing.T, got, exp map[uint64]PlayerStats) {
	t.Helper()
	testutil.AssertEqual(t, "player count", len(got), len(exp))
	for id, e := range exp {
		g, ok := got[id]
		if !ok {
			t.Errorf("player %d missing", id)
			continue
		}
		testutil.AssertEqual(t, "stats", g, e)
	}
}

func TestJSONStore_RoundTrip(t *testing.T) {
	store := newJSONStore(filepath.Join(t.TempDir(), "stats.json"))

	if err := store.Save(sampleStats); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	assertStatsEqual(t, got, sampleStats)
}

func TestJSONStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	store := newJSONStore(path)
	if err := store.Save(sampleStats); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decoding file: %v", err)
	}
	entry, ok := raw["76561198000000001"]
	testutil.AssertEqual(t, "keyed by id string", ok, true)
	for _, field := range []string{"name", "first", "last", "total", "idle"} {
		_, ok := entry[field]
		testutil.AssertEqual(t, "field "+field, ok, true)
	}
	testutil.AssertEqual(t, "indented", strings.Contains(string(data), "\n  \""), true)

	_, err = os.Stat(path + ".tmp")
	testutil.AssertEqual(t, "temp file removed", os.IsNotExist(err), true)
}

func TestJSONStore_LoadMissingFile(t *testing.T) {
	store := newJSONStore(filepath.Join(t.TempDir(), "absent.json"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "players", len(got), 0)
}

func TestJSONStore_LoadMalformed(t *testing.T) {
	tests := map[string]struct {
		content string
		expErr  string
	}{
		"not json":   {content: "{nope", expErr: "decoding"},
		"bad key":    {content: `{"abc": {"name": "x"}}`, expErr: "invalid player id"},
		"wrong type": {content: `{"1": {"total": "lots"}}`, expErr: "decoding"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stats.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}

			_, err := newJSONStore(path).Load()
			testutil.AssertErrorContains(t, err, tt.expErr)
		})
	}
}

func TestJSONStore_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "stats.json")

	if err := newJSONStore(path).Save(sampleStats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := os.Stat(path)
	testutil.AssertEqual(t, "exists", err == nil, true)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := newSQLiteStore(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if err := store.Save(sampleStats); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	updated := map[uint64]PlayerStats{
		76561198000000001: {Name: "alice_renamed", First: 1700000000, Last: 1700007200, Total: 7200, Idle: 600},
	}
	if err := store.Save(updated); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	assertStatsEqual(t, got, map[uint64]PlayerStats{
		76561198000000001: updated[76561198000000001],
		76561198000000002: sampleStats[76561198000000002],
	})
}

func TestSQLiteStore_Pragmas(t *testing.T) {
	store, err := newSQLiteStore(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	tests := map[string]string{
		"journal_mode": "wal",
		"busy_timeout": "5000",
		"synchronous":  "1",
	}
	for pragma, exp := range tests {
		t.Run(pragma, func(t *testing.T) {
			var got string
			if err := store.db.QueryRow("PRAGMA " + pragma).Scan(&got); err != nil {
				t.Fatalf("reading pragma: %v", err)
			}
			testutil.AssertEqual(t, pragma, strings.ToLower(got), exp)
		})
	}
}

func TestRunSaveLoop_SavesUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	store := newJSONStore(path)
	r := newRoster(time.Minute)
	r.observe(member(1, "alice", true, 0, 0), epoch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runSaveLoop(ctx, store, r, time.Hour)
		close(done)
	}()

	// The final save on shutdown picks up changes made after the first save.
	r.observe(member(2, "bob", true, 0, 0), epoch)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("save loop did not stop")
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	testutil.AssertEqual(t, "players", len(got), 2)
}

func TestSaveRoster_FailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes the rename fail.
	path := filepath.Join(dir, "stats.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r := newRoster(time.Minute)
	r.observe(member(1, "alice", true, 0, 0), epoch)

	saveRoster(newJSONStore(path), r)

	testutil.AssertEqual(t, "stats kept", r.size(), 1)
}
