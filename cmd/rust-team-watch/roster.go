package main

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
)

// PlayerStats is the persisted, accumulated record for one player.
// Times are unix seconds.
type PlayerStats struct {
	Name  string `json:"name"`
	First int64  `json:"first"`
	Last  int64  `json:"last"`
	Total int64  `json:"total"`
	Idle  int64  `json:"idle"`
}

// Active is the online time not spent idle.
func (s PlayerStats) Active() int64 {
	return s.Total - s.Idle
}

type teamMember struct {
	ID     uint64
	Name   string
	Online bool
	X      float64
	Y      float64
}

type position struct {
	X int
	Y int
}

func roundPosition(x, y float64) position {
	return position{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// roster owns all per-player state under one lock.
type roster struct {
	mu       sync.RWMutex
	stats    map[uint64]*PlayerStats
	order    []uint64
	presence *presenceTracker
	idle     *idleDetector
}

func newRoster(tick time.Duration) *roster {
	idle := newIdleDetector(tickSeconds(tick))
	return &roster{
		stats:    make(map[uint64]*PlayerStats),
		presence: newPresenceTracker(idle),
		idle:     idle,
	}
}

func (r *roster) load(stats map[uint64]PlayerStats) {
	ids := make([]uint64, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = make(map[uint64]*PlayerStats, len(stats))
	r.order = ids
	for id, s := range stats {
		s := s
		r.stats[id] = &s
	}
}

func (r *roster) observe(m teamMember, now time.Time) []notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stats[m.ID]
	if !ok {
		st = &PlayerStats{Name: m.Name, First: now.Unix(), Last: now.Unix()}
		r.stats[m.ID] = st
		r.order = append(r.order, m.ID)
	}

	var out []notification
	if n, ok := r.presence.observe(st, m, now); ok {
		out = append(out, n)
	}
	if m.Online {
		if n, ok := r.idle.observe(m, now); ok {
			out = append(out, n)
		}
	}
	return out
}

func (r *roster) snapshot() map[uint64]PlayerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint64]PlayerStats, len(r.stats))
	for id, s := range r.stats {
		out[id] = *s
	}
	return out
}

func (r *roster) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stats)
}

// validPlayerID accepts only full SteamID64 values. steamid.New would read
// anything smaller as a bare account id.
func validPlayerID(id uint64) bool {
	if id < uint64(steamid.BaseSID) {
		return false
	}
	sid := steamid.New(strconv.FormatUint(id, 10))
	return sid.Int64() == int64(id) && sid.Valid()
}
