package main

import (
	"errors"
	"sort"
	"strings"
)

var errNotFound = errors.New("player not found")

type rankedPlayer struct {
	ID    uint64
	Stats PlayerStats
}

type queryService struct {
	r *roster
}

func newQueryService(r *roster) *queryService {
	return &queryService{r: r}
}

// findLocked returns the first player, in insertion order, whose name
// matches case-insensitively. Caller holds r.mu.
func (q *queryService) findLocked(name string) (uint64, bool) {
	for _, id := range q.r.order {
		if strings.EqualFold(q.r.stats[id].Name, name) {
			return id, true
		}
	}
	return 0, false
}

func (q *queryService) FindByName(name string) (PlayerStats, error) {
	q.r.mu.RLock()
	defer q.r.mu.RUnlock()
	id, ok := q.findLocked(strings.TrimSpace(name))
	if !ok {
		return PlayerStats{}, errNotFound
	}
	return *q.r.stats[id], nil
}

func (q *queryService) IsOnline(name string) bool {
	q.r.mu.RLock()
	defer q.r.mu.RUnlock()
	id, ok := q.findLocked(strings.TrimSpace(name))
	return ok && q.r.presence.isOnline(id)
}

func (q *queryService) List() []string {
	q.r.mu.RLock()
	names := make([]string, 0, len(q.r.stats))
	for _, s := range q.r.stats {
		names = append(names, s.Name)
	}
	q.r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (q *queryService) TopActive(n int) []rankedPlayer {
	return q.top(n, func(s PlayerStats) int64 { return s.Active() })
}

func (q *queryService) TopIdle(n int) []rankedPlayer {
	return q.top(n, func(s PlayerStats) int64 { return s.Idle })
}

func (q *queryService) top(n int, key func(PlayerStats) int64) []rankedPlayer {
	if n <= 0 {
		return nil
	}
	q.r.mu.RLock()
	ranked := make([]rankedPlayer, 0, len(q.r.order))
	for _, id := range q.r.order {
		ranked = append(ranked, rankedPlayer{ID: id, Stats: *q.r.stats[id]})
	}
	q.r.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return key(ranked[i].Stats) > key(ranked[j].Stats)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (q *queryService) Trail(name string) ([]trailPoint, error) {
	q.r.mu.RLock()
	defer q.r.mu.RUnlock()
	id, ok := q.findLocked(strings.TrimSpace(name))
	if !ok {
		return nil, errNotFound
	}
	trail := q.r.idle.trail(id)
	if len(trail) == 0 {
		return nil, errNotFound
	}
	return trail, nil
}
