package main

import (
	"time"
)

// Idle thresholds are counted in ticks (poll intervals).
const (
	initialIdleThreshold = 5
	maxIdleThreshold     = 60
	minIdleForReturn     = 5
)

type trailPoint struct {
	At  time.Time
	Pos position
}

type idleState struct {
	lastPos   position
	idleTicks int
	notifyAt  int
	trail     []trailPoint
}

// idleDetector tracks unchanged positions per player. The warning threshold
// doubles from 5 ticks to a ceiling of 60 while a player stays put.
type idleDetector struct {
	tick   int64
	states map[uint64]*idleState
}

func newIdleDetector(tick int64) *idleDetector {
	return &idleDetector{
		tick:   tick,
		states: make(map[uint64]*idleState),
	}
}

func (d *idleDetector) observe(m teamMember, now time.Time) (notification, bool) {
	pos := roundPosition(m.X, m.Y)

	state, ok := d.states[m.ID]
	if !ok {
		state = &idleState{lastPos: pos, notifyAt: initialIdleThreshold}
		d.states[m.ID] = state
	}
	state.trail = append(state.trail, trailPoint{At: now, Pos: pos})

	if pos == state.lastPos {
		if !ok {
			return notification{}, false
		}
		state.idleTicks++
		if state.idleTicks != state.notifyAt {
			return notification{}, false
		}
		evt := notification{
			Kind:    notifyIdle,
			Player:  m.ID,
			Name:    m.Name,
			Seconds: int64(state.notifyAt) * d.tick,
		}
		state.notifyAt = min(state.notifyAt*2, maxIdleThreshold)
		return evt, true
	}

	var evt notification
	emitted := false
	if state.idleTicks >= minIdleForReturn {
		evt = notification{
			Kind:    notifyActive,
			Player:  m.ID,
			Name:    m.Name,
			Seconds: int64(state.idleTicks) * d.tick,
		}
		emitted = true
	}
	state.idleTicks = 0
	state.notifyAt = initialIdleThreshold
	state.lastPos = pos
	return evt, emitted
}

func (d *idleDetector) idleTicks(id uint64) int {
	if state, ok := d.states[id]; ok {
		return state.idleTicks
	}
	return 0
}

func (d *idleDetector) trail(id uint64) []trailPoint {
	state, ok := d.states[id]
	if !ok || len(state.trail) == 0 {
		return nil
	}
	out := make([]trailPoint, len(state.trail))
	copy(out, state.trail)
	return out
}
