package main

import (
	"time"
)

type presenceState struct {
	online     bool
	lastUpdate time.Time
}

type idleCounter interface {
	idleTicks(id uint64) int
}

type presenceTracker struct {
	states map[uint64]*presenceState
	idle   idleCounter
}

func newPresenceTracker(idle idleCounter) *presenceTracker {
	return &presenceTracker{
		states: make(map[uint64]*presenceState),
		idle:   idle,
	}
}

func (p *presenceTracker) observe(st *PlayerStats, m teamMember, now time.Time) (notification, bool) {
	state, ok := p.states[m.ID]
	if !ok {
		state = &presenceState{lastUpdate: now}
		p.states[m.ID] = state
	}

	// advanced while offline too
	delta := int64(now.Sub(state.lastUpdate) / time.Second)
	if delta < 0 {
		delta = 0
	}
	state.lastUpdate = now

	var evt notification
	emitted := false
	switch {
	case !state.online && m.Online:
		evt, emitted = notification{Kind: notifyLoggedIn, Player: m.ID, Name: m.Name}, true
	case state.online && !m.Online:
		evt, emitted = notification{Kind: notifyLoggedOut, Player: m.ID, Name: m.Name}, true
	}

	st.Name = m.Name
	if m.Online {
		st.Total += delta
		if p.idle.idleTicks(m.ID) >= 1 {
			st.Idle += delta
		}
		if ts := now.Unix(); ts > st.Last {
			st.Last = ts
		}
	}
	state.online = m.Online

	return evt, emitted
}

func (p *presenceTracker) isOnline(id uint64) bool {
	state, ok := p.states[id]
	return ok && state.online
}
