package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type notificationKind int

const (
	notifyLoggedIn notificationKind = iota
	notifyLoggedOut
	notifyIdle
	notifyActive
)

func (k notificationKind) String() string {
	switch k {
	case notifyLoggedIn:
		return "logged_in"
	case notifyLoggedOut:
		return "logged_out"
	case notifyIdle:
		return "idle"
	case notifyActive:
		return "active"
	default:
		return "unknown"
	}
}

type notification struct {
	Kind   notificationKind
	Player uint64
	Name   string
	Seconds int64
}

func (n notification) String() string {
	switch n.Kind {
	case notifyLoggedIn:
		return fmt.Sprintf("✅ %s logged in.", n.Name)
	case notifyLoggedOut:
		return fmt.Sprintf("❌ %s logged out.", n.Name)
	case notifyIdle:
		return fmt.Sprintf("🛑 %s has been idle for %s.", n.Name, formatMinutes(n.Seconds))
	case notifyActive:
		return fmt.Sprintf("✅ %s is no longer AFK. (Idle for %s)", n.Name, formatMinutes(n.Seconds))
	default:
		return n.Name
	}
}

type notifier interface {
	Send(text string) error
	SendFile(path string) error
}

// outbox drops the oldest message when full.
type outbox struct {
	mu      sync.Mutex
	queue   []string
	size    int
	ready   chan struct{}
	limiter *rate.Limiter
	dropped int
}

func newOutbox(size int, perSecond float64) *outbox {
	return &outbox{
		size:    size,
		ready:   make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 3),
	}
}

func (o *outbox) push(text string) {
	o.mu.Lock()
	if len(o.queue) >= o.size {
		log.Warn().Str("message", o.queue[0]).Msg("outbox full, dropping oldest message")
		o.queue = o.queue[1:]
		o.dropped++
	}
	o.queue = append(o.queue, text)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox) pop() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return "", false
	}
	text := o.queue[0]
	o.queue = o.queue[1:]
	return text, true
}

func (o *outbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *outbox) run(ctx context.Context, n notifier) {
	for {
		text, ok := o.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-o.ready:
				continue
			}
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return
		}
		if n == nil {
			continue
		}
		if err := n.Send(text); err != nil {
			log.Error().Err(err).Str("message", text).Msg("notification delivery failed")
		}
	}
}
