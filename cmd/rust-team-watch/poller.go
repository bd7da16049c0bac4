package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func connectGameLink(ctx context.Context, link gameLink, attempts int, delay time.Duration) (serverInfo, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		info, err := handshake(ctx, link)
		if err == nil {
			log.Info().Int("seed", info.Seed).Int("size", info.Size).Str("server", info.Name).Msg("game link ready")
			return info, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).Msg("game link connection failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return serverInfo{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return serverInfo{}, fmt.Errorf("%w after %d attempts: %v", errConnect, attempts, lastErr)
}

func handshake(ctx context.Context, link gameLink) (serverInfo, error) {
	if err := link.Connect(ctx); err != nil {
		return serverInfo{}, err
	}
	return link.GetInfo(ctx)
}

type poller struct {
	link     gameLink
	roster   *roster
	clock    clock
	interval time.Duration
	emit     func(notification)
	errLog   rate.Sometimes
	failures int
	log      zerolog.Logger
}

func newPoller(link gameLink, r *roster, c clock, interval time.Duration, emit func(notification)) *poller {
	return &poller{
		link:     link,
		roster:   r,
		clock:    c,
		interval: interval,
		emit:     emit,
		errLog:   rate.Sometimes{Interval: time.Minute},
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// run polls once immediately and then at every interval.
func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce reports whether a snapshot was processed.
func (p *poller) pollOnce(ctx context.Context) bool {
	team, err := p.link.GetTeamInfo(ctx)
	if err != nil {
		p.failures++
		p.log.Warn().Err(err).Int("consecutive", p.failures).Msg("team poll failed")
		p.errLog.Do(func() {
			p.log.Error().Err(err).Int("consecutive", p.failures).Msg("game link unreachable")
		})
		return false
	}
	if p.failures > 0 {
		p.log.Info().Int("failed_cycles", p.failures).Msg("team poll recovered")
		p.failures = 0
	}
	if len(team.Members) == 0 {
		p.log.Warn().Msg("no team data available")
		return false
	}

	now := p.clock.Now()
	for _, m := range team.Members {
		for _, n := range p.roster.observe(m.teamMember(), now) {
			p.log.Debug().Str("event", n.Kind.String()).Uint64("player", n.Player).Msg("presence transition")
			p.emit(n)
		}
	}
	return true
}
