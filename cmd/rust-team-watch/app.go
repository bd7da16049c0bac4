package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const topLimit = 10

type app struct {
	query    *queryService
	outbox   *outbox
	notifier notifier
	renderer trailRenderer

	mu      sync.Mutex
	info    serverInfo
	hasInfo bool

	renders sync.WaitGroup
}

func newApp(r *roster, box *outbox, n notifier, renderer trailRenderer) *app {
	return &app{
		query:    newQueryService(r),
		outbox:   box,
		notifier: n,
		renderer: renderer,
	}
}

func (a *app) setServerInfo(info serverInfo) {
	a.mu.Lock()
	a.info = info
	a.hasInfo = true
	a.mu.Unlock()
}

func (a *app) serverInfo() (serverInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info, a.hasInfo
}

func (a *app) notifyEvent(n notification) {
	log.Info().Str("event", n.Kind.String()).Uint64("player", n.Player).Str("name", n.Name).Msg("player event")
	a.outbox.push(n.String())
}

func (a *app) relayChat(msg chatMessage) {
	a.outbox.push(fmt.Sprintf("💬 %s: %s", msg.Name, msg.Message))
}

func (a *app) handleCommand(cmd, args string) string {
	args = strings.TrimSpace(args)
	switch strings.ToLower(cmd) {
	case "stats":
		if args == "" {
			return "Usage: /stats <name>"
		}
		return a.statsReply(args)
	case "players":
		return a.playersReply()
	case "topactive":
		return a.topReply("🏆 Top Active Players:", a.query.TopActive(topLimit), "active", PlayerStats.Active)
	case "topidle":
		return a.topReply("💤 Top Idle Players:", a.query.TopIdle(topLimit), "idle", func(s PlayerStats) int64 { return s.Idle })
	case "trail":
		if args == "" {
			return "Usage: /trail <name>"
		}
		return a.trailReply(args)
	default:
		return "Commands: /stats <name>, /trail <name>, /players, /topactive, /topidle"
	}
}

func (a *app) statsReply(name string) string {
	st, err := a.query.FindByName(name)
	if errors.Is(err, errNotFound) {
		return fmt.Sprintf("❌ Player '%s' not found.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Stats for %s\n", st.Name)
	if a.query.IsOnline(name) {
		b.WriteString("🟢 Online now\n")
	}
	fmt.Fprintf(&b, "🕐 First Seen: %s\n", formatStamp(st.First))
	fmt.Fprintf(&b, "👀 Last Seen: %s (%s)\n", formatStamp(st.Last), humanize.Time(time.Unix(st.Last, 0)))
	fmt.Fprintf(&b, "⏱️ Total Time: %s\n", formatMinutes(st.Total))
	fmt.Fprintf(&b, "💤 Idle Time: %s\n", formatMinutes(st.Idle))
	fmt.Fprintf(&b, "⚡ Active Time: %s", formatMinutes(st.Active()))
	return b.String()
}

func (a *app) playersReply() string {
	names := a.query.List()
	if len(names) == 0 {
		return "⚠️ No player data loaded."
	}
	return "🧍 Tracked players:\n" + strings.Join(names, ", ")
}

func (a *app) topReply(title string, ranked []rankedPlayer, label string, key func(PlayerStats) int64) string {
	if len(ranked) == 0 {
		return "No data."
	}
	lines := make([]string, 0, len(ranked)+1)
	lines = append(lines, title)
	for i, p := range ranked {
		lines = append(lines, fmt.Sprintf("%d. %s – %s %s", i+1, p.Stats.Name, formatMinutes(key(p.Stats)), label))
	}
	return strings.Join(lines, "\n")
}

// trailReply renders in the background; failures arrive via the outbox.
func (a *app) trailReply(name string) string {
	trail, err := a.query.Trail(name)
	if err != nil {
		return "❌ Player not found or no trail."
	}
	info, ok := a.serverInfo()
	if !ok || a.renderer == nil {
		return "⚠️ Map not available."
	}
	if a.notifier == nil {
		return "⚠️ Could not send trail image."
	}

	a.renders.Add(1)
	go func() {
		defer a.renders.Done()
		if msg := a.sendTrail(name, info, trail); msg != "" {
			a.outbox.push(msg)
		}
	}()
	return ""
}

func (a *app) sendTrail(name string, info serverInfo, trail []trailPoint) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	path, err := a.renderer.RenderTrail(ctx, info, trail)
	if err != nil {
		log.Error().Err(err).Str("player", name).Msg("trail render failed")
		return "⚠️ Could not render trail."
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove trail image")
		}
	}()

	if err := a.notifier.SendFile(path); err != nil {
		log.Error().Err(err).Str("player", name).Msg("trail delivery failed")
		return "⚠️ Could not send trail image."
	}
	return ""
}
