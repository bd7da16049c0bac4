package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStateStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open state store")
	}
	defer store.Close()

	stats, err := store.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load player stats")
	}
	log.Info().Int("players", len(stats)).Str("storage", cfg.Storage).Msg("player stats loaded")

	r := newRoster(cfg.PollInterval)
	r.load(stats)

	var n notifier
	tg, err := newTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		log.Error().Err(err).Msg("telegram init error")
	}
	if tg != nil {
		n = tg
	}

	box := newOutbox(cfg.OutboxSize, cfg.SendRate)
	app := newApp(r, box, n, newMapRenderer(cfg.Maps))

	go box.run(ctx, n)
	if tg != nil {
		go tg.run(ctx, app.handleCommand)
	}

	link := newWSGameLink(cfg.Game)
	defer link.Close()

	info, err := connectGameLink(ctx, link, cfg.ConnectAttempts, cfg.ConnectRetryDelay)
	if err != nil {
		// Commands keep answering from the loaded stats.
		log.Error().Err(err).Msg("game link unavailable, polling and persistence disabled")
		<-ctx.Done()
		return
	}
	app.setServerInfo(info)
	link.OnTeamChat(app.relayChat)

	p := newPoller(link, r, systemClock{}, cfg.PollInterval, app.notifyEvent)
	go p.run(ctx)

	saved := make(chan struct{})
	go func() {
		runSaveLoop(ctx, store, r, cfg.SaveInterval)
		close(saved)
	}()

	<-ctx.Done()
	<-saved
	log.Info().Msg("exiting")
}
