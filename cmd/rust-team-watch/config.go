package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultPollInterval      = 60 * time.Second
	defaultSaveInterval      = 60 * time.Second
	defaultConnectAttempts   = 5
	defaultConnectRetryDelay = 5 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultOutboxSize        = 64
	defaultSendRate          = 1.0
	defaultStateFile         = "player_stats.json"
	defaultMapURLTemplate    = "https://rustmaps.com/map/%d/%d.jpg"

	storageJSON   = "json"
	storageSQLite = "sqlite"
)

type Config struct {
	LogLevel          zerolog.Level
	StateFile         string
	Storage           string
	PollInterval      time.Duration
	SaveInterval      time.Duration
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
	OutboxSize        int
	SendRate          float64
	Game              GameConfig
	Telegram          TelegramConfig
	Maps              MapsConfig
}

type GameConfig struct {
	URL            string
	PlayerID       uint64
	PlayerToken    int64
	RequestTimeout time.Duration
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type MapsConfig struct {
	URLTemplate string `yaml:"url_template"`
	CacheDir    string `yaml:"cache_dir"`
	OutputDir   string `yaml:"output_dir"`
	MaxWidth    int    `yaml:"max_width"`
}

type rawGameConfig struct {
	URL            string `yaml:"url"`
	PlayerID       uint64 `yaml:"player_id"`
	PlayerToken    int64  `yaml:"player_token"`
	RequestTimeout string `yaml:"request_timeout"`
}

type rawConfig struct {
	LogLevel          string         `yaml:"log_level"`
	StateFile         string         `yaml:"state_file"`
	Storage           string         `yaml:"storage"`
	PollInterval      string         `yaml:"poll_interval"`
	SaveInterval      string         `yaml:"save_interval"`
	ConnectAttempts   int            `yaml:"connect_attempts"`
	ConnectRetryDelay string         `yaml:"connect_retry_delay"`
	OutboxSize        int            `yaml:"outbox_size"`
	SendRate          float64        `yaml:"send_rate"`
	Game              rawGameConfig  `yaml:"game"`
	Telegram          TelegramConfig `yaml:"telegram"`
	Maps              MapsConfig     `yaml:"maps"`
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, err
	}
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}

	el := errors.NewErrorList()
	parse := func(name, value string, def time.Duration) time.Duration {
		if value == "" {
			return def
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			el.Add(fmt.Errorf("invalid %s: %w", name, err))
			return def
		}
		return d
	}

	level := zerolog.InfoLevel
	if raw.LogLevel != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(raw.LogLevel))
		if err != nil {
			el.Add(fmt.Errorf("invalid log_level: %w", err))
		} else {
			level = l
		}
	}

	cfg := Config{
		LogLevel:          level,
		StateFile:         orDefault(raw.StateFile, defaultStateFile),
		Storage:           orDefault(strings.ToLower(raw.Storage), storageJSON),
		PollInterval:      parse("poll_interval", raw.PollInterval, defaultPollInterval),
		SaveInterval:      parse("save_interval", raw.SaveInterval, defaultSaveInterval),
		ConnectAttempts:   raw.ConnectAttempts,
		ConnectRetryDelay: parse("connect_retry_delay", raw.ConnectRetryDelay, defaultConnectRetryDelay),
		OutboxSize:        raw.OutboxSize,
		SendRate:          raw.SendRate,
		Game: GameConfig{
			URL:            raw.Game.URL,
			PlayerID:       raw.Game.PlayerID,
			PlayerToken:    raw.Game.PlayerToken,
			RequestTimeout: parse("game.request_timeout", raw.Game.RequestTimeout, defaultRequestTimeout),
		},
		Telegram: raw.Telegram,
		Maps:     raw.Maps,
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = defaultConnectAttempts
	}
	if cfg.OutboxSize == 0 {
		cfg.OutboxSize = defaultOutboxSize
	}
	if cfg.SendRate == 0 {
		cfg.SendRate = defaultSendRate
	}
	if cfg.Maps.URLTemplate == "" {
		cfg.Maps.URLTemplate = defaultMapURLTemplate
	}
	if cfg.Maps.CacheDir == "" {
		cfg.Maps.CacheDir = "."
	}
	if cfg.Maps.OutputDir == "" {
		cfg.Maps.OutputDir = cfg.Maps.CacheDir
	}

	return cfg, el.Err()
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.PollInterval < time.Second {
		el.Add(fmt.Errorf("poll_interval must be at least 1s"))
	}
	if c.SaveInterval < time.Second {
		el.Add(fmt.Errorf("save_interval must be at least 1s"))
	}
	if c.ConnectAttempts < 1 {
		el.Add(fmt.Errorf("connect_attempts must be positive"))
	}
	if c.ConnectRetryDelay < 0 {
		el.Add(fmt.Errorf("connect_retry_delay cannot be negative"))
	}
	if c.OutboxSize < 1 {
		el.Add(fmt.Errorf("outbox_size must be positive"))
	}
	if c.SendRate <= 0 {
		el.Add(fmt.Errorf("send_rate must be positive"))
	}
	if c.Storage != storageJSON && c.Storage != storageSQLite {
		el.Add(fmt.Errorf("storage must be %q or %q, got %q", storageJSON, storageSQLite, c.Storage))
	}
	el.Add(c.Game.Validate())
	el.Add(c.Maps.Validate())

	return el.Err()
}

func (c *GameConfig) Validate() error {
	el := errors.NewErrorList()

	if c.URL == "" {
		el.Add(fmt.Errorf("game.url is required"))
	}
	if c.PlayerID == 0 {
		el.Add(fmt.Errorf("game.player_id is required"))
	} else if !validPlayerID(c.PlayerID) {
		el.Add(fmt.Errorf("game.player_id %d is not a valid steam id", c.PlayerID))
	}
	if c.RequestTimeout <= 0 {
		el.Add(fmt.Errorf("game.request_timeout must be positive"))
	}

	return el.Err()
}

func (c *MapsConfig) Validate() error {
	if strings.Count(c.URLTemplate, "%d") != 2 {
		return fmt.Errorf("maps.url_template must contain two %%d verbs (seed, size)")
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("maps.max_width cannot be negative")
	}
	return nil
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
