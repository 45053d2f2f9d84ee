package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingToken = errors.New("missing bot_token")
	ErrInvalid      = errors.New("invalid configuration")
)

type Config struct {
	BotToken string `mapstructure:"bot_token"`
	DataDir  string `mapstructure:"data_dir"`

	// If true, the Telegram client logs its requests.
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`

	// gregorian or jalali; controls the timestamp printed in alerts.
	Calendar string `mapstructure:"calendar"`

	// Status server listen address. Empty disables it.
	HTTPAddr string `mapstructure:"http_addr"`

	Poll     PollConfig     `mapstructure:"poll"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Cron expression (with seconds). Empty disables scheduled backups.
	BackupSchedule string `mapstructure:"backup_schedule"`
	BackupKeep     int    `mapstructure:"backup_keep"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	MaxConns     int           `mapstructure:"max_conns"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
	// Optional YAML file with the ordered class-name matchers.
	PatternsFile string `mapstructure:"patterns_file"`
}

type TelegramConfig struct {
	LongPollTimeout int           `mapstructure:"long_poll_timeout"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RemoveTimeout   time.Duration `mapstructure:"remove_timeout"`
	SendRate        float64       `mapstructure:"send_rate"`
	SendBurst       int           `mapstructure:"send_burst"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func DefaultDataDir() string {
	if v := os.Getenv("PDB_DATA_DIR"); v != "" {
		return v
	}
	return "/var/lib/price-drop-bot"
}

func DefaultConfigPath() string {
	if v := os.Getenv("PDB_CONFIG"); v != "" {
		return v
	}
	return "/etc/price-drop-bot/config.json"
}

// DBPath is the SQLite file inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "products.db")
}

func (c Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Load merges defaults, the optional config file at path, a .env file in the
// working directory and the process environment (PDB_ prefix), in that order
// of increasing priority.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("bot_token", "PDB_BOT_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("data_dir", "PDB_DATA_DIR", "DATA_DIR")

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	cfg.Calendar = strings.ToLower(strings.TrimSpace(cfg.Calendar))

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w (config file %s)", err, path)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot_token", "")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("calendar", "gregorian")
	v.SetDefault("http_addr", "")

	v.SetDefault("poll.interval", "30s")
	v.SetDefault("poll.backup_schedule", "0 0 3 * * *")
	v.SetDefault("poll.backup_keep", 7)

	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.max_conns", 10)
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.patterns_file", "")

	v.SetDefault("telegram.long_poll_timeout", 30)
	v.SetDefault("telegram.retry_backoff", "5s")
	v.SetDefault("telegram.remove_timeout", "60s")
	v.SetDefault("telegram.send_rate", 25.0)
	v.SetDefault("telegram.send_burst", 5)
}

// Validate reports the first problem found.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("%w (set bot_token, PDB_BOT_TOKEN or BOT_TOKEN)", ErrMissingToken)
	}
	if c.Calendar != "gregorian" && c.Calendar != "jalali" {
		return fmt.Errorf("%w: calendar must be gregorian or jalali, got %q", ErrInvalid, c.Calendar)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll.interval must be positive", ErrInvalid)
	}
	if c.Fetch.MaxConns <= 0 {
		return fmt.Errorf("%w: fetch.max_conns must be positive", ErrInvalid)
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("%w: fetch.max_redirects must not be negative", ErrInvalid)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: fetch.max_body_bytes must be positive", ErrInvalid)
	}
	if c.Telegram.LongPollTimeout < 0 {
		return fmt.Errorf("%w: telegram.long_poll_timeout must not be negative", ErrInvalid)
	}
	if c.Telegram.SendRate <= 0 || c.Telegram.SendBurst <= 0 {
		return fmt.Errorf("%w: telegram.send_rate and telegram.send_burst must be positive", ErrInvalid)
	}
	return nil
}
