package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	X      XConfig      `yaml:"x"`
	Nostr  NostrConfig  `yaml:"nostr"`
	Media  MediaConfig  `yaml:"media"`
	Bridge BridgeConfig `yaml:"bridge"`
	Health HealthConfig `yaml:"health"`
	Store  StoreConfig  `yaml:"store"`
	Alerts AlertsConfig `yaml:"alerts"`
}

// XConfig describes the followed account and how to authenticate against the
// X API v2. Either BearerToken or APIKey+APISecret is required.
type XConfig struct {
	APIKey      string        `env:"X_API_KEY"              yaml:"api_key"`
	APISecret   string        `env:"X_API_SECRET"           yaml:"api_secret"`
	BearerToken string        `env:"X_BEARER_TOKEN"         yaml:"bearer_token"`
	AccountID   string        `env:"X_ACCOUNT_ID_TO_FOLLOW" yaml:"account_id"`
	Handle      string        `env:"XNOSTR_X_HANDLE"        yaml:"handle"` // used in permalinks, optional
	BaseURL     string        `env:"XNOSTR_X_BASE_URL"      yaml:"base_url"`
	TokenURL    string        `env:"XNOSTR_X_TOKEN_URL"     yaml:"token_url"`
	MaxResults  int           `env:"XNOSTR_X_MAX_RESULTS"   yaml:"max_results"`
	Timeout     time.Duration `env:"XNOSTR_X_TIMEOUT"       yaml:"timeout"`
}

type NostrConfig struct {
	SecretKey      string        `env:"NOSTR_BOT_NSEC"          yaml:"secret_key"`
	Relays         []string      `env:"XNOSTR_RELAYS"           yaml:"relays"`
	ClientTag      string        `env:"XNOSTR_CLIENT_TAG"       yaml:"client_tag"`
	Provenance     bool          `env:"XNOSTR_PROVENANCE"       yaml:"provenance"`
	PublishTimeout time.Duration `env:"XNOSTR_PUBLISH_TIMEOUT"  yaml:"publish_timeout"`
	DialTimeout    time.Duration `env:"XNOSTR_DIAL_TIMEOUT"     yaml:"dial_timeout"`
}

type MediaConfig struct {
	StageDir         string        `env:"XNOSTR_STAGE_DIR"          yaml:"stage_dir"`
	Hosts            []string      `env:"XNOSTR_MEDIA_HOSTS"        yaml:"hosts"` // priority order
	NostrBuildAPIKey string        `env:"NOSTR_BUILD_API_KEY"       yaml:"nostr_build_api_key"`
	NostrBuildURL    string        `env:"XNOSTR_NOSTR_BUILD_URL"    yaml:"nostr_build_url"`
	VoidCatURL       string        `env:"XNOSTR_VOID_CAT_URL"       yaml:"void_cat_url"`
	DownloadTimeout  time.Duration `env:"XNOSTR_DOWNLOAD_TIMEOUT"   yaml:"download_timeout"`
	UploadTimeout    time.Duration `env:"XNOSTR_UPLOAD_TIMEOUT"     yaml:"upload_timeout"`
	MaxDownloadBytes int64         `env:"XNOSTR_MAX_DOWNLOAD_BYTES" yaml:"max_download_bytes"`
	Concurrency      int           `env:"XNOSTR_MEDIA_CONCURRENCY"  yaml:"concurrency"`
}

type BridgeConfig struct {
	Interval  time.Duration `env:"XNOSTR_INTERVAL"   yaml:"interval"`
	Schedule  string        `env:"XNOSTR_SCHEDULE"   yaml:"schedule"` // cron expression, overrides Interval
	PostDelay time.Duration `env:"XNOSTR_POST_DELAY" yaml:"post_delay"`
}

type HealthConfig struct {
	Enabled bool   `env:"XNOSTR_HEALTH_ENABLED" yaml:"enabled"`
	Host    string `env:"XNOSTR_HEALTH_HOST"    yaml:"host"`
	Port    int    `env:"XNOSTR_HEALTH_PORT"    yaml:"port"`
}

// StoreConfig selects where the feed cursor lives. An empty RedisURL keeps it
// in process memory only.
type StoreConfig struct {
	RedisURL string `env:"XNOSTR_REDIS_URL" yaml:"redis_url"`
	Key      string `env:"XNOSTR_REDIS_KEY" yaml:"key"`
}

type AlertsConfig struct {
	Prefix   string              `env:"XNOSTR_ALERT_PREFIX" yaml:"prefix"` // first token of every alert line
	Discord  DiscordAlertConfig  `yaml:"discord"`
	Slack    SlackAlertConfig    `yaml:"slack"`
	Telegram TelegramAlertConfig `yaml:"telegram"`
}

type DiscordAlertConfig struct {
	WebhookURL string `env:"XNOSTR_ALERT_DISCORD_WEBHOOK" yaml:"webhook_url"`
}

type SlackAlertConfig struct {
	WebhookURL string `env:"XNOSTR_ALERT_SLACK_WEBHOOK" yaml:"webhook_url"`
}

type TelegramAlertConfig struct {
	Token  string `env:"XNOSTR_ALERT_TELEGRAM_TOKEN"   yaml:"token"`
	ChatID int64  `env:"XNOSTR_ALERT_TELEGRAM_CHAT_ID" yaml:"chat_id"`
}

// LoadOptions tells Load where to look for the optional files.
type LoadOptions struct {
	ConfigPath string // YAML file, missing is fine
	EnvFile    string // dotenv file, missing is fine
}

// Load builds a Config from defaults, then the YAML file, then the process
// environment; later sources win. The dotenv file is merged into the
// environment first without overriding variables that are already set. It does not
// validate; call Validate before using the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			// godotenv.Load never overrides variables already set.
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
			}
		}
	}

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			// ${VAR} references, as written by "migrate from-dotenv", resolve here.
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", opts.ConfigPath, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Media.StageDir = expandHome(cfg.Media.StageDir)
	return cfg, nil
}

// EncodeConfig renders cfg as YAML. A non-empty header is written first and
// should already be YAML comment lines.
func EncodeConfig(cfg *Config, header string) ([]byte, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append([]byte(header), body...), nil
}

// SaveConfig writes cfg to path with mode 0600, creating parent directories.
func SaveConfig(path string, cfg *Config, header string) error {
	data, err := EncodeConfig(cfg, header)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// EnsureStageDir creates the scratch directory used by the media relay.
func (c *Config) EnsureStageDir() error {
	if err := os.MkdirAll(c.Media.StageDir, 0o700); err != nil {
		return fmt.Errorf("create stage dir %s: %w", c.Media.StageDir, err)
	}
	return nil
}

// HealthAddr returns host:port for the health server.
func (c *Config) HealthAddr() string {
	return fmt.Sprintf("%s:%d", c.Health.Host, c.Health.Port)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
