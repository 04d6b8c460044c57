package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"storedesk/pkg/domain"
	"storedesk/pkg/settings"
)

// ConfigPath is read when neither an explicit path nor STOREDESK_CONFIG is given.
const ConfigPath = "config.yaml"

const (
	defaultPort           = "8090"
	defaultLogLevel       = "info"
	defaultMaxUploadBytes = 50 << 20
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                     string           `yaml:"port"`
	LogLevel                 string           `yaml:"logLevel"`
	LogFile                  string           `yaml:"logFile"`
	SettingsBackend          string           `yaml:"settingsBackend"`
	SettingsDir              string           `yaml:"settingsDir"`
	RedisAddr                string           `yaml:"redisAddr"`
	RedisPassword            string           `yaml:"redisPassword"`
	DatabaseURL              string           `yaml:"databaseURL"`
	WebhookBaseURL           string           `yaml:"webhookBaseURL"`
	RequestTimeout           string           `yaml:"requestTimeout"`
	MaxUploadBytes           int64            `yaml:"maxUploadBytes"`
	AllowedOrigins           []string         `yaml:"allowedOrigins"`
	TrustedProxyCIDRs        []string         `yaml:"trustedProxyCidrs"`
	ChatRateLimitPerMinute   int              `yaml:"chatRateLimitPerMinute"`
	UploadRateLimitPerMinute int              `yaml:"uploadRateLimitPerMinute"`
	Endpoints                domain.Endpoints `yaml:"endpoints"`
}

// Default returns the configuration used when no file is present.
func Default() FileConfig {
	return FileConfig{
		Port:            defaultPort,
		LogLevel:        defaultLogLevel,
		SettingsBackend: settings.BackendFile,
		SettingsDir:     DefaultSettingsDir(),
		MaxUploadBytes:  defaultMaxUploadBytes,
	}
}

// DefaultSettingsDir is ~/.storedesk, or .storedesk when the home directory is unknown.
func DefaultSettingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".storedesk"
	}
	return filepath.Join(home, ".storedesk")
}

// Load reads config from path. An empty path falls back to STOREDESK_CONFIG
// and then config.yaml; only the implicit config.yaml may be absent.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	explicit := true
	if path == "" {
		path = strings.TrimSpace(os.Getenv("STOREDESK_CONFIG"))
	}
	if path == "" {
		path = ConfigPath
		explicit = false
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("STOREDESK_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREDESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREDESK_LOG_FILE"); v != "" {
		cfg.LogFile = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREDESK_SETTINGS_BACKEND"); v != "" {
		cfg.SettingsBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("STOREDESK_SETTINGS_DIR"); v != "" {
		cfg.SettingsDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STOREDESK_WEBHOOK_BASE_URL"); v != "" {
		cfg.WebhookBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREDESK_REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREDESK_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("STOREDESK_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("STOREDESK_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("STOREDESK_CHAT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.ChatRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("STOREDESK_UPLOAD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.UploadRateLimitPerMinute = n
		}
	}
	for env, slot := range endpointEnv(&cfg.Endpoints) {
		if v := os.Getenv(env); v != "" {
			*slot = strings.TrimSpace(v)
		}
	}
}

func endpointEnv(e *domain.Endpoints) map[string]*string {
	return map[string]*string{
		"STOREDESK_LIST_STORES_URL":     &e.ListStores,
		"STOREDESK_CREATE_STORE_URL":    &e.CreateStore,
		"STOREDESK_DELETE_STORE_URL":    &e.DeleteStore,
		"STOREDESK_LIST_DOCUMENTS_URL":  &e.ListDocuments,
		"STOREDESK_UPLOAD_DOCUMENT_URL": &e.UploadDocument,
		"STOREDESK_DELETE_DOCUMENT_URL": &e.DeleteDocument,
		"STOREDESK_CHAT_URL":            &e.Chat,
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set in config.yaml or STOREDESK_PORT)")
	}
	switch cfg.SettingsBackend {
	case settings.BackendMemory:
	case settings.BackendFile:
		if strings.TrimSpace(cfg.SettingsDir) == "" {
			return errors.New("config: settingsDir is required for the file settings backend")
		}
	case settings.BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis settings backend")
		}
	case settings.BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres settings backend")
		}
	default:
		return fmt.Errorf("config: unknown settingsBackend %q (memory, file, redis or postgres)", cfg.SettingsBackend)
	}
	if base := strings.TrimSpace(cfg.WebhookBaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("config: webhookBaseURL must be an absolute http(s) URL")
		}
	}
	if err := cfg.Endpoints.Validate(); err != nil {
		return fmt.Errorf("config: endpoints: %w", err)
	}
	if _, err := ParseRequestTimeout(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.ChatRateLimitPerMinute < 0 || cfg.UploadRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.ChatRateLimitPerMinute > 0 || cfg.UploadRateLimitPerMinute > 0) && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when rate limits are enabled")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseRequestTimeout parses the optional per-request webhook timeout.
// Empty means no timeout.
func ParseRequestTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid requestTimeout duration: %w", err)
	}
	if dur < 0 {
		return 0, errors.New("requestTimeout must be >= 0")
	}
	return dur, nil
}
