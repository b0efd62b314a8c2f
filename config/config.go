package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Mirror MirrorConfig `json:"mirror" yaml:"mirror"`
	Remote RemoteConfig `json:"remote" yaml:"remote"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Logger LoggerConfig `json:"logger" yaml:"logger"`
	Notify NotifyConfig `json:"notify" yaml:"notify"`
}

// Validate validates the entire configuration. Any error here is fatal and
// must be surfaced before a single directory is dispatched.
func (ac *AppConfig) Validate() error {
	if err := ac.Mirror.Validate(); err != nil {
		return fmt.Errorf("mirror config error: %w", err)
	}
	if err := ac.Remote.Validate(); err != nil {
		return fmt.Errorf("remote config error: %w", err)
	}
	if err := ac.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config error: %w", err)
	}
	if err := ac.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config error: %w", err)
	}
	if err := ac.Notify.Validate(); err != nil {
		return fmt.Errorf("notify config error: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to all sections. The run cache
// lives under the mirror's cache dir unless placed explicitly.
func (ac *AppConfig) ApplyDefaults() {
	ac.Mirror.ApplyDefaults()
	ac.Remote.ApplyDefaults()
	ac.Cache.ApplyDefaults()
	ac.Logger.ApplyDefaults()

	if ac.Cache.Path == "" && ac.Mirror.CacheDir != "" {
		ac.Cache.Path = filepath.Join(ac.Mirror.CacheDir, "runs.db")
	}
}

// LoadFromEnv loads configuration from environment variables. Flags in cmd
// override whatever is set here.
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Mirror.DBDir = getEnv("CIRTAP_DB_DIR", "")
	cfg.Mirror.CacheDir = getEnv("CIRTAP_CACHE_DIR", "")
	cfg.Mirror.Jobs = getEnvInt("CIRTAP_JOBS", 1)
	cfg.Mirror.Resume = getEnvBool("CIRTAP_RESUME", false)
	cfg.Mirror.SkipReleaseCheck = getEnvBool("CIRTAP_SKIP_RELEASE_CHECK", false)
	cfg.Mirror.ForceCheck = getEnvBool("CIRTAP_FORCE_CHECK", false)
	cfg.Mirror.ArchiveNotes = getEnvBool("CIRTAP_ARCHIVE_NOTES", false)

	cfg.Logger.Level = getEnv("CIRTAP_LOG_LEVEL", "info")
	cfg.Logger.File = getEnv("CIRTAP_LOG_FILE", "")

	cfg.Remote.RemoteType = RemoteType(getEnv("CIRTAP_REMOTE_TYPE", string(RemoteTypeFTP)))
	cfg.Remote.Common.TimeoutSeconds = getEnvInt("CIRTAP_REMOTE_TIMEOUT_SECONDS", 60)
	cfg.Remote.Common.MaxRetries = getEnvInt("CIRTAP_REMOTE_MAX_RETRIES", 3)
	cfg.Remote.Common.MaxRPS = getEnvInt("CIRTAP_REMOTE_MAX_RPS", 0)
	cfg.Remote.Common.PoolSize = getEnvInt("CIRTAP_REMOTE_POOL_SIZE", 0)

	cfg.Remote.FTP = &FTPConfig{
		Host:     getEnv("CIRTAP_FTP_HOST", "ftp.patricbrc.org"),
		Port:     getEnvInt("CIRTAP_FTP_PORT", 21),
		Username: getEnv("CIRTAP_FTP_USERNAME", "anonymous"),
		Password: getEnv("CIRTAP_FTP_PASSWORD", "anonymous"),
		BasePath: getEnv("CIRTAP_FTP_BASE_PATH", "/"),
		UseTLS:   getEnvBool("CIRTAP_FTP_USE_TLS", false),
	}
	cfg.Remote.S3 = &S3Config{
		Region:          getEnv("CIRTAP_S3_REGION", ""),
		Bucket:          getEnv("CIRTAP_S3_BUCKET", ""),
		AccessKeyID:     getEnv("CIRTAP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("CIRTAP_S3_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("CIRTAP_S3_ENDPOINT", ""),
		Prefix:          getEnv("CIRTAP_S3_PREFIX", ""),
	}

	cfg.Cache.Path = getEnv("CIRTAP_CACHE_PATH", "")
	cfg.Cache.Bucket = getEnv("CIRTAP_CACHE_BUCKET", "runs")
	cfg.Cache.NoSync = getEnvBool("CIRTAP_CACHE_NO_SYNC", false)

	if v := getEnv("CIRTAP_NOTIFY", ""); v != "" {
		cfg.Notify.Recipients = SplitList(v)
	}
	cfg.Notify.SMTPHost = getEnv("CIRTAP_SMTP_HOST", "localhost")
	cfg.Notify.SMTPPort = getEnvInt("CIRTAP_SMTP_PORT", 25)
	cfg.Notify.From = getEnv("CIRTAP_SMTP_FROM", "cirtap@localhost")

	cfg.ApplyDefaults()

	return cfg, nil
}

// SplitList parses a comma-separated list, dropping empty elements.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
