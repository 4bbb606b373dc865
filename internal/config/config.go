// Package config provides configuration management for previewd.
// Configuration is seeded from defaults, optionally overlaid by a TOML file,
// and finally overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultAddr             = ":8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultFFmpegPath       = "ffmpeg"
	DefaultStoreDriver      = "s3"
	DefaultRegion           = "auto"
	DefaultTranscodeTimeout = 120 * time.Second
	DefaultMaxTranscodes    = 4

	// Environment variable names
	EnvConfigFile       = "PREVIEW_CONFIG"
	EnvAddr             = "PREVIEW_ADDR"
	EnvLogLevel         = "PREVIEW_LOG_LEVEL"
	EnvLogFormat        = "PREVIEW_LOG_FORMAT"
	EnvFFmpegPath       = "PREVIEW_FFMPEG_PATH"
	EnvBucket           = "PREVIEW_BUCKET"
	EnvStoreDriver      = "PREVIEW_STORE_DRIVER"
	EnvS3Endpoint       = "PREVIEW_S3_ENDPOINT"
	EnvS3Region         = "PREVIEW_S3_REGION"
	EnvS3AccessKeyID    = "PREVIEW_S3_ACCESS_KEY_ID"
	EnvS3SecretKey      = "PREVIEW_S3_SECRET_ACCESS_KEY"
	EnvS3UseSSL         = "PREVIEW_S3_USE_SSL"
	EnvScratchDir       = "PREVIEW_SCRATCH_DIR"
	EnvTranscodeTimeout = "PREVIEW_TRANSCODE_TIMEOUT"
	EnvMaxTranscodes    = "PREVIEW_MAX_TRANSCODES"
	EnvAPIToken         = "PREVIEW_API_TOKEN"
	EnvLedgerPath       = "PREVIEW_LEDGER_PATH"
)

// Config defines the application configuration interface
type Config interface {
	Validate() error
	RequireStore() error

	Addr() string
	LogLevel() string
	LogFormat() string
	FFmpegPath() string
	Bucket() string
	StoreDriver() string
	S3Endpoint() string
	S3Region() string
	S3AccessKeyID() string
	S3SecretAccessKey() string
	S3UseSSL() bool
	ScratchDir() string
	TranscodeTimeout() time.Duration
	MaxTranscodes() int
	APIToken() string
	LedgerPath() string
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Server struct {
		Addr      string `toml:"addr"`
		APIToken  string `toml:"api_token"`
		LogLevel  string `toml:"log_level"`
		LogFormat string `toml:"log_format"`
	} `toml:"server"`
	Storage struct {
		Driver          string `toml:"driver"`
		Bucket          string `toml:"bucket"`
		Endpoint        string `toml:"endpoint"`
		Region          string `toml:"region"`
		AccessKeyID     string `toml:"access_key_id"`
		SecretAccessKey string `toml:"secret_access_key"`
		UseSSL          *bool  `toml:"use_ssl"`
	} `toml:"storage"`
	Transcode struct {
		FFmpegPath     string `toml:"ffmpeg_path"`
		ScratchDir     string `toml:"scratch_dir"`
		TimeoutSeconds *int   `toml:"timeout_seconds"`
		MaxConcurrent  int    `toml:"max_concurrent"`
	} `toml:"transcode"`
	Ledger struct {
		Path string `toml:"path"`
	} `toml:"ledger"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	addr      string
	logLevel  string
	logFormat string
	apiToken  string

	ffmpegPath       string
	scratchDir       string
	transcodeTimeout time.Duration
	maxTranscodes    int

	bucket      string
	storeDriver string
	s3Endpoint  string
	s3Region    string
	s3AccessKey string
	s3SecretKey string
	s3UseSSL    bool

	ledgerPath string
}

func defaults() *EnvConfig {
	return &EnvConfig{
		addr:             DefaultAddr,
		logLevel:         DefaultLogLevel,
		logFormat:        DefaultLogFormat,
		ffmpegPath:       DefaultFFmpegPath,
		transcodeTimeout: DefaultTranscodeTimeout,
		maxTranscodes:    DefaultMaxTranscodes,
		storeDriver:      DefaultStoreDriver,
		s3Region:         DefaultRegion,
		s3UseSSL:         true,
	}
}

// New builds the configuration. path names an optional TOML file; when empty,
// PREVIEW_CONFIG is consulted.
func New(path string) (*EnvConfig, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.addr, fc.Server.Addr)
	setString(&c.apiToken, fc.Server.APIToken)
	setString(&c.logLevel, fc.Server.LogLevel)
	setString(&c.logFormat, fc.Server.LogFormat)

	setString(&c.storeDriver, fc.Storage.Driver)
	setString(&c.bucket, fc.Storage.Bucket)
	setString(&c.s3Endpoint, fc.Storage.Endpoint)
	setString(&c.s3Region, fc.Storage.Region)
	setString(&c.s3AccessKey, fc.Storage.AccessKeyID)
	setString(&c.s3SecretKey, fc.Storage.SecretAccessKey)
	if fc.Storage.UseSSL != nil {
		c.s3UseSSL = *fc.Storage.UseSSL
	}

	setString(&c.ffmpegPath, fc.Transcode.FFmpegPath)
	setString(&c.scratchDir, fc.Transcode.ScratchDir)
	if fc.Transcode.TimeoutSeconds != nil {
		c.transcodeTimeout = time.Duration(*fc.Transcode.TimeoutSeconds) * time.Second
	}
	if fc.Transcode.MaxConcurrent != 0 {
		c.maxTranscodes = fc.Transcode.MaxConcurrent
	}

	setString(&c.ledgerPath, fc.Ledger.Path)
	return nil
}

func (c *EnvConfig) loadEnv() error {
	setString(&c.addr, os.Getenv(EnvAddr))
	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.logFormat, os.Getenv(EnvLogFormat))
	setString(&c.apiToken, os.Getenv(EnvAPIToken))
	setString(&c.ffmpegPath, os.Getenv(EnvFFmpegPath))
	setString(&c.scratchDir, os.Getenv(EnvScratchDir))
	setString(&c.bucket, os.Getenv(EnvBucket))
	setString(&c.storeDriver, os.Getenv(EnvStoreDriver))
	setString(&c.s3Endpoint, os.Getenv(EnvS3Endpoint))
	setString(&c.s3Region, os.Getenv(EnvS3Region))
	setString(&c.s3AccessKey, os.Getenv(EnvS3AccessKeyID))
	setString(&c.s3SecretKey, os.Getenv(EnvS3SecretKey))
	setString(&c.ledgerPath, os.Getenv(EnvLedgerPath))

	if v := os.Getenv(EnvS3UseSSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvS3UseSSL, err)
		}
		c.s3UseSSL = b
	}

	if v := os.Getenv(EnvTranscodeTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTranscodeTimeout, err)
		}
		c.transcodeTimeout = d
	}

	if v := os.Getenv(EnvMaxTranscodes); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxTranscodes, err)
		}
		c.maxTranscodes = n
	}
	return nil
}

// Validate checks settings that every command depends on.
func (c *EnvConfig) Validate() error {
	switch c.storeDriver {
	case "s3", "minio":
	default:
		return fmt.Errorf("invalid %s: unknown driver %q (want s3 or minio)", EnvStoreDriver, c.storeDriver)
	}
	if c.maxTranscodes < 1 {
		return fmt.Errorf("invalid %s: must be at least 1", EnvMaxTranscodes)
	}
	if c.transcodeTimeout < 0 {
		return fmt.Errorf("invalid %s: must not be negative", EnvTranscodeTimeout)
	}
	return nil
}

// RequireStore checks the settings needed to reach the object store.
func (c *EnvConfig) RequireStore() error {
	var missing []string
	if c.bucket == "" {
		missing = append(missing, EnvBucket)
	}
	if c.storeDriver == "minio" && c.s3Endpoint == "" {
		missing = append(missing, EnvS3Endpoint)
	}
	if len(missing) > 0 {
		return errors.New("missing required settings: " + strings.Join(missing, ", "))
	}
	return nil
}

func (c *EnvConfig) Addr() string                    { return c.addr }
func (c *EnvConfig) LogLevel() string                { return c.logLevel }
func (c *EnvConfig) LogFormat() string               { return c.logFormat }
func (c *EnvConfig) FFmpegPath() string              { return c.ffmpegPath }
func (c *EnvConfig) Bucket() string                  { return c.bucket }
func (c *EnvConfig) StoreDriver() string             { return c.storeDriver }
func (c *EnvConfig) S3Endpoint() string              { return c.s3Endpoint }
func (c *EnvConfig) S3Region() string                { return c.s3Region }
func (c *EnvConfig) S3AccessKeyID() string           { return c.s3AccessKey }
func (c *EnvConfig) S3SecretAccessKey() string       { return c.s3SecretKey }
func (c *EnvConfig) S3UseSSL() bool                  { return c.s3UseSSL }
func (c *EnvConfig) TranscodeTimeout() time.Duration { return c.transcodeTimeout }
func (c *EnvConfig) MaxTranscodes() int              { return c.maxTranscodes }
func (c *EnvConfig) APIToken() string                { return c.apiToken }
func (c *EnvConfig) LedgerPath() string              { return c.ledgerPath }

// ScratchDir returns the directory for request-scoped temporary files.
func (c *EnvConfig) ScratchDir() string {
	if c.scratchDir != "" {
		return c.scratchDir
	}
	return os.TempDir()
}

// parseDuration accepts Go durations ("90s", "2m") or bare seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
