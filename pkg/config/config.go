package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "MPERF"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSizeMiB is the default object size in MiB.
	DefaultSizeMiB = 5

	// DefaultParentDir is the default parent directory for session roots.
	DefaultParentDir = "mperf"

	// DefaultMaxOutstanding is the default admission gate capacity.
	DefaultMaxOutstanding = 20

	// DefaultIntervalMS is the default tick interval in milliseconds.
	DefaultIntervalMS = 500

	// DefaultBackend is the default storage backend.
	DefaultBackend = BackendLocal

	// DefaultLocalBaseDir is the default base directory of the local backend.
	DefaultLocalBaseDir = "."

	// DefaultReportInterval is the default throughput report interval.
	DefaultReportInterval = "10s"
)

// Valid ranges for the upload options.
const (
	MinSizeMiB        = 1
	MaxSizeMiB        = 5120
	MinMaxOutstanding = 1
	MaxMaxOutstanding = 500
	MinIntervalMS     = 100
	MaxIntervalMS     = 10000
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config is the root configuration for mperf.
type Config struct {
	LogLevel string        `yaml:"log_level" mapstructure:"log_level"`
	Upload   UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Storage  StorageConfig `yaml:"storage" mapstructure:"storage"`
	Metrics  MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Report   ReportConfig  `yaml:"report" mapstructure:"report"`
}

// UploadConfig controls the shape and rate of the generated write load.
type UploadConfig struct {
	SizeMiB        int    `yaml:"size" mapstructure:"size"`
	ParentDir      string `yaml:"parent_dir" mapstructure:"parent_dir"`
	MaxOutstanding int    `yaml:"max_outstanding" mapstructure:"max_outstanding"`
	IntervalMS     int    `yaml:"interval" mapstructure:"interval"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend string             `yaml:"backend" mapstructure:"backend"`
	Local   LocalStorageConfig `yaml:"local" mapstructure:"local"`
	S3      S3Config           `yaml:"s3" mapstructure:"s3"`
	Minio   MinioConfig        `yaml:"minio" mapstructure:"minio"`
}

// LocalStorageConfig writes objects to the local filesystem.
type LocalStorageConfig struct {
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"`
	// Owner optionally chowns created files and directories ("UID:GID").
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// S3Config contains settings for S3-compatible storage.
type S3Config struct {
	EndpointURL       string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region            string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket            string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID       string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle    bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StrictDirectories bool   `yaml:"strict_directories" mapstructure:"strict_directories"`
}

// MinioConfig contains settings for a MinIO server.
type MinioConfig struct {
	Endpoint          string `yaml:"endpoint" mapstructure:"endpoint"`
	Region            string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket            string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID       string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	UseSSL            bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	StrictDirectories bool   `yaml:"strict_directories" mapstructure:"strict_directories"`
}

// MetricsConfig configures the optional metrics HTTP server.
type MetricsConfig struct {
	Listen      string          `yaml:"listen,omitempty" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting of the metrics server.
// Zero disables rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ReportConfig configures the periodic throughput summary.
type ReportConfig struct {
	// Interval is a Go duration string. "0" disables reporting.
	Interval string `yaml:"interval" mapstructure:"interval"`
}

// ConfigurationError reports an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// flagBindings maps configuration keys to command line flag names.
var flagBindings = map[string]string{
	"log_level":              "log-level",
	"upload.size":            "size",
	"upload.parent_dir":      "parent-dir",
	"upload.max_outstanding": "max-outstanding",
	"upload.interval":        "interval",
	"storage.backend":        "backend",
	"storage.local.base_dir": "base-dir",
	"metrics.listen":         "metrics-listen",
}

// RegisterFlags adds the upload flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("size", "s", DefaultSizeMiB,
		fmt.Sprintf("size of uploaded objects in MiB (%d-%d)", MinSizeMiB, MaxSizeMiB))
	fs.StringP("parent-dir", "d", DefaultParentDir,
		"parent directory target for objects")
	fs.IntP("max-outstanding", "q", DefaultMaxOutstanding,
		fmt.Sprintf("max number of outstanding uploads (%d-%d)", MinMaxOutstanding, MaxMaxOutstanding))
	fs.IntP("interval", "i", DefaultIntervalMS,
		fmt.Sprintf("milliseconds between upload ticks (%d-%d)", MinIntervalMS, MaxIntervalMS))
	fs.String("backend", DefaultBackend,
		"storage backend ("+strings.Join([]string{BackendLocal, BackendS3, BackendMinio}, ", ")+")")
	fs.String("base-dir", DefaultLocalBaseDir, "base directory of the local backend")
	fs.String("metrics-listen", "", "metrics server listen address (disabled when empty)")
}

// Load builds the configuration from defaults, an optional YAML file, the
// environment and any flags in flags that were set, in increasing order of
// precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// LOG_LEVEL is honoured for compatibility with existing deployments.
	if err := v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("binding log level env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}

			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("binding flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key so that environment
// overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetDefault("upload.size", DefaultSizeMiB)
	v.SetDefault("upload.parent_dir", DefaultParentDir)
	v.SetDefault("upload.max_outstanding", DefaultMaxOutstanding)
	v.SetDefault("upload.interval", DefaultIntervalMS)

	v.SetDefault("storage.backend", DefaultBackend)
	v.SetDefault("storage.local.base_dir", DefaultLocalBaseDir)
	v.SetDefault("storage.local.owner", "")

	for _, backend := range []string{BackendS3, BackendMinio} {
		v.SetDefault("storage."+backend+".region", "")
		v.SetDefault("storage."+backend+".bucket", "")
		v.SetDefault("storage."+backend+".access_key_id", "")
		v.SetDefault("storage."+backend+".secret_access_key", "")
		v.SetDefault("storage."+backend+".strict_directories", true)
	}

	v.SetDefault("storage.s3.endpoint_url", "")
	v.SetDefault("storage.s3.force_path_style", false)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.use_ssl", true)

	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.cors_origins", []string{})
	v.SetDefault("metrics.rate_limit.requests_per_minute", 0)

	v.SetDefault("report.interval", DefaultReportInterval)
}

// Validate checks the configuration and returns a *ConfigurationError
// describing the first invalid value.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ConfigurationError{Field: "log level", Reason: err.Error()}
	}

	if err := c.Upload.validate(); err != nil {
		return err
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.Metrics.RateLimit.RequestsPerMinute < 0 {
		return &ConfigurationError{
			Field:  "metrics rate limit",
			Reason: "requests per minute must not be negative",
		}
	}

	if _, err := c.Report.Duration(); err != nil {
		return &ConfigurationError{Field: "report interval", Reason: err.Error()}
	}

	return nil
}

func (u *UploadConfig) validate() error {
	if u.SizeMiB < MinSizeMiB || u.SizeMiB > MaxSizeMiB {
		return &ConfigurationError{
			Field:  "object size",
			Reason: fmt.Sprintf("must be between %d and %d", MinSizeMiB, MaxSizeMiB),
		}
	}

	if strings.TrimSpace(u.ParentDir) == "" {
		return &ConfigurationError{Field: "parent directory", Reason: "must not be empty"}
	}

	if u.MaxOutstanding < MinMaxOutstanding || u.MaxOutstanding > MaxMaxOutstanding {
		return &ConfigurationError{
			Field: "max outstanding",
			Reason: fmt.Sprintf("outstanding requests must be between %d and %d",
				MinMaxOutstanding, MaxMaxOutstanding),
		}
	}

	if u.IntervalMS < MinIntervalMS || u.IntervalMS > MaxIntervalMS {
		return &ConfigurationError{
			Field:  "interval",
			Reason: fmt.Sprintf("req interval must be between %d and %d", MinIntervalMS, MaxIntervalMS),
		}
	}

	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Backend {
	case BackendLocal:
		if s.Local.BaseDir == "" {
			return &ConfigurationError{Field: "local base directory", Reason: "must not be empty"}
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			return &ConfigurationError{Field: "s3 bucket", Reason: "bucket is required"}
		}
	case BackendMinio:
		if s.Minio.Endpoint == "" {
			return &ConfigurationError{Field: "minio endpoint", Reason: "endpoint is required"}
		}

		if s.Minio.Bucket == "" {
			return &ConfigurationError{Field: "minio bucket", Reason: "bucket is required"}
		}
	default:
		return &ConfigurationError{
			Field:  "storage backend",
			Reason: fmt.Sprintf("unknown backend %q", s.Backend),
		}
	}

	return nil
}

// ObjectSizeBytes returns the configured object size in bytes.
func (u *UploadConfig) ObjectSizeBytes() int64 {
	return int64(u.SizeMiB) * units.MiB
}

// Interval returns the tick interval.
func (u *UploadConfig) Interval() time.Duration {
	return time.Duration(u.IntervalMS) * time.Millisecond
}

// Duration parses the report interval. An empty string or "0" disables reporting.
func (r *ReportConfig) Duration() (time.Duration, error) {
	if r.Interval == "" || r.Interval == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(r.Interval)
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}

	return d, nil
}
