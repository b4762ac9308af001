package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/vango-dev/state/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "state.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STATE_"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultStorageDir is the default directory of the file driver.
	DefaultStorageDir = ".state"

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = "10s"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
)

// Config represents the complete state.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server" envPrefix:"SERVER_"`

	// Storage selects the persistence backend for stores.
	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics" envPrefix:"METRICS_"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing" envPrefix:"TRACING_"`

	// Log contains logging configuration.
	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" env:"HOST"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" env:"PORT"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" env:"SHUTDOWN_TIMEOUT"`

	// AllowedOrigins lists extra origins allowed to open live connections.
	// "*" allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" env:"ALLOWED_ORIGINS"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Driver is one of memory, file, sqlite, s3.
	Driver string `json:"driver,omitempty" env:"DRIVER"`

	// Dir is the directory of the file driver.
	Dir string `json:"dir,omitempty" env:"DIR"`

	// DSN is the sqlite data source name.
	DSN string `json:"dsn,omitempty" env:"DSN"`

	// Table is the sqlite table name.
	Table string `json:"table,omitempty" env:"TABLE"`

	// Bucket, Prefix, Region and Endpoint configure the s3 driver.
	Bucket   string `json:"bucket,omitempty" env:"BUCKET"`
	Prefix   string `json:"prefix,omitempty" env:"PREFIX"`
	Region   string `json:"region,omitempty" env:"REGION"`
	Endpoint string `json:"endpoint,omitempty" env:"ENDPOINT"`

	// PathStyle addresses the bucket by path, as MinIO expects.
	PathStyle bool `json:"pathStyle,omitempty" env:"PATH_STYLE"`

	// AccessKeyID and SecretAccessKey are static s3 credentials. They are
	// normally supplied through the environment only.
	AccessKeyID     string `json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"SECRET_ACCESS_KEY"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and instruments stores.
	Enabled bool `json:"enabled" env:"ENABLED"`

	// Path is the metrics endpoint path.
	Path string `json:"path,omitempty" env:"PATH"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty" env:"NAMESPACE"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled wraps persistence hooks in spans.
	Enabled bool `json:"enabled" env:"ENABLED"`

	// TracerName is the tracer name.
	TracerName string `json:"tracerName,omitempty" env:"TRACER_NAME"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"FORMAT"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Dir:    DefaultStorageDir,
			Table:  "state_values",
			Region: "us-east-1",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "state",
		},
		Tracing: TracingConfig{
			TracerName: "statectl",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for state.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + path + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads state.json from dir, or returns the defaults bound to
// that path when the file does not exist.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}
	if errors.Code(err) != "E101" {
		return nil, err
	}
	cfg = New()
	cfg.configPath = filepath.Join(dir, ConfigFileName)
	return cfg, nil
}

// ApplyEnv overrides fields from STATE_ environment variables, e.g.
// STATE_SERVER_PORT or STATE_STORAGE_DRIVER.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix})
}

func (c *Config) applyEnv(opts env.Options) error {
	if err := env.ParseWithOptions(c, opts); err != nil {
		return errors.New("E108").Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "state_values"
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = filepath.Join(c.Storage.Dir, "state.db")
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "state"
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = "statectl"
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E103").
			WithDetailf("server.port is %d; it must be between 0 and 65535", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return errors.New("E106").
			WithDetailf("server.shutdownTimeout is %q", c.Server.ShutdownTimeout).
			Wrap(err)
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverS3:
		if c.Storage.Bucket == "" {
			return errors.New("E105").
				WithDetail("storage.bucket is required by the s3 driver").
				WithExample(`{"storage": {"driver": "s3", "bucket": "my-bucket"}}`)
		}
	default:
		return errors.New("E104").
			WithDetailf("storage.driver is %q", c.Storage.Driver)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E107").
			WithDetailf("log.format is %q", c.Log.Format)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ShutdownTimeout returns the parsed shutdown timeout, falling back to the
// default when the configured value is invalid.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// StoragePath returns the file driver directory, resolved against the
// config file directory when relative.
func (c *Config) StoragePath() string {
	if filepath.IsAbs(c.Storage.Dir) || c.Dir() == "" {
		return c.Storage.Dir
	}
	return filepath.Join(c.Dir(), c.Storage.Dir)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E107").
			WithDetailf("log.level is %q", c.Log.Level).
			Wrap(err)
	}
	return level, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// state.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest state.json above the working
// directory, or the defaults bound to the working directory when there is
// none. Environment overrides are applied either way.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := wd
	if root, err := FindProjectRoot(wd); err == nil {
		dir = root
	}

	cfg, err := LoadOrDefault(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
