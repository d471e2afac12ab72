package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livetree-dev/livetree/internal/errors"
	"github.com/livetree-dev/livetree/pkg/server"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "livetree.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// used when no JSON file exists.
	YAMLConfigFileName = "livetree.yaml"

	// DefaultAddress is the default server address.
	DefaultAddress = ":8080"

	// DefaultExportDir is the default directory of file exports.
	DefaultExportDir = "dist"
)

// Export targets.
const (
	TargetFile = "file"
	TargetS3   = "s3"
)

// Config represents a livetree configuration file.
type Config struct {
	// Title is the document title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Width is the page width in pixels.
	Width int `json:"width,omitempty" yaml:"width,omitempty"`

	// Style is merged over the default page style.
	Style map[string]any `json:"style,omitempty" yaml:"style,omitempty"`

	// Offline pages are never served, only exported.
	Offline bool `json:"offline,omitempty" yaml:"offline,omitempty"`

	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	Export ExportConfig `json:"export,omitempty" yaml:"export,omitempty"`
	Log    LogConfig    `json:"log,omitempty" yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig configures the page server.
type ServerConfig struct {
	Address           string `json:"address,omitempty" yaml:"address,omitempty"`
	ReadTimeout       string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout      string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	HeartbeatInterval string `json:"heartbeatInterval,omitempty" yaml:"heartbeatInterval,omitempty"`
	ShutdownTimeout   string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
	MaxMessageSize    int64  `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`
	MaxQueue          int    `json:"maxQueue,omitempty" yaml:"maxQueue,omitempty"`
	SendQueue         int    `json:"sendQueue,omitempty" yaml:"sendQueue,omitempty"`
	ClientScript      string `json:"clientScript,omitempty" yaml:"clientScript,omitempty"`
	StaticDir         string `json:"staticDir,omitempty" yaml:"staticDir,omitempty"`

	// AnyOrigin accepts WebSocket upgrades from every origin.
	AnyOrigin bool `json:"anyOrigin,omitempty" yaml:"anyOrigin,omitempty"`
}

// ExportConfig selects where exported pages are written.
type ExportConfig struct {
	// Target is "file" or "s3".
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Dir is the output directory of file exports.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: DefaultAddress,
		},
		Export: ExportConfig{
			Target: TargetFile,
			Dir:    DefaultExportDir,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from dir. It looks for livetree.json first and
// livetree.yaml second.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if yamlPath := filepath.Join(dir, YAMLConfigFileName); fileExists(yamlPath) {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E202").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or pass --config")
		}
		return nil, errors.New("E201").Wrap(err)
	}

	// Defaults come from applyDefaults so they depend on what the file sets.
	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	}
	if err != nil {
		return nil, errors.New("E201").
			Wrap(err).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path, as YAML when path says so.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E201").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E201").Wrap(err)
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

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Export.Target == "" {
		c.Export.Target = TargetFile
	}
	if c.Export.Target == TargetFile && c.Export.Dir == "" {
		c.Export.Dir = DefaultExportDir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	_, port, err := net.SplitHostPort(c.Server.Address)
	if err != nil {
		return errors.New("E203").
			WithDetail("Server address " + strconv.Quote(c.Server.Address) + " is not host:port").
			WithSuggestion(`Use an address such as ":8080" or "127.0.0.1:8080"`)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return errors.New("E203").
			WithDetail("Port must be between 0 and 65535")
	}

	for _, d := range c.durations(server.DefaultConfig()) {
		if d.value == "" {
			continue
		}
		if v, err := time.ParseDuration(d.value); err != nil || v < 0 {
			return errors.New("E201").
				WithDetailf("server.%s: invalid duration %q", d.name, d.value)
		}
	}

	switch c.Export.Target {
	case TargetFile:
	case TargetS3:
		if c.Export.Bucket == "" {
			return errors.New("E204").
				WithDetail("S3 exports need a bucket").
				WithSuggestion(`Set export.bucket`)
		}
	default:
		return errors.New("E204").
			WithDetailf("Unknown export target %q", c.Export.Target).
			WithSuggestion(`Use "file" or "s3"`)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E201").
			WithDetailf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

type duration struct {
	name  string
	value string
	dst   *time.Duration
}

func (c *Config) durations(dst *server.Config) []duration {
	return []duration{
		{"readTimeout", c.Server.ReadTimeout, &dst.ReadTimeout},
		{"writeTimeout", c.Server.WriteTimeout, &dst.WriteTimeout},
		{"heartbeatInterval", c.Server.HeartbeatInterval, &dst.HeartbeatInterval},
		{"shutdownTimeout", c.Server.ShutdownTimeout, &dst.ShutdownTimeout},
	}
}

// ServerConfig returns the server configuration. Unset fields keep the
// server defaults.
func (c *Config) ServerConfig() (*server.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := server.DefaultConfig().WithAddress(c.Server.Address)
	for _, d := range c.durations(cfg) {
		if v, _ := time.ParseDuration(d.value); v > 0 {
			*d.dst = v
		}
	}
	if c.Server.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Server.MaxMessageSize
	}
	if c.Server.MaxQueue > 0 {
		cfg.MaxQueue = c.Server.MaxQueue
	}
	if c.Server.SendQueue > 0 {
		cfg.SendQueue = c.Server.SendQueue
	}
	if c.Server.ClientScript != "" {
		cfg.ClientScript = c.Server.ClientScript
	}
	if c.Server.StaticDir != "" {
		cfg.StaticDir = c.resolve(c.Server.StaticDir)
	}
	if c.Server.AnyOrigin {
		cfg.CheckOrigin = server.AnyOrigin
	}
	return cfg, nil
}

// ExportDir returns the absolute path of the file export directory.
func (c *Config) ExportDir() string {
	if c.Export.Dir == "" {
		return c.resolve(DefaultExportDir)
	}
	return c.resolve(c.Export.Dir)
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E201").
			WithDetailf("log.level: unknown level %q", c.Log.Level).
			WithSuggestion("Use debug, info, warn or error")
	}
	return level, nil
}

// resolve makes path relative to the config file directory.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.configPath == "" {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists reports whether dir holds a configuration file.
func Exists(dir string) bool {
	return fileExists(filepath.Join(dir, ConfigFileName)) || fileExists(filepath.Join(dir, YAMLConfigFileName))
}

// FindProjectRoot walks up from startDir to the first directory holding a
// configuration file.
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
			return "", errors.New("E202").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the configuration of the current directory or its
// nearest parent. Without any configuration file it returns the defaults.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}
	return Load(root)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
