// Package config loads gateway settings through Viper from flags,
// GATEWAY_-prefixed environment variables and an optional .gateway.yml.
//
// Every key is flat so that each maps directly onto one environment
// variable: port is GATEWAY_PORT, cache_ttl is GATEWAY_CACHE_TTL and so on.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	gwerrors "github.com/redraskal/gateway/internal/errors"
)

// EnvPrefix is the environment variable prefix bound by the CLI.
const EnvPrefix = "GATEWAY"

// Configuration keys.
const (
	KeyHostname       = "hostname"
	KeyPort           = "port"
	KeyEnv            = "env"
	KeyDebug          = "debug"
	KeyCacheTTL       = "cache_ttl"
	KeyJSONErrors     = "json_errors"
	KeyMaxBodySize    = "max_body_size"
	KeyGen            = "gen"
	KeyBuild          = "build"
	KeyPagesDir       = "pages_dir"
	KeyPublicDir      = "public_dir"
	KeyReloads        = "reloads"
	KeyAllowedOrigins = "allowed_origins"
	KeyMetricsAddr    = "metrics_addr"
	KeyLogFormat      = "log_format"
)

// Environment selects dev or prod behaviour.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

// IsDev reports whether the environment enables development behaviour.
// Only "dev" does; every other value behaves as prod.
func (e Environment) IsDev() bool {
	return e == EnvDev
}

type Config struct {
	Hostname       string      `mapstructure:"hostname" json:"hostname" yaml:"hostname"`
	Port           int         `mapstructure:"port" json:"port" yaml:"port"`
	Env            Environment `mapstructure:"env" json:"env" yaml:"env"`
	Debug          bool        `mapstructure:"-" json:"debug" yaml:"debug"`
	CacheTTL       int         `mapstructure:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`
	JSONErrors     bool        `mapstructure:"-" json:"json_errors" yaml:"json_errors"`
	MaxBodySize    int64       `mapstructure:"max_body_size" json:"max_body_size" yaml:"max_body_size"`
	Gen            string      `mapstructure:"gen" json:"gen,omitempty" yaml:"gen,omitempty"`
	Build          string      `mapstructure:"build" json:"build,omitempty" yaml:"build,omitempty"`
	PagesDir       string      `mapstructure:"pages_dir" json:"pages_dir" yaml:"pages_dir"`
	PublicDir      string      `mapstructure:"public_dir" json:"public_dir" yaml:"public_dir"`
	Reloads        int64       `mapstructure:"reloads" json:"reloads" yaml:"reloads"`
	AllowedOrigins []string    `mapstructure:"-" json:"allowed_origins" yaml:"allowed_origins"`
	MetricsAddr    string      `mapstructure:"metrics_addr" json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	LogFormat      string      `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHostname, "0.0.0.0")
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyEnv, string(EnvProd))
	v.SetDefault(KeyDebug, "false")
	v.SetDefault(KeyCacheTTL, 3600)
	v.SetDefault(KeyJSONErrors, "true")
	v.SetDefault(KeyMaxBodySize, 1<<20)
	v.SetDefault(KeyGen, "")
	v.SetDefault(KeyBuild, "")
	v.SetDefault(KeyPagesDir, "pages")
	v.SetDefault(KeyPublicDir, "public")
	v.SetDefault(KeyReloads, 0)
	v.SetDefault(KeyAllowedOrigins, []string{})
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyLogFormat, "auto")
}

// Load reads configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, gwerrors.Wrap(err, gwerrors.ErrorTypeConfig, "ERR_CONFIG_DECODE", "failed to decode configuration")
	}

	// Booleans follow the gateway's own rule rather than strconv's.
	config.Debug = ParseBool(v.GetString(KeyDebug))
	config.JSONErrors = ParseBool(v.GetString(KeyJSONErrors))
	config.AllowedOrigins = splitList(v.Get(KeyAllowedOrigins))

	config.Env = Environment(strings.ToLower(strings.TrimSpace(string(config.Env))))
	if config.Env == "" {
		config.Env = EnvProd
	}
	config.LogFormat = strings.ToLower(config.LogFormat)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// ParseBool accepts "true" and "1" in any case; everything else is false.
func ParseBool(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}

func splitList(raw interface{}) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
	case string:
		items = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	// Allow 0 for system-assigned ports in testing.
	if config.Port < 0 || config.Port > 65535 {
		return gwerrors.NewConfigError("ERR_PORT", fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if char, ok := dangerousChar(config.Hostname, `\`); ok {
		return gwerrors.NewConfigError("ERR_HOSTNAME", "hostname contains dangerous character: "+char)
	}

	if config.CacheTTL < 0 {
		return gwerrors.NewConfigError("ERR_CACHE_TTL", "cache_ttl must not be negative")
	}
	if config.MaxBodySize < 0 {
		return gwerrors.NewConfigError("ERR_MAX_BODY_SIZE", "max_body_size must not be negative")
	}
	if config.Reloads < 0 {
		return gwerrors.NewConfigError("ERR_RELOADS", "reloads must not be negative")
	}

	for key, dir := range map[string]string{KeyPagesDir: config.PagesDir, KeyPublicDir: config.PublicDir} {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if config.Gen != "" {
		if err := validatePath(config.Gen); err != nil {
			return fmt.Errorf("%s: %w", KeyGen, err)
		}
	}

	switch config.LogFormat {
	case "auto", "text", "json":
	default:
		return gwerrors.NewConfigError("ERR_LOG_FORMAT", fmt.Sprintf("log_format %q must be auto, text or json", config.LogFormat))
	}

	for _, origin := range config.AllowedOrigins {
		if _, ok := dangerousChar(origin, ""); ok {
			return gwerrors.ErrInvalidOrigin(origin)
		}
	}

	return nil
}

// validatePath validates a relative file path for security.
func validatePath(path string) error {
	if path == "" {
		return gwerrors.ErrInvalidPath(path)
	}

	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) {
		return nil
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return gwerrors.ErrPathTraversal(path)
	}
	if _, ok := dangerousChar(cleanPath, ""); ok {
		return gwerrors.ErrInvalidPath(path)
	}
	return nil
}

func dangerousChar(s, extra string) (string, bool) {
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	if extra != "" {
		dangerous = append(dangerous, extra)
	}
	for _, char := range dangerous {
		if strings.Contains(s, char) {
			return char, true
		}
	}
	return "", false
}
