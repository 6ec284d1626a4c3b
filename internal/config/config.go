package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DockerConfig struct {
	Memory  string `mapstructure:"memory"`
	Network bool   `mapstructure:"network"`
}

type ExecutionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxOutput  int           `mapstructure:"max_output"`
	MaxSource  int64         `mapstructure:"max_source"`
	ScratchDir string        `mapstructure:"scratch_dir"`
	Sandbox    string        `mapstructure:"sandbox"`
	Docker     DockerConfig  `mapstructure:"docker"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Burst      int           `mapstructure:"burst"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Log       LogConfig       `mapstructure:"log"`
}

const (
	SandboxProcess = "process"
	SandboxDocker  = "docker"
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.allowed_origins": "ALLOWED_ORIGINS",
	"execution.timeout":      "EXECUTION_TIMEOUT",
	"execution.max_output":   "EXECUTION_MAX_OUTPUT",
	"execution.scratch_dir":  "SCRATCH_DIR",
	"execution.sandbox":      "SANDBOX",
	"log.json":               "LOG_JSON",
	"log.level":              "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("execution.timeout", 10*time.Second)
	v.SetDefault("execution.max_output", 1<<20)
	v.SetDefault("execution.max_source", 512<<10)
	v.SetDefault("execution.scratch_dir", filepath.Join(os.TempDir(), "codecollab"))
	v.SetDefault("execution.sandbox", SandboxProcess)
	v.SetDefault("execution.docker.memory", "256m")
	v.SetDefault("execution.docker.network", false)
	v.SetDefault("execution.rate_limit", 5.0)
	v.SetDefault("execution.burst", 10)
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path searches
// codecollab.yaml in the working directory and $HOME/.codecollab; a missing
// file is not an error unless path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codecollab")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.codecollab")
	}

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "binding %s", env)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config")
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	cfg.Server.AllowedOrigins = trimAll(cfg.Server.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make the server unusable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.WithHint(errors.Newf("invalid port %d", c.Server.Port), "set server.port or PORT to 1-65535")
	}
	if c.Execution.Timeout <= 0 {
		return errors.WithHint(errors.Newf("invalid execution timeout %s", c.Execution.Timeout), "use a duration such as 10s")
	}
	if c.Execution.MaxOutput <= 0 {
		return errors.Newf("invalid execution.max_output %d", c.Execution.MaxOutput)
	}
	if c.Execution.MaxSource <= 0 {
		return errors.Newf("invalid execution.max_source %d", c.Execution.MaxSource)
	}
	switch c.Execution.Sandbox {
	case SandboxProcess, SandboxDocker:
	default:
		return errors.WithHint(errors.Newf("unknown sandbox %q", c.Execution.Sandbox), "use process or docker")
	}
	return nil
}

// OriginAllowed reports whether a browser origin may call the API. An empty
// origin (non-browser client) is always allowed; "*" allows every origin.
func (s ServerConfig) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// AllowsAnyOrigin reports whether "*" is configured.
func (s ServerConfig) AllowsAnyOrigin() bool {
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" {
			return true
		}
	}
	return false
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
