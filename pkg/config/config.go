// Package config loads ledgerwatch settings from flags, environment
// variables prefixed with LEDGERWATCH_ and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Phillezi/ledgerwatch/pkg/api"
	"github.com/Phillezi/ledgerwatch/pkg/feed"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "LEDGERWATCH"

const (
	KeyConfig          = "config"
	KeyAPIListen       = "api-listen"
	KeyFeed            = "feed"
	KeyLogVerbosity    = "log-verbosity"
	KeyPrompt          = "prompt"
	KeyMetrics         = "metrics"
	KeyShutdownTimeout = "api-shutdown-timeout"
)

// Config holds the settings of a run.
type Config struct {
	APIListen       string
	Feed            string
	LogVerbosity    int
	Prompt          bool
	Metrics         bool
	ShutdownTimeout time.Duration
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		APIListen: api.DefaultAddr,
		Feed:      feed.DefaultURL,
		Prompt:    true,
		Metrics:   true,
	}
}

// AddFlags registers the flags of every key on fs and binds them to v.
func AddFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	d := Defaults()
	fs.StringP(KeyConfig, "c", "", "path to YAML config file")
	fs.String(KeyAPIListen, d.APIListen, "listen address of the health and metrics API")
	fs.String(KeyFeed, d.Feed, "ledger update feed (http(s):// URL, file path, or - for stdin)")
	fs.IntP(KeyLogVerbosity, "v", d.LogVerbosity, "log verbosity (0 info, 1 debug, 2 trace)")
	fs.Bool(KeyPrompt, d.Prompt, "print a prompt on shutdown explaining how to force exit")
	fs.Bool(KeyMetrics, d.Metrics, "expose Prometheus metrics on /metrics")
	fs.Duration(KeyShutdownTimeout, d.ShutdownTimeout, "bound on graceful API shutdown (0 waits for in-flight requests)")

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return errors.Join(errs...)
}

// Load reads the config file named by the config key, if any, and returns
// the validated settings.
func Load(v *viper.Viper) (Config, error) {
	if path := strings.TrimSpace(v.GetString(KeyConfig)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	cfg := Config{
		APIListen:       strings.TrimSpace(v.GetString(KeyAPIListen)),
		Feed:            strings.TrimSpace(v.GetString(KeyFeed)),
		LogVerbosity:    v.GetInt(KeyLogVerbosity),
		Prompt:          v.GetBool(KeyPrompt),
		Metrics:         v.GetBool(KeyMetrics),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Feed == "" {
		return errors.New("config: feed must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.APIListen); err != nil {
		return fmt.Errorf("config: invalid %s %q: %w", KeyAPIListen, c.APIListen, err)
	}
	if c.LogVerbosity < 0 {
		return fmt.Errorf("config: %s must not be negative", KeyLogVerbosity)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: %s must not be negative", KeyShutdownTimeout)
	}
	return nil
}
