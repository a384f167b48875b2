package confloader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	goGuard "github.com/MrEthical07/goGuard"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "GOGUARD_"

// Loader merges configuration sources with koanf.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets a YAML file to load. An empty path is skipped.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets dotted keys applied after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies every source and unmarshals into target. Fields of target
// not named by any source keep their current values.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// GOGUARD_JWT__ACCESS_TTL -> jwt.access_ttl
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Keys lists every loaded key.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// LoadConfig returns goGuard.DefaultConfig overlaid with the loader's
// sources, validated.
func LoadConfig(opts ...Option) (goGuard.Config, error) {
	cfg := goGuard.DefaultConfig()
	if err := NewLoader(opts...).Load(&cfg); err != nil {
		return goGuard.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return goGuard.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds a slog logger from cfg writing to w.
func NewLogger(cfg goGuard.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, errors.New("logging format must be json or text")
	}
}

type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map provider does not support ReadBytes")
}

// Read unflattens dotted keys so "session.max_sessions" lands in its section.
func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
