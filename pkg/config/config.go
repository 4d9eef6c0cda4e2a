// Package config loads repository settings from <gitdir>/refgraph.toml,
// with REFGRAPH_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/object"
)

// FileName is the config file name inside a git directory.
const FileName = "refgraph.toml"

// EnvPrefix prefixes every environment override, e.g.
// REFGRAPH_REFS_LOCK_TIMEOUT=5s.
const EnvPrefix = "refgraph"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full set of repository settings.
type Config struct {
	Core Core `toml:"core" envconfig:"core"`
	Refs Refs `toml:"refs" envconfig:"refs"`
	User User `toml:"user" envconfig:"user"`
	Init Init `toml:"init" envconfig:"init"`
	Walk Walk `toml:"walk" envconfig:"walk"`
	Log  Log  `toml:"log" envconfig:"log"`
}

// Core holds repository-wide settings fixed at init time.
type Core struct {
	ObjectFormat string `toml:"object_format" split_words:"true"`
	Bare         bool   `toml:"bare"`
}

// Refs tunes the reference store.
type Refs struct {
	MaxSymrefDepth   int           `toml:"max_symref_depth" split_words:"true"`
	LockTimeout      time.Duration `toml:"lock_timeout" split_words:"true"`
	LogAllRefUpdates bool          `toml:"log_all_ref_updates" split_words:"true"`
}

// User is the identity written to reflog entries.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Init holds defaults for new repositories.
type Init struct {
	DefaultBranch string `toml:"default_branch" split_words:"true"`
}

// Walk tunes commit graph traversal.
type Walk struct {
	MaxSteps  int `toml:"max_steps" split_words:"true"`
	CacheSize int `toml:"cache_size" split_words:"true"`
	// UseGraphIndex loads <gitdir>/refgraph-index.zst when present.
	UseGraphIndex bool `toml:"use_graph_index" split_words:"true"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Core: Core{ObjectFormat: object.SHA1.Name},
		Refs: Refs{
			MaxSymrefDepth:   5,
			LockTimeout:      2 * time.Second,
			LogAllRefUpdates: true,
		},
		User: User{Name: "refgraph", Email: "refgraph@localhost"},
		Init: Init{DefaultBranch: "main"},
		Walk: Walk{MaxSteps: 1_000_000, CacheSize: 4096, UseGraphIndex: true},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Path returns the config file location for gitDir.
func Path(gitDir string) string {
	return filepath.Join(gitDir, FileName)
}

// Parse decodes TOML from r on top of the defaults, applies environment
// overrides and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	return finish(cfg)
}

// Load reads the config of gitDir. A missing file yields the defaults with
// environment overrides applied.
func Load(gitDir string) (Config, error) {
	f, err := os.Open(Path(gitDir))
	if err != nil {
		if os.IsNotExist(err) {
			return FromEnv()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", Path(gitDir), err)
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied, the
// settings a new repository starts from.
func FromEnv() (Config, error) {
	return finish(Default())
}

func finish(cfg Config) (Config, error) {
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("envconfig: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for sanity.
func (cfg Config) Validate() error {
	if _, err := object.ParseFormat(cfg.Core.ObjectFormat); err != nil {
		return fmt.Errorf("%w: core.object_format: %w", ErrInvalidConfig, err)
	}
	if cfg.Refs.MaxSymrefDepth <= 0 {
		return fmt.Errorf("%w: refs.max_symref_depth must be positive", ErrInvalidConfig)
	}
	if cfg.Refs.LockTimeout < 0 {
		return fmt.Errorf("%w: refs.lock_timeout must not be negative", ErrInvalidConfig)
	}
	if cfg.Walk.MaxSteps <= 0 {
		return fmt.Errorf("%w: walk.max_steps must be positive", ErrInvalidConfig)
	}
	if cfg.Walk.CacheSize < 0 {
		return fmt.Errorf("%w: walk.cache_size must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Init.DefaultBranch) == "" || strings.ContainsAny(cfg.Init.DefaultBranch, " \t\n~^:?*[\\") {
		return fmt.Errorf("%w: init.default_branch %q", ErrInvalidConfig, cfg.Init.DefaultBranch)
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, cfg.Log.Format)
	}
	return nil
}

// ObjectFormat returns the parsed core.object_format.
func (cfg Config) ObjectFormat() object.Format {
	f, err := object.ParseFormat(cfg.Core.ObjectFormat)
	if err != nil {
		return object.SHA1
	}
	return f
}

// Save atomically writes cfg to the config file of gitDir.
func Save(gitDir string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	tmp, err := os.CreateTemp(gitDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, Path(gitDir)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
