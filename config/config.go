// Package config loads container options from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dozm/di/v2"
)

// Environment variables read by FromEnv.
const (
	EnvValidateScopes  = "DI_VALIDATE_SCOPES"
	EnvValidateOnBuild = "DI_VALIDATE_ON_BUILD"
	EnvEngine          = "DI_ENGINE"
	EnvMaxStackDepth   = "DI_MAX_STACK_DEPTH"
)

// Settings is the serialized form of di.Options. Nil fields keep the base value.
type Settings struct {
	ValidateScopes  *bool   `yaml:"validateScopes"`
	ValidateOnBuild *bool   `yaml:"validateOnBuild"`
	Engine          *string `yaml:"engine"`
	MaxStackDepth   *int    `yaml:"maxStackDepth"`
}

// document accepts the settings either at the top level or under a "container" section.
type document struct {
	Settings  `yaml:",inline"`
	Container *Settings `yaml:"container"`
}

// Apply copies the set fields onto opts.
func (s Settings) Apply(opts *di.Options) error {
	if s.ValidateScopes != nil {
		opts.ValidateScopes = *s.ValidateScopes
	}
	if s.ValidateOnBuild != nil {
		opts.ValidateOnBuild = *s.ValidateOnBuild
	}
	if s.Engine != nil {
		engine, err := ParseEngine(*s.Engine)
		if err != nil {
			return err
		}
		opts.Engine = engine
	}
	if s.MaxStackDepth != nil {
		if *s.MaxStackDepth < 0 {
			return fmt.Errorf("maxStackDepth must not be negative, got %d", *s.MaxStackDepth)
		}
		opts.MaxStackDepth = *s.MaxStackDepth
	}
	return nil
}

// ParseEngine parses "runtime" or "dynamic", case-insensitively.
func ParseEngine(s string) (di.EngineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "runtime":
		return di.Engine_Runtime, nil
	case "dynamic":
		return di.Engine_Dynamic, nil
	default:
		return di.Engine_Runtime, fmt.Errorf("unknown engine %q", s)
	}
}

// Parse reads YAML settings and applies them on top of base.
func Parse(data []byte, base di.Options) (di.Options, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return base, fmt.Errorf("failed to parse YAML: %w", err)
	}

	opts := base
	if err := doc.Settings.Apply(&opts); err != nil {
		return base, err
	}
	if doc.Container != nil {
		if err := doc.Container.Apply(&opts); err != nil {
			return base, err
		}
	}
	return opts, nil
}

// LoadFile reads the YAML file at path. A missing optional file leaves base unchanged.
func LoadFile(path string, optional bool, base di.Options) (di.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return base, nil
		}
		return base, err
	}
	return Parse(data, base)
}

// FromEnv reads the DI_* variables on top of base, after loading envFiles
// (".env" when none is given). Missing files and malformed values are ignored.
func FromEnv(base di.Options, envFiles ...string) di.Options {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)

	opts := base
	opts.ValidateScopes = envBool(EnvValidateScopes, opts.ValidateScopes)
	opts.ValidateOnBuild = envBool(EnvValidateOnBuild, opts.ValidateOnBuild)
	if v := os.Getenv(EnvEngine); v != "" {
		if engine, err := ParseEngine(v); err == nil {
			opts.Engine = engine
		}
	}
	if n := envInt(EnvMaxStackDepth, opts.MaxStackDepth); n >= 0 {
		opts.MaxStackDepth = n
	}
	return opts
}

// Configure returns a ContainerBuilder configurator that replaces the options with loaded.
// An observer configured earlier is kept when loaded has none.
func Configure(loaded di.Options) func(*di.Options) {
	return func(o *di.Options) {
		observer := o.Observer
		*o = loaded
		if o.Observer == nil {
			o.Observer = observer
		}
	}
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
