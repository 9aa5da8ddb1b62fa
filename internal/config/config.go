// Package config loads neodepends settings from .neodepends.yaml, a .env
// file and NEODEPENDS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/resolution"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

// DefaultFile is read when no config path is given.
const DefaultFile = ".neodepends.yaml"

type Config struct {
	DB         string            `yaml:"db"`
	Mode       string            `yaml:"mode"`
	Languages  []string          `yaml:"languages"`
	Parallel   int               `yaml:"parallel"`
	ScriptsDir string            `yaml:"scripts_dir"`
	Stitch     stackgraph.Config `yaml:"stitch"`
	Overrides  struct {
		NotImplementedIsAbstract bool `yaml:"not_implemented_is_abstract"`
		InferExtends             bool `yaml:"infer_extends"`
	} `yaml:"overrides"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		DB:     ".neodepends.db",
		Mode:   string(resolution.AST),
		Stitch: stackgraph.DefaultConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path reads DefaultFile if it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if _, err := cfg.ClassifyMode(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.Langs(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("NEODEPENDS_DB"); ok && v != "" {
		c.DB = v
	}
	if v, ok := os.LookupEnv("NEODEPENDS_MODE"); ok && v != "" {
		c.Mode = v
	}
	if v, ok := os.LookupEnv("NEODEPENDS_LANGUAGES"); ok && v != "" {
		c.Languages = SplitList(v)
	}
	if v, ok := os.LookupEnv("NEODEPENDS_SCRIPTS_DIR"); ok && v != "" {
		c.ScriptsDir = v
	}
	if v, ok := os.LookupEnv("NEODEPENDS_PARALLEL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: NEODEPENDS_PARALLEL: %w", err)
		}
		c.Parallel = n
	}
	return nil
}

// ClassifyMode parses the configured mode.
func (c *Config) ClassifyMode() (resolution.ClassifyMode, error) {
	return resolution.ParseClassifyMode(c.Mode)
}

// Langs parses the configured languages. An empty list means every
// language with stack graph rules.
func (c *Config) Langs() ([]lang.Lang, error) {
	var out []lang.Lang
	for _, s := range c.Languages {
		l, err := lang.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
