package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ProjectFile is the name of the per-repository settings file.
const ProjectFile = ".ectomigo.yml"

const envPrefix = "ECTOMIGO_"

// Project describes how a repository is analysed.
type Project struct {
	// Patterns maps a pattern type (massive, pojo, ...) to the globs of the
	// files it applies to.
	Patterns       map[string][]string `koanf:"patterns"`
	MigrationPaths []string            `koanf:"migration_paths"`
	IgnorePaths    []string            `koanf:"ignore_paths"`
	Workers        int                 `koanf:"workers"`
	// Output is a file path, or "-" for stdout.
	Output string `koanf:"output"`
}

// LoadProject reads project settings rooted at root.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// cfgFile overrides the default location root/.ectomigo.yml.
func LoadProject(root, cfgFile string, flags *pflag.FlagSet) (*Project, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"workers": runtime.NumCPU(),
		"output":  "-",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile == "" {
		candidate := filepath.Join(root, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			cfgFile = candidate
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	// ECTOMIGO_MIGRATION_PATHS -> migration_paths
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var p Project
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return &p, nil
}

// ExcludeGlobs returns the globs of paths never indexed: ignored paths and
// migrations. A bare entry matches at any depth.
func (p *Project) ExcludeGlobs() []string {
	var out []string
	for _, set := range [][]string{p.IgnorePaths, p.MigrationPaths} {
		for _, path := range set {
			out = append(out, anywhere(path))
		}
	}
	return out
}

// MigrationGlobs returns the globs selecting migration scripts.
func (p *Project) MigrationGlobs() []string {
	var out []string
	for _, path := range p.MigrationPaths {
		g := anywhere(path)
		if !strings.ContainsAny(filepath.Base(path), "*?[{") {
			// a directory: every SQL file below it
			g += "/**/*.sql"
		}
		out = append(out, g)
	}
	return out
}

func anywhere(path string) string {
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")
	if strings.HasPrefix(path, "/") {
		return strings.TrimPrefix(path, "/")
	}
	if strings.HasPrefix(path, "**/") {
		return path
	}
	return "**/" + path
}
