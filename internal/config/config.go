// Package config loads the deployment configuration file.
//
// The file is YAML. Relative paths inside it resolve against the directory
// containing the file, never against the process working directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"patchdeploy/internal/core"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvConfig    = "PATCHDEPLOY_CONFIG"
	EnvWorklist  = "PATCHDEPLOY_WORKLIST"
	EnvCopyDir   = "PATCHDEPLOY_COPY_DIR"
	EnvBuildTool = "PATCHDEPLOY_BUILD_TOOL"
	EnvWorkers   = "PATCHDEPLOY_WORKERS"
)

const (
	DefaultWorkers   = 5
	DefaultBuildTool = "ant"
)

// ErrNoRepositories is returned by Validate when no repository is configured.
var ErrNoRepositories = errors.New("config: no repositories configured")

// RulePair is a (from, to) rewrite pair.
//
// It decodes from either a mapping ({from: a, to: b}) or a two-element
// sequence ([a, b]).
type RulePair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *RulePair) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: rule must have exactly 2 elements, got %d", node.Line, len(pair))
		}
		p.From, p.To = pair[0], pair[1]
		return nil
	case yaml.MappingNode:
		type plain RulePair
		var v plain
		if err := node.Decode(&v); err != nil {
			return err
		}
		*p = RulePair(v)
		return nil
	default:
		return fmt.Errorf("line %d: rule must be a mapping or a [from, to] list", node.Line)
	}
}

// Target is one deployment target under a repository's output directory.
type Target struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// Repository is the configuration of one source repository.
type Repository struct {
	Name string `yaml:"name"`

	// Path is the repository root.
	Path string `yaml:"path"`

	// Base is the mirrored subtree, relative to Path. Empty means Path itself.
	Base string `yaml:"base"`

	// Dir is a single implicit target path used when Targets is empty.
	Dir string `yaml:"dir"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`

	BuildFile string     `yaml:"build_file"`
	PathRules []RulePair `yaml:"path_rules"`
	ExtRules  []RulePair `yaml:"ext_rules"`
	Targets   []Target   `yaml:"targets"`

	// Exclude lists doublestar patterns over base-relative destinations that
	// are reported but never copied.
	Exclude []string `yaml:"exclude"`

	// CopyList holds extra absolute paths appended to the worklist.
	CopyList []string `yaml:"copy_list"`
}

// IsEnabled reports the effective enabled flag.
func (r Repository) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Config is the top-level configuration document.
type Config struct {
	CopyDir      string   `yaml:"copy_dir"`
	BackupDir    string   `yaml:"backup_dir"`
	LogsDir      string   `yaml:"logs_dir"`
	WorklistFile string   `yaml:"worklist_file"`
	BuildTool    string   `yaml:"build_tool"`
	BuildArgs    []string `yaml:"build_args"`
	Parallel     bool     `yaml:"parallel"`
	Workers      int      `yaml:"workers"`

	// Backup defaults to true.
	Backup      *bool    `yaml:"backup"`
	ReportFiles []string `yaml:"report_files"`

	Repositories []Repository `yaml:"repositories"`

	// dir is the directory of the loaded file.
	dir string
}

// Load reads and decodes the configuration file at path.
//
// Unknown keys are rejected. Defaults are applied and relative paths are
// resolved, but the result is not validated; call Validate after applying
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data, filepath.Dir(abs))
}

// Parse decodes a configuration document whose relative paths resolve under dir.
func Parse(data []byte, dir string) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config: empty document")
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.dir = dir
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if strings.TrimSpace(c.BuildTool) == "" {
		c.BuildTool = DefaultBuildTool
	}
}

// Dir returns the directory relative paths resolve against.
func (c *Config) Dir() string { return c.dir }

// BackupEnabled reports whether the one-time output backup should run.
func (c *Config) BackupEnabled() bool {
	return c.Backup == nil || *c.Backup
}

// CopyPath returns the resolved copy directory.
func (c *Config) CopyPath() string { return c.Resolve(c.CopyDir) }

// BackupPath returns the resolved backup directory, defaulting to a "backup"
// sibling of the copy directory.
func (c *Config) BackupPath() string {
	if c.BackupDir != "" {
		return c.Resolve(c.BackupDir)
	}
	return c.sibling("backup")
}

// LogsPath returns the resolved logs directory, defaulting to a "logs"
// sibling of the copy directory.
func (c *Config) LogsPath() string {
	if c.LogsDir != "" {
		return c.Resolve(c.LogsDir)
	}
	return c.sibling("logs")
}

func (c *Config) sibling(name string) string {
	if c.CopyDir == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(c.CopyPath()), name)
}

// ApplyEnv overrides fields from environment lookups.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWorklist); ok && v != "" {
		c.WorklistFile = v
	}
	if v, ok := lookup(EnvCopyDir); ok && v != "" {
		c.CopyDir = v
	}
	if v, ok := lookup(EnvBuildTool); ok && v != "" {
		c.BuildTool = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// BuildToolPath returns the build tool as given when it is a bare command
// name, for PATH lookup, and resolved against the configuration directory
// when it contains a path separator.
func (c *Config) BuildToolPath() string {
	if !strings.ContainsAny(c.BuildTool, `/\`) {
		return c.BuildTool
	}
	return c.Resolve(c.BuildTool)
}

// Resolve returns p made absolute against the configuration directory.
func (c *Config) Resolve(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.dir, p)
}

// Validate checks the configuration for errors that make a run impossible.
// All problems are reported together.
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return ErrNoRepositories
	}

	var errs []error
	if strings.TrimSpace(c.CopyDir) == "" {
		errs = append(errs, errors.New("copy_dir is required"))
	} else if clean := filepath.Clean(c.Resolve(c.CopyDir)); clean == string(filepath.Separator) {
		errs = append(errs, errors.New("copy_dir must not be the filesystem root"))
	}
	if c.BackupEnabled() && c.CopyDir != "" {
		if _, inside := core.Within(c.CopyPath(), c.BackupPath()); inside {
			errs = append(errs, errors.New("backup_dir must not be inside copy_dir"))
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.WorklistFile == "" && !c.hasCopyList() {
		errs = append(errs, errors.New("worklist_file is required when no repository declares a copy_list"))
	}

	seen := make(map[string]bool, len(c.Repositories))
	for i, r := range c.Repositories {
		where := fmt.Sprintf("repositories[%d]", i)
		if r.Name != "" {
			where = fmt.Sprintf("repository %q", r.Name)
		}
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if strings.ContainsAny(r.Name, `/\`) || r.Name == "." || r.Name == ".." {
			errs = append(errs, fmt.Errorf("%s: name must be a single path segment", where))
		} else if seen[r.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", where))
		}
		seen[r.Name] = true

		if strings.TrimSpace(r.Path) == "" {
			errs = append(errs, fmt.Errorf("%s: path is required", where))
		}
		if filepath.IsAbs(filepath.FromSlash(r.Base)) {
			errs = append(errs, fmt.Errorf("%s: base must be relative to path", where))
		}
		for j, rule := range r.PathRules {
			if strings.Trim(rule.From, `/\`) == "" {
				errs = append(errs, fmt.Errorf("%s: path_rules[%d]: from is empty", where, j))
			}
		}
		for j, rule := range r.ExtRules {
			if rule.From == "" {
				errs = append(errs, fmt.Errorf("%s: ext_rules[%d]: from is empty", where, j))
			}
		}
		for j, t := range r.Targets {
			if err := (core.TargetSpec{Label: t.Label, Path: t.Path}).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: targets[%d]: %w", where, j, err))
			}
		}
		if err := (core.TargetSpec{Path: r.Dir}).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: dir: %w", where, err))
		}
		for j, pat := range r.Exclude {
			if !doublestar.ValidatePattern(pat) {
				errs = append(errs, fmt.Errorf("%s: exclude[%d]: invalid pattern %q", where, j, pat))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) hasCopyList() bool {
	for _, r := range c.Repositories {
		if len(r.CopyList) > 0 {
			return true
		}
	}
	return false
}

// CoreRepositories converts the repository section into domain repositories.
func (c *Config) CoreRepositories() []core.Repository {
	copyDir := c.CopyPath()
	out := make([]core.Repository, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		root := c.Resolve(r.Path)
		repo := core.Repository{
			Name:      r.Name,
			Root:      root,
			Base:      filepath.Join(root, filepath.FromSlash(r.Base)),
			OutputDir: filepath.Join(copyDir, r.Name),
			Enabled:   r.IsEnabled(),
			BuildFile: r.BuildFile,
			Exclude:   append([]string(nil), r.Exclude...),
		}
		for _, p := range r.PathRules {
			repo.PathRules = append(repo.PathRules, core.PathRule{From: p.From, To: p.To})
		}
		for _, p := range r.ExtRules {
			repo.ExtRules = append(repo.ExtRules, core.ExtRule{From: p.From, To: p.To})
		}
		for _, t := range r.Targets {
			repo.Targets = append(repo.Targets, core.TargetSpec{Label: t.Label, Path: t.Path})
		}
		if len(repo.Targets) == 0 && r.Dir != "" {
			repo.Targets = []core.TargetSpec{{Path: r.Dir}}
		}
		out = append(out, repo)
	}
	return out
}

// CopyList returns every repository's extra worklist paths in configured order.
func (c *Config) CopyList() []string {
	var out []string
	for _, r := range c.Repositories {
		out = append(out, r.CopyList...)
	}
	return out
}
