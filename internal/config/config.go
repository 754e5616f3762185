// internal/config/config.go
//
// This package handles configuration and the .ipu directory structure.
// Every project directory ipu-gate runs in gets a .ipu/ folder holding the
// config file, logs, persisted run state and generated reports.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/ipu-gate/internal/policy"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".ipu"

	defaultWorkflowID    = "ipu"
	defaultOSReleasePath = "/etc/os-release"
	defaultJournalFile   = "journal.db"
)

const defaultProjectConfigYAML = `# ipu-gate project configuration
version: 1

# Workflow to run when -workflow is not given. "ipu" is bundled.
workflow: ipu

# Where os_release_collector reads facts from.
os_release:
  path: /etc/os-release

# Minimum supported versions. source: builtin | file | consul
policy:
  source: builtin
  # source: file
  # path: policy.yaml
  # source: consul
  # address: 127.0.0.1:8500
  # key: ipu-gate/policy/os-release

runtime:
  max_parallel: 4

journal:
  enabled: true
`

// OSReleaseConfig locates the os-release file.
type OSReleaseConfig struct {
	Path string `yaml:"path"`
}

// RuntimeConfig captures engine execution limits.
type RuntimeConfig struct {
	MaxParallel int `yaml:"max_parallel"`
}

// JournalConfig controls the sqlite message journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// ProjectConfig models .ipu/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Workflow  string          `yaml:"workflow"`
	OSRelease OSReleaseConfig `yaml:"os_release"`
	Policy    policy.Source   `yaml:"policy"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Journal   JournalConfig   `yaml:"journal"`
}

// Config holds the runtime configuration for ipu-gate.
type Config struct {
	// ProjectDir is the directory the command was run from
	ProjectDir string

	// StateRoot is ProjectDir/.ipu
	StateRoot string

	Project ProjectConfig

	// Env is the environment snapshot taken when the config was built.
	// Components read switches from here instead of calling os.Getenv.
	Env Environment
}

// Option customizes NewConfig.
type Option func(*options)

type options struct {
	lookup func(string) (string, bool)
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		if lookup != nil {
			o.lookup = lookup
		}
	}
}

// InitDir creates the .ipu directory structure in the given project directory.
//
// Structure created:
// .ipu/
// ├── config.yaml
// ├── logs/     <- ipu.log
// ├── state/    <- engine snapshots and the message journal
// ├── report/   <- rendered upgrade reports
// └── actors/   <- version-gate actor definitions (*.yaml, *.go)
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
		filepath.Join(root, "report"),
		filepath.Join(root, "actors"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings and
// the environment (process variables first, then ProjectDir/.env).
func NewConfig(projectDir string, opts ...Option) (*Config, error) {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := &Config{
		ProjectDir: projectDir,
		StateRoot:  filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	env, err := LoadEnvironment(o.lookup, filepath.Join(projectDir, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.Env = env
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateRoot, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.StateRoot, "state")
}

// ReportDir returns the path reports are written to
func (c *Config) ReportDir() string {
	return filepath.Join(c.StateRoot, "report")
}

// ActorsDir returns the directory project-defined actors are loaded from.
func (c *Config) ActorsDir() string {
	return filepath.Join(c.StateRoot, "actors")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateRoot, "config.yaml")
}

// JournalPath returns the sqlite journal location.
func (c *Config) JournalPath() string {
	if c.Project.Journal.Path != "" {
		return c.Project.Journal.Path
	}
	return filepath.Join(c.StateDir(), defaultJournalFile)
}

// DefaultWorkflow returns the configured workflow identifier.
func (c *Config) DefaultWorkflow() string {
	return c.Project.Workflow
}

// OSReleasePath returns the os-release file the collector reads.
func (c *Config) OSReleasePath() string {
	return c.Project.OSRelease.Path
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:   1,
		Workflow:  defaultWorkflowID,
		OSRelease: OSReleaseConfig{Path: defaultOSReleasePath},
		Policy:    policy.Source{Kind: policy.SourceBuiltin},
		Journal:   JournalConfig{Enabled: true},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.OSRelease.Path) == "" {
		pc.OSRelease.Path = defaultOSReleasePath
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Workflow = strings.TrimSpace(pc.Workflow)
	if pc.Workflow == "" {
		pc.Workflow = defaultWorkflowID
	}
	pc.Policy = pc.Policy.Normalized()
	if pc.Policy.Kind == policy.SourceFile {
		pc.Policy.Path = resolvePath(base, pc.Policy.Path)
	}
	pc.OSRelease.Path = resolvePath(base, pc.OSRelease.Path)
	pc.Journal.Path = resolvePath(base, pc.Journal.Path)
	if pc.Runtime.MaxParallel < 0 {
		pc.Runtime.MaxParallel = 0
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := pc.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
