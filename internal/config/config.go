package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory
const DefaultFileName = "booktool.yaml"

// Config represents the complete booktool configuration
type Config struct {
	SVN     SVNConfig     `yaml:"svn" toml:"svn"`
	Dist    DistConfig    `yaml:"dist" toml:"dist"`
	AdSense AdSenseConfig `yaml:"adsense" toml:"adsense"`
}

// SVNConfig configures the upstream repository and the local working copy
type SVNConfig struct {
	Binary      string `yaml:"binary" toml:"binary"`
	UpstreamURL string `yaml:"upstream_url" toml:"upstream_url"`
	Property    string `yaml:"property" toml:"property"`
	BookDir     string `yaml:"book_dir" toml:"book_dir"`
}

// DistConfig configures distribution packaging
type DistConfig struct {
	BuildCommand string            `yaml:"build_command" toml:"build_command"`
	BuildEnv     map[string]string `yaml:"build_env" toml:"build_env"`
	OutputSubdir string            `yaml:"output_subdir" toml:"output_subdir"`
	DefaultName  string            `yaml:"default_name" toml:"default_name"`
	TmpDir       string            `yaml:"tmp_dir" toml:"tmp_dir"`
}

// AdSenseConfig configures advertisement injection
type AdSenseConfig struct {
	Client     string `yaml:"client" toml:"client"`
	Stylesheet string `yaml:"stylesheet" toml:"stylesheet"`
}

// Default returns a configuration with every field set to its default
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Resolve loads the configuration used by a command invocation.
// An explicit path must exist. Without one, ./booktool.yaml and then
// $HOME/.config/booktool/config.yaml are tried, falling back to defaults.
// A .env file in the working directory is loaded first if present.
// The returned path is empty when defaults were used.
func Resolve(explicit string) (*Config, string, error) {
	_ = godotenv.Load()

	if explicit != "" {
		cfg, err := Load(explicit)
		if err != nil {
			return nil, "", err
		}
		return cfg, explicit, nil
	}

	for _, candidate := range candidatePaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cfg, err := Load(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, "", nil
}

func candidatePaths() []string {
	paths := []string{DefaultFileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "booktool", "config.yaml"))
	}
	return paths
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.SVN.Binary = os.ExpandEnv(c.SVN.Binary)
	c.SVN.UpstreamURL = os.ExpandEnv(c.SVN.UpstreamURL)
	c.SVN.Property = os.ExpandEnv(c.SVN.Property)
	c.SVN.BookDir = os.ExpandEnv(c.SVN.BookDir)
	c.Dist.BuildCommand = os.ExpandEnv(c.Dist.BuildCommand)
	c.Dist.OutputSubdir = os.ExpandEnv(c.Dist.OutputSubdir)
	c.Dist.DefaultName = os.ExpandEnv(c.Dist.DefaultName)
	c.Dist.TmpDir = os.ExpandEnv(c.Dist.TmpDir)
	for k, v := range c.Dist.BuildEnv {
		c.Dist.BuildEnv[k] = os.ExpandEnv(v)
	}
	c.AdSense.Client = os.ExpandEnv(c.AdSense.Client)
	c.AdSense.Stylesheet = os.ExpandEnv(c.AdSense.Stylesheet)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.SVN.Binary == "" {
		c.SVN.Binary = "svn"
	}
	if c.SVN.UpstreamURL == "" {
		c.SVN.UpstreamURL = "http://svn.red-bean.com/svnbook/trunk/src/en/book"
	}
	if c.SVN.Property == "" {
		c.SVN.Property = "last-sync"
	}
	if c.SVN.BookDir == "" {
		c.SVN.BookDir = "book"
	}

	if c.Dist.BuildCommand == "" {
		c.Dist.BuildCommand = "make"
	}
	if c.Dist.BuildEnv == nil {
		c.Dist.BuildEnv = map[string]string{"FOP_OPTS": "-Xms100m -Xmx200m"}
	}
	if c.Dist.OutputSubdir == "" {
		c.Dist.OutputSubdir = "usr/share/doc/subversion/book"
	}
	if c.Dist.DefaultName == "" {
		c.Dist.DefaultName = "svnbook"
	}
	if c.Dist.TmpDir == "" {
		c.Dist.TmpDir = "__SVNBOOK_TMP__"
	}

	if c.AdSense.Client == "" {
		c.AdSense.Client = "pub-0505104349866057"
	}
	if c.AdSense.Stylesheet == "" {
		c.AdSense.Stylesheet = "styles.css"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.SVN.Binary == "" {
		return errors.New("svn.binary is required")
	}
	if c.SVN.UpstreamURL == "" {
		return errors.New("svn.upstream_url is required")
	}
	if _, err := url.Parse(c.SVN.UpstreamURL); err != nil {
		return fmt.Errorf("svn.upstream_url is not a valid URL: %w", err)
	}
	if c.SVN.Property == "" {
		return errors.New("svn.property is required")
	}

	if c.Dist.BuildCommand == "" {
		return errors.New("dist.build_command is required")
	}
	if !IsSingleComponent(c.Dist.DefaultName) {
		return fmt.Errorf("dist.default_name must be a single path component: %s", c.Dist.DefaultName)
	}
	if !IsSingleComponent(c.Dist.TmpDir) {
		return fmt.Errorf("dist.tmp_dir must be a single path component: %s", c.Dist.TmpDir)
	}
	if filepath.IsAbs(c.Dist.OutputSubdir) {
		return fmt.Errorf("dist.output_subdir must be a relative path: %s", c.Dist.OutputSubdir)
	}

	if !IsSingleComponent(c.AdSense.Stylesheet) {
		return fmt.Errorf("adsense.stylesheet must be a file name, not a path: %s", c.AdSense.Stylesheet)
	}

	return nil
}

// UpstreamFileURL returns the upstream URL of a tracked file
func (c *Config) UpstreamFileURL(name string) string {
	return strings.TrimRight(c.SVN.UpstreamURL, "/") + "/" + name
}

// BuildEnviron returns the build environment as KEY=VALUE pairs
func (c *Config) BuildEnviron() []string {
	env := make([]string, 0, len(c.Dist.BuildEnv))
	for k, v := range c.Dist.BuildEnv {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// IsSingleComponent reports whether name is a non-empty path with no
// directory part.
func IsSingleComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
