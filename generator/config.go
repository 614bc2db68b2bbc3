package generator

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileName is the generator configuration file expected inside the
// data directory.
const configFileName = "metagen.yml"

// SuiteConfig describes one archive suite to generate metadata for.
type SuiteConfig struct {
	Sections      []string `yaml:"sections"`
	Architectures []string `yaml:"architectures"`
	BaseSuite     string   `yaml:"baseSuite,omitempty"`
	DataPriority  int      `yaml:"dataPriority,omitempty"`
	IconTheme     string   `yaml:"useIconTheme,omitempty"`
}

// Config is the generator configuration, loaded from a YAML file in the
// data directory.
type Config struct {
	DistroName     string                 `yaml:"distroName"`
	RepositoryName string                 `yaml:"repositoryName,omitempty"`
	MediaBaseURL   string                 `yaml:"mediaBaseUrl"`
	ArchiveRoot    string                 `yaml:"archiveRoot"`
	CacheDir       string                 `yaml:"cacheDir,omitempty"`
	ExportDir      string                 `yaml:"exportDir,omitempty"`
	IconSizes      []string               `yaml:"iconSizes,omitempty"`
	Workers        int                    `yaml:"workers,omitempty"`
	Suites         map[string]SuiteConfig `yaml:"suites"`
}

// LoadConfig reads the configuration file from the given data directory
// and applies defaults for anything left unset.
func LoadConfig(dir string) (Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving data directory: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(absDir, configFileName))
	if err != nil {
		return Config{}, fmt.Errorf("reading generator config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing generator config: %w", err)
	}

	if cfg.DistroName == "" {
		cfg.DistroName = "Debian"
	}
	if cfg.RepositoryName == "" {
		// Only third-party repositories set their own name to avoid
		// clashing with the main distro data.
		cfg.RepositoryName = cfg.DistroName
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(absDir, "cache")
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join(absDir, "export")
	}
	if len(cfg.IconSizes) == 0 {
		cfg.IconSizes = []string{"128x128", "64x64"}
	}
	if len(cfg.Suites) == 0 {
		return Config{}, fmt.Errorf("generator config defines no suites")
	}

	return cfg, nil
}

// MediaDir returns the cached-media directory under the export tree.
func (c Config) MediaDir() string {
	return filepath.Join(c.ExportDir, "media")
}
