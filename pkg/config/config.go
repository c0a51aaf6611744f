package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Embedded default configuration
//
//go:embed default_config.toml
var embeddedConfigData []byte

// LocalConfigFile is looked up in the working directory to override the defaults.
const LocalConfigFile = "pathgen.toml"

// Path length bounds accepted for a run.
const (
	MinPathLength = 1
	MaxPathLength = 1000
)

// ErrPathLength is returned when the maximum path length is out of range.
var ErrPathLength = errors.New("path length must be between 1 and 1000")

// Config holds the application configuration.
type Config struct {
	Paths    PathConfig    `toml:"paths"`
	SSA      SSAConfig     `toml:"ssa"`
	Packages PackageConfig `toml:"packages"`
}

// PathConfig holds path discovery and annotation settings.
type PathConfig struct {
	MaxLength         int    `toml:"max_length"`
	IterationFactor   int    `toml:"iteration_factor"`
	ReturnMarker      string `toml:"return_marker"`
	CallerAnnotations bool   `toml:"caller_annotations"`
	ErrorAnnotations  bool   `toml:"error_annotations"`
	Workers           int    `toml:"workers"`
}

// SSAConfig holds settings for building the flow graph from Go packages.
type SSAConfig struct {
	Algorithm string `toml:"algorithm"`
	Tests     bool   `toml:"tests"`
}

// PackageConfig holds package classification patterns.
type PackageConfig struct {
	StdlibPatterns     []string `toml:"stdlib_patterns"`
	DependencyPatterns []string `toml:"dependency_patterns"`
	VendorPatterns     []string `toml:"vendor_patterns"`
}

// DefaultConfig returns the embedded configuration, replaced by a local
// pathgen.toml when one exists in the working directory.
func DefaultConfig() (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	if _, err := os.Stat(LocalConfigFile); err == nil {
		local, err := LoadFromFile(LocalConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load local config %s: %v\n", LocalConfigFile, err)
			return &config, nil
		}
		return local, nil
	}

	return &config, nil
}

// LoadFromFile loads configuration from a TOML file. Keys missing from the
// file keep their embedded default values.
func LoadFromFile(filepath string) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath, err)
	}
	return &config, nil
}

// Validate checks the settings that would make a run meaningless.
func (c *Config) Validate() error {
	if c.Paths.MaxLength < MinPathLength || c.Paths.MaxLength > MaxPathLength {
		return fmt.Errorf("%w: got %d", ErrPathLength, c.Paths.MaxLength)
	}
	if c.Paths.IterationFactor <= 0 {
		return fmt.Errorf("iteration factor must be positive: got %d", c.Paths.IterationFactor)
	}
	if c.Paths.ReturnMarker == "" {
		return errors.New("return marker must not be empty")
	}
	if c.Paths.Workers < 1 {
		return fmt.Errorf("workers must be at least 1: got %d", c.Paths.Workers)
	}
	switch c.SSA.Algorithm {
	case "static", "cha", "rta", "vta":
	default:
		return fmt.Errorf("unknown call graph algorithm %q", c.SSA.Algorithm)
	}
	return nil
}

// IsStandardLibrary checks if a package is from the Go standard library.
// Packages whose first path element has no dot are treated as standard.
func (c *Config) IsStandardLibrary(packagePath string) bool {
	for _, pattern := range c.Packages.StdlibPatterns {
		if packagePath == pattern || strings.HasPrefix(packagePath, pattern+"/") {
			return true
		}
	}

	first, _, _ := strings.Cut(packagePath, "/")
	return first != "" && !strings.Contains(first, ".")
}

// IsDependency checks if a package is a third-party dependency.
func (c *Config) IsDependency(packagePath string) bool {
	for _, pattern := range c.Packages.VendorPatterns {
		if strings.HasPrefix(packagePath, pattern) {
			return true
		}
	}

	for _, pattern := range c.Packages.DependencyPatterns {
		if strings.HasPrefix(packagePath, pattern) {
			return true
		}
	}

	return false
}

// IsUserDefined checks if a package is user-defined (not stdlib or dependency).
func (c *Config) IsUserDefined(packagePath string) bool {
	return !c.IsStandardLibrary(packagePath) && !c.IsDependency(packagePath)
}
