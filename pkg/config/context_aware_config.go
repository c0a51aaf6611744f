package config

import "strings"

// commandLinePackage is the path go/packages gives to packages loaded from
// a list of .go files.
const commandLinePackage = "command-line-arguments"

// ContextAwareConfig wraps the base Config with the module being analyzed
// so that its packages are told apart from everything they import
type ContextAwareConfig struct {
	*Config
	RootModule string // Module path from the analyzed go.mod
}

// NewContextAwareConfig binds base to rootModule. An empty root falls back
// to pattern based classification.
func NewContextAwareConfig(base *Config, rootModule string) *ContextAwareConfig {
	return &ContextAwareConfig{
		Config:     base,
		RootModule: rootModule,
	}
}

// IsUserDefined reports whether functions of the package get a body in the
// flow graph. With a root module only its own packages qualify.
func (c *ContextAwareConfig) IsUserDefined(packagePath string) bool {
	if c.isLocalProjectPackage(packagePath) {
		return true
	}
	if c.RootModule != "" {
		return false
	}
	return c.Config.IsUserDefined(packagePath)
}

// IsDependency checks if a package is a third-party dependency, excluding local project packages.
func (c *ContextAwareConfig) IsDependency(packagePath string) bool {
	if c.isLocalProjectPackage(packagePath) {
		return false
	}
	return c.Config.IsDependency(packagePath)
}

func (c *ContextAwareConfig) isLocalProjectPackage(packagePath string) bool {
	if packagePath == commandLinePackage {
		return true
	}
	if c.RootModule == "" {
		return false
	}
	return packagePath == c.RootModule || strings.HasPrefix(packagePath, c.RootModule+"/")
}
