package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sensitiveDirectories are never written to, even with an absolute path.
var sensitiveDirectories = []string{
	"/etc", "/proc", "/sys", "/dev", "/boot",
	"/usr/bin", "/usr/sbin", "/bin", "/sbin",
}

// SafeCreateFile creates an output file after rejecting traversal patterns
// and system directories. Missing parent directories are created.
func SafeCreateFile(filename string) (*os.File, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	file, err := os.Create(filename) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	return file, nil
}

func validateFilePath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal patterns: %s", path)
	}

	if filepath.IsAbs(cleanPath) {
		for _, sensitive := range sensitiveDirectories {
			if cleanPath == sensitive || strings.HasPrefix(cleanPath, sensitive+"/") {
				return fmt.Errorf("path points to sensitive system directory: %s", path)
			}
		}
	}

	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists checks if a regular file exists at the given path
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
