//go:build windows

package driver

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRuntime looks for a bundled SDR tool next to the executable or in the
// working directory, under bin/<vendor>/windows/x64.
func FindRuntime(runtime string) (string, error) {
	var lookup []string

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	lookup = append(lookup, filepath.Dir(exePath))

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	lookup = append(lookup, wd)

	for _, dir := range lookup {
		matches, err := filepath.Glob(filepath.Join(dir, "bin", "*", "windows", "x64", fmt.Sprintf("%s.exe", runtime)))
		if err != nil || len(matches) == 0 {
			continue // continue to next directory
		}

		binPath := matches[0]
		if _, err = os.Stat(binPath); err != nil {
			continue
		}

		return binPath, nil
	}

	return "", NewRuntimeError(fmt.Sprintf("failed to find binary '%s'", runtime))
}
