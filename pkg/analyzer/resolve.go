package analyzer

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
)

// ResolveVersionedBinary locates an executable on PATH whose basename
// matches pattern, trying configuredName first (it may already be an
// absolute path or a bare name that resolves directly), then scanning
// PATH directories for versioned variants, e.g. "clang-tidy-18".
func ResolveVersionedBinary(configuredName string, pattern *regexp.Regexp) (string, error) {
	if configuredName != "" {
		if path, err := exec.LookPath(configuredName); err == nil {
			return path, nil
		}
	}

	dirs := filepath.SplitList(pathEnv())

	for _, dir := range dirs {
		entries, err := listDir(dir)
		if err != nil {
			continue
		}

		for _, name := range entries {
			if pattern.MatchString(name) {
				return filepath.Join(dir, name), nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q matching %s", ErrBinaryNotFound, configuredName, pattern.String())
}
