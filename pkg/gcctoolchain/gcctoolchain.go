// Package gcctoolchain provides minimal --gcc-toolchain= detection shared
// by the log parser (implicit-info probe suppression) and the reproducer
// packager (gcc-toolchain-path entry).
package gcctoolchain

import "strings"

const flagPrefix = "--gcc-toolchain="

// Detect scans argv for a --gcc-toolchain= flag and returns its value and
// whether one was present.
func Detect(argv []string) (string, bool) {
	for _, tok := range argv {
		if strings.HasPrefix(tok, flagPrefix) {
			return strings.TrimPrefix(tok, flagPrefix), true
		}
	}

	return "", false
}

// DetectInCommand scans a raw command string for a --gcc-toolchain= flag.
func DetectInCommand(command string) (string, bool) {
	return Detect(strings.Fields(command))
}
