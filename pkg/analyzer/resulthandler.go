package analyzer

import (
	"context"
	"os"
	"regexp"
)

// BaseResultHandler implements the bookkeeping shared by every adapter's
// ResultHandler: recording the subprocess outcome and the canonical
// artifact path. Adapters embed it and override PostProcess where they
// need to rename the tool's raw output.
type BaseResultHandler struct {
	ReturnCode   int
	Stdout       []byte
	Stderr       []byte
	Artifact     string
	RawOutputDir string
}

// SetOutcome records the subprocess outcome.
func (h *BaseResultHandler) SetOutcome(returnCode int, stdout, stderr []byte) {
	h.ReturnCode = returnCode
	h.Stdout = stdout
	h.Stderr = stderr
}

// ArtifactPath returns the canonical artifact path.
func (h *BaseResultHandler) ArtifactPath() string { return h.Artifact }

// PostProcess is a no-op default for adapters whose raw output is already
// written at ArtifactPath.
func (h *BaseResultHandler) PostProcess(_ context.Context) error { return nil }

// RenameTo moves src to h.Artifact if src exists and differs from it,
// the common "rename the tool's own output filename to the canonical
// artifact name" post-process step spec.md §4.4 describes for cppcheck.
func (h *BaseResultHandler) RenameTo(src string) error {
	if src == "" || src == h.Artifact {
		return nil
	}

	if _, err := os.Stat(src); err != nil {
		return nil //nolint:nilerr // nothing to rename if the tool produced no output.
	}

	return os.Rename(src, h.Artifact) //nolint:wrapcheck // caller attributes the error to its own operation.
}

// mentionedFilePathRE matches absolute or ./-relative file paths embedded
// in analyzer stdout/stderr text, shared across adapters' MentionedFiles.
var mentionedFilePathRE = regexp.MustCompile(`(?:/[\w./+-]+|\./[\w./+-]+)\.[ch](?:pp|xx|c|h|cc)?\b`)

// ExtractMentionedFiles returns the deduplicated, order-preserving set of
// file paths found in combined stdout+stderr text.
func ExtractMentionedFiles(stdout, stderr []byte) []string {
	seen := make(map[string]struct{})

	var out []string

	for _, buf := range [][]byte{stdout, stderr} {
		for _, m := range mentionedFilePathRE.FindAllString(string(buf), -1) {
			if _, ok := seen[m]; ok {
				continue
			}

			seen[m] = struct{}{}

			out = append(out, m)
		}
	}

	return out
}
