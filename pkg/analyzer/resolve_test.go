package analyzer_test

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
)

func TestResolveVersionedBinary_ScansPATHForVersionedVariant(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH scanning test assumes POSIX executable bits")
	}

	dir := t.TempDir()
	binPath := filepath.Join(dir, "clang-tidy-18")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755)) //nolint:gosec // test fixture.

	t.Setenv("PATH", dir)

	resolved, err := analyzer.ResolveVersionedBinary("", regexp.MustCompile(`^clang-tidy(-\d+)?$`))
	require.NoError(t, err)
	assert.Equal(t, binPath, resolved)
}

func TestResolveVersionedBinary_NotFoundReturnsSentinel(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := analyzer.ResolveVersionedBinary("", regexp.MustCompile(`^nonexistent-tool$`))
	assert.ErrorIs(t, err, analyzer.ErrBinaryNotFound)
}
