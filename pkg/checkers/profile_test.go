package checkers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
)

func TestLoadProfileSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yml")

	contents := []byte(`
default:
  - core.NullDereference
  - core.DivideZero
security:
  - security.FloatLoopCounter
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	profiles, err := checkers.LoadProfileSet(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"core.NullDereference", "core.DivideZero"}, profiles["default"])
	assert.Equal(t, []string{"security.FloatLoopCounter"}, profiles["security"])
}

func TestLoadProfileSet_ReservedNameIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yml")

	require.NoError(t, os.WriteFile(path, []byte("list:\n  - core.NullDereference\n"), 0o644))

	_, err := checkers.LoadProfileSet(path)
	assert.ErrorIs(t, err, checkers.ErrReservedProfileName)
}

func TestLoadProfileSet_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := checkers.LoadProfileSet(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
