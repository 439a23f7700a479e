package logparser_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/logparser"
)

func strp(s string) *string { return &s }

func TestParse_EmptyDatabaseIsFatal(t *testing.T) {
	t.Parallel()

	_, err := logparser.Parse(context.Background(), nil, logparser.ParseOptions{})
	assert.ErrorIs(t, err, logparser.ErrEmptyDatabase)
}

func TestParse_MalformedEntryIsFatal(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Directory: "/p", File: "a.c"},
	}

	_, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	assert.ErrorIs(t, err, logparser.ErrMalformedEntry)
}

func TestParse_SimpleCFile(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o -Wall -DFOO -I/usr/local/include"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)

	act := result.Actions[0]
	assert.Equal(t, "/p/a.c", act.Source())
	assert.Equal(t, action.LangC, act.Language())
	assert.Equal(t, action.KindCompile, act.Kind())
	assert.Contains(t, act.AnalyzerOptions(), "-Wall")
	assert.Contains(t, act.AnalyzerOptions(), "-DFOO")
	assert.Contains(t, act.AnalyzerOptions(), "-I/usr/local/include")
}

func TestParse_ArgumentsForm(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Arguments: []string{"gcc", "-c", "a.c", "-o", "a.o"}, Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "a.o", result.Actions[0].Output())
}

func TestParse_CcacheWrapperUnwrapped(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("ccache gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "a.o", result.Actions[0].Output())
}

func TestParse_LanguageFromExtension(t *testing.T) {
	t.Parallel()

	cases := []struct {
		file string
		lang action.Language
	}{
		{"a.c", action.LangC},
		{"a.cc", action.LangCXX},
		{"a.cpp", action.LangCXX},
		{"a.cxx", action.LangCXX},
		{"a.m", action.LangObjC},
		{"a.mm", action.LangObjCXX},
	}

	for _, tc := range cases {
		entries := []logparser.CompileCommandEntry{
			{Command: strp("gcc -c " + tc.file), Directory: "/p", File: tc.file},
		}

		result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, tc.lang, result.Actions[0].Language(), tc.file)
	}
}

func TestParse_UnrecognizedExtensionIsLink(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc a.o b.o -o out"), Directory: "/p", File: "out"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, action.KindLink, result.Actions[0].Kind())
}

func TestParse_DashXOverridesExtension(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -x c++ -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, action.LangCXX, result.Actions[0].Language())
}

func TestParse_ArchCapturesTarget(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -arch x86_64 -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "x86_64", result.Actions[0].Target())
}

func TestParse_IgnoredFlagsDropped(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -g -Werror -pedantic-errors -flto -save-temps -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Empty(t, result.Actions[0].AnalyzerOptions())
}

func TestParse_SkipPredicateExcludesAndCounts(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
		{Command: strp("gcc -c b.c -o b.o"), Directory: "/p", File: "b.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{
		Skip: func(source string) bool { return source == "/p/a.c" },
	})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "/p/b.c", result.Actions[0].Source())
}

func TestParse_DedupNoneKeepsOnePerCanonicalHash(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
		{Command: strp("gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Actions, 1)
}

func TestParse_DedupStrictFailsOnCollision(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
		{Command: strp("gcc -c a.c -o b.o"), Directory: "/p", File: "a.c"},
	}

	_, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{Dedup: logparser.DedupPolicyStrict{}})
	assert.ErrorIs(t, err, logparser.ErrDuplicateSource)
}

func seededCache(t *testing.T) *logparser.CompilerInfoCache {
	t.Helper()

	cache, err := logparser.LoadCompilerInfoCache(filepath.Join(t.TempDir(), "compiler_info.json"))
	require.NoError(t, err)

	cache.Put("gcc", logparser.CompilerInfo{
		Includes:        []string{"-isystem/usr/lib/gcc/include"},
		Target:          "x86_64-linux-gnu",
		DefaultStandard: "-std=gnu17",
	})

	return cache
}

func TestParse_PopulatesImplicitCompilerInfoFromCache(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{Cache: seededCache(t)})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)

	act := result.Actions[0]
	assert.Equal(t, []string{"-isystem/usr/lib/gcc/include"}, act.CompilerIncludes())
	assert.Equal(t, "-std=gnu17", act.DefaultStandard())
	assert.Equal(t, "x86_64-linux-gnu", act.Target())
}

func TestParse_ExplicitTargetWinsOverProbedTarget(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("gcc -c a.c -o a.o -target armv7-none-eabi"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{Cache: seededCache(t)})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "armv7-none-eabi", result.Actions[0].Target())
}

func TestParse_CcacheWrapperSkipsCompilerProbe(t *testing.T) {
	t.Parallel()

	entries := []logparser.CompileCommandEntry{
		{Command: strp("ccache gcc -c a.c -o a.o"), Directory: "/p", File: "a.c"},
	}

	result, err := logparser.Parse(context.Background(), entries, logparser.ParseOptions{Cache: seededCache(t)})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Empty(t, result.Actions[0].CompilerIncludes())
	assert.Empty(t, result.Actions[0].DefaultStandard())
}
