// Package logparser normalizes raw compilation-database entries into
// canonical action.Action values: splitting the compile command, walking
// an ordered token-transformer chain, deriving the source language, and
// deduplicating the resulting actions per a configurable policy.
package logparser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/gcctoolchain"
)

// CompileCommandEntry is one compilation-database record. Exactly one of
// Command or Arguments is expected to be set; unknown JSON fields are
// ignored by the caller's decoder.
type CompileCommandEntry struct {
	Command   *string
	Arguments []string
	Directory string
	File      string
}

// SkipPredicate reports whether a source path should be excluded before
// parsing, e.g. from a skip-list file.
type SkipPredicate func(source string) bool

// ParseOptions configures one Parse call.
type ParseOptions struct {
	Skip SkipPredicate
	// Cache enables implicit-compiler-info probing: each entry's effective
	// compiler is probed (once, results cached) for its system includes,
	// target triple, and default standard. A nil Cache disables probing.
	Cache  *CompilerInfoCache
	Dedup  DedupPolicy
	Logger *slog.Logger
}

// ParseResult is Parse's output: the deduplicated actions plus the
// number of entries skipped by the skip predicate or because they could
// not be parsed.
type ParseResult struct {
	Actions []*action.Action
	Skipped int
}

// Sentinel errors for log-parser failure modes.
var (
	// ErrMalformedEntry is returned when an entry has neither Command nor Arguments.
	ErrMalformedEntry = errors.New("logparser: entry has neither command nor arguments")
	// ErrEmptyDatabase is returned when the input entry list is empty.
	ErrEmptyDatabase = errors.New("logparser: compilation database is empty")
	// ErrDuplicateSource is returned by strict/regex dedup policies on an
	// irresolvable source collision.
	ErrDuplicateSource = errors.New("logparser: duplicate source")
)

// Parse normalizes entries into deduplicated Actions.
func Parse(ctx context.Context, entries []CompileCommandEntry, opts ParseOptions) (ParseResult, error) {
	if len(entries) == 0 {
		return ParseResult{}, ErrEmptyDatabase
	}

	dedup := opts.Dedup
	if dedup == nil {
		dedup = DedupPolicyNone{}
	}

	var (
		result  ParseResult
		kept    = make(map[string]*action.Action) // keyed by dedup identity key
		keptAll []*action.Action
	)

	for _, entry := range entries {
		if entry.Command == nil && len(entry.Arguments) == 0 {
			return ParseResult{}, fmt.Errorf("%w: file=%s", ErrMalformedEntry, entry.File)
		}

		if opts.Skip != nil && opts.Skip(resolveSource(entry)) {
			result.Skipped++
			continue
		}

		act, err := parseEntry(ctx, entry, opts)
		if err != nil {
			result.Skipped++
			continue
		}

		key := dedupKey(act)

		existing, ok := kept[key]
		if !ok {
			kept[key] = act
			keptAll = append(keptAll, act)
			continue
		}

		resolved, resolveErr := dedup.Resolve(existing, act)
		if resolveErr != nil {
			return ParseResult{}, resolveErr
		}

		if resolved != existing {
			for i, a := range keptAll {
				if a == existing {
					keptAll[i] = resolved
					break
				}
			}
		}

		kept[key] = resolved
	}

	result.Actions = keptAll

	return result, nil
}

func resolveSource(entry CompileCommandEntry) string {
	if filepath.IsAbs(entry.File) {
		return entry.File
	}

	return filepath.Join(entry.Directory, entry.File)
}

// dedupKey is the 4-tuple identity (analyzer-options, analyzer-name,
// target, source) the hash is built from.
func dedupKey(a *action.Action) string {
	return a.Hash()
}

func parseEntry(ctx context.Context, entry CompileCommandEntry, opts ParseOptions) (*action.Action, error) {
	tokens := tokensOf(entry)
	if len(tokens) == 0 {
		return nil, ErrMalformedEntry
	}

	compiler, rest := splitCompiler(tokens)
	wrapped := filepath.Base(tokens[0]) == "ccache"

	fields := action.Fields{
		OriginalCommand: originalCommand(entry),
		Directory:       entry.Directory,
		Source:          resolveSource(entry),
		Kind:            action.KindCompile,
	}

	walkTransformerChain(rest, entry.Directory, &fields)

	if toolchain, ok := gcctoolchain.DetectInCommand(fields.OriginalCommand); ok {
		fields.GCCToolchain = toolchain
	}

	if fields.Language == "" {
		fields.Language = languageFromExtension(entry.File)
	}

	if fields.Language == "" {
		fields.Kind = action.KindLink
	}

	// Implicit compiler info per spec.md §4.2: skipped when a
	// --gcc-toolchain redirects the header search or the command went
	// through a ccache wrapper.
	if opts.Cache != nil && fields.GCCToolchain == "" && !wrapped && fields.Kind == action.KindCompile {
		info, probeErr := ProbeCompiler(ctx, compiler, opts.Cache, opts.Logger)
		if probeErr != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("compiler probe failed, continuing without implicit info",
					slog.String("compiler", compiler), slog.String("error", probeErr.Error()))
			}
		} else {
			fields.CompilerIncludes = info.Includes
			fields.DefaultStandard = info.DefaultStandard

			if fields.Target == "" {
				fields.Target = info.Target
			}
		}
	}

	return action.New(fields)
}

func originalCommand(entry CompileCommandEntry) string {
	if entry.Command != nil {
		return *entry.Command
	}

	return strings.Join(entry.Arguments, " ")
}

func tokensOf(entry CompileCommandEntry) []string {
	if entry.Command != nil {
		return splitShellWords(*entry.Command)
	}

	return entry.Arguments
}

// splitCompiler returns the effective compiler path and the remaining
// argv, unwrapping a leading ccache invocation.
func splitCompiler(tokens []string) (string, []string) {
	if len(tokens) == 0 {
		return "", nil
	}

	if filepath.Base(tokens[0]) == "ccache" && len(tokens) > 1 {
		return tokens[1], tokens[2:]
	}

	return tokens[0], tokens[1:]
}

// languageFromExtension derives the source language from its extension
// when -x did not set one explicitly.
func languageFromExtension(source string) action.Language {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".c":
		return action.LangC
	case ".cc", ".cpp", ".cxx":
		return action.LangCXX
	case ".m":
		return action.LangObjC
	case ".mm":
		return action.LangObjCXX
	default:
		// Preserve case-sensitive .C (C++) before falling through to unknown.
		if strings.HasSuffix(source, ".C") {
			return action.LangCXX
		}

		return ""
	}
}

func splitShellWords(cmd string) []string {
	return strings.Fields(cmd)
}
