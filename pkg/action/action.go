// Package action defines the canonical, immutable compilation-action value
// type shared by the log parser, checker-enablement engine, analyzer
// adapters, and scheduler.
package action

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Language is the source language of a compilation action.
type Language string

// Recognized source languages.
const (
	LangC      Language = "c"
	LangCXX    Language = "c++"
	LangObjC   Language = "objective-c"
	LangObjCXX Language = "objective-c++"
)

// Kind classifies what a compilation action does.
type Kind string

// Action kinds.
const (
	KindCompile    Kind = "compile"
	KindLink       Kind = "link"
	KindPreprocess Kind = "preprocess"
	KindInfo       Kind = "info"
)

// ErrEmptySource is returned by New when Fields.Source is empty.
var ErrEmptySource = errors.New("action: source must not be empty")

// ErrEmptyOriginalCommand is returned by New when Fields.OriginalCommand is empty.
var ErrEmptyOriginalCommand = errors.New("action: original command must not be empty")

// Fields is the input to New. It mirrors Action's shape but is mutable,
// letting callers assemble it incrementally before committing to an
// immutable Action.
type Fields struct {
	OriginalCommand  string
	Directory        string
	Source           string
	Language         Language
	Target           string
	CompilerIncludes []string
	AnalyzerOptions  []string
	Output           string
	Kind             Kind
	AnalyzerName     string
	DefaultStandard  string
	GCCToolchain     string
}

// Action is an immutable, canonical representation of one compilation
// action. Unexported fields and read-only accessors ensure no caller can
// mutate an Action after construction; derivations (WithAnalyzerName)
// return a new value instead of mutating in place.
type Action struct {
	originalCommand  string
	directory        string
	source           string
	language         Language
	target           string
	compilerIncludes []string
	analyzerOptions  []string
	output           string
	kind             Kind
	analyzerName     string
	defaultStandard  string
	gccToolchain     string
}

// New validates fields and constructs an immutable Action.
func New(f Fields) (*Action, error) {
	if f.Source == "" {
		return nil, ErrEmptySource
	}

	if f.OriginalCommand == "" {
		return nil, ErrEmptyOriginalCommand
	}

	includes := make([]string, len(f.CompilerIncludes))
	copy(includes, f.CompilerIncludes)

	opts := make([]string, len(f.AnalyzerOptions))
	copy(opts, f.AnalyzerOptions)

	return &Action{
		originalCommand:  f.OriginalCommand,
		directory:        f.Directory,
		source:           f.Source,
		language:         f.Language,
		target:           f.Target,
		compilerIncludes: includes,
		analyzerOptions:  opts,
		output:           f.Output,
		kind:             f.Kind,
		analyzerName:     f.AnalyzerName,
		defaultStandard:  f.DefaultStandard,
		gccToolchain:     f.GCCToolchain,
	}, nil
}

// OriginalCommand returns the raw compile command string this action was
// derived from.
func (a *Action) OriginalCommand() string { return a.originalCommand }

// Directory returns the working directory the command was issued from.
func (a *Action) Directory() string { return a.directory }

// Source returns the primary source path.
func (a *Action) Source() string { return a.source }

// Language returns the action's source language.
func (a *Action) Language() Language { return a.language }

// Target returns the target triple.
func (a *Action) Target() string { return a.target }

// CompilerIncludes returns the per-language compiler include list. The
// returned slice is a copy; mutating it does not affect the Action.
func (a *Action) CompilerIncludes() []string {
	out := make([]string, len(a.compilerIncludes))
	copy(out, a.compilerIncludes)

	return out
}

// AnalyzerOptions returns the analyzer-facing option list, stripped of
// forbidden flags by the log parser. The returned slice is a copy.
func (a *Action) AnalyzerOptions() []string {
	out := make([]string, len(a.analyzerOptions))
	copy(out, a.analyzerOptions)

	return out
}

// Output returns the action's declared output path.
func (a *Action) Output() string { return a.output }

// Kind returns the action kind.
func (a *Action) Kind() Kind { return a.kind }

// AnalyzerName returns the analyzer this action is assigned to, or the
// empty string if none has been assigned yet.
func (a *Action) AnalyzerName() string { return a.analyzerName }

// DefaultStandard returns the compiler's default language-standard flag.
func (a *Action) DefaultStandard() string { return a.defaultStandard }

// GCCToolchain returns the configured --gcc-toolchain path, or empty.
func (a *Action) GCCToolchain() string { return a.gccToolchain }

// WithAnalyzerName returns a new Action identical to a except for
// AnalyzerName. The receiver is left unmodified.
func (a *Action) WithAnalyzerName(name string) *Action {
	clone := *a
	clone.analyzerName = name
	clone.compilerIncludes = append([]string(nil), a.compilerIncludes...)
	clone.analyzerOptions = append([]string(nil), a.analyzerOptions...)

	return &clone
}

// Hash returns a hex-encoded sha256 digest over the 4-tuple
// (analyzer-options, analyzer-name, target, source), the identity used for
// deduplication per the canonical-form rule.
func (a *Action) Hash() string {
	h := sha256.New()
	h.Write([]byte(strings.Join(a.analyzerOptions, "\x00")))
	h.Write([]byte{0})
	h.Write([]byte(a.analyzerName))
	h.Write([]byte{0})
	h.Write([]byte(a.target))
	h.Write([]byte{0})
	h.Write([]byte(a.source))

	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two actions share the same original command, the
// defined notion of action equality.
func (a *Action) Equal(other *Action) bool {
	if other == nil {
		return false
	}

	return a.originalCommand == other.originalCommand
}

// CompileCommand is the on-disk compilation-database entry shape.
type CompileCommand struct {
	Command   string `json:"command"`
	Directory string `json:"directory"`
	File      string `json:"file"`
}

// ToCompileCommand serializes the action back to its compilation-database
// entry form.
func (a *Action) ToCompileCommand() CompileCommand {
	return CompileCommand{
		Command:   a.originalCommand,
		Directory: a.directory,
		File:      a.source,
	}
}
