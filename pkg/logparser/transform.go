package logparser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
)

// ignoredFlagPatterns matches flags analyzer invocations must drop:
// link-time-optimization, GCC-only warnings, debug-info, save-temps, and
// strict-diagnostics-as-errors flags, plus architecture options Clang does
// not accept.
var ignoredFlagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^-flto`),
	regexp.MustCompile(`^-g`),
	regexp.MustCompile(`^-save-temps`),
	regexp.MustCompile(`^-Werror`),
	regexp.MustCompile(`^-pedantic-errors`),
	regexp.MustCompile(`^-mno-`),
	regexp.MustCompile(`^-fwhole-program`),
}

// ignoredWithParamArity maps a flag that consumes a fixed number of
// following tokens to that count.
var ignoredWithParamArity = map[string]int{
	"--param": 1,
	"-Xclang": 1,
}

// targetTripleFlags maps a GCC-specific target flag to the Clang -target
// pair it is replaced by.
var targetTripleFlags = map[string]string{
	"-m32": "i386-unknown-linux-gnu",
	"-m64": "x86_64-unknown-linux-gnu",
}

// compileOptionPrefixes are analyzer-facing option prefixes kept verbatim
// (after path resolution, for -I).
var compileOptionPrefixes = []string{
	"-f", "-m", "-O", "-std=", "--sysroot=", "-D", "-U", "-isystem",
}

// walkTransformerChain iterates tokens, applying each transformer in order
// until one consumes the token; unmatched tokens are dropped silently.
func walkTransformerChain(tokens []string, directory string, fields *action.Fields) {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if n, ok := ignoredWithParamArity[tok]; ok {
			i += n
			continue
		}

		if skipIgnored(tok) {
			continue
		}

		if triple, ok := targetTripleFlags[tok]; ok {
			fields.Target = triple
			continue
		}

		if consumed := captureArch(tokens, i, fields); consumed > 0 {
			i += consumed - 1
			continue
		}

		if consumed := captureTarget(tokens, i, fields); consumed > 0 {
			i += consumed - 1
			continue
		}

		if consumed := captureLang(tokens, i, fields); consumed > 0 {
			i += consumed - 1
			continue
		}

		if consumed := captureOutput(tokens, i, fields); consumed > 0 {
			i += consumed - 1
			continue
		}

		if classifyAction(tok, fields) {
			continue
		}

		if tok == "-I" && i+1 < len(tokens) {
			fields.AnalyzerOptions = append(fields.AnalyzerOptions, "-I"+resolveInclude(tokens[i+1], directory))
			i++

			continue
		}

		if strings.HasPrefix(tok, "-I") && len(tok) > len("-I") {
			fields.AnalyzerOptions = append(fields.AnalyzerOptions, "-I"+resolveInclude(tok[len("-I"):], directory))
			continue
		}

		if collectCompileOption(tok) {
			fields.AnalyzerOptions = append(fields.AnalyzerOptions, tok)
			continue
		}

		// Unmatched: not a flag we recognize. Skip non-flag source tokens
		// silently (they are already captured as fields.Source by the caller).
	}
}

func skipIgnored(tok string) bool {
	for _, re := range ignoredFlagPatterns {
		if re.MatchString(tok) {
			return true
		}
	}

	return false
}

func collectCompileOption(tok string) bool {
	if strings.HasPrefix(tok, "-W") {
		return true
	}

	for _, prefix := range compileOptionPrefixes {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}

	return false
}

// classifyAction recognizes the action-kind flags -c, -E/-M*, and
// -print-prog-name, updating fields.Kind. Returns true if tok was consumed.
func classifyAction(tok string, fields *action.Fields) bool {
	switch {
	case tok == "-c":
		fields.Kind = action.KindCompile
		return true
	case tok == "-E" || strings.HasPrefix(tok, "-M"):
		fields.Kind = action.KindPreprocess
		return true
	case strings.HasPrefix(tok, "-print-prog-name"):
		fields.Kind = action.KindInfo
		return true
	default:
		return false
	}
}

// captureArch consumes "-arch <value>" and returns how many tokens it used.
func captureArch(tokens []string, i int, fields *action.Fields) int {
	if tokens[i] != "-arch" || i+1 >= len(tokens) {
		return 0
	}

	fields.Target = tokens[i+1]

	return 2
}

// captureTarget consumes "-target <triple>" or "--target=<triple>" and
// returns how many tokens it used.
func captureTarget(tokens []string, i int, fields *action.Fields) int {
	if v, ok := strings.CutPrefix(tokens[i], "--target="); ok {
		fields.Target = v

		return 1
	}

	if tokens[i] != "-target" || i+1 >= len(tokens) {
		return 0
	}

	fields.Target = tokens[i+1]

	return 2
}

// captureLang consumes "-x <lang>" and returns how many tokens it used.
func captureLang(tokens []string, i int, fields *action.Fields) int {
	if tokens[i] != "-x" || i+1 >= len(tokens) {
		return 0
	}

	fields.Language = languageFromDashX(tokens[i+1])

	return 2
}

func languageFromDashX(value string) action.Language {
	switch value {
	case "c":
		return action.LangC
	case "c++":
		return action.LangCXX
	case "objective-c":
		return action.LangObjC
	case "objective-c++":
		return action.LangObjCXX
	default:
		return ""
	}
}

// captureOutput consumes "-o <path>" and returns how many tokens it used.
func captureOutput(tokens []string, i int, fields *action.Fields) int {
	if tokens[i] != "-o" || i+1 >= len(tokens) {
		return 0
	}

	fields.Output = tokens[i+1]

	return 2
}

func resolveInclude(path, directory string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(directory, path)
}
