package logparser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/procsup"
)

// CompilerInfo is one compiler's probed implicit configuration: its system
// include search paths, target triple, and default language-standard flag.
type CompilerInfo struct {
	Includes        []string `json:"includes"`
	Target          string   `json:"target"`
	DefaultStandard string   `json:"default_standard"`
}

// CompilerInfoCache is an on-disk JSON object keyed by compiler path,
// written atomically at end of parsing per spec.md §6.
type CompilerInfoCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]CompilerInfo
	dirty   bool
}

// LoadCompilerInfoCache reads path if it exists, or returns an empty cache
// bound to path for later Save calls.
func LoadCompilerInfoCache(path string) (*CompilerInfoCache, error) {
	c := &CompilerInfoCache{path: path, entries: make(map[string]CompilerInfo)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}

	if err != nil {
		return nil, fmt.Errorf("logparser: read compiler info cache %s: %w", path, err)
	}

	if len(data) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("logparser: parse compiler info cache %s: %w", path, err)
	}

	return c, nil
}

// Get returns the cached CompilerInfo for compiler, if present.
func (c *CompilerInfoCache) Get(compiler string) (CompilerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.entries[compiler]

	return info, ok
}

// Put records info for compiler, marking the cache dirty for Save.
func (c *CompilerInfoCache) Put(compiler string, info CompilerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[compiler] = info
	c.dirty = true
}

// Save atomically writes the cache to its path if dirty, via a temp file
// plus rename so a crash mid-write never leaves a corrupt cache.
func (c *CompilerInfoCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty || c.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("logparser: marshal compiler info cache: %w", err)
	}

	tmp := c.path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("logparser: write compiler info cache: %w", err)
	}

	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("logparser: rename compiler info cache: %w", err)
	}

	c.dirty = false

	return nil
}

var (
	searchStartRE  = regexp.MustCompile(`^#include.*search starts here`)
	searchEndRE    = regexp.MustCompile(`^End of search list`)
	targetLineRE   = regexp.MustCompile(`^Target:\s*(\S+)`)
	frameworkRE    = regexp.MustCompile(`\s*\(framework directory\)\s*$`)
	intrinHeaderRE = regexp.MustCompile(`(?i)intrin\.h`)
)

// stdVersionYearToStd maps a __STDC_VERSION__/__cplusplus reported year to
// the -std=gnuNN flag spec.md §4.2 requires, with the 199409 special case.
var stdVersionYearToStd = map[string]string{
	"199409": "-std=iso9899:199409",
	"199901": "-std=gnu99",
	"201112": "-std=gnu11",
	"201710": "-std=gnu17",
	"199711": "-std=gnu++98",
	"201103": "-std=gnu++11",
	"201402": "-std=gnu++14",
	"201703": "-std=gnu++17",
	"202002": "-std=gnu++20",
}

// ProbeCompiler invokes compiler to discover its implicit system includes,
// target triple, and default language standard, consulting cache first.
// On probe failure it returns a zero CompilerInfo and a non-fatal error the
// caller is expected to log and discard, per spec.md §4.2/§7.
func ProbeCompiler(ctx context.Context, compiler string, cache *CompilerInfoCache, logger *slog.Logger) (CompilerInfo, error) {
	if cache != nil {
		if info, ok := cache.Get(compiler); ok {
			return info, nil
		}
	}

	includes, target, probeErr := probeIncludesAndTarget(ctx, compiler, logger)
	if probeErr != nil {
		return CompilerInfo{}, probeErr
	}

	std := probeDefaultStandard(ctx, compiler, logger)

	info := CompilerInfo{Includes: includes, Target: target, DefaultStandard: std}

	if cache != nil {
		cache.Put(compiler, info)
	}

	return info, nil
}

func probeIncludesAndTarget(ctx context.Context, compiler string, logger *slog.Logger) ([]string, string, error) {
	res, err := runProbe(ctx, logger, []string{compiler, "-E", "-v", "-"})
	if err != nil {
		return nil, "", fmt.Errorf("logparser: probe %s includes: %w", compiler, err)
	}

	includes := parseSearchPaths(string(res.Stderr))
	target := parseTarget(string(res.Stderr))

	return includes, target, nil
}

func parseSearchPaths(stderr string) []string {
	var (
		includes []string
		inSearch bool
	)

	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case searchStartRE.MatchString(line):
			inSearch = true
			continue
		case searchEndRE.MatchString(line):
			inSearch = false
			continue
		case inSearch:
			dir := strings.TrimSpace(line)
			dir = frameworkRE.ReplaceAllString(dir, "")

			if dir == "" || strings.Contains(dir, "include-fixed") || intrinHeaderRE.MatchString(dir) {
				continue
			}

			includes = append(includes, "-isystem"+dir)
		}
	}

	return includes
}

func parseTarget(stderr string) string {
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		if m := targetLineRE.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1]
		}
	}

	return ""
}

// probeDefaultStandard preprocesses empty C input with "-E -dM" and
// returns the standard of a known __STDC_VERSION__ year found in the
// dumped macros on stdout, or "" when none is found.
func probeDefaultStandard(ctx context.Context, compiler string, logger *slog.Logger) string {
	res, err := runProbe(ctx, logger, []string{compiler, "-E", "-dM", "-x", "c", "-"})
	if err != nil {
		return ""
	}

	for year, std := range stdVersionYearToStd {
		if strings.Contains(string(res.Stdout), year) {
			return std
		}
	}

	return ""
}

const probeTimeout = 10 * time.Second

func runProbe(ctx context.Context, logger *slog.Logger, argv []string) (procsup.Result, error) {
	h, err := procsup.Spawn(ctx, logger, procsup.Spec{Argv: argv, Timeout: probeTimeout})
	if err != nil {
		return procsup.Result{}, err
	}

	return h.Wait()
}
