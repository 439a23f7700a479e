package report

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
)

// reproducerInputs is everything writeReproducerZip needs to build one
// archive, per spec.md §6's flat-entry layout.
type reproducerInputs struct {
	Action           *action.Action
	Argv             []string
	ReturnCode       int
	Stdout           []byte
	Stderr           []byte
	CompilerInfoPath string
	MentionedFiles   []string
	BuildActionMap   *action.Map
	// SizeLimit bounds each embedded source file, in bytes. 0 means
	// unlimited.
	SizeLimit uint64
}

// writeReproducerZip packages a reproducer archive at path: the fixed
// entries build-action, analyzer-command, return-code, stdout, stderr,
// the optional gcc-toolchain-path and compiler_info.json entries, and
// every resolvable mentioned file rooted at its own absolute path, per
// spec.md §6's reproducer zip layout.
func writeReproducerZip(path string, in reproducerInputs) error {
	f, err := os.Create(path) //nolint:gosec // report artifact path derived from our own naming.
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	entries := map[string][]byte{
		"build-action":     []byte(in.Action.OriginalCommand()),
		"analyzer-command": []byte(shellQuoteJoin(in.Argv)),
		"return-code":      []byte(strconv.Itoa(in.ReturnCode)),
		"stdout":           in.Stdout,
		"stderr":           in.Stderr,
	}

	if tc := in.Action.GCCToolchain(); tc != "" {
		entries["gcc-toolchain-path"] = []byte(tc)
	}

	if in.CompilerInfoPath != "" {
		if data, readErr := os.ReadFile(in.CompilerInfoPath); readErr == nil {
			entries["compiler_info.json"] = data
		}
	}

	for name, data := range entries {
		if err := writeZipEntry(zw, name, data); err != nil {
			zw.Close()
			return err
		}
	}

	for _, path := range reproducerSourceFiles(in) {
		if in.SizeLimit > 0 {
			if st, statErr := os.Stat(path); statErr != nil || uint64(st.Size()) > in.SizeLimit {
				continue
			}
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			// Unresolvable mentioned file; spec.md §6 only requires
			// "every resolvable" file to be embedded.
			continue
		}

		entryName := strings.TrimPrefix(path, string(filepath.Separator))

		if err := writeZipEntry(zw, entryName, data); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}

	return nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}

	return nil
}

// reproducerSourceFiles returns the action's own source plus every mentioned
// file that resolves, via the Build-Action Map, to a known action, per
// spec.md §4.7/§6: "the source file and every source file mentioned by the
// analyzer's output that resolves ... to a known action". When no map is
// supplied, mentioned files are taken as given (best-effort resolution).
func reproducerSourceFiles(in reproducerInputs) []string {
	seen := map[string]struct{}{}
	out := []string{}

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}

		seen[path] = struct{}{}
		out = append(out, path)
	}

	add(in.Action.Source())

	for _, m := range in.MentionedFiles {
		if in.BuildActionMap != nil && !in.BuildActionMap.HasSource(m) {
			continue
		}

		add(m)
	}

	return out
}

// shellQuoteJoin joins argv into a shell-quoted command line, quoting any
// argument containing whitespace or shell metacharacters.
func shellQuoteJoin(argv []string) string {
	quoted := make([]string, len(argv))

	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}

	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if !strings.ContainsAny(s, " \t\n'\"\\$`") {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
