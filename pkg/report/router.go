package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
)

const (
	successDirName    = "success"
	failedDirName     = "failed"
	reproducerDirName = "reproducer"
	ctuConnDirName    = "ctu_connections"
)

// Router owns the output-directory tree spec.md §6 describes: success/,
// failed/, reproducer/ and ctu_connections/, every one created lazily
// on first use.
type Router struct {
	OutputDir string
	// CompilerInfoPath, when non-empty, is embedded as compiler_info.json
	// in every reproducer zip, per spec.md §4.7.
	CompilerInfoPath string
	// CaptureOutput enables writing <artifact-base>.stdout.txt/.stderr.txt
	// beside successful artifacts, per spec.md §4.7.
	CaptureOutput bool
	// BuildActionMap resolves mentioned files back to their owning action
	// for reproducer enrichment.
	BuildActionMap *action.Map
	// ReproducerSizeLimit bounds each source file embedded into a
	// reproducer zip, in bytes. 0 means unlimited.
	ReproducerSizeLimit uint64

	dirsOnce map[string]*sync.Once
	dirsMu   sync.Mutex

	sourceMapMu sync.Mutex
	sourceMap   map[string]string
}

// NewRouter builds a Router rooted at outputDir.
func NewRouter(outputDir string) *Router {
	return &Router{
		OutputDir: outputDir,
		dirsOnce:  make(map[string]*sync.Once),
		sourceMap: make(map[string]string),
	}
}

// ResultSourceFiles returns the accumulated artifact-path -> source-path
// map for folding into run metadata.
func (rt *Router) ResultSourceFiles() map[string]string {
	rt.sourceMapMu.Lock()
	defer rt.sourceMapMu.Unlock()

	out := make(map[string]string, len(rt.sourceMap))
	for k, v := range rt.sourceMap {
		out[k] = v
	}

	return out
}

func (rt *Router) ensureDir(name string) (string, error) {
	path := filepath.Join(rt.OutputDir, name)

	rt.dirsMu.Lock()
	once, ok := rt.dirsOnce[name]
	if !ok {
		once = &sync.Once{}
		rt.dirsOnce[name] = once
	}
	rt.dirsMu.Unlock()

	var mkErr error

	once.Do(func() {
		mkErr = os.MkdirAll(path, 0o755) //nolint:gosec // report dir, not secret.
	})

	if mkErr != nil {
		return "", fmt.Errorf("report: create %s: %w", name, mkErr)
	}

	return path, nil
}

// RouteSuccess finalizes a successful invocation: optional stdout/stderr
// capture, PostProcess, and the .source sidecar, per spec.md §4.7.
func (rt *Router) RouteSuccess(ctx context.Context, act *action.Action, rh analyzer.ResultHandler, stdout, stderr []byte) error {
	if rt.CaptureOutput {
		successDir, err := rt.ensureDir(successDirName)
		if err != nil {
			return err
		}

		base := filepath.Base(rh.ArtifactPath())

		if err := os.WriteFile(filepath.Join(successDir, base+".stdout.txt"), stdout, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("report: write stdout capture: %w", err)
		}

		if err := os.WriteFile(filepath.Join(successDir, base+".stderr.txt"), stderr, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("report: write stderr capture: %w", err)
		}
	}

	if err := rh.PostProcess(ctx); err != nil {
		return fmt.Errorf("report: postprocess %s: %w", act.Source(), err)
	}

	sourcePath := collapseEscapes(act.Source())

	sidecarPath := rh.ArtifactPath() + ".source"
	if err := os.WriteFile(sidecarPath, []byte(sourcePath), 0o644); err != nil { //nolint:gosec // report artifact.
		return fmt.Errorf("report: write source sidecar: %w", err)
	}

	rt.sourceMapMu.Lock()
	rt.sourceMap[rh.ArtifactPath()] = sourcePath
	rt.sourceMapMu.Unlock()

	return nil
}

// RouteFailure packages a reproducer zip for a failed invocation under
// failed/<artifact-base><ctuSuffix>_<class>.zip, then removes any stale
// non-failed artifact left behind for the same base name, per spec.md
// §4.7 and the testable property that no stale success artifact survives
// a later failure for the same source. mentioned is the adapter's
// MentionedFiles(stdout, stderr) output; the caller holds the Adapter
// reference the ResultHandler interface itself does not expose.
func (rt *Router) RouteFailure(ctx context.Context, act *action.Action, rh analyzer.ResultHandler, argv []string, returnCode int, stdout, stderr []byte, mentioned []string, class FailureClass, ctuSuffix string) (string, error) {
	return rt.packageReproducer(ctx, failedDirName, act, rh, argv, returnCode, stdout, stderr, mentioned, class, ctuSuffix)
}

// RouteReproducer packages a reproducer archive unconditionally, for the
// generate-reproducer-always path of spec.md §4.6 step 9, regardless of
// whether the invocation succeeded.
func (rt *Router) RouteReproducer(ctx context.Context, act *action.Action, rh analyzer.ResultHandler, argv []string, returnCode int, stdout, stderr []byte, mentioned []string, class FailureClass, ctuSuffix string) (string, error) {
	return rt.packageReproducer(ctx, reproducerDirName, act, rh, argv, returnCode, stdout, stderr, mentioned, class, ctuSuffix)
}

func (rt *Router) packageReproducer(_ context.Context, dirName string, act *action.Action, rh analyzer.ResultHandler, argv []string, returnCode int, stdout, stderr []byte, mentioned []string, class FailureClass, ctuSuffix string) (string, error) {
	dir, err := rt.ensureDir(dirName)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(rh.ArtifactPath()), filepath.Ext(rh.ArtifactPath()))
	zipName := fmt.Sprintf("%s%s%s.zip", base, ctuSuffix, class)
	zipPath := filepath.Join(dir, zipName)

	if err := writeReproducerZip(zipPath, reproducerInputs{
		Action:           act,
		Argv:             argv,
		ReturnCode:       returnCode,
		Stdout:           stdout,
		Stderr:           stderr,
		CompilerInfoPath: rt.CompilerInfoPath,
		MentionedFiles:   mentioned,
		BuildActionMap:   rt.BuildActionMap,
		SizeLimit:        rt.ReproducerSizeLimit,
	}); err != nil {
		return "", fmt.Errorf("report: package reproducer for %s: %w", act.Source(), err)
	}

	if dirName == failedDirName {
		if err := rt.removeStaleArtifact(rh.ArtifactPath()); err != nil {
			return "", err
		}
	}

	return zipPath, nil
}

// removeStaleArtifact deletes a previously-written success artifact (and
// its .source sidecar) for the same base name, so a later failure never
// leaves a stale success behind, per spec.md §4.6 testable property 4.
func (rt *Router) removeStaleArtifact(artifactPath string) error {
	for _, p := range []string{artifactPath, artifactPath + ".source"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("report: remove stale artifact %s: %w", p, err)
		}
	}

	rt.sourceMapMu.Lock()
	delete(rt.sourceMap, artifactPath)
	rt.sourceMapMu.Unlock()

	return nil
}

// CTUConnectionPath returns the path ctu_connections/<action-key> should
// be written to, creating the directory lazily.
func (rt *Router) CTUConnectionPath(actionKey string) (string, error) {
	dir, err := rt.ensureDir(ctuConnDirName)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, actionKey), nil
}

// PruneEmptyDirs removes success/ and failed/ if they exist and ended up
// empty, per spec.md §4.7.
func (rt *Router) PruneEmptyDirs() error {
	for _, name := range []string{successDirName, failedDirName} {
		dir := filepath.Join(rt.OutputDir, name)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return fmt.Errorf("report: read %s: %w", name, err)
		}

		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return fmt.Errorf("report: remove empty %s: %w", name, err)
			}
		}
	}

	return nil
}

// collapseEscapes collapses "\ " shell-escapes in a path into plain
// spaces, per spec.md §4.7's sidecar-content rule.
func collapseEscapes(path string) string {
	return strings.ReplaceAll(path, `\ `, " ")
}
