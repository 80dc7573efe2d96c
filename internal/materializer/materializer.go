// Package materializer applies a planner.Plan to the filesystem: hard-link
// when possible, copy when not, rename in place, delete extras, and prune
// directories left empty. Every write lands via a sibling temporary name
// that is atomically renamed into place, so a crash leaves either the old
// content or the new, never a truncation.
package materializer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/austin/romkeep/internal/log"
	"github.com/austin/romkeep/internal/part"
	"github.com/austin/romkeep/internal/planner"
)

// tempPrefix marks temporaries the materializer creates so a crash-interrupted
// run leaves a recognizable name other tooling can clean up.
const tempPrefix = ".romkeep-tmp-"

// Options configures how a Plan is applied.
type Options struct {
	// DryRun records intended actions without mutating the filesystem.
	DryRun bool
	Logger *log.Logger
}

// Result summarizes what Apply actually did (or would have done, under
// DryRun), feeding the Reporter's byte counters.
type Result struct {
	BytesLinked  int64
	BytesWritten int64
	Renamed      int
	Removed      int
	LinkFallback int // hard-links that fell back to copy
}

// Apply executes plan against gameDir in the order spec.md §4.7 requires:
// renames, then materializations, then deletes, then directory prune.
// src resolves and opens the PartRefs a Materialize action names.
func Apply(plan planner.Plan, gameDir string, src *part.Source, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(false, false)
	}

	var result Result

	if !opts.DryRun {
		if err := os.MkdirAll(gameDir, 0o755); err != nil {
			return result, fmt.Errorf("materializer: create %q: %w", gameDir, err)
		}
	}

	for _, r := range plan.Renames {
		from := filepath.Join(gameDir, r.From)
		to := filepath.Join(gameDir, r.To)
		logger.Debugf("materializer: rename %q -> %q", from, to)
		if opts.DryRun {
			result.Renamed++
			continue
		}
		if err := atomicRename(from, to); err != nil {
			return result, fmt.Errorf("materializer: rename %q to %q: %w", r.From, r.To, err)
		}
		result.Renamed++
	}

	for _, m := range plan.Materializes {
		to := filepath.Join(gameDir, m.To)
		logger.Debugf("materializer: materialize %q via %v from %v", to, m.Via, m.Src)
		if opts.DryRun {
			if m.Via == planner.HardLink {
				result.BytesLinked += int64(m.Size)
			} else {
				result.BytesWritten += int64(m.Size)
			}
			continue
		}

		via := m.Via
		fellBack := false
		if via == planner.HardLink {
			if err := hardLink(m.Src, to); err != nil {
				if !isLinkFallbackError(err) {
					return result, fmt.Errorf("materializer: link %q: %w", m.To, err)
				}
				via = planner.Copy
				fellBack = true
				logger.Debugf("materializer: hard link %q failed (%v), falling back to copy", m.To, err)
			}
		}
		if via == planner.Copy {
			n, err := copyFromSource(src, m.Src, to)
			if err != nil {
				return result, fmt.Errorf("materializer: copy %q: %w", m.To, err)
			}
			result.BytesWritten += n
		} else {
			result.BytesLinked += int64(m.Size)
		}
		if fellBack {
			result.LinkFallback++
		}
	}

	for _, rm := range plan.Removes {
		target := filepath.Join(gameDir, rm.Path)
		logger.Debugf("materializer: remove %q", target)
		if opts.DryRun {
			result.Removed++
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return result, fmt.Errorf("materializer: remove %q: %w", rm.Path, err)
		}
		result.Removed++
	}

	if !opts.DryRun {
		pruneEmptyDirs(gameDir)
	}

	return result, nil
}

// hardLink creates a hard link at dst pointing at src's underlying file.
// Only a LooseFile source can be hard-linked; anything else is reported as
// a fallback-eligible error so the caller copies instead.
func hardLink(src part.Ref, dst string) error {
	if src.Kind != part.LooseFile {
		return errLinkFallback{reason: "source is not a loose file"}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Link(src.Path, dst); err != nil {
		return errLinkFallback{reason: err.Error(), err: err}
	}
	return nil
}

type errLinkFallback struct {
	reason string
	err    error
}

func (e errLinkFallback) Error() string { return "link fallback: " + e.reason }
func (e errLinkFallback) Unwrap() error { return e.err }

func isLinkFallbackError(err error) bool {
	var fb errLinkFallback
	return asErrLinkFallback(err, &fb)
}

func asErrLinkFallback(err error, target *errLinkFallback) bool {
	for err != nil {
		if fb, ok := err.(errLinkFallback); ok {
			*target = fb
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// copyFromSource streams src's bytes (opened via part.Source, so archive
// entries and remote blobs work the same as loose files) into a sibling
// temp file under dst's directory, then atomically renames it into place.
// When ref is a LooseFile, the original's mtime is preserved on the copy
// per spec.md §4.7; other part kinds have no stable source mtime to copy.
func copyFromSource(src *part.Source, ref part.Ref, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	r, err := src.Open(ref)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+filepath.Base(dst)+"-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, copyErr
	}
	if syncErr != nil {
		os.Remove(tmpPath)
		return 0, syncErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, closeErr
	}

	if ref.Kind == part.LooseFile {
		if info, err := os.Stat(ref.Path); err == nil {
			os.Chtimes(tmpPath, time.Now(), info.ModTime())
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return n, err
	}
	return n, nil
}

// atomicRename removes any file already at to and then moves from onto to
// with a single os.Rename, creating to's parent directory if needed.
func atomicRename(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if err := os.Remove(to); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(from, to)
}

// pruneEmptyDirs removes any directory under root (but not root itself)
// left empty by Removes/Renames, deepest first.
func pruneEmptyDirs(root string) {
	var dirs []string
	filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil || !info.IsDir() || path == root {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i]) // no-op error: fails silently if non-empty
	}
}

// CleanStaleTemps removes leftover sibling temp files matching tempPrefix
// under dir, opportunistically invoked at the start of a run against the
// same target directory per spec.md §7's crash-recovery policy.
func CleanStaleTemps(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) >= len(tempPrefix) && name[:len(tempPrefix)] == tempPrefix {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
