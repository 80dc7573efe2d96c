// Package scanner walks a root directory, classifies each file as a loose
// file or a container of archive entries, and digests every part it finds
// into a Datum Index. It is the Go-native successor to a candidate-archive
// walker: where that walker only located first-volume RAR sets, Scanner
// digests everything it can read, loose files and archive entries alike.
package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/austin/romkeep/internal/archive"
	"github.com/austin/romkeep/internal/chd"
	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/index"
	"github.com/austin/romkeep/internal/log"
	"github.com/austin/romkeep/internal/part"
	"github.com/austin/romkeep/internal/xattrcache"
)

// Options configures a scan.
type Options struct {
	// MaxDepth bounds how many directory levels below Root are descended.
	// Negative means unbounded.
	MaxDepth int
	// Workers bounds how many files are digested concurrently. Zero
	// chooses a small default suitable for a spinning or solid-state
	// disk without saturating either.
	Workers int
	Logger  *log.Logger
}

// Result summarizes one scan.
type Result struct {
	FilesScanned    int
	ArchivesOpened  int
	EntriesDigested int
	BytesRead       int64
}

// Scan walks root, digesting every loose file and every entry inside every
// archive it finds, and recording (digest, PartRef) pairs into idx. src is
// used to open and digest the bytes; it is not closed by Scan.
func Scan(ctx context.Context, root string, src *part.Source, idx *index.Index, opts Options) (Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(false, false)
	}

	paths, err := walk(root, opts.MaxDepth)
	if err != nil {
		return Result{}, err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, opts.Workers)

	var mu sync.Mutex
	var result Result

dispatch:
	for _, p := range paths {
		p := p
		select {
		case sem <- struct{}{}:
		case <-egCtx.Done():
			break dispatch
		}
		eg.Go(func() error {
			defer func() { <-sem }()

			if egCtx.Err() != nil {
				return egCtx.Err()
			}

			fileResult, err := scanFile(egCtx, p, src, idx, logger)
			if err != nil {
				return fmt.Errorf("scan %q: %w", p, err)
			}

			mu.Lock()
			result.FilesScanned++
			result.ArchivesOpened += fileResult.archivesOpened
			result.EntriesDigested += fileResult.entriesDigested
			result.BytesRead += fileResult.bytesRead
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

type fileResult struct {
	archivesOpened  int
	entriesDigested int
	bytesRead       int64
}

func scanFile(ctx context.Context, path string, src *part.Source, idx *index.Index, logger *log.Logger) (fileResult, error) {
	format, err := archive.DetectFormat(path)
	if err != nil {
		return fileResult{}, err
	}

	if format == archive.FormatUnknown {
		d, n, err := digestLooseFile(path, src)
		if err != nil {
			return fileResult{}, err
		}
		idx.Insert(d, part.NewLooseFile(path, n))
		return fileResult{entriesDigested: 1, bytesRead: n}, nil
	}

	entries, err := archive.ListEntries(path, archive.OpenOptions{})
	if err != nil {
		logger.Debugf("scanner: could not list %q as archive, treating as loose: %v", path, err)
		d, n, err := digestLooseFile(path, src)
		if err != nil {
			return fileResult{}, err
		}
		idx.Insert(d, part.NewLooseFile(path, n))
		return fileResult{entriesDigested: 1, bytesRead: n}, nil
	}

	result := fileResult{archivesOpened: 1}
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		ref := part.NewArchiveEntry(path, entry.Name, entry.Size)
		d, n, err := digestRef(src, ref)
		if err != nil {
			return result, fmt.Errorf("entry %q: %w", entry.Name, err)
		}
		idx.Insert(d, ref)
		result.entriesDigested++
		result.bytesRead += n
	}
	return result, nil
}

// digestLooseFile prefers the xattr cache over re-hashing an unchanged file.
// A .chd file's digest is the SHA-1 embedded in its own header (see
// internal/chd), not a hash of its (compressed) bytes, so the index entry
// can be matched against a CatalogPart.Kind of disk without rehashing
// multi-gigabyte images.
func digestLooseFile(path string, src *part.Source) (digest.Digest, int64, error) {
	if cached, ok := xattrcache.Lookup(path); ok {
		size, err := src.Length(part.NewLooseFile(path, -1))
		if err != nil {
			return digest.Digest{}, 0, err
		}
		return cached, size, nil
	}

	if isCHD(path) {
		if d, err := chd.Digest(path); err == nil {
			size, err := src.Length(part.NewLooseFile(path, -1))
			if err != nil {
				return digest.Digest{}, 0, err
			}
			xattrcache.Store(path, d, nil)
			return d, size, nil
		}
	}

	ref := part.NewLooseFile(path, -1)
	d, n, err := digestRef(src, ref)
	if err != nil {
		return digest.Digest{}, 0, err
	}
	xattrcache.Store(path, d, nil)
	return d, n, nil
}

func digestRef(src *part.Source, ref part.Ref) (digest.Digest, int64, error) {
	dr, err := src.OpenDigesting(ref)
	if err != nil {
		return digest.Digest{}, 0, err
	}
	defer dr.Close()

	if _, err := io.Copy(io.Discard, dr); err != nil {
		return digest.Digest{}, 0, err
	}
	d, n := dr.Result()
	return d, n, nil
}

// walk returns every regular file under root, depth-bounded and
// lexicographically sorted so scans are deterministic.
func walk(root string, maxDepth int) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		depth, err := relativeDepth(root, path)
		if err != nil {
			return err
		}
		if maxDepth >= 0 && depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})
	return paths, nil
}

func isCHD(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".chd")
}

func relativeDepth(root, path string) (int, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0, err
	}
	if rel == "." {
		return 0, nil
	}
	return len(strings.Split(rel, string(filepath.Separator))) - 1, nil
}
