package part

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/austin/romkeep/internal/archive"
)

// archiveCursor serializes sequential access to one open archive handle, so
// that entries within it are always read in the order the handle emits
// them — required for RAR's compressed-stream sequentiality and harmless
// for Zip. Both archive backends only move forward (see archive.Handle's
// Next), so a request for an entry the cursor has already passed is
// satisfied by reopening the archive and rescanning from the start rather
// than failing outright — a Materializer's destination-name plan order
// routinely disagrees with an archive's physical entry order.
type archiveCursor struct {
	mu     sync.Mutex
	path   string
	opts   archive.OpenOptions
	handle archive.Handle
}

// scanForward advances the cursor's handle looking for entryName, returning
// ok=false (not an error) if the handle runs out first.
func (c *archiveCursor) scanForward(entryName string) (io.Reader, bool, error) {
	for {
		entry, r, err := c.handle.Next()
		if err != nil {
			return nil, false, nil
		}
		if entry.IsDir {
			continue
		}
		if entry.Name != entryName {
			// Not the entry the caller wants yet; the compressed
			// stream can't rewind, so skip its bytes and advance.
			io.Copy(io.Discard, r)
			continue
		}
		return r, true, nil
	}
}

// find locates entryName, reopening the archive once and rescanning from
// the start if the cursor has already advanced past it.
func (c *archiveCursor) find(entryName string) (io.Reader, error) {
	r, ok, err := c.scanForward(entryName)
	if err != nil {
		return nil, err
	}
	if ok {
		return r, nil
	}

	c.handle.Close()
	handle, err := archive.Open(c.path, c.opts)
	if err != nil {
		return nil, fmt.Errorf("reopen archive %q: %w", c.path, err)
	}
	c.handle = handle

	r, ok, err = c.scanForward(entryName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("entry %q not found in %q", entryName, c.path)
	}
	return r, nil
}

// Source is the process-scoped object that knows how to open every PartRef
// kind. It owns one archive handle per archive path (opened once and shared
// among that archive's entries) and a process-scoped temp directory for
// RemoteBlob fetches. Callers must Close it when the command ends.
type Source struct {
	mu       sync.Mutex
	archives map[string]*archiveCursor
	tempDir  string
	ownsTemp bool
	opts     archive.OpenOptions
}

// NewSource creates a Source. If tempParent is empty, a process-scoped temp
// directory is created under os.TempDir() and removed on Close; otherwise
// remote fetches are cached under tempParent and Close leaves it alone.
func NewSource(tempParent string, opts archive.OpenOptions) (*Source, error) {
	s := &Source{archives: make(map[string]*archiveCursor), opts: opts}

	if tempParent == "" {
		dir, err := os.MkdirTemp("", "romkeep-fetch-")
		if err != nil {
			return nil, err
		}
		s.tempDir = dir
		s.ownsTemp = true
	} else {
		if err := os.MkdirAll(tempParent, 0o755); err != nil {
			return nil, err
		}
		s.tempDir = tempParent
	}
	return s, nil
}

// Close releases every open archive handle and, if this Source created its
// own temp directory, removes it and every fetched RemoteBlob within.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for path, cursor := range s.archives {
		if err := cursor.handle.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close archive %q: %w", path, err)
		}
	}
	s.archives = nil

	if s.ownsTemp {
		if err := os.RemoveAll(s.tempDir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open returns a plain reader for ref's bytes; it computes no digest. See
// OpenDigesting for the variant the Scanner uses, which wraps this reader
// in a digest.TeeReader so one pass both delivers the bytes and hashes them.
func (s *Source) Open(ref Ref) (io.ReadCloser, error) {
	switch ref.Kind {
	case LooseFile:
		return os.Open(ref.Path)
	case ArchiveEntry:
		return s.openArchiveEntry(ref)
	case RemoteBlob:
		localPath, err := s.fetchRemote(ref.URL)
		if err != nil {
			return nil, err
		}
		return os.Open(localPath)
	case ByteSlice:
		return s.openByteSlice(ref)
	default:
		return nil, fmt.Errorf("part: unknown ref kind %v", ref.Kind)
	}
}

// Length resolves ref's byte length, opening headers if necessary.
func (s *Source) Length(ref Ref) (int64, error) {
	if size, ok := ref.KnownSize(); ok {
		return size, nil
	}

	switch ref.Kind {
	case LooseFile:
		info, err := os.Stat(ref.Path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case RemoteBlob:
		localPath, err := s.fetchRemote(ref.URL)
		if err != nil {
			return 0, err
		}
		info, err := os.Stat(localPath)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case ArchiveEntry:
		// Unknown ahead of time for RAR; resolved by reading once.
		r, err := s.Open(ref)
		if err != nil {
			return 0, err
		}
		defer r.Close()
		n, err := io.Copy(io.Discard, r)
		return n, err
	default:
		return 0, fmt.Errorf("part: cannot determine length of %s without a parent size", ref)
	}
}

func (s *Source) openArchiveEntry(ref Ref) (io.ReadCloser, error) {
	cursor, err := s.cursorFor(ref.ArchivePath)
	if err != nil {
		return nil, err
	}

	cursor.mu.Lock()
	r, err := cursor.find(ref.EntryName)
	if err != nil {
		cursor.mu.Unlock()
		return nil, fmt.Errorf("archive entry %q not found in %q: %w", ref.EntryName, ref.ArchivePath, err)
	}
	return &archiveEntryReader{r: r, unlock: cursor.mu.Unlock}, nil
}

type archiveEntryReader struct {
	r      io.Reader
	unlock func()
	closed bool
}

func (a *archiveEntryReader) Read(p []byte) (int, error) { return a.r.Read(p) }

func (a *archiveEntryReader) Close() error {
	if !a.closed {
		a.closed = true
		a.unlock()
	}
	return nil
}

func (s *Source) cursorFor(archivePath string) (*archiveCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cursor, ok := s.archives[archivePath]; ok {
		return cursor, nil
	}

	handle, err := archive.Open(archivePath, s.opts)
	if err != nil {
		return nil, err
	}
	cursor := &archiveCursor{path: archivePath, opts: s.opts, handle: handle}
	s.archives[archivePath] = cursor
	return cursor, nil
}

func (s *Source) openByteSlice(ref Ref) (io.ReadCloser, error) {
	if ref.Parent == nil {
		return nil, fmt.Errorf("part: ByteSlice ref has no parent")
	}
	if ref.Parent.Kind != LooseFile && ref.Parent.Kind != RemoteBlob {
		return nil, fmt.Errorf("part: ByteSlice parent must be a seekable file, got %v", ref.Parent.Kind)
	}

	path := ref.Parent.Path
	if ref.Parent.Kind == RemoteBlob {
		localPath, err := s.fetchRemote(ref.Parent.URL)
		if err != nil {
			return nil, err
		}
		path = localPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	section := io.NewSectionReader(f, ref.Offset, ref.Length)
	return &sectionReadCloser{SectionReader: section, file: f}, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	file *os.File
}

func (s *sectionReadCloser) Close() error { return s.file.Close() }
