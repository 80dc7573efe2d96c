// Package part implements the uniform read abstraction over a "part": a
// loose file, an entry inside an archive, a remote URL-backed blob, or a
// byte slice of a larger file. Source.OpenDigesting wraps the reader that
// Source.Open returns in a digest.TeeReader, so the byte stream a caller
// consumes is also the input to a digest computation, in a single pass.
package part

import (
	"fmt"
)

// Kind tags which PartRef variant a Ref holds.
type Kind int

const (
	LooseFile Kind = iota
	ArchiveEntry
	RemoteBlob
	ByteSlice
)

func (k Kind) String() string {
	switch k {
	case LooseFile:
		return "LooseFile"
	case ArchiveEntry:
		return "ArchiveEntry"
	case RemoteBlob:
		return "RemoteBlob"
	case ByteSlice:
		return "ByteSlice"
	default:
		return "Unknown"
	}
}

// Ref is a locator for a byte sequence. Exactly one of the kind-specific
// field groups is populated, selected by Kind. The zero value is not a
// valid Ref; construct one via the New* helpers.
type Ref struct {
	Kind Kind

	// LooseFile
	Path string

	// ArchiveEntry
	ArchivePath string
	EntryName   string

	// RemoteBlob
	URL string

	// ByteSlice
	Parent *Ref
	Offset int64
	Length int64

	// knownSize is a cheaply-known byte length, or -1 if it must be
	// resolved by opening the part (e.g. an archive header read).
	knownSize int64
}

// NewLooseFile builds a Ref to a file on local disk. size may be -1 if not
// yet known.
func NewLooseFile(path string, size int64) Ref {
	return Ref{Kind: LooseFile, Path: path, knownSize: size}
}

// NewArchiveEntry builds a Ref to a named entry inside an archive file.
func NewArchiveEntry(archivePath, entryName string, size int64) Ref {
	return Ref{Kind: ArchiveEntry, ArchivePath: archivePath, EntryName: entryName, knownSize: size}
}

// NewRemoteBlob builds a Ref to a URL-backed blob, fetched lazily on first
// open.
func NewRemoteBlob(url string) Ref {
	return Ref{Kind: RemoteBlob, URL: url, knownSize: -1}
}

// NewByteSlice builds a Ref to [offset, offset+length) of parent's bytes.
func NewByteSlice(parent Ref, offset, length int64) Ref {
	return Ref{Kind: ByteSlice, Parent: &parent, Offset: offset, Length: length, knownSize: length}
}

// KnownSize returns the part's byte length if cheaply known without opening
// it, and whether that value is valid.
func (r Ref) KnownSize() (int64, bool) {
	if r.knownSize < 0 {
		return 0, false
	}
	return r.knownSize, true
}

// Key returns a canonical string uniquely identifying this locator, used by
// the Datum Index to dedupe (digest, Ref) insertions and as a map key.
// Opening the same Ref twice yields identical bytes (barring external
// mutation), so Key is stable for the lifetime of one invocation.
func (r Ref) Key() string {
	switch r.Kind {
	case LooseFile:
		return "file:" + r.Path
	case ArchiveEntry:
		return "archive:" + r.ArchivePath + "#" + r.EntryName
	case RemoteBlob:
		return "url:" + r.URL
	case ByteSlice:
		if r.Parent == nil {
			return fmt.Sprintf("slice:<nil>@%d+%d", r.Offset, r.Length)
		}
		return fmt.Sprintf("slice:%s@%d+%d", r.Parent.Key(), r.Offset, r.Length)
	default:
		return "invalid"
	}
}

// String implements fmt.Stringer for logging.
func (r Ref) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Key())
}
