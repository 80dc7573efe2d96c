// Package archive provides a uniform, sequential-access reader over Zip and
// RAR archive entries. An archive handle is owned by exactly one caller at a
// time; entries are read in the order Next returns them, mirroring the
// teacher's rardecode-based extractor, which cannot rewind a compressed
// stream once advanced past an entry.
package archive

import (
	"errors"
	"io"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

// OpenOptions carries decoder settings. Fields that don't apply to a given
// format are ignored.
type OpenOptions struct {
	MaxDictionaryBytes int64
	Password           string
}

func (o OpenOptions) decodeOptions() []rardecode.Option {
	opts := make([]rardecode.Option, 0, 2)
	if o.MaxDictionaryBytes > 0 {
		opts = append(opts, rardecode.MaxDictionarySize(o.MaxDictionaryBytes))
	}
	if o.Password != "" {
		opts = append(opts, rardecode.Password(o.Password))
	}
	return opts
}

// IsPasswordError reports whether err indicates that archive decryption
// credentials are required or incorrect.
func IsPasswordError(err error) bool {
	return errors.Is(err, rardecode.ErrArchiveEncrypted) ||
		errors.Is(err, rardecode.ErrArchivedFileEncrypted) ||
		errors.Is(err, rardecode.ErrBadPassword)
}

// Handle is a sequential cursor over one open archive's entries.
type Handle interface {
	// Next advances to the next entry and returns a reader for its
	// content, valid only until the next call to Next or Close. Returns
	// io.EOF once every entry has been visited.
	Next() (Entry, io.Reader, error)

	// Volumes returns the set of on-disk volume files this archive
	// spans (more than one for multi-volume RAR sets).
	Volumes() []string

	Close() error
}

// Open opens path for sequential entry-by-entry reading.
func Open(path string, opts OpenOptions) (Handle, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatZip:
		return openZip(path)
	case FormatRar:
		return openRar(path, opts)
	default:
		return nil, errors.New("archive: " + path + " is not a recognized zip or rar archive")
	}
}

func normalizeEntryName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
