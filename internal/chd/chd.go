// Package chd reads the authoritative content digest embedded in a MAME
// CHD disk image's own header, rather than hashing the (compressed) file
// bytes directly. Ported from the original_source CHD reader (rom.rs:
// chd_sha1), which walks the same fixed-format header by version.
package chd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/austin/romkeep/internal/digest"
)

const magic = "MComprHD"

// ErrNotCHD indicates the stream does not begin with the CHD magic tag.
var ErrNotCHD = errors.New("chd: not a CHD file")

// Digest opens path and reads the SHA-1 digest embedded in its CHD header.
func Digest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return digest.Digest{}, err
	}
	defer f.Close()
	return ReadDigest(f)
}

// ReadDigest parses a CHD header from r, stopping as soon as the embedded
// digest has been read; r need not be positioned at the start of a file it
// owns exclusively, but it must start at offset zero of the CHD stream.
func ReadDigest(r io.Reader) (digest.Digest, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return digest.Digest{}, err
	}
	if string(header[:8]) != magic {
		return digest.Digest{}, ErrNotCHD
	}
	// header[8:12] is the unused total-length field; version follows it.
	version := binary.BigEndian.Uint32(header[12:16])

	skip, err := skipBytes(version)
	if err != nil {
		return digest.Digest{}, err
	}
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(skip)); err != nil {
			return digest.Digest{}, fmt.Errorf("chd: skip v%d header: %w", version, err)
		}
	}

	var raw digest.Digest
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return digest.Digest{}, fmt.Errorf("chd: read embedded digest: %w", err)
	}
	return raw, nil
}

// skipBytes returns how many header bytes separate the version field from
// the embedded SHA-1, for each CHD format version that carries one.
func skipBytes(version uint32) (int, error) {
	switch version {
	case 3:
		return 64, nil
	case 4:
		return 32, nil
	case 5:
		return 68, nil
	default:
		return 0, fmt.Errorf("chd: unsupported header version %d", version)
	}
}
