// Package xattrcache caches per-file SHA-1 digests in a POSIX extended
// attribute, keyed by the file's observed size and modification time. It is
// advisory: a miss, a mismatch, or any I/O error simply means "compute it
// yourself", never a hard failure.
package xattrcache

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"

	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/log"
)

// AttrName is the extended attribute romkeep stores cached digests under.
const AttrName = "user.romkeep.sha1"

// attrLen is size(8) + mtime_sec(8) + mtime_nsec(4) + digest(20).
const attrLen = 8 + 8 + 4 + digest.Size

// Lookup returns the cached digest for path iff AttrName is present and its
// stored (size, mtime) matches the file's current stat. Any mismatch, missing
// attribute, or I/O error yields (Digest{}, false) — the cache is never
// the source of a hard error.
func Lookup(path string) (digest.Digest, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return digest.Digest{}, false
	}

	buf := make([]byte, attrLen)
	n, err := unix.Getxattr(path, AttrName, buf)
	if err != nil || n != attrLen {
		return digest.Digest{}, false
	}

	size := binary.LittleEndian.Uint64(buf[0:8])
	sec := int64(binary.LittleEndian.Uint64(buf[8:16]))
	nsec := binary.LittleEndian.Uint32(buf[16:20])

	if int64(size) != info.Size() {
		return digest.Digest{}, false
	}
	mtime := info.ModTime()
	if mtime.Unix() != sec || uint32(mtime.Nanosecond()) != nsec {
		return digest.Digest{}, false
	}

	var d digest.Digest
	copy(d[:], buf[20:40])
	return d, true
}

// Store writes (size, mtime, d) as path's extended attribute. Failures are
// logged and swallowed: correctness never depends on this succeeding.
func Store(path string, d digest.Digest, logger *log.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		logCacheError(logger, path, err)
		return
	}

	buf := make([]byte, attrLen)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(info.Size()))
	mtime := info.ModTime()
	binary.LittleEndian.PutUint64(buf[8:16], uint64(mtime.Unix()))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(mtime.Nanosecond()))
	copy(buf[20:40], d[:])

	if err := unix.Setxattr(path, AttrName, buf, 0); err != nil {
		logCacheError(logger, path, err)
	}
}

func logCacheError(logger *log.Logger, path string, err error) {
	if logger != nil {
		logger.Debugf("xattr cache: %q: %v", path, err)
	}
}
