// Package digest implements the fixed-size SHA-1 content digest used to
// identify parts throughout romkeep.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Size is the number of bytes in a Digest.
const Size = sha1.Size

// Digest is a 20-byte SHA-1 value.
type Digest [Size]byte

// String returns the 40-character lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the all-zero digest (never produced by a real
// hash, used as a sentinel for "not yet computed").
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Parse decodes a 40-character hex string into a Digest.
func Parse(s string) (Digest, error) {
	var d Digest
	if len(s) != Size*2 {
		return d, fmt.Errorf("digest: %q is not %d hex characters", s, Size*2)
	}
	n, err := hex.Decode(d[:], []byte(s))
	if err != nil {
		return Digest{}, fmt.Errorf("digest: %q: %w", s, err)
	}
	if n != Size {
		return Digest{}, fmt.Errorf("digest: %q decoded to %d bytes, want %d", s, n, Size)
	}
	return d, nil
}

// Hasher streams bytes through SHA-1 and finalizes to a Digest. The zero
// value is ready to use.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-use streaming SHA-1 hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha1.New()}
}

// Write implements io.Writer, feeding bytes into the running hash.
func (h *Hasher) Write(p []byte) (int, error) {
	if h.h == nil {
		h.h = sha1.New()
	}
	return h.h.Write(p)
}

// Sum finalizes the hash into a Digest without resetting it.
func (h *Hasher) Sum() Digest {
	if h.h == nil {
		h.h = sha1.New()
	}
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

// Of computes the digest of everything remaining in r, reading it exactly
// once and returning the number of bytes read alongside the digest.
func Of(r io.Reader) (Digest, int64, error) {
	h := sha1.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, n, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// TeeReader wraps r so that every byte read through it is also fed to a
// Hasher, fusing digest computation with whatever consumer is forwarding the
// bytes onward. This guarantees archive or remote data is read only once:
// one pass both forwards the stream and produces its Digest.
type TeeReader struct {
	r      io.Reader
	hasher *Hasher
	read   int64
}

// NewTeeReader returns a reader that forwards r's bytes to the caller while
// accumulating their digest internally.
func NewTeeReader(r io.Reader) *TeeReader {
	return &TeeReader{r: r, hasher: NewHasher()}
}

func (t *TeeReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.hasher.Write(p[:n])
		t.read += int64(n)
	}
	return n, err
}

// Digest returns the digest of every byte read so far. Call this only after
// the underlying reader has been fully drained.
func (t *TeeReader) Digest() Digest {
	return t.hasher.Sum()
}

// BytesRead returns the number of bytes read so far.
func (t *TeeReader) BytesRead() int64 {
	return t.read
}
