package part

import (
	"io"

	"github.com/austin/romkeep/internal/digest"
)

// OpenDigesting opens ref and wraps it so every byte the caller reads is
// also fed into a running SHA-1. Call Result after fully draining the
// returned reader (before or after closing it) to retrieve the digest and
// byte count computed in that single pass — this is how the Scanner avoids
// reading a part's bytes twice to both verify content and compute a digest.
func (s *Source) OpenDigesting(ref Ref) (*DigestingReader, error) {
	r, err := s.Open(ref)
	if err != nil {
		return nil, err
	}
	return &DigestingReader{rc: r, tee: digest.NewTeeReader(r)}, nil
}

// DigestingReader fuses a part's byte stream with digest computation.
type DigestingReader struct {
	rc  io.Closer
	tee *digest.TeeReader
}

func (d *DigestingReader) Read(p []byte) (int, error) { return d.tee.Read(p) }

func (d *DigestingReader) Close() error { return d.rc.Close() }

// Result returns the digest and byte count accumulated so far. Call only
// after the stream has been read to completion for the digest to cover the
// whole part.
func (d *DigestingReader) Result() (digest.Digest, int64) {
	return d.tee.Digest(), d.tee.BytesRead()
}
