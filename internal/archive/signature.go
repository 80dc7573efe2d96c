package archive

import (
	"bytes"
	"io"
	"os"
)

var (
	rar5Signature = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
	rar4Signature = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
	zipSignature  = []byte{0x50, 0x4B, 0x03, 0x04}
	zipEmptySig   = []byte{0x50, 0x4B, 0x05, 0x06} // empty archive, still a valid zip
)

// maxSFXBytes bounds the search window for a RAR signature embedded inside a
// self-extracting executable stub.
const maxSFXBytes = 1 << 20

// Format identifies the container format of an archive file.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatRar
)

// DetectFormat inspects path's leading bytes and reports which archive
// format, if any, it contains.
func DetectFormat(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer file.Close()

	window := maxSFXBytes + len(rar5Signature)
	buf := make([]byte, window)
	n, readErr := io.ReadFull(file, buf)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return FormatUnknown, readErr
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, zipSignature) || bytes.HasPrefix(buf, zipEmptySig) {
		return FormatZip, nil
	}
	if bytes.Contains(buf, rar5Signature) || bytes.Contains(buf, rar4Signature) {
		return FormatRar, nil
	}
	return FormatUnknown, nil
}
