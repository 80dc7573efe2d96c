package archive

import (
	"io"

	"github.com/nwaples/rardecode/v2"
)

type rarArchiveReader interface {
	Next() (*rardecode.FileHeader, error)
	io.Reader
	io.Closer
	Volumes() []string
}

var openRarReader = func(path string, opts ...rardecode.Option) (rarArchiveReader, error) {
	return rardecode.OpenReader(path, opts...)
}

type rarHandle struct {
	reader rarArchiveReader
}

func openRar(path string, opts OpenOptions) (Handle, error) {
	reader, err := openRarReader(path, opts.decodeOptions()...)
	if err != nil {
		return nil, err
	}
	return &rarHandle{reader: reader}, nil
}

func (h *rarHandle) Next() (Entry, io.Reader, error) {
	header, err := h.reader.Next()
	if err != nil {
		return Entry{}, nil, err
	}

	entry := Entry{
		Name:  normalizeEntryName(header.Name),
		Size:  -1,
		IsDir: header.IsDir,
	}
	if entry.IsDir {
		return entry, nil, nil
	}
	return entry, h.reader, nil
}

func (h *rarHandle) Volumes() []string {
	return h.reader.Volumes()
}

func (h *rarHandle) Close() error {
	return h.reader.Close()
}
