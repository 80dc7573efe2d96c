package archive

import (
	"archive/zip"
	"io"
)

type zipHandle struct {
	rc      *zip.ReadCloser
	index   int
	current io.ReadCloser
}

func openZip(path string) (Handle, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &zipHandle{rc: rc, index: -1}, nil
}

func (h *zipHandle) Next() (Entry, io.Reader, error) {
	if h.current != nil {
		h.current.Close()
		h.current = nil
	}

	h.index++
	if h.index >= len(h.rc.File) {
		return Entry{}, nil, io.EOF
	}
	f := h.rc.File[h.index]

	entry := Entry{
		Name:  normalizeEntryName(f.Name),
		Size:  int64(f.UncompressedSize64),
		IsDir: f.FileInfo().IsDir(),
	}
	if entry.IsDir {
		return entry, nil, nil
	}

	r, err := f.Open()
	if err != nil {
		return Entry{}, nil, err
	}
	h.current = r
	return entry, r, nil
}

func (h *zipHandle) Volumes() []string {
	return nil
}

func (h *zipHandle) Close() error {
	if h.current != nil {
		h.current.Close()
		h.current = nil
	}
	return h.rc.Close()
}
