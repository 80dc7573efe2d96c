package archive

import (
	"archive/zip"
	"fmt"

	"github.com/nwaples/rardecode/v2"
)

// ListEntries returns every entry in path without decompressing any
// content. For RAR archives this is a pure header scan (rardecode.List);
// for Zip archives it reads only the central directory (archive/zip).
func ListEntries(path string, opts OpenOptions) ([]Entry, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatZip:
		return listZip(path)
	case FormatRar:
		return listRar(path, opts)
	default:
		return nil, fmt.Errorf("archive: %q is not a recognized zip or rar archive", path)
	}
}

func listZip(path string) ([]Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		out = append(out, Entry{
			Name:  f.Name,
			Size:  int64(f.UncompressedSize64),
			IsDir: f.FileInfo().IsDir(),
		})
	}
	return out, nil
}

func listRar(path string, opts OpenOptions) ([]Entry, error) {
	files, err := rardecode.List(path, opts.decodeOptions()...)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(files))
	for _, f := range files {
		out = append(out, Entry{
			Name:  f.Name,
			Size:  -1,
			IsDir: f.IsDir,
		})
	}
	return out, nil
}
