// Package split implements the MAME "split" transform: given a combined
// input blob whose size matches the sum of several catalog parts, find a
// partition whose piecewise digests match catalog entries and write the
// slices out as individual files.
package split

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
)

// prefixWindow is the largest first-slice size Match checks before the full
// pass: a candidate whose first slice fits within it has that whole slice
// hashed and compared first. Larger first slices go straight to the full pass.
const prefixWindow = 4096

// Set is an ordered sequence of CatalogParts whose summed size is a
// candidate match for one combined blob.
type Set struct {
	Game  string
	Parts []catalog.Part
}

func (s Set) size() uint64 {
	var total uint64
	for _, p := range s.Parts {
		total += p.Size
	}
	return total
}

// CandidateSets enumerates every Set across every game in c whose total
// size equals blobSize. Each candidate's parts are ordered the way the
// catalog declared them (catalog.EffectivePartOrder), not alphabetically:
// a combined ROM's slices sit at fixed byte offsets matching DAT
// declaration order, and an alphabetical resort would put e.g. "ic10"
// before "ic9" and shift every offset after it.
func CandidateSets(c *catalog.Catalog, blobSize uint64) ([]Set, error) {
	var sets []Set
	for _, name := range c.SortedGames() {
		parts, err := c.EffectiveParts(name)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			continue
		}

		order, err := c.EffectivePartOrder(name)
		if err != nil {
			return nil, err
		}
		ordered := orderedParts(parts, order)
		if sumSizes(ordered) != blobSize {
			continue
		}
		sets = append(sets, Set{Game: name, Parts: ordered})
	}
	return sets, nil
}

func orderedParts(parts map[string]catalog.Part, order []string) []catalog.Part {
	out := make([]catalog.Part, 0, len(order))
	for _, name := range order {
		out = append(out, parts[name])
	}
	return out
}

func sumSizes(parts []catalog.Part) uint64 {
	var total uint64
	for _, p := range parts {
		total += p.Size
	}
	return total
}

// firstSliceDigest reads exactly n bytes from the start of f and returns
// their digest. Used only when a candidate's first slice is small enough
// to fit entirely within prefixWindow, in which case this digest is
// directly comparable to that part's catalog digest without a full
// streaming pass over the rest of the blob.
func firstSliceDigest(f *os.File, n uint64) (digest.Digest, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return digest.Digest{}, err
	}
	h := sha1.New()
	if _, err := io.CopyN(h, f, int64(n)); err != nil && err != io.EOF {
		return digest.Digest{}, err
	}
	var d digest.Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Match streams blobPath once per surviving candidate (after the prefix
// window check prunes obviously-wrong ones) and returns the single Set whose
// piecewise digests all match. Zero matches is a NotFoundError; more than
// one is an AmbiguousError.
func Match(blobPath string, candidates []Set) (Set, error) {
	f, err := os.Open(blobPath)
	if err != nil {
		return Set{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Set{}, err
	}
	blobSize := uint64(info.Size())

	var matches []Set
	for _, cand := range candidates {
		if len(cand.Parts) == 0 || cand.size() != blobSize {
			continue
		}

		firstPart := cand.Parts[0]
		if firstPart.Size <= prefixWindow {
			got, err := firstSliceDigest(f, firstPart.Size)
			if err != nil {
				return Set{}, err
			}
			if got != firstPart.Digest {
				// The whole first slice fits within the prefix
				// window, so an exact mismatch there rules the
				// candidate out without a full streaming pass.
				continue
			}
		}

		ok, err := matchesFully(f, cand)
		if err != nil {
			return Set{}, err
		}
		if ok {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		return Set{}, &NotFoundError{BlobPath: blobPath}
	case 1:
		return matches[0], nil
	default:
		games := make([]string, len(matches))
		for i, m := range matches {
			games[i] = m.Game
		}
		return Set{}, &AmbiguousError{BlobPath: blobPath, Games: games}
	}
}

// matchesFully streams f once, start to finish, computing each slice's
// digest in sequence and comparing it against the candidate's parts.
func matchesFully(f *os.File, cand Set) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	for _, p := range cand.Parts {
		h := sha1.New()
		n, err := io.CopyN(h, f, int64(p.Size))
		if err != nil && err != io.EOF {
			return false, err
		}
		if uint64(n) != p.Size {
			return false, nil
		}
		var got digest.Digest
		copy(got[:], h.Sum(nil))
		if got != p.Digest {
			return false, nil
		}
	}
	return true, nil
}

// Write slices blobPath according to set and writes each slice under
// outDir using the part's name. Each slice is written through a sibling
// temp file and atomically renamed into place, matching the materializer's
// crash-consistency discipline.
func Write(blobPath string, set Set, outDir string) error {
	f, err := os.Open(blobPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var offset int64
	for _, p := range set.Parts {
		dst := filepath.Join(outDir, filepath.FromSlash(p.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}

		tmp, err := os.CreateTemp(filepath.Dir(dst), ".romkeep-split-*")
		if err != nil {
			return err
		}
		if _, err := io.CopyN(tmp, f, int64(p.Size)); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("split: write %q: %w", p.Name, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		if err := os.Rename(tmp.Name(), dst); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		offset += int64(p.Size)
	}
	return nil
}

// NotFoundError reports that no catalog part set matched blobPath's size
// and digests.
type NotFoundError struct {
	BlobPath string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("split: no catalog part set matches %q", e.BlobPath)
}

// AmbiguousError reports that more than one game's part set matched
// blobPath, so the caller must disambiguate.
type AmbiguousError struct {
	BlobPath string
	Games    []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("split: %q matches more than one game's parts: %v", e.BlobPath, e.Games)
}
