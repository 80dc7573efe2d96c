package split

import (
	"bytes"
	"crypto/sha1"
	"os"
	"path/filepath"
	"testing"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
)

func digestOf(t *testing.T, b []byte) digest.Digest {
	t.Helper()
	sum := sha1.Sum(b)
	var d digest.Digest
	copy(d[:], sum[:])
	return d
}

func TestMatchAndWriteRoundTrip(t *testing.T) {
	t.Parallel()

	a := bytes.Repeat([]byte{0x01}, 2048)
	b := bytes.Repeat([]byte{0x02}, 4096)
	c := bytes.Repeat([]byte{0x03}, 8192)

	parts := []catalog.Part{
		{Name: "a.bin", Size: uint64(len(a)), Digest: digestOf(t, a)},
		{Name: "b.bin", Size: uint64(len(b)), Digest: digestOf(t, b)},
		{Name: "c.bin", Size: uint64(len(c)), Digest: digestOf(t, c)},
	}
	cat, err := catalog.New([]catalog.Game{{Name: "combo", Parts: parts}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	root := t.TempDir()
	blobPath := filepath.Join(root, "blob.bin")
	blob := append(append(append([]byte{}, a...), b...), c...)
	if err := os.WriteFile(blobPath, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	candidates, err := CandidateSets(cat, uint64(len(blob)))
	if err != nil {
		t.Fatalf("CandidateSets: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	set, err := Match(blobPath, candidates)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if set.Game != "combo" {
		t.Fatalf("matched game=%q, want combo", set.Game)
	}

	outDir := filepath.Join(root, "out")
	if err := Write(blobPath, set, outDir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, p := range parts {
		content, err := os.ReadFile(filepath.Join(outDir, p.Name))
		if err != nil {
			t.Fatalf("read %q: %v", p.Name, err)
		}
		if uint64(len(content)) != p.Size {
			t.Fatalf("%q size=%d, want %d", p.Name, len(content), p.Size)
		}
	}

	// Re-running split on the same blob must reproduce identical output.
	outDir2 := filepath.Join(root, "out2")
	if err := Write(blobPath, set, outDir2); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	for _, p := range parts {
		first, err := os.ReadFile(filepath.Join(outDir, p.Name))
		if err != nil {
			t.Fatal(err)
		}
		second, err := os.ReadFile(filepath.Join(outDir2, p.Name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%q differs between runs", p.Name)
		}
	}
}

// TestCandidateSetsPreservesDeclaredOrderNotAlphabetical exercises a part
// sequence ("ic9", "ic10", "ic7") where a DAT-declaration order and an
// alphabetical sort disagree, so a regression to sorting by name would
// compute wrong byte offsets and Write wrong slices even though the same
// parts and sizes are present.
func TestCandidateSetsPreservesDeclaredOrderNotAlphabetical(t *testing.T) {
	t.Parallel()

	ic9 := bytes.Repeat([]byte{0x09}, 16)
	ic10 := bytes.Repeat([]byte{0x10}, 32)
	ic7 := bytes.Repeat([]byte{0x07}, 8)

	parts := []catalog.Part{
		{Name: "ic9", Size: uint64(len(ic9)), Digest: digestOf(t, ic9)},
		{Name: "ic10", Size: uint64(len(ic10)), Digest: digestOf(t, ic10)},
		{Name: "ic7", Size: uint64(len(ic7)), Digest: digestOf(t, ic7)},
	}
	cat, err := catalog.New([]catalog.Game{{Name: "combo", Parts: parts}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	blob := append(append(append([]byte{}, ic9...), ic10...), ic7...)
	candidates, err := CandidateSets(cat, uint64(len(blob)))
	if err != nil {
		t.Fatalf("CandidateSets: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	got := candidates[0].Parts
	wantOrder := []string{"ic9", "ic10", "ic7"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d parts, want %d", len(got), len(wantOrder))
	}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Fatalf("part[%d]=%q, want %q (declared order, not alphabetical)", i, got[i].Name, name)
		}
	}

	root := t.TempDir()
	blobPath := filepath.Join(root, "blob.bin")
	if err := os.WriteFile(blobPath, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := Match(blobPath, candidates)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	outDir := filepath.Join(root, "out")
	if err := Write(blobPath, set, outDir); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, p := range []struct {
		name string
		want []byte
	}{
		{"ic9", ic9},
		{"ic10", ic10},
		{"ic7", ic7},
	} {
		content, err := os.ReadFile(filepath.Join(outDir, p.name))
		if err != nil {
			t.Fatalf("read %q: %v", p.name, err)
		}
		if !bytes.Equal(content, p.want) {
			t.Fatalf("%q content mismatch: wrong offset computed from a misordered part sequence", p.name)
		}
	}
}

func TestMatchReturnsNotFoundWhenNoCandidateMatches(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blobPath := filepath.Join(root, "blob.bin")
	if err := os.WriteFile(blobPath, []byte("random-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	parts := []catalog.Part{{Name: "a.bin", Size: 5, Digest: digestOf(t, []byte("other"))}}
	_, err := Match(blobPath, []Set{{Game: "g", Parts: parts}})
	var notFound *NotFoundError
	if err == nil {
		t.Fatal("expected NotFoundError")
	}
	if !isNotFound(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}

func isNotFound(err error, target **NotFoundError) bool {
	e, ok := err.(*NotFoundError)
	if ok {
		*target = e
	}
	return ok
}

func TestMatchReturnsAmbiguousWhenTwoCandidatesMatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blobPath := filepath.Join(root, "blob.bin")
	content := bytes.Repeat([]byte{0xAA}, 16)
	if err := os.WriteFile(blobPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	d := digestOf(t, content)
	setA := Set{Game: "a", Parts: []catalog.Part{{Name: "x.bin", Size: 16, Digest: d}}}
	setB := Set{Game: "b", Parts: []catalog.Part{{Name: "y.bin", Size: 16, Digest: d}}}

	_, err := Match(blobPath, []Set{setA, setB})
	if _, ok := err.(*AmbiguousError); !ok {
		t.Fatalf("expected *AmbiguousError, got %T: %v", err, err)
	}
}
