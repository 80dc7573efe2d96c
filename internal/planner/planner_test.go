package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/index"
	"github.com/austin/romkeep/internal/part"
)

func mustDigest(t *testing.T, s string) digest.Digest {
	t.Helper()
	d, _, err := digest.Of(strings.NewReader(s))
	if err != nil {
		t.Fatalf("digest.Of: %v", err)
	}
	return d
}

func TestDiffAlreadyCorrectNeedsNoAction(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "a.bin"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	parts := map[string]catalog.Part{
		"a.bin": {Name: "a.bin", Size: 7, Digest: mustDigest(t, "payload")},
	}

	plan, err := Diff("mrdo", parts, gameDir, index.New(), nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !plan.OK() {
		t.Fatalf("expected OK plan, got %+v", plan)
	}
}

func TestDiffMissingPartWithoutIndexEntry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")

	parts := map[string]catalog.Part{
		"a.bin": {Name: "a.bin", Size: 7, Digest: mustDigest(t, "payload")},
	}

	plan, err := Diff("mrdo", parts, gameDir, index.New(), nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(plan.Missing) != 1 || plan.Missing[0].Name != "a.bin" {
		t.Fatalf("expected a.bin missing, got %+v", plan.Missing)
	}
}

func TestDiffMaterializesFromIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	srcPath := filepath.Join(root, "input", "a.bin")
	if err := os.MkdirAll(filepath.Dir(srcPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := mustDigest(t, "payload")
	idx := index.New()
	idx.Insert(d, part.NewLooseFile(srcPath, 7))

	parts := map[string]catalog.Part{
		"a.bin": {Name: "a.bin", Size: 7, Digest: d},
	}

	plan, err := Diff("mrdo", parts, gameDir, idx, nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(plan.Materializes) != 1 || plan.Materializes[0].To != "a.bin" {
		t.Fatalf("expected one materialize action for a.bin, got %+v", plan.Materializes)
	}
}

func TestDiffRenamesMisplacedFileWithCorrectDigest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "wrong-name.bin"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	parts := map[string]catalog.Part{
		"a.bin": {Name: "a.bin", Size: 7, Digest: mustDigest(t, "payload")},
	}

	plan, err := Diff("mrdo", parts, gameDir, index.New(), nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(plan.Renames) != 1 {
		t.Fatalf("expected one rename action, got %+v", plan.Renames)
	}
	if plan.Renames[0].From != "wrong-name.bin" || plan.Renames[0].To != "a.bin" {
		t.Fatalf("unexpected rename %+v", plan.Renames[0])
	}
}

func TestDiffRenameConflictFallsThroughToMissing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "only-copy.bin"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := mustDigest(t, "payload")
	parts := map[string]catalog.Part{
		"a.bin": {Name: "a.bin", Size: 7, Digest: d},
		"b.bin": {Name: "b.bin", Size: 7, Digest: d},
	}

	plan, err := Diff("mrdo", parts, gameDir, index.New(), nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(plan.Renames) != 1 {
		t.Fatalf("expected exactly one winning rename, got %+v", plan.Renames)
	}
	if len(plan.RenameConflicts) != 1 {
		t.Fatalf("expected one rename conflict recorded, got %+v", plan.RenameConflicts)
	}
	if len(plan.Missing) != 1 {
		t.Fatalf("expected the losing name to fall through to missing, got %+v", plan.Missing)
	}
}

func TestDiffExtraFileIsRemoved(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "readme.txt"), []byte("stray"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := Diff("mrdo", map[string]catalog.Part{}, gameDir, index.New(), nil)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(plan.Removes) != 1 || plan.Removes[0].Path != "readme.txt" {
		t.Fatalf("expected readme.txt to be removed, got %+v", plan.Removes)
	}
}
