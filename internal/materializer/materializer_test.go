package materializer

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/austin/romkeep/internal/archive"
	"github.com/austin/romkeep/internal/part"
	"github.com/austin/romkeep/internal/planner"
)

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

func newSource(t *testing.T) *part.Source {
	t.Helper()
	src, err := part.NewSource(t.TempDir(), archive.OpenOptions{})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestApplyHardLinksWhenSameDevice(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	srcPath := filepath.Join(root, "input.bin")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	gameDir := filepath.Join(root, "mrdo")

	plan := planner.Plan{
		Game: "mrdo",
		Materializes: []planner.MaterializeAction{
			{Src: part.NewLooseFile(srcPath, 7), To: "a.bin", Via: planner.HardLink, Size: 7},
		},
	}

	src := newSource(t)
	result, err := Apply(plan, gameDir, src, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.BytesLinked != 7 {
		t.Fatalf("BytesLinked=%d, want 7", result.BytesLinked)
	}
	if result.LinkFallback != 0 {
		t.Fatalf("expected no fallback, got %d", result.LinkFallback)
	}

	dstPath := filepath.Join(gameDir, "a.bin")
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Fatal("expected destination to share inode with source (hard link)")
	}
}

func TestApplyRenamesInPlace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "old.bin"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan := planner.Plan{
		Game:    "mrdo",
		Renames: []planner.RenameAction{{From: "old.bin", To: "new.bin"}},
	}

	src := newSource(t)
	if _, err := Apply(plan, gameDir, src, Options{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Stat(filepath.Join(gameDir, "old.bin")); !os.IsNotExist(err) {
		t.Fatal("expected old.bin to be gone")
	}
	if _, err := os.Stat(filepath.Join(gameDir, "new.bin")); err != nil {
		t.Fatalf("expected new.bin to exist: %v", err)
	}
}

func TestApplyRemovesExtras(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan := planner.Plan{
		Game:    "mrdo",
		Removes: []planner.RemoveAction{{Path: "readme.txt"}},
	}

	src := newSource(t)
	result, err := Apply(plan, gameDir, src, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed=%d, want 1", result.Removed)
	}
	if _, err := os.Stat(filepath.Join(gameDir, "readme.txt")); !os.IsNotExist(err) {
		t.Fatal("expected readme.txt to be removed")
	}
}

func TestApplyDryRunDoesNotTouchFilesystem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	srcPath := filepath.Join(root, "input.bin")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	gameDir := filepath.Join(root, "mrdo")

	plan := planner.Plan{
		Game: "mrdo",
		Materializes: []planner.MaterializeAction{
			{Src: part.NewLooseFile(srcPath, 7), To: "a.bin", Via: planner.Copy, Size: 7},
		},
	}

	src := newSource(t)
	result, err := Apply(plan, gameDir, src, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.BytesWritten != 7 {
		t.Fatalf("BytesWritten=%d, want 7", result.BytesWritten)
	}
	if _, err := os.Stat(gameDir); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the game directory")
	}
}

func TestApplyCopyFallsBackFromLinkWhenSourceNotLooseFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gameDir := filepath.Join(root, "mrdo")
	zipPath := filepath.Join(root, "in.zip")
	writeTestZip(t, zipPath, map[string]string{"a.bin": "payload"})

	plan := planner.Plan{
		Game: "mrdo",
		Materializes: []planner.MaterializeAction{
			{Src: part.NewArchiveEntry(zipPath, "a.bin", 7), To: "a.bin", Via: planner.HardLink, Size: 7},
		},
	}

	src := newSource(t)
	result, err := Apply(plan, gameDir, src, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.LinkFallback != 1 {
		t.Fatalf("LinkFallback=%d, want 1", result.LinkFallback)
	}
	content, err := os.ReadFile(filepath.Join(gameDir, "a.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "payload" {
		t.Fatalf("content=%q, want %q", content, "payload")
	}
}

func TestCleanStaleTempsRemovesOnlyMaterializerTemps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keep := filepath.Join(dir, "a.bin")
	stale := filepath.Join(dir, tempPrefix+"a.bin-123")
	if err := os.WriteFile(keep, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CleanStaleTemps(dir); err != nil {
		t.Fatalf("CleanStaleTemps: %v", err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("CleanStaleTemps removed a non-temp file: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("CleanStaleTemps left a stale temp file behind")
	}
}

func TestCleanStaleTempsOnMissingDirIsNotAnError(t *testing.T) {
	t.Parallel()

	if err := CleanStaleTemps(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Fatalf("CleanStaleTemps on a missing directory: %v", err)
	}
}
