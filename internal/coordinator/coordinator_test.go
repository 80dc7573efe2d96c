package coordinator

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
)

func digestOf(t *testing.T, content []byte) digest.Digest {
	t.Helper()
	sum := sha1.Sum(content)
	var d digest.Digest
	copy(d[:], sum[:])
	return d
}

func buildCatalog(t *testing.T, games []catalog.Game) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(games)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

// TestRepairThenVerifyIsIdempotent exercises spec.md §8's verify-after-repair law:
// repair followed by verify reports OK, and a second repair mutates nothing.
func TestRepairThenVerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	destRoot := filepath.Join(root, "dest")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte("payload-bytes")
	if err := os.WriteFile(filepath.Join(inputDir, "a.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	cat := buildCatalog(t, []catalog.Game{
		{Name: "mrdo", Parts: []catalog.Part{
			{Name: "a.bin", Size: uint64(len(content)), Digest: digestOf(t, content)},
		}},
	})

	opts := Options{DestRoot: destRoot, InputRoots: []string{inputDir}, Workers: 2}

	reporter, err := Repair(context.Background(), cat, []string{"mrdo"}, opts, nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if reporter.ExitCode() != 0 {
		t.Fatalf("expected repair to leave mrdo OK, got %+v", reporter.Results)
	}

	verifyOpts := Options{DestRoot: destRoot, Workers: 2}
	verifyReporter, err := Verify(context.Background(), cat, []string{"mrdo"}, verifyOpts, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verifyReporter.ExitCode() != 0 {
		t.Fatalf("expected verify OK after repair, got %+v", verifyReporter.Results)
	}

	info1, err := os.Stat(filepath.Join(destRoot, "mrdo", "a.bin"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Repair(context.Background(), cat, []string{"mrdo"}, opts, nil); err != nil {
		t.Fatalf("second Repair: %v", err)
	}
	info2, err := os.Stat(filepath.Join(destRoot, "mrdo", "a.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if info1.ModTime() != info2.ModTime() {
		t.Fatalf("second repair mutated a.bin: mtime %v != %v", info1.ModTime(), info2.ModTime())
	}
}

// TestRepairManyGamesConcurrentlyDoesNotRace exercises the Coordinator's
// normal verify-all/repair-all shape: several games planned and materialized
// concurrently, each calling cat.EffectiveParts from its own goroutine. Run
// with -race to catch a regression to an unguarded Catalog.effectiveCache.
func TestRepairManyGamesConcurrentlyDoesNotRace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	destRoot := filepath.Join(root, "dest")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	const gameCount = 16
	var games []catalog.Game
	var names []string
	for i := 0; i < gameCount; i++ {
		name := fmt.Sprintf("game%02d", i)
		content := []byte(name + "-payload")
		if err := os.WriteFile(filepath.Join(inputDir, name+".bin"), content, 0o644); err != nil {
			t.Fatal(err)
		}
		games = append(games, catalog.Game{
			Name: name,
			Parts: []catalog.Part{
				{Name: name + ".bin", Size: uint64(len(content)), Digest: digestOf(t, content)},
			},
		})
		names = append(names, name)
	}

	cat := buildCatalog(t, games)
	opts := Options{DestRoot: destRoot, InputRoots: []string{inputDir}, Workers: 4}

	reporter, err := Repair(context.Background(), cat, names, opts, nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if reporter.ExitCode() != 0 {
		t.Fatalf("expected every game OK, got %+v", reporter.Results)
	}
}

// TestRepairSweepsStaleTempsLeftByACrash exercises spec.md §7's crash-recovery
// policy: a sibling temp file left behind by a materializer that never
// finished its atomic rename is removed before Repair plans the directory,
// rather than being reported or treated as an extra to delete loudly.
func TestRepairSweepsStaleTempsLeftByACrash(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	destRoot := filepath.Join(root, "dest")
	gameDir := filepath.Join(destRoot, "mrdo")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte("payload-bytes")
	if err := os.WriteFile(filepath.Join(inputDir, "a.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	staleTemp := filepath.Join(gameDir, ".romkeep-tmp-a.bin-stale")
	if err := os.WriteFile(staleTemp, []byte("crash-leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := buildCatalog(t, []catalog.Game{
		{Name: "mrdo", Parts: []catalog.Part{
			{Name: "a.bin", Size: uint64(len(content)), Digest: digestOf(t, content)},
		}},
	})

	opts := Options{DestRoot: destRoot, InputRoots: []string{inputDir}}
	reporter, err := Repair(context.Background(), cat, []string{"mrdo"}, opts, nil)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if reporter.ExitCode() != 0 {
		t.Fatalf("expected mrdo OK after repair, got %+v", reporter.Results)
	}
	if _, err := os.Stat(staleTemp); !os.IsNotExist(err) {
		t.Fatal("expected the crash-leftover temp file to be swept before planning")
	}
}

func TestVerifyDetectsCorruptedFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	destRoot := filepath.Join(root, "dest")
	gameDir := filepath.Join(destRoot, "mrdo")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(gameDir, "a.bin"), []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := buildCatalog(t, []catalog.Game{
		{Name: "mrdo", Parts: []catalog.Part{
			{Name: "a.bin", Size: 7, Digest: digestOf(t, []byte("payload"))},
		}},
	})

	reporter, err := Verify(context.Background(), cat, []string{"mrdo"}, Options{DestRoot: destRoot}, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if reporter.ExitCode() != 1 {
		t.Fatalf("expected Bad outcome for corrupted file, got %+v", reporter.Results)
	}
	if len(reporter.Results) != 1 || len(reporter.Results[0].WrongDigest) != 1 {
		t.Fatalf("expected wrong_digest=[a.bin], got %+v", reporter.Results)
	}
}

func TestDryRunRepairDoesNotCreateDestination(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	destRoot := filepath.Join(root, "dest")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte("payload")
	if err := os.WriteFile(filepath.Join(inputDir, "a.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	cat := buildCatalog(t, []catalog.Game{
		{Name: "mrdo", Parts: []catalog.Part{
			{Name: "a.bin", Size: uint64(len(content)), Digest: digestOf(t, content)},
		}},
	})

	opts := Options{DestRoot: destRoot, InputRoots: []string{inputDir}, DryRun: true}
	if _, err := Repair(context.Background(), cat, []string{"mrdo"}, opts, nil); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if _, err := os.Stat(destRoot); !os.IsNotExist(err) {
		t.Fatal("dry-run repair must not create the destination")
	}
}
