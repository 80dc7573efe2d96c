// Package coordinator dispatches a single command invocation (verify,
// repair, repair-all, split) across the scanner, planner, materializer, and
// reporter, choosing parallelism and routing results per spec.md §4.10.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/austin/romkeep/internal/archive"
	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/index"
	"github.com/austin/romkeep/internal/log"
	"github.com/austin/romkeep/internal/materializer"
	"github.com/austin/romkeep/internal/part"
	"github.com/austin/romkeep/internal/planner"
	"github.com/austin/romkeep/internal/report"
	"github.com/austin/romkeep/internal/scanner"
)

// Options configures one Coordinator invocation.
type Options struct {
	// DestRoot is the directory containing one subdirectory per game.
	DestRoot string
	// InputRoots are additional search roots scanned alongside DestRoot
	// (ignored for verify, which only inventories DestRoot).
	InputRoots []string
	// Workers bounds how many games are planned/materialized
	// concurrently. Zero chooses scanner's own default.
	Workers int
	DryRun  bool
	Logger  *log.Logger
}

// Stop is a cooperative cancellation flag checked at task boundaries, per
// spec.md §5. The zero value never signals cancellation.
type Stop struct {
	flag atomic.Bool
}

// Cancel requests that in-flight work wind down at its next boundary.
func (s *Stop) Cancel() { s.flag.Store(true) }

// Requested reports whether Cancel has been called.
func (s *Stop) Requested() bool { return s != nil && s.flag.Load() }

func logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return log.New(false, false)
}

// Verify inventories DestRoot only (no input roots are scanned) and reports
// each selected game's Outcome without applying any Action.
func Verify(ctx context.Context, cat *catalog.Catalog, games []string, opts Options, stop *Stop) (*report.Reporter, error) {
	idx := index.New()
	// verify still needs an Index so that the read-only diff can look up
	// a source elsewhere under DestRoot for each part a game lacks;
	// keep/rename decisions come from the game directory itself. Nothing
	// is applied, so scanning only the destination is sufficient.
	if err := scanDestinationIntoIndex(ctx, opts.DestRoot, idx, opts); err != nil {
		return nil, err
	}
	return run(ctx, cat, games, idx, opts, stop, false)
}

// Repair scans InputRoots and DestRoot into one Index, plans each selected
// game, and applies the resulting Plan (unless opts.DryRun).
func Repair(ctx context.Context, cat *catalog.Catalog, games []string, opts Options, stop *Stop) (*report.Reporter, error) {
	idx := index.New()
	if err := scanAllRoots(ctx, opts, idx); err != nil {
		return nil, err
	}
	return run(ctx, cat, games, idx, opts, stop, true)
}

// ScanForCandidates scans opts.InputRoots and opts.DestRoot into a fresh
// Index, for callers (the repair-all verb) that need to know what's
// available before deciding which games RepairAllCandidates should select.
func ScanForCandidates(ctx context.Context, opts Options) (*index.Index, error) {
	idx := index.New()
	if err := scanAllRoots(ctx, opts, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// RepairAllCandidates selects every game whose effective parts are either
// fully satisfiable from idx, or already partially present in DestRoot,
// per spec.md §4.10's repair-all selection rule. Games with neither are
// skipped silently.
func RepairAllCandidates(cat *catalog.Catalog, idx *index.Index, destRoot string) []string {
	var selected []string
	for _, name := range cat.SortedGames() {
		parts, err := cat.EffectiveParts(name)
		if err != nil || len(parts) == 0 {
			continue
		}

		fullySatisfiable := true
		anyPresent := false
		for _, p := range parts {
			if idx.Has(p.Digest) {
				continue
			}
			fullySatisfiable = false
		}
		if existing, _ := planner.Inventory(filepath.Join(destRoot, name)); len(existing) > 0 {
			anyPresent = true
		}
		if fullySatisfiable || anyPresent {
			selected = append(selected, name)
		}
	}
	return selected
}

func scanAllRoots(ctx context.Context, opts Options, idx *index.Index) error {
	for _, root := range opts.InputRoots {
		if err := scanRoot(ctx, root, idx, opts); err != nil {
			return err
		}
	}
	return scanDestinationIntoIndex(ctx, opts.DestRoot, idx, opts)
}

func scanRoot(ctx context.Context, root string, idx *index.Index, opts Options) error {
	src, err := part.NewSource("", archive.OpenOptions{})
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = scanner.Scan(ctx, root, src, idx, scanner.Options{Workers: opts.Workers, MaxDepth: -1, Logger: logger(opts)})
	return err
}

// scanDestinationIntoIndex walks DestRoot so that files already correctly
// placed in one game's directory can be hard-linked into another (cross-game
// sharing, per spec.md §4.6), and so repair-all can tell which games are
// already partially present. A destination that doesn't exist yet (the
// common first-repair case) is simply empty, not an error.
func scanDestinationIntoIndex(ctx context.Context, destRoot string, idx *index.Index, opts Options) error {
	if destRoot == "" {
		return nil
	}
	if _, err := os.Stat(destRoot); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return scanRoot(ctx, destRoot, idx, opts)
}

// run plans (and, if apply is true, materializes) every named game,
// concurrently up to opts.Workers, and streams Outcomes into a Reporter as
// each game finishes.
func run(ctx context.Context, cat *catalog.Catalog, games []string, idx *index.Index, opts Options, stop *Stop, apply bool) (*report.Reporter, error) {
	reporter := &report.Reporter{}
	var mu sync.Mutex

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	var src *part.Source
	if apply {
		var err error
		src, err = part.NewSource("", archive.OpenOptions{})
		if err != nil {
			return nil, err
		}
		defer src.Close()
	}

dispatch:
	for _, name := range games {
		name := name
		if stop.Requested() {
			break dispatch
		}
		select {
		case sem <- struct{}{}:
		case <-egCtx.Done():
			break dispatch
		}
		eg.Go(func() error {
			defer func() { <-sem }()
			if stop.Requested() || egCtx.Err() != nil {
				return nil
			}

			outcome, err := processGame(egCtx, cat, name, idx, opts, src, apply)
			if err != nil {
				logger(opts).Errorf("coordinator: game %q: %v", name, err)
				outcome = report.Outcome{Game: name, Bad: true}
			}

			mu.Lock()
			reporter.Report(outcome)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return reporter, err
	}
	return reporter, nil
}

func processGame(ctx context.Context, cat *catalog.Catalog, name string, idx *index.Index, opts Options, src *part.Source, apply bool) (report.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return report.Outcome{}, err
	}

	parts, err := cat.EffectiveParts(name)
	if err != nil {
		return report.Outcome{}, fmt.Errorf("effective parts: %w", err)
	}

	gameDir := filepath.Join(opts.DestRoot, name)

	// Sweep any sibling temp files a crashed prior repair left behind before
	// diffing, so they're never mistaken for an extra to report or delete,
	// per spec.md §7's crash-recovery policy. Skipped for verify/dry-run,
	// which promise not to touch the filesystem.
	if apply && !opts.DryRun {
		if err := materializer.CleanStaleTemps(gameDir); err != nil {
			return report.Outcome{}, fmt.Errorf("clean stale temps: %w", err)
		}
	}

	plan, err := planner.Diff(name, parts, gameDir, idx, planner.DestDevice)
	if err != nil {
		return report.Outcome{}, fmt.Errorf("diff: %w", err)
	}

	outcome := report.FromPlan(plan)

	if apply && !plan.OK() {
		if _, err := materializer.Apply(plan, gameDir, src, materializer.Options{DryRun: opts.DryRun, Logger: logger(opts)}); err != nil {
			return outcome, fmt.Errorf("apply: %w", err)
		}
		if !opts.DryRun {
			// Re-diff against the now-reconciled directory so the
			// reported Outcome reflects reality rather than the plan
			// that was applied, per §8's verify-after-repair law.
			plan, err = planner.Diff(name, parts, gameDir, idx, planner.DestDevice)
			if err != nil {
				return outcome, fmt.Errorf("post-apply diff: %w", err)
			}
			outcome = report.FromPlan(plan)
		}
	}

	return outcome, nil
}

// SelectGames resolves a requested game name list against cat, defaulting
// to every game in the catalog when names is empty.
func SelectGames(cat *catalog.Catalog, names []string) ([]string, error) {
	if len(names) == 0 {
		return cat.SortedGames(), nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := cat.Game(n); !ok {
			return nil, fmt.Errorf("coordinator: unknown game %q", n)
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
