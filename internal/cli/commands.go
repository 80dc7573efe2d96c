package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/config"
	"github.com/austin/romkeep/internal/coordinator"
	"github.com/austin/romkeep/internal/report"
	"github.com/austin/romkeep/internal/split"
)

func loadCatalog(category config.Category, cf CommonFlags) (*catalog.Catalog, error) {
	id, err := catalogID(category, cf)
	if err != nil {
		return nil, err
	}
	cat, err := app.Catalogs.Load(id)
	if err != nil {
		return nil, &ExitError{Code: 3, Err: err}
	}
	return cat, nil
}

type initCmd struct {
	CommonFlags
	Category config.Category
}

func (c *initCmd) Execute([]string) error {
	dest := c.Root
	if dest == "" {
		var err error
		dest, err = os.Getwd()
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	if err := rememberDest(c.Category, c.CommonFlags, dest); err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	logger().Infof("remembered %s destination: %s", c.Category, dest)
	return nil
}

type verifyCmd struct {
	CommonFlags
	Args     gameArgs `positional-args:"yes"`
	Category config.Category
}

func (c *verifyCmd) Execute([]string) error {
	return runVerify(c.Category, c.CommonFlags, c.Args.Games)
}

type verifyAllCmd struct {
	CommonFlags
	Category config.Category
}

func (c *verifyAllCmd) Execute([]string) error {
	return runVerify(c.Category, c.CommonFlags, nil)
}

func runVerify(category config.Category, cf CommonFlags, games []string) error {
	cat, err := loadCatalog(category, cf)
	if err != nil {
		return err
	}
	dest, err := resolveDest(category, cf)
	if err != nil {
		return err
	}
	selected, err := coordinator.SelectGames(cat, games)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	reporter, err := coordinator.Verify(context.Background(), cat, selected, coordinator.Options{
		DestRoot: dest,
		Workers:  workers(cf),
		Logger:   logger(),
	}, nil)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	printReport(reporter, cf.Simple)
	if reporter.ExitCode() != 0 {
		return &ExitError{Code: reporter.ExitCode()}
	}
	return nil
}

type repairCmd struct {
	CommonFlags
	Args     gameArgs `positional-args:"yes"`
	Category config.Category
}

func (c *repairCmd) Execute([]string) error {
	return runRepair(c.Category, c.CommonFlags, c.Args.Games)
}

type repairAllCmd struct {
	CommonFlags
	Category config.Category
}

func (c *repairAllCmd) Execute([]string) error {
	cat, err := loadCatalog(c.Category, c.CommonFlags)
	if err != nil {
		return err
	}
	dest, err := resolveDest(c.Category, c.CommonFlags)
	if err != nil {
		return err
	}

	logger().Verbosef("repair-all: scanning inputs and destination to select games")
	idx, err := coordinator.ScanForCandidates(context.Background(), coordinator.Options{
		DestRoot:   dest,
		InputRoots: c.Inputs,
		Workers:    workers(c.CommonFlags),
		Logger:     logger(),
	})
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	selected := coordinator.RepairAllCandidates(cat, idx, dest)
	if len(selected) == 0 {
		logger().Infof("repair-all: no candidate games (nothing fully available or partially present)")
		return nil
	}
	return runRepairSelected(c.Category, c.CommonFlags, cat, dest, selected)
}

func runRepair(category config.Category, cf CommonFlags, games []string) error {
	cat, err := loadCatalog(category, cf)
	if err != nil {
		return err
	}
	dest, err := resolveDest(category, cf)
	if err != nil {
		return err
	}
	selected, err := coordinator.SelectGames(cat, games)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	return runRepairSelected(category, cf, cat, dest, selected)
}

func runRepairSelected(category config.Category, cf CommonFlags, cat *catalog.Catalog, dest string, selected []string) error {
	reporter, err := coordinator.Repair(context.Background(), cat, selected, coordinator.Options{
		DestRoot:   dest,
		InputRoots: cf.Inputs,
		Workers:    workers(cf),
		DryRun:     cf.DryRun,
		Logger:     logger(),
	}, nil)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	printReport(reporter, cf.Simple)
	if reporter.ExitCode() != 0 {
		return &ExitError{Code: reporter.ExitCode()}
	}
	return nil
}

type listCmd struct {
	CommonFlags
	Category config.Category
}

func (c *listCmd) Execute([]string) error {
	cat, err := loadCatalog(c.Category, c.CommonFlags)
	if err != nil {
		return err
	}
	dups, err := report.FindDuplicates(cat)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	if len(dups) == 0 {
		logger().Infof("no duplicate parts across games")
		return nil
	}
	for _, d := range dups {
		logger().Infof("%s shared by: %v", d.Name, d.Games)
	}
	return nil
}

type gamesCmd struct {
	CommonFlags
	Category config.Category
}

func (c *gamesCmd) Execute([]string) error {
	cat, err := loadCatalog(c.Category, c.CommonFlags)
	if err != nil {
		return err
	}
	names := sortedGamesBy(cat, c.Sort)
	for _, name := range names {
		g, _ := cat.Game(name)
		if c.Simple {
			fmt.Println(g.Name)
			continue
		}
		fmt.Printf("%-24s %-32s %s (%s)\n", g.Name, g.Description, g.Creator, g.Year)
	}
	return nil
}

func sortedGamesBy(cat *catalog.Catalog, key string) []string {
	names := cat.SortedGames()
	less := func(i, j int) bool { return names[i] < names[j] }
	switch key {
	case "creator":
		less = func(i, j int) bool {
			a, _ := cat.Game(names[i])
			b, _ := cat.Game(names[j])
			return a.Creator < b.Creator
		}
	case "year":
		less = func(i, j int) bool {
			a, _ := cat.Game(names[i])
			b, _ := cat.Game(names[j])
			return a.Year < b.Year
		}
	case "description":
		less = func(i, j int) bool {
			a, _ := cat.Game(names[i])
			b, _ := cat.Game(names[j])
			return a.Description < b.Description
		}
	}
	sort.SliceStable(names, less)
	return names
}

type reportCmd struct {
	CommonFlags
	Duplicates bool `long:"duplicates" description:"show the cross-game duplicate-part report instead of verify outcomes"`
	Category   config.Category
}

func (c *reportCmd) Execute([]string) error {
	if c.Duplicates {
		lc := listCmd{CommonFlags: c.CommonFlags, Category: c.Category}
		return lc.Execute(nil)
	}
	return runVerify(c.Category, c.CommonFlags, nil)
}

type splitCmd struct {
	CommonFlags
	Args struct {
		Blob   string `positional-arg-name:"blob"`
		OutDir string `positional-arg-name:"out-dir"`
	} `positional-args:"yes" required:"yes"`
	Category config.Category
}

func (c *splitCmd) Execute([]string) error {
	cat, err := loadCatalog(c.Category, c.CommonFlags)
	if err != nil {
		return err
	}

	info, err := os.Stat(c.Args.Blob)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	candidates, err := split.CandidateSets(cat, uint64(info.Size()))
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	set, err := split.Match(c.Args.Blob, candidates)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	if err := split.Write(c.Args.Blob, set, c.Args.OutDir); err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	logger().Infof("split %q into %s's %d part(s) under %s", c.Args.Blob, set.Game, len(set.Parts), c.Args.OutDir)
	return nil
}

func printReport(reporter *report.Reporter, simple bool) {
	for _, o := range reporter.Results {
		if o.OK() {
			if !simple {
				logger().Infof("%-24s OK", o.Game)
			}
			continue
		}
		if simple {
			logger().Infof("%s", o.Game)
			continue
		}
		logger().Errorf("%-24s BAD missing=%v wrong_digest=%v extra=%v rename_conflicts=%v",
			o.Game, o.Missing, o.WrongDigest, o.Extra, o.RenameConflicts)
	}
	s := reporter.Stats
	logger().Infof("%d ok, %d bad, %d missing, %d extras deleted, %d bytes linked, %d bytes written",
		s.OK, s.Bad, s.Missing, s.ExtrasDeleted, s.BytesLinked, s.BytesWritten)
}
