package cli

import (
	"fmt"

	"github.com/austin/romkeep/internal/config"
)

// CommonFlags are the flags every leaf verb accepts, per spec.md §6.
type CommonFlags struct {
	Root    string   `short:"r" long:"root" description:"destination root directory"`
	Inputs  []string `short:"i" long:"input" description:"input search root (repeatable)"`
	List    string   `short:"L" long:"list" description:"software list name (sl category only)"`
	Dat     string   `short:"D" long:"dat" description:"dat name (nointro/redump categories only)"`
	DryRun  bool     `long:"dry-run" description:"show planned actions without writing anything"`
	Sort    string   `long:"sort" choice:"description" choice:"creator" choice:"year" default:"description" description:"sort key for games output"`
	Simple  bool     `long:"simple" description:"print bare names, one per line, instead of a table"`
	Threads int      `long:"threads" description:"worker pool size (0 selects a small per-command default)"`
}

// gameArgs is the shared positional-argument shape: zero or more game
// names, defaulting to every game in the catalog when empty.
type gameArgs struct {
	Games []string `positional-arg-name:"game"`
}

// ExitError lets a leaf command request a specific process exit code
// (spec.md §6: 0 ok, 1 some game not ok, 2 usage error, 3 catalog/input
// error) without main having to inspect each command's own bookkeeping.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// catalogID resolves the catalog identifier a category/CommonFlags pair
// names: mame and extras have one catalog each, while sl/nointro/redump
// are keyed by the list or dat name the user supplied.
func catalogID(category config.Category, cf CommonFlags) (string, error) {
	switch category {
	case config.CategorySL:
		if cf.List == "" {
			return "", &ExitError{Code: 2, Err: fmt.Errorf("sl commands require -L <list>")}
		}
		return "sl-" + cf.List, nil
	case config.CategoryNoIntro:
		if cf.Dat == "" {
			return "", &ExitError{Code: 2, Err: fmt.Errorf("nointro commands require -D <dat>")}
		}
		return "nointro-" + cf.Dat, nil
	case config.CategoryRedump:
		if cf.Dat == "" {
			return "", &ExitError{Code: 2, Err: fmt.Errorf("redump commands require -D <dat>")}
		}
		return "redump-" + cf.Dat, nil
	default:
		return string(category), nil
	}
}

// resolveDest applies spec.md §6's destination lookup order: explicit
// flag > remembered value > current directory. sl/nointro/redump consult
// their per-list/per-dat remembered value before falling back to the
// category-wide one.
func resolveDest(category config.Category, cf CommonFlags) (string, error) {
	if cf.Root != "" {
		return cf.Root, nil
	}

	switch category {
	case config.CategorySL:
		if cf.List != "" {
			if dest, ok, err := app.Config.GetSoftwareList(cf.List); err != nil {
				return "", &ExitError{Code: 3, Err: err}
			} else if ok {
				return dest, nil
			}
		}
	case config.CategoryNoIntro, config.CategoryRedump:
		if cf.Dat != "" {
			if dest, ok, err := app.Config.GetDatRoot(cf.Dat); err != nil {
				return "", &ExitError{Code: 3, Err: err}
			} else if ok {
				return dest, nil
			}
		}
	}

	dest, err := config.Resolve("", category, app.Config)
	if err != nil {
		return "", &ExitError{Code: 3, Err: err}
	}
	return dest, nil
}

// rememberDest persists dest as category's (or list/dat's) destination, for
// `init` to call explicitly.
func rememberDest(category config.Category, cf CommonFlags, dest string) error {
	switch category {
	case config.CategorySL:
		if cf.List != "" {
			return app.Config.SetSoftwareList(cf.List, dest)
		}
	case config.CategoryNoIntro, config.CategoryRedump:
		if cf.Dat != "" {
			return app.Config.SetDatRoot(cf.Dat, dest)
		}
	}
	return app.Config.Set(category, dest)
}

func workers(cf CommonFlags) int {
	return cf.Threads
}
