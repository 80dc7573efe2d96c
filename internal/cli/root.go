package cli

import (
	"errors"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/austin/romkeep/internal/config"
)

// categoryGroups lists every subcommand group spec.md §6 names, in the
// order they're registered on the root parser.
var categoryGroups = []struct {
	name     string
	short    string
	Category config.Category
	split    bool // only mame exposes the split verb
}{
	{"mame", "MAME arcade sets", config.CategoryMAME, true},
	{"sl", "MAME software lists", config.CategorySL, false},
	{"nointro", "No-Intro cartridge/disc dats", config.CategoryNoIntro, false},
	{"redump", "Redump disc dats", config.CategoryRedump, false},
	{"extras", "miscellaneous extras sets", config.CategoryExtras, false},
}

// NewParser builds the root go-flags parser with every category group and
// verb nested under it, the way gazctl nests "journals"/"shards" commands.
func NewParser() *flags.Parser {
	parser := flags.NewParser(nil, flags.Default)
	parser.LongDescription = "romkeep materializes and audits per-game ROM directories against a catalog."

	for _, group := range categoryGroups {
		groupCmd, err := parser.Command.AddCommand(group.name, group.short, "", &struct{}{})
		if err != nil {
			panic(fmt.Sprintf("cli: add group %q: %v", group.name, err))
		}
		addVerbs(groupCmd, group.Category, group.split)
	}
	return parser
}

func addVerbs(group *flags.Command, category config.Category, withSplit bool) {
	must := func(name, short string, data interface{}) {
		if _, err := group.AddCommand(name, short, "", data); err != nil {
			panic(fmt.Sprintf("cli: add verb %q: %v", name, err))
		}
	}

	must("init", "Remember this category's destination root", &initCmd{Category: category})

	verify := &verifyCmd{Category: category}
	must("verify", "Check named games (or all) against the destination, read-only", verify)
	must("verify-all", "Check every game in the catalog against the destination", &verifyAllCmd{Category: category})

	repair := &repairCmd{Category: category}
	must("repair", "Materialize named games (or all) from the inputs into the destination", repair)
	must("add", "Alias for repair", &repairCmd{Category: category})
	must("repair-all", "Materialize every game the inputs can satisfy or that's already partially present", &repairAllCmd{Category: category})

	must("list", "Show catalog parts shared by two or more games", &listCmd{Category: category})
	must("games", "List every game in the catalog", &gamesCmd{Category: category})
	must("report", "Summarize verify outcomes, or --duplicates for the cross-game report", &reportCmd{Category: category})

	if withSplit {
		must("split", "Split a combined ROM blob into its catalog parts", &splitCmd{Category: category})
	}
}

// Run parses args against a, executes the selected command, and returns the
// process exit code spec.md §6 specifies.
func Run(args []string, a *App) int {
	Bind(a)
	parser := NewParser()

	_, err := parser.ParseArgs(args)
	if err == nil {
		return 0
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	return 3
}
