// Package cli builds the nested go-flags commander spec.md §6 names: one
// subcommand group per catalog category (mame, sl, nointro, redump,
// extras), each with init/verify/verify-all/repair/repair-all/list/games/
// report verbs, plus a split verb under mame only. It plays the role the teacher's internal/cli filled
// with a single flag.FlagSet, generalized the way gazette-core's gazctl
// nests flags.Command per resource group.
package cli

import (
	"github.com/austin/romkeep/internal/catalogsource"
	"github.com/austin/romkeep/internal/config"
	"github.com/austin/romkeep/internal/log"
)

// App is the runtime context every leaf command's Execute draws on. main
// assigns it once, before the parser runs, since go-flags has no built-in
// way to inject dependencies into a Commander struct — the same role the
// teacher's package-level baseCfg/startup() played for logging config.
type App struct {
	Catalogs *catalogsource.Dir
	Config   *config.Config
	Logger   *log.Logger
}

var app *App

// Bind installs the shared App context. Must be called before the parser
// parses argv.
func Bind(a *App) { app = a }

func logger() *log.Logger {
	if app != nil && app.Logger != nil {
		return app.Logger
	}
	return log.New(false, false)
}
