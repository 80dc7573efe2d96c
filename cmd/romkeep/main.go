package main

import (
	"os"
	"path/filepath"

	"github.com/austin/romkeep/internal/catalogsource"
	"github.com/austin/romkeep/internal/cli"
	"github.com/austin/romkeep/internal/config"
	"github.com/austin/romkeep/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.New(false, false)

	catalogRoot, err := catalogDir()
	if err != nil {
		logger.Errorf("romkeep: %v", err)
		return 3
	}

	cfgPath, err := config.DefaultPath()
	if err != nil {
		logger.Errorf("romkeep: %v", err)
		return 3
	}

	app := &cli.App{
		Catalogs: &catalogsource.Dir{Root: catalogRoot},
		Config:   config.New(cfgPath),
		Logger:   logger,
	}

	return cli.Run(args, app)
}

// catalogDir resolves where catalog YAML files live: ROMKEEP_CATALOGS if
// set, otherwise a "catalogs" directory alongside the user's config file.
func catalogDir() (string, error) {
	if dir := os.Getenv("ROMKEEP_CATALOGS"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "romkeep", "catalogs"), nil
}
