// Package catalogsource provides a minimal concrete implementation of
// catalog.CatalogSource, backed by a directory of YAML documents. Real DAT/
// XML ingestion is an external collaborator out of scope for this module
// (spec.md §1); this package exists only so the CLI has something runnable
// to wire against without that collaborator present.
package catalogsource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/fsutil"
)

// Dir is a catalog.CatalogSource backed by *.yaml files under a directory,
// one file per catalog id (e.g. mame.yaml, redump-psx.yaml).
type Dir struct {
	Root string
}

type yamlDoc struct {
	Games []yamlGame `yaml:"games"`
}

type yamlGame struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Creator     string     `yaml:"creator"`
	Year        string     `yaml:"year"`
	Working     string     `yaml:"working"` // good|imperfect|preliminary
	Requires    []string   `yaml:"requires,omitempty"`
	Parts       []yamlPart `yaml:"parts"`
}

type yamlPart struct {
	Name   string `yaml:"name"`
	Size   uint64 `yaml:"size"`
	Digest string `yaml:"digest"`
	Kind   string `yaml:"kind,omitempty"`   // rom|disk, default rom
	Status string `yaml:"status,omitempty"` // good|baddump|nodump, default good
}

// ListCatalogs returns every catalog id available under Root: the base name
// of each *.yaml file, without extension.
func (d Dir) ListCatalogs() ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("catalogsource: read %q: %w", d.Root, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load parses id's YAML document into a catalog.Catalog.
func (d Dir) Load(id string) (*catalog.Catalog, error) {
	path, err := d.resolve(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogsource: read %q: %w", path, err)
	}

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalogsource: parse %q: %w", path, err)
	}

	games := make([]catalog.Game, 0, len(doc.Games))
	for _, g := range doc.Games {
		game, err := decodeGame(g)
		if err != nil {
			return nil, fmt.Errorf("catalogsource: %q: game %q: %w", path, g.Name, err)
		}
		games = append(games, game)
	}

	cat, err := catalog.New(games)
	if err != nil {
		return nil, fmt.Errorf("catalogsource: %q: %w", path, err)
	}
	return cat, nil
}

// EnumerateGames returns every Game in c, resolved from the names
// catalog.Catalog already tracks in discovery order.
func (d Dir) EnumerateGames(c *catalog.Catalog) []catalog.Game {
	names := c.Games()
	out := make([]catalog.Game, 0, len(names))
	for _, name := range names {
		if g, ok := c.Game(name); ok {
			out = append(out, g)
		}
	}
	return out
}

func (d Dir) resolve(id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(d.Root, id+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("catalogsource: no catalog named %q under %q", id, d.Root)
}

func decodeGame(g yamlGame) (catalog.Game, error) {
	seen := make(map[string]bool, len(g.Parts))
	parts := make([]catalog.Part, 0, len(g.Parts))
	for _, p := range g.Parts {
		if seen[p.Name] {
			return catalog.Game{}, fmt.Errorf("duplicate part name %q", p.Name)
		}
		seen[p.Name] = true

		clean, ok := fsutil.SanitizeRelPath(p.Name)
		if !ok {
			return catalog.Game{}, fmt.Errorf("part %q: not a safe relative path", p.Name)
		}

		d, err := digest.Parse(p.Digest)
		if err != nil {
			return catalog.Game{}, fmt.Errorf("part %q: %w", p.Name, err)
		}

		parts = append(parts, catalog.Part{
			Name:   filepath.ToSlash(clean),
			Size:   p.Size,
			Digest: d,
			Kind:   decodeKind(p.Kind),
			Status: decodeStatus(p.Status),
		})
	}

	return catalog.Game{
		Name:        g.Name,
		Description: g.Description,
		Creator:     g.Creator,
		Year:        g.Year,
		Working:     decodeWorking(g.Working),
		Parts:       parts,
		Requires:    g.Requires,
	}, nil
}

func decodeKind(s string) catalog.PartKind {
	if s == "disk" {
		return catalog.KindDisk
	}
	return catalog.KindROM
}

func decodeStatus(s string) catalog.PartStatus {
	switch s {
	case "baddump":
		return catalog.StatusBadDump
	case "nodump":
		return catalog.StatusNoDump
	default:
		return catalog.StatusGood
	}
}

func decodeWorking(s string) catalog.WorkingStatus {
	switch s {
	case "imperfect":
		return catalog.WorkingImperfect
	case "preliminary":
		return catalog.WorkingPreliminary
	default:
		return catalog.WorkingGood
	}
}
