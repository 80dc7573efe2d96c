// Package catalog holds the read-only description of games and the parts
// each one must contain. Catalogs are produced by an external ingestion
// collaborator (XML/DAT parsing is out of scope here, see CatalogSource) and
// are never mutated by this package.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/austin/romkeep/internal/digest"
)

// PartStatus records dump-quality metadata carried by some catalog formats.
// It never affects verify/repair semantics on its own; callers that care
// about excluding bad/no dumps filter on it explicitly.
type PartStatus int

const (
	StatusGood PartStatus = iota
	StatusBadDump
	StatusNoDump
)

// PartKind distinguishes a plain content-hashed ROM part from a disk image
// (.chd) whose authoritative digest is embedded in its own header rather
// than being the hash of the whole file.
type PartKind int

const (
	KindROM PartKind = iota
	KindDisk
)

// Part is one required file within a game: a name, size, and expected
// digest. Two Parts with the same Name but different (Size, Digest) within
// the same Game are an invariant violation the ingestion collaborator must
// reject before it reaches this package.
type Part struct {
	Name   string
	Size   uint64
	Digest digest.Digest
	Kind   PartKind
	Status PartStatus
}

// Game is a named set of required parts, optionally inheriting parts from
// other games (a MAME parent/BIOS chain, a software-list parent, or similar
// family-specific relationship the ingestion collaborator has already
// resolved into a flat list of names).
type Game struct {
	Name        string
	Description string
	Creator     string
	Year        string
	Working     WorkingStatus
	Parts       []Part
	Requires    []string // ordered; parents first, resolved against the owning Catalog
}

// WorkingStatus is MAME/software-list driver status.
type WorkingStatus int

const (
	WorkingGood WorkingStatus = iota
	WorkingImperfect
	WorkingPreliminary
)

// Catalog is an immutable collection of Games, indexed by name.
type Catalog struct {
	games map[string]Game
	order []string // discovery order, for deterministic iteration

	cacheMu        sync.Mutex
	effectiveCache map[string]effectiveResult // memoized EffectiveParts/EffectivePartOrder per game name
}

// effectiveResult is the memoized outcome of folding one game's Requires
// chain: the same parts, once as a name-keyed map for lookup callers and
// once as the declared order the fold encountered them in, for callers
// (the MAME split transform) that need parts in a fixed, meaningful
// sequence rather than an arbitrary one.
type effectiveResult struct {
	parts map[string]Part
	order []string
}

// CatalogError reports an ingestion-time defect: a malformed catalog, a
// duplicate game, or a cyclic requires chain. It is always fatal to the
// invocation that tried to load the catalog, per spec.md §7.
type CatalogError struct {
	CatalogID string
	Reason    string
}

func (e *CatalogError) Error() string {
	if e.CatalogID == "" {
		return fmt.Sprintf("catalog: %s", e.Reason)
	}
	return fmt.Sprintf("catalog %q: %s", e.CatalogID, e.Reason)
}

// New builds a Catalog from games, validating that Requires forms a DAG.
// Duplicate game names are an ingestion error.
func New(games []Game) (*Catalog, error) {
	c := &Catalog{
		games:          make(map[string]Game, len(games)),
		order:          make([]string, 0, len(games)),
		effectiveCache: make(map[string]effectiveResult, len(games)),
	}

	for _, g := range games {
		if _, exists := c.games[g.Name]; exists {
			return nil, &CatalogError{Reason: fmt.Sprintf("duplicate game %q", g.Name)}
		}
		c.games[g.Name] = g
		c.order = append(c.order, g.Name)
	}

	for _, name := range c.order {
		if err := detectCycle(c.games, name, make(map[string]bool), make(map[string]bool)); err != nil {
			return nil, &CatalogError{Reason: err.Error()}
		}
	}

	return c, nil
}

func detectCycle(games map[string]Game, name string, visiting, done map[string]bool) error {
	if done[name] {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("catalog: cyclic requires chain involving %q", name)
	}
	visiting[name] = true
	for _, parent := range games[name].Requires {
		if _, ok := games[parent]; !ok {
			continue // dangling parent reference is an ingestion concern, not our cycle check
		}
		if err := detectCycle(games, parent, visiting, done); err != nil {
			return err
		}
	}
	visiting[name] = false
	done[name] = true
	return nil
}

// Game resolves a game by exact name.
func (c *Catalog) Game(name string) (Game, bool) {
	g, ok := c.games[name]
	return g, ok
}

// Games returns every game name in discovery order.
func (c *Catalog) Games() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// SortedGames returns every game name sorted lexically, convenient for
// deterministic iteration independent of ingestion order.
func (c *Catalog) SortedGames() []string {
	out := c.Games()
	sort.Strings(out)
	return out
}

// EffectiveParts folds a Game's Requires parents (parents first) and then
// the Game's own parts, with child part names shadowing parent part names
// of the same name. The result is memoized per Catalog instance since
// Requires chains can be several games deep (software lists nested under a
// shared parent) and callers look this up once per plan/verify. Callers may
// call this concurrently for different games (the Coordinator's worker pool
// does exactly that), so the cache is guarded by cacheMu rather than trusted
// to single-threaded access; the mutex is released before recursing into a
// parent's own EffectiveParts call so a Requires chain can't deadlock on it.
func (c *Catalog) EffectiveParts(name string) (map[string]Part, error) {
	res, err := c.effective(name)
	if err != nil {
		return nil, err
	}
	return res.parts, nil
}

// EffectivePartOrder returns the same parts as EffectiveParts, but as the
// declared sequence the fold encountered them in rather than an unordered
// map: a parent's parts first in its own declared order, followed by the
// game's own parts in their declared order, with a part shadowing a
// same-named parent part keeping the parent's position rather than moving
// to the end. This is the order the MAME split transform needs — a
// combined ROM's parts are laid out at fixed byte offsets matching the
// catalog's declared part sequence, not alphabetical order.
func (c *Catalog) EffectivePartOrder(name string) ([]string, error) {
	res, err := c.effective(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(res.order))
	copy(out, res.order)
	return out, nil
}

func (c *Catalog) effective(name string) (effectiveResult, error) {
	c.cacheMu.Lock()
	cached, ok := c.effectiveCache[name]
	c.cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	g, ok := c.games[name]
	if !ok {
		return effectiveResult{}, fmt.Errorf("catalog: unknown game %q", name)
	}

	parts := make(map[string]Part)
	var order []string
	for _, parent := range g.Requires {
		parentRes, err := c.effective(parent)
		if err != nil {
			return effectiveResult{}, fmt.Errorf("catalog: resolving %q requires %q: %w", name, parent, err)
		}
		for _, partName := range parentRes.order {
			if _, exists := parts[partName]; !exists {
				order = append(order, partName)
			}
			parts[partName] = parentRes.parts[partName]
		}
	}
	for _, p := range g.Parts {
		if _, exists := parts[p.Name]; !exists {
			order = append(order, p.Name)
		}
		parts[p.Name] = p
	}

	res := effectiveResult{parts: parts, order: order}
	c.cacheMu.Lock()
	c.effectiveCache[name] = res
	c.cacheMu.Unlock()
	return res, nil
}

// CatalogSource is the contract the external ingestion collaborator
// implements: listing catalog identifiers, loading one, and enumerating its
// games. romkeep's core never parses XML/DAT directly; it only consumes this
// interface.
type CatalogSource interface {
	ListCatalogs() ([]string, error)
	Load(id string) (*Catalog, error)
	EnumerateGames(c *Catalog) []Game
}
