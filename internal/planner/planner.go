// Package planner diffs a game's effective parts against what a destination
// directory already contains and produces an ordered Plan of Actions that
// the materializer can apply to reconcile the two.
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/chd"
	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/fsutil"
	"github.com/austin/romkeep/internal/index"
	"github.com/austin/romkeep/internal/part"
	"github.com/austin/romkeep/internal/xattrcache"
)

// Via names how a Materialize action should produce its bytes.
type Via int

const (
	HardLink Via = iota
	Copy
)

// Action is one step of a Plan, scoped to a single destination path inside
// one game directory.
type Action struct {
	Keep bool // informational only; Keep actions are never applied

	Rename *RenameAction
	Link   *MaterializeAction
	Remove *RemoveAction
}

// RenameAction moves an existing file already holding the right bytes into
// the name the catalog requires.
type RenameAction struct {
	From string // path, relative to the game directory
	To   string
}

// MaterializeAction produces dst (relative to the game directory) from src,
// preferring HardLink when the Via chosen by the planner allows it.
type MaterializeAction struct {
	Src  part.Ref
	To   string
	Via  Via
	Size uint64

	// Existed reports whether a file already occupied To before this
	// plan was built, with the wrong content: the Reporter uses this to
	// distinguish wrong-digest from outright-missing in its Outcome.
	Existed bool
}

// RemoveAction deletes an extra file not named by any effective part.
type RemoveAction struct {
	Path string // relative to the game directory
}

// MissingPart is a required name with no available source in the Index.
type MissingPart struct {
	Name    string
	Existed bool // a file occupies Name already, just with the wrong content
}

// Plan is every Action needed to reconcile one game directory, plus the
// bookkeeping the Reporter needs to build an Outcome without re-walking the
// filesystem.
type Plan struct {
	Game string

	Renames      []RenameAction
	Materializes []MaterializeAction
	Removes      []RemoveAction

	// Missing lists effective part names with no Index entry and no
	// existing correct/renameable file: nothing can be done for them.
	// Each entry also records whether a (wrong) file already occupies
	// that name, for the Reporter's missing-vs-wrong_digest distinction.
	Missing []MissingPart
	// RenameConflicts lists required names that lost a rename-source
	// tie to another required name and fell through to materialization
	// (or to Missing, if the digest wasn't in the Index either).
	RenameConflicts []string
}

// OK reports whether the game directory already matches its effective parts:
// nothing is missing and there is nothing to rename, materialize or remove.
// RenameConflicts alone do not make it false.
func (p Plan) OK() bool {
	return len(p.Missing) == 0 && len(p.Renames) == 0 && len(p.Materializes) == 0 && len(p.Removes) == 0
}

// existingFile is one file Inventory found under a game directory.
type existingFile struct {
	relPath string
	size    uint64
	digest  digest.Digest
}

// Inventory walks gameDir and returns every regular file's (relative path,
// size, digest), consulting the Xattr Cache exactly like the Scanner does
// for loose files so a repeated verify/repair doesn't rehash unchanged
// content.
func Inventory(gameDir string) ([]existingFile, error) {
	var out []existingFile

	info, err := os.Stat(gameDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("planner: %q is not a directory", gameDir)
	}

	err = filepath.Walk(gameDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(gameDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		d, ok := xattrcache.Lookup(path)
		if !ok && strings.EqualFold(filepath.Ext(path), ".chd") {
			if chdDigest, err := chd.Digest(path); err == nil {
				d, ok = chdDigest, true
				xattrcache.Store(path, d, nil)
			}
		}
		if !ok {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			computed, _, err := digest.Of(f)
			f.Close()
			if err != nil {
				return err
			}
			d = computed
			xattrcache.Store(path, d, nil)
		}

		out = append(out, existingFile{relPath: rel, size: uint64(fi.Size()), digest: d})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Diff builds the Plan to reconcile gameDir with game's effective parts,
// consulting idx for sources of parts not already present.
func Diff(game string, parts map[string]catalog.Part, gameDir string, idx *index.Index, destDevice func(dir string) (uint64, bool)) (Plan, error) {
	plan := Plan{Game: game}

	existing, err := Inventory(gameDir)
	if err != nil {
		return plan, err
	}

	existingByPath := make(map[string]existingFile, len(existing))
	consumed := make(map[string]bool, len(existing))
	// digestToPaths supports renaming: a required part may already be
	// present under the wrong name.
	digestToPaths := make(map[digest.Digest][]string)
	for _, e := range existing {
		existingByPath[e.relPath] = e
		digestToPaths[e.digest] = append(digestToPaths[e.digest], e.relPath)
	}

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	renameClaims := make(map[string]string) // existing path -> required name that claimed it

	for _, name := range names {
		p := parts[name]

		if e, ok := existingByPath[name]; ok && e.digest == p.Digest && e.size == p.Size {
			consumed[name] = true
			continue
		}

		// Look for an existing file with the right digest under a
		// different name.
		renamed := false
		lostTie := false
		for _, candidatePath := range digestToPaths[p.Digest] {
			if candidatePath == name {
				continue // would have matched already_correct above
			}
			if claimedBy, already := renameClaims[candidatePath]; already {
				if claimedBy != name {
					lostTie = true
				}
				continue
			}
			if consumed[candidatePath] {
				continue
			}
			e := existingByPath[candidatePath]
			if e.size != p.Size {
				continue
			}
			renameClaims[candidatePath] = name
			consumed[candidatePath] = true
			plan.Renames = append(plan.Renames, RenameAction{From: candidatePath, To: name})
			renamed = true
			break
		}
		if renamed {
			continue
		}
		if lostTie {
			plan.RenameConflicts = append(plan.RenameConflicts, name)
		}

		_, alreadyThere := existingByPath[name]

		refs := idx.Lookup(p.Digest)
		if len(refs) == 0 {
			plan.Missing = append(plan.Missing, MissingPart{Name: name, Existed: alreadyThere})
			continue
		}

		src, via := chooseSource(refs, gameDir, destDevice)
		plan.Materializes = append(plan.Materializes, MaterializeAction{Src: src, To: name, Via: via, Size: p.Size, Existed: alreadyThere})
	}

	for _, e := range existing {
		if consumed[e.relPath] {
			continue
		}
		if _, claimed := renameClaims[e.relPath]; claimed {
			continue
		}
		if _, required := parts[e.relPath]; required {
			continue // wrong content at a required name: overwritten or reported, not deleted
		}
		plan.Removes = append(plan.Removes, RemoveAction{Path: e.relPath})
	}

	sort.Slice(plan.Materializes, func(i, j int) bool { return plan.Materializes[i].To < plan.Materializes[j].To })
	sort.Slice(plan.Renames, func(i, j int) bool { return plan.Renames[i].To < plan.Renames[j].To })
	sort.Slice(plan.Removes, func(i, j int) bool { return plan.Removes[i].Path < plan.Removes[j].Path })
	sort.Slice(plan.Missing, func(i, j int) bool { return plan.Missing[i].Name < plan.Missing[j].Name })
	sort.Strings(plan.RenameConflicts)

	return plan, nil
}

// chooseSource picks refs[0] by default (first insertion order, per
// spec.md §4.6) unless a later candidate lives on the same device as
// destDir, in which case that one is preferred for hard-link eligibility.
func chooseSource(refs []part.Ref, destDir string, destDevice func(dir string) (uint64, bool)) (part.Ref, Via) {
	destDev, destOK := uint64(0), false
	if destDevice != nil {
		destDev, destOK = destDevice(destDir)
	}

	if destOK {
		for _, r := range refs {
			if r.Kind != part.LooseFile {
				continue
			}
			if dev, ok := fsutil.Device(r.Path); ok && dev == destDev {
				return r, HardLink
			}
		}
	}
	return refs[0], Copy
}

// DestDevice is the default destDevice argument for Diff: the device
// identifier of dir's filesystem, per spec.md §4.7's eligibility test. It
// walks up to the nearest existing ancestor since the game directory may
// not have been created yet.
func DestDevice(dir string) (uint64, bool) {
	return fsutil.DeviceOfNearestAncestor(dir)
}
