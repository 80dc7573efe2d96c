package report

import (
	"sort"

	"github.com/austin/romkeep/internal/catalog"
	"github.com/austin/romkeep/internal/digest"
)

// FindDuplicates walks every game in cat and groups effective parts by
// digest, returning one DuplicatePart per digest shared by two or more
// games. This is a read-only report independent of verify/repair, used to
// decide what's safe to hard-link across game directories (original_source
// duplicates.rs).
func FindDuplicates(cat *catalog.Catalog) ([]DuplicatePart, error) {
	byDigest := make(map[digest.Digest]map[string]bool)
	nameByDigest := make(map[digest.Digest]string)

	for _, gameName := range cat.SortedGames() {
		parts, err := cat.EffectiveParts(gameName)
		if err != nil {
			return nil, err
		}
		for name, p := range parts {
			games := byDigest[p.Digest]
			if games == nil {
				games = make(map[string]bool)
				byDigest[p.Digest] = games
				nameByDigest[p.Digest] = name
			}
			games[gameName] = true
		}
	}

	var out []DuplicatePart
	for d, games := range byDigest {
		if len(games) < 2 {
			continue
		}
		gameList := make([]string, 0, len(games))
		for g := range games {
			gameList = append(gameList, g)
		}
		sort.Strings(gameList)
		out = append(out, DuplicatePart{Name: nameByDigest[d], Games: gameList})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Games[0] < out[j].Games[0]
	})
	return out, nil
}
