// Package report aggregates per-game reconciliation outcomes into a
// structured stream. It does not sort or render; the CLI's tabular output
// is an external collaborator per spec.md §1.
package report

// Outcome is the verdict for one game after a verify or repair pass.
type Outcome struct {
	Game string
	Bad  bool

	Missing         []string
	WrongDigest     []string
	Extra           []string
	RenameConflicts []string
}

// OK reports whether the game needs no attention at all.
func (o Outcome) OK() bool {
	return !o.Bad && len(o.Missing) == 0 && len(o.WrongDigest) == 0 && len(o.Extra) == 0 && len(o.RenameConflicts) == 0
}

// Stats accumulates the summary counters spec.md §4.9 names.
type Stats struct {
	OK            int
	Bad           int
	Missing       int
	ExtrasDeleted int
	BytesWritten  int64
	BytesLinked   int64
	LinkFallbacks int
}

// Add folds o into the counters that don't depend on a materializer result.
func (s *Stats) Add(o Outcome) {
	if o.OK() {
		s.OK++
	} else {
		s.Bad++
	}
	if len(o.Missing) > 0 {
		s.Missing++
	}
}

// AddExtrasDeleted and AddBytes are split out from Add because they depend
// on the materializer's Result, which is only available for repair, not
// verify.
func (s *Stats) AddExtrasDeleted(n int)  { s.ExtrasDeleted += n }
func (s *Stats) AddBytesWritten(n int64) { s.BytesWritten += n }
func (s *Stats) AddBytesLinked(n int64)  { s.BytesLinked += n }
func (s *Stats) AddLinkFallbacks(n int)  { s.LinkFallbacks += n }

// Reporter collects Outcomes as each game completes, in whatever order the
// Coordinator's worker pool finishes them. Callers that need a stable
// presentation order sort Results themselves; the Coordinator emits as
// each game finishes so progress is visible on long runs, per spec.md §5's
// "no user-observable ordering guarantee" note.
type Reporter struct {
	Results []Outcome
	Stats   Stats
}

// Report records outcome and folds its counters into Stats.
func (r *Reporter) Report(outcome Outcome) {
	r.Results = append(r.Results, outcome)
	r.Stats.Add(outcome)
}

// ExitCode computes the process exit code spec.md §6 specifies: 0 if every
// game is OK, 1 if the run completed but at least one game is not OK.
func (r *Reporter) ExitCode() int {
	if r.Stats.Bad == 0 {
		return 0
	}
	return 1
}

// DuplicatePart is one entry in a cross-game duplicate-content report: a
// digest shared by two or more games' catalog parts, surfaced so operators
// can judge what's safe to hard-link.
type DuplicatePart struct {
	Name  string
	Games []string
}
