package report

import "github.com/austin/romkeep/internal/planner"

// FromPlan derives the Outcome a Plan implies, before (verify) or after
// (repair) it has been applied. A plan with pending Renames/Materializes
// still counts those target names as not-yet-correct; callers that apply
// the plan and then re-Diff will observe an OK outcome once the filesystem
// actually matches.
func FromPlan(plan planner.Plan) Outcome {
	o := Outcome{Game: plan.Game}

	for _, m := range plan.Materializes {
		if m.Existed {
			o.WrongDigest = append(o.WrongDigest, m.To)
		} else {
			o.Missing = append(o.Missing, m.To)
		}
	}
	for _, rn := range plan.Renames {
		o.Missing = append(o.Missing, rn.To)
	}
	for _, m := range plan.Missing {
		if m.Existed {
			o.WrongDigest = append(o.WrongDigest, m.Name)
		} else {
			o.Missing = append(o.Missing, m.Name)
		}
	}
	for _, rm := range plan.Removes {
		o.Extra = append(o.Extra, rm.Path)
	}
	o.RenameConflicts = append(o.RenameConflicts, plan.RenameConflicts...)

	o.Bad = !o.OK()
	return o
}
