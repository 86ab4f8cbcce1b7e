// Package diagnose turns finalized usage state into reportable findings.
// The walker records facts; the rules about which facts deserve a message
// live here, in one place.
package diagnose

import (
	"fmt"
	"sort"

	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/internal/usage"
	"github.com/varflow/varflow/internal/walker"
	"github.com/varflow/varflow/pkg/ir"
	"github.com/varflow/varflow/pkg/models"
)

// FromFunction classifies every variable of one walked function.
func FromFunction(syms *symbols.Table, res *walker.Result) []models.Finding {
	var out []models.Finding

	unassignedAt := groupUnassigned(res)

	for _, v := range res.Vars.All() {
		if v.Suppressed || v.AddressTaken || v.Reference {
			continue
		}
		if v.Decl.IsParam {
			// Parameters are part of the signature; their value arrives
			// from the caller and unused ones are an API question, not a
			// local usage defect.
			continue
		}

		if sites, ok := unassignedAt[v.ID]; ok {
			out = append(out, models.Finding{
				Kind:     models.UnassignedVariable,
				Severity: models.SeverityStyle,
				Anchors:  sites,
				Subject:  v.Decl.Name,
				Message:  fmt.Sprintf("Variable '%s' is not assigned a value.", v.Decl.Name),
			})
		}

		if v.Allocation && !v.DerefRead && !v.EverRead {
			out = append(out, models.Finding{
				Kind:     models.UnusedAllocatedMemory,
				Severity: models.SeverityStyle,
				Anchors:  anchors(v, res),
				Subject:  v.Decl.Name,
				Message:  fmt.Sprintf("Variable '%s' is allocated memory that is never used.", v.Decl.Name),
			})
			continue
		}

		if syms.CtorDtorExempt(v.Decl.Type) {
			// Construction or destruction alone can be the point.
			continue
		}

		switch {
		case !v.EverRead && !v.EverWritten:
			out = append(out, models.Finding{
				Kind:     models.UnusedVariable,
				Severity: models.SeverityStyle,
				Anchors:  anchors(v, res),
				Subject:  v.Decl.Name,
				Message:  fmt.Sprintf("Unused variable: %s", v.Decl.Name),
			})
		case v.EverWritten && !v.EverRead:
			if v.Decl.Storage == ir.StorageStatic {
				// The value survives the call; a later invocation may
				// read it.
				continue
			}
			at := v.LastWrite
			if at == (ir.Position{}) {
				at = v.Decl.At
			}
			a := append([]ir.Position{at}, res.RefAnchors[v.ID]...)
			out = append(out, models.Finding{
				Kind:     models.UnreadVariable,
				Severity: models.SeverityStyle,
				Anchors:  a,
				Subject:  v.Decl.Name,
				Message:  fmt.Sprintf("Variable '%s' is assigned a value that is never used.", v.Decl.Name),
			})
		}
	}

	return out
}

// anchors builds the anchor list for declaration-site findings: the
// declaration first, then any reference declarations bound to the variable.
func anchors(v *usage.Variable, res *walker.Result) []ir.Position {
	out := []ir.Position{v.Decl.At}
	out = append(out, res.RefAnchors[v.ID]...)
	return out
}

// groupUnassigned collects read-before-write sites per variable, sorted by
// position. One finding per variable carries every offending read as an
// anchor.
func groupUnassigned(res *walker.Result) map[usage.VarID][]ir.Position {
	if len(res.Unassigned) == 0 {
		return nil
	}
	grouped := make(map[usage.VarID][]ir.Position)
	for _, ev := range res.Unassigned {
		v := res.Vars.Get(ev.Var)
		if v == nil || v.Suppressed || v.AddressTaken || v.Reference {
			continue
		}
		if v.Decl.Storage == ir.StorageStatic {
			// Static locals are zero-initialized.
			continue
		}
		grouped[ev.Var] = append(grouped[ev.Var], ev.At)
	}
	for id := range grouped {
		sites := grouped[id]
		sort.Slice(sites, func(i, j int) bool { return sites[i].Before(sites[j]) })
		grouped[id] = sites
	}
	return grouped
}

// FromMembers converts member verdicts into findings. Only never-read
// members are reported; write-only members still count as unused.
func FromMembers(unionName func(string) bool, verdicts []members.Verdict) []models.Finding {
	var out []models.Finding
	for _, v := range verdicts {
		if v.Used {
			continue
		}
		noun := "struct"
		if unionName != nil && unionName(v.Record) {
			noun = "union"
		}
		subject := v.Record + "::" + v.Member
		out = append(out, models.Finding{
			Kind:     models.UnusedStructMember,
			Severity: models.SeverityStyle,
			Anchors:  []ir.Position{v.At},
			Subject:  subject,
			Message:  fmt.Sprintf("%s member '%s' is never used.", noun, subject),
		})
	}
	return out
}

// FromGaps reports each unresolved type once per translation unit. These
// are informational: they explain why some variables produced no findings.
func FromGaps(gaps map[string]ir.Position) []models.Finding {
	if len(gaps) == 0 {
		return nil
	}
	names := make([]string, 0, len(gaps))
	for name := range gaps {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.Finding, 0, len(names))
	for _, name := range names {
		out = append(out, models.Finding{
			Kind:     models.MissingConfiguration,
			Severity: models.SeverityInformation,
			Anchors:  []ir.Position{gaps[name]},
			Subject:  name,
			Message: fmt.Sprintf("Type '%s' has no visible definition; findings for its variables are suppressed. "+
				"Add it to analysis.safe_types if it has no construction side effects.", name),
		})
	}
	return out
}
