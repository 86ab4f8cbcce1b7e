package models

import (
	"fmt"
	"sort"

	"github.com/varflow/varflow/pkg/ir"
	"github.com/varflow/varflow/pkg/stats"
)

// FindingKind identifies one diagnostic category.
type FindingKind string

const (
	// UnusedVariable: declared, never written beyond the declaration,
	// never read, and the type has no observable construction effects.
	UnusedVariable FindingKind = "unusedVariable"
	// UnassignedVariable: read while still unassigned.
	UnassignedVariable FindingKind = "unassignedVariable"
	// UnreadVariable: written at least once and never read.
	UnreadVariable FindingKind = "unreadVariable"
	// UnusedAllocatedMemory: initialized from an allocation primitive and
	// never dereferenced.
	UnusedAllocatedMemory FindingKind = "unusedAllocatedMemory"
	// UnusedStructMember: a record member never read on any instance
	// anywhere in the translation unit.
	UnusedStructMember FindingKind = "unusedStructMember"
	// MissingConfiguration: a type with no visible definition and no
	// whitelist entry; the affected variable's findings are suppressed.
	MissingConfiguration FindingKind = "missingConfiguration"
)

// Severity is the reporting severity of a finding.
type Severity string

const (
	SeverityStyle       Severity = "style"
	SeverityInformation Severity = "information"
)

// Finding is one reportable diagnostic instance.
type Finding struct {
	Kind     FindingKind   `json:"kind"`
	Severity Severity      `json:"severity"`
	Anchors  []ir.Position `json:"anchors"` // one or more source anchors
	Subject  string        `json:"subject"` // variable or Record::member name
	Message  string        `json:"message"`
}

// Primary returns the first anchor position.
func (f Finding) Primary() ir.Position {
	if len(f.Anchors) == 0 {
		return ir.Position{}
	}
	return f.Anchors[0]
}

// DedupeKey identifies a finding for callers that want a deduplicated view.
func (f Finding) DedupeKey() string {
	p := f.Primary()
	return fmt.Sprintf("%s|%s|%s:%d:%d", f.Kind, f.Subject, p.File, p.Line, p.Col)
}

// UnitReport holds the findings for one translation unit.
type UnitReport struct {
	Path     string    `json:"path"`
	Findings []Finding `json:"findings"`
}

// Report aggregates per-unit results for one run.
type Report struct {
	Units   []UnitReport  `json:"units"`
	Summary ReportSummary `json:"summary"`
}

// ReportSummary provides aggregate statistics.
type ReportSummary struct {
	FilesAnalyzed    int                 `json:"files_analyzed"`
	TotalFindings    int                 `json:"total_findings"`
	ByKind           map[FindingKind]int `json:"by_kind"`
	MedianPerFile    float64             `json:"median_per_file"`
	P90PerFile       float64             `json:"p90_per_file"`
	FilesWithIssues  int                 `json:"files_with_issues"`
	ParseFailures    int                 `json:"parse_failures"`
	SuppressedByGaps int                 `json:"suppressed_by_gaps"`
}

// SortFindings orders findings by source position. The engine emits
// findings in construction order; reporting order is a caller concern.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		return fs[i].Primary().Before(fs[j].Primary())
	})
}

// AddUnit appends a unit report and updates counters.
func (r *Report) AddUnit(u UnitReport) {
	if r.Summary.ByKind == nil {
		r.Summary.ByKind = make(map[FindingKind]int)
	}
	r.Units = append(r.Units, u)
	r.Summary.FilesAnalyzed++
	if len(u.Findings) > 0 {
		r.Summary.FilesWithIssues++
	}
	for _, f := range u.Findings {
		r.Summary.TotalFindings++
		r.Summary.ByKind[f.Kind]++
		if f.Kind == MissingConfiguration {
			r.Summary.SuppressedByGaps++
		}
	}
}

// Finalize sorts units by path, findings by position, and computes the
// per-file finding distribution.
func (r *Report) Finalize() {
	sort.Slice(r.Units, func(i, j int) bool { return r.Units[i].Path < r.Units[j].Path })
	counts := make([]float64, 0, len(r.Units))
	for i := range r.Units {
		SortFindings(r.Units[i].Findings)
		counts = append(counts, float64(len(r.Units[i].Findings)))
	}
	sort.Float64s(counts)
	r.Summary.MedianPerFile = stats.Percentile(counts, 50)
	r.Summary.P90PerFile = stats.Percentile(counts, 90)
}
