package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/varflow/varflow/pkg/models"
)

// FindingsReport renders a finalized analysis report in every supported
// format. Text output follows the conventional compiler diagnostic shape
// so editors can jump to the anchors.
type FindingsReport struct {
	Report  *models.Report
	Verbose bool
}

// RenderData exposes the raw report for JSON and TOON serialization.
func (r *FindingsReport) RenderData() any {
	return r.Report
}

// RenderText writes findings as file:line:col diagnostics plus a summary.
func (r *FindingsReport) RenderText(w io.Writer, colored bool) error {
	styleColor := color.New(color.FgYellow)
	infoColor := color.New(color.FgCyan)
	dimColor := color.New(color.Faint)

	for _, unit := range r.Report.Units {
		for _, f := range unit.Findings {
			p := f.Primary()
			sev := string(f.Severity)
			if colored {
				c := styleColor
				if f.Severity == models.SeverityInformation {
					c = infoColor
				}
				fmt.Fprintf(w, "%s:%d:%d: %s: %s %s\n",
					p.File, p.Line, p.Col, c.Sprint(sev), f.Message, dimColor.Sprintf("[%s]", f.Kind))
			} else {
				fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n",
					p.File, p.Line, p.Col, sev, f.Message, f.Kind)
			}
			for _, extra := range f.Anchors[1:] {
				fmt.Fprintf(w, "%s:%d:%d: note: see also\n", extra.File, extra.Line, extra.Col)
			}
		}
	}

	s := r.Report.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d findings in %d of %d files\n",
		s.TotalFindings, s.FilesWithIssues, s.FilesAnalyzed)
	if r.Verbose {
		if len(s.ByKind) > 0 {
			fmt.Fprintln(w)
			if err := kindTable(s.ByKind).RenderText(w, colored); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "median per file %.1f, p90 %.1f\n", s.MedianPerFile, s.P90PerFile)
		if s.ParseFailures > 0 {
			fmt.Fprintf(w, "%d files failed to parse\n", s.ParseFailures)
		}
	}
	return nil
}

// kindTable tabulates finding counts per kind in a fixed order.
func kindTable(byKind map[models.FindingKind]int) *Table {
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		rows = append(rows, []string{k, strconv.Itoa(byKind[models.FindingKind(k)])})
	}
	return NewTable("", []string{"Kind", "Count"}, rows, nil, nil)
}

// RenderMarkdown writes findings as a per-file table document.
func (r *FindingsReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintln(w, "# Variable Usage Findings")
	fmt.Fprintln(w)

	for _, unit := range r.Report.Units {
		if len(unit.Findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "## %s\n\n", unit.Path)
		fmt.Fprintln(w, "| Line | Kind | Subject | Message |")
		fmt.Fprintln(w, "| --- | --- | --- | --- |")
		for _, f := range unit.Findings {
			p := f.Primary()
			fmt.Fprintf(w, "| %d:%d | %s | `%s` | %s |\n",
				p.Line, p.Col, f.Kind, f.Subject, escapePipes(f.Message))
		}
		fmt.Fprintln(w)
	}

	s := r.Report.Summary
	fmt.Fprintf(w, "**%d findings** across %d files (%d clean).\n",
		s.TotalFindings, s.FilesAnalyzed, s.FilesAnalyzed-s.FilesWithIssues)
	return nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
