// Package engine runs the full per-unit analysis pipeline: parse, lower,
// index symbols, walk every function concurrently, then classify variable
// and member usage into findings.
package engine

import (
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/varflow/varflow/internal/diagnose"
	"github.com/varflow/varflow/internal/effects"
	"github.com/varflow/varflow/internal/frontend"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/internal/walker"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/ir"
	"github.com/varflow/varflow/pkg/models"
	"github.com/varflow/varflow/pkg/parser"
)

// Engine analyzes translation units against one loaded configuration.
type Engine struct {
	cfg *config.Config
}

// New creates an engine. A nil config falls back to defaults.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// AnalyzeFile parses and analyzes one file with the given parser.
func (e *Engine) AnalyzeFile(psr *parser.Parser, path string) (models.UnitReport, error) {
	res, err := psr.ParseFile(path)
	if err != nil {
		return models.UnitReport{Path: path}, err
	}
	return e.AnalyzeParsed(res), nil
}

// AnalyzeSource analyzes in-memory source, mainly for tests and the MCP
// surface.
func (e *Engine) AnalyzeSource(psr *parser.Parser, source []byte, lang parser.Language, path string) (models.UnitReport, error) {
	res, err := psr.Parse(source, lang, path)
	if err != nil {
		return models.UnitReport{Path: path}, err
	}
	return e.AnalyzeParsed(res), nil
}

// AnalyzeParsed runs the pipeline on an already parsed unit. Functions are
// walked concurrently; every verdict rests on monotone state, so the
// findings do not depend on worker scheduling.
func (e *Engine) AnalyzeParsed(res *parser.ParseResult) models.UnitReport {
	unit := frontend.Lower(res)
	syms := symbols.Build(unit, e.cfg)
	cls := effects.NewClassifier(syms)
	tracker := members.NewTracker()

	var defined []*ir.Function
	for _, fn := range unit.Functions {
		if fn.Defined() {
			defined = append(defined, fn)
		}
	}

	jobs := e.cfg.Analysis.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU() * 2
	}

	var (
		mu       sync.Mutex
		findings []models.Finding
		gaps     = make(map[string]ir.Position)
	)

	p := pool.New().WithMaxGoroutines(jobs)
	for _, fn := range defined {
		p.Go(func() {
			w := walker.New(syms, cls, tracker)
			result := w.Walk(fn)
			fs := diagnose.FromFunction(syms, result)

			mu.Lock()
			findings = append(findings, fs...)
			for name, at := range result.GapTypes {
				if prev, ok := gaps[name]; !ok || at.Before(prev) {
					gaps[name] = at
				}
			}
			mu.Unlock()
		})
	}
	p.Wait()

	if e.cfg.Analysis.CheckUnusedMembers {
		verdicts := tracker.Finalize(syms.Records())
		isUnion := func(name string) bool {
			rec, ok := syms.Record(name)
			return ok && rec.Union
		}
		findings = append(findings, diagnose.FromMembers(isUnion, verdicts)...)
	}

	findings = append(findings, diagnose.FromGaps(gaps)...)
	models.SortFindings(findings)

	return models.UnitReport{Path: res.Path, Findings: findings}
}
