package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/varflow/varflow/internal/cache"
	"github.com/varflow/varflow/internal/engine"
	"github.com/varflow/varflow/internal/fileproc"
	"github.com/varflow/varflow/internal/output"
	"github.com/varflow/varflow/internal/progress"
	"github.com/varflow/varflow/internal/scanner"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/models"
	"github.com/varflow/varflow/pkg/parser"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Analyze C/C++ files for variable usage defects",
		ArgsUsage: "[path...]",
		Description: `Analyzes the given files and directories (default: current directory)
and reports unused variables, reads of never-assigned variables, dead
stores, never-dereferenced allocations, and unused struct members.

Results are cached per file; a changed file, changed configuration, or
expired entry triggers reanalysis.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Maximum parallel workers (0 = 2x CPU count)",
			},
			&cli.StringSliceFlag{
				Name:  "safe-type",
				Usage: "Additional type name to treat as side-effect free (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-members",
				Usage: "Skip the unused struct member check",
			},
			&cli.StringSliceFlag{
				Name:  "severity",
				Usage: "Report only findings of the given severity (repeatable: style, information)",
			},
			&cli.BoolFlag{
				Name:  "fail-on-findings",
				Usage: "Exit with code 1 when any finding is reported",
			},
		},
		Action: runCheck,
	}
}

func runCheck(c *cli.Context) error {
	result, err := config.LoadConfig(config.WithPath(c.String("config")))
	if err != nil {
		return err
	}
	cfg := result.Config

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.IsSet("jobs") {
		cfg.Analysis.Jobs = c.Int("jobs")
	}
	if c.Bool("no-members") {
		cfg.Analysis.CheckUnusedMembers = false
	}
	cfg.Analysis.SafeTypes = append(cfg.Analysis.SafeTypes, c.StringSlice("safe-type")...)

	files, err := collectFiles(cfg, getPaths(c))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No C/C++ source files found")
		return nil
	}

	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	cfgKey := configKey(cfg)

	eng := engine.New(cfg)

	var tracker *progress.Tracker
	var onProgress fileproc.ProgressFunc
	if output.ParseFormat(cfg.Output.Format) == output.FormatText && c.String("output") == "" {
		tracker = progress.NewTracker("Analyzing", len(files))
		onProgress = tracker.Tick
	}

	units, errs := fileproc.MapFilesN(context.Background(), files, cfg.Analysis.Jobs,
		func(psr *parser.Parser, path string) (models.UnitReport, error) {
			hash, hashErr := cache.HashFile(path)
			if hashErr == nil {
				if unit, ok := store.GetReport(path+":"+cfgKey, hash); ok {
					return unit, nil
				}
			}

			unit, err := eng.AnalyzeFile(psr, path)
			if err != nil {
				return unit, err
			}
			if hashErr == nil {
				_ = store.PutReport(path+":"+cfgKey, hash, unit)
			}
			return unit, nil
		}, onProgress)
	if tracker != nil {
		tracker.FinishSuccess()
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })

	report := &models.Report{}
	keep := severityFilter(c.StringSlice("severity"))
	for _, u := range units {
		u.Findings = filterFindings(u.Findings, keep)
		report.AddUnit(u)
	}
	if errs != nil {
		report.Summary.ParseFailures = len(errs.Errors)
	}
	report.Finalize()

	if errs != nil && cfg.Output.Verbose {
		for _, e := range errs.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		}
	}

	formatter, err := output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(&output.FindingsReport{Report: report, Verbose: cfg.Output.Verbose}); err != nil {
		return err
	}

	if c.Bool("fail-on-findings") && report.Summary.TotalFindings > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// collectFiles expands paths into the deduplicated list of analyzable files.
func collectFiles(cfg *config.Config, paths []string) ([]string, error) {
	sc := scanner.New(cfg)

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := sc.ScanDir(p)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
			continue
		}
		if ok, err := sc.ScanFile(p); err != nil {
			return nil, err
		} else if ok {
			add(p)
		}
	}
	return files, nil
}

// severityFilter builds a predicate from --severity values. An empty
// selection keeps everything.
func severityFilter(values []string) func(models.Finding) bool {
	if len(values) == 0 {
		return func(models.Finding) bool { return true }
	}
	wanted := make(map[models.Severity]bool, len(values))
	for _, v := range values {
		wanted[models.Severity(v)] = true
	}
	return func(f models.Finding) bool { return wanted[f.Severity] }
}

func filterFindings(fs []models.Finding, keep func(models.Finding) bool) []models.Finding {
	out := fs[:0]
	for _, f := range fs {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// configKey folds the effective analysis settings and the binary version
// into the cache key so configuration changes invalidate cached reports.
func configKey(cfg *config.Config) string {
	data, err := json.Marshal(cfg.Analysis)
	if err != nil {
		return version
	}
	return cache.HashBytes(append(data, []byte(version)...))
}
