package mcpserver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/varflow/varflow/internal/engine"
	"github.com/varflow/varflow/internal/fileproc"
	"github.com/varflow/varflow/internal/output"
	"github.com/varflow/varflow/internal/scanner"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/models"
	"github.com/varflow/varflow/pkg/parser"
)

// CheckFilesInput selects files or directories to analyze.
type CheckFilesInput struct {
	Paths     []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to the current directory."`
	Format    string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	SafeTypes []string `json:"safe_types,omitempty" jsonschema:"Additional type names to treat as side-effect free."`
}

// CheckSourceInput analyzes an in-memory snippet.
type CheckSourceInput struct {
	Source    string   `json:"source" jsonschema:"C or C++ source code to analyze."`
	Language  string   `json:"language,omitempty" jsonschema:"Source language: c (default) or cpp."`
	Filename  string   `json:"filename,omitempty" jsonschema:"Virtual filename used in finding anchors. Defaults to snippet.c."`
	Format    string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	SafeTypes []string `json:"safe_types,omitempty" jsonschema:"Additional type names to treat as side-effect free."`
}

func getFormat(s string) output.Format {
	switch s {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return "", err
	}
	if format == output.FormatMarkdown {
		return "```\n" + string(out) + "\n```", nil
	}
	return string(out), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func handleCheckFiles(ctx context.Context, req *mcp.CallToolRequest, input CheckFilesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.Format)

	cfg := config.LoadOrDefault()
	cfg.Analysis.SafeTypes = append(cfg.Analysis.SafeTypes, input.SafeTypes...)

	paths := input.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	sc := scanner.New(cfg)
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return toolError(err.Error())
		}
		if info.IsDir() {
			found, err := sc.ScanDir(p)
			if err != nil {
				return toolError(err.Error())
			}
			files = append(files, found...)
			continue
		}
		if ok, _ := sc.ScanFile(p); ok {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return toolError("no C/C++ source files found")
	}

	eng := engine.New(cfg)
	units, errs := fileproc.MapFilesN(ctx, files, cfg.Analysis.Jobs,
		func(psr *parser.Parser, path string) (models.UnitReport, error) {
			return eng.AnalyzeFile(psr, path)
		}, nil)

	report := &models.Report{}
	for _, u := range units {
		report.AddUnit(u)
	}
	if errs != nil {
		report.Summary.ParseFailures = len(errs.Errors)
	}
	report.Finalize()

	return toolResult(report, format)
}

func handleCheckSource(ctx context.Context, req *mcp.CallToolRequest, input CheckSourceInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.Format)

	if input.Source == "" {
		return toolError("source must not be empty")
	}

	lang := parser.LangC
	if input.Language == "cpp" || input.Language == "c++" {
		lang = parser.LangCPP
	}
	filename := input.Filename
	if filename == "" {
		filename = "snippet.c"
		if lang == parser.LangCPP {
			filename = "snippet.cpp"
		}
	}
	if detected := parser.DetectLanguage(filename); input.Language == "" && detected != parser.LangUnknown {
		lang = detected
	}

	cfg := config.LoadOrDefault()
	cfg.Analysis.SafeTypes = append(cfg.Analysis.SafeTypes, input.SafeTypes...)

	psr := parser.New()
	defer psr.Close()

	eng := engine.New(cfg)
	unit, err := eng.AnalyzeSource(psr, []byte(input.Source), lang, filepath.Base(filename))
	if err != nil {
		return toolError(err.Error())
	}

	report := &models.Report{}
	report.AddUnit(unit)
	report.Finalize()

	return toolResult(report, format)
}
