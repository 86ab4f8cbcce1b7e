package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varflow/varflow/internal/output"
)

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "io.github.varflow/varflow", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "ghcr.io/varflow/varflow:1.2.3", m.Packages[0].Identifier)
	assert.Equal(t, "stdio", m.Packages[0].Transport.Type)
}

func TestGenerateManifestEmptyVersion(t *testing.T) {
	data, err := GenerateManifest("")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "0.0.0", m.Version)
}

func TestGetFormat(t *testing.T) {
	assert.Equal(t, output.FormatJSON, getFormat("json"))
	assert.Equal(t, output.FormatMarkdown, getFormat("markdown"))
	assert.Equal(t, output.FormatMarkdown, getFormat("md"))
	assert.Equal(t, output.FormatTOON, getFormat("toon"))
	assert.Equal(t, output.FormatTOON, getFormat(""))
}

func TestFormatOutputMarkdownFencing(t *testing.T) {
	data := map[string]int{"n": 1}

	plain, err := formatOutput(data, output.FormatTOON)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(plain, "```"))

	fenced, err := formatOutput(data, output.FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fenced, "```"))
	assert.True(t, strings.HasSuffix(fenced, "```"))
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleCheckSource(t *testing.T) {
	result, _, err := handleCheckSource(context.Background(), nil, CheckSourceInput{
		Source: "void f(void) { int x; }\n",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, "unusedVariable")
	assert.Contains(t, text, "snippet.c")
}

func TestHandleCheckSourceEmpty(t *testing.T) {
	result, _, err := handleCheckSource(context.Background(), nil, CheckSourceInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "source must not be empty")
}

func TestHandleCheckSourceLanguageFromFilename(t *testing.T) {
	result, _, err := handleCheckSource(context.Background(), nil, CheckSourceInput{
		Source:   "void f() { int& r = *(new int); }\n",
		Filename: "snippet.cpp",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleCheckSourceSafeTypes(t *testing.T) {
	result, _, err := handleCheckSource(context.Background(), nil, CheckSourceInput{
		Source:    "void f(void) { Widget w; }\n",
		SafeTypes: []string{"Widget"},
	})
	require.NoError(t, err)

	text := textOf(t, result)
	assert.Contains(t, text, "unusedVariable")
	assert.NotContains(t, text, "missingConfiguration")
}

func TestNewServer(t *testing.T) {
	s := NewServer("1.0.0")
	require.NotNil(t, s)
}
