package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFS embed.FS

// promptMeta is the YAML frontmatter carried by each prompt file.
type promptMeta struct {
	Description string `yaml:"description"`
}

// registerPrompts exposes every embedded markdown prompt. The file name
// minus extension becomes the prompt name.
func (s *Server) registerPrompts() {
	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		raw, err := promptFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			continue
		}

		meta, body := splitFrontmatter(raw)
		s.server.AddPrompt(&mcp.Prompt{
			Name:        strings.TrimSuffix(entry.Name(), ".md"),
			Description: meta.Description,
		}, promptHandler(meta.Description, body))
	}
}

// splitFrontmatter separates the leading `---` YAML block from the prompt
// body. Files without frontmatter are served whole.
func splitFrontmatter(raw []byte) (promptMeta, string) {
	var meta promptMeta

	if !bytes.HasPrefix(raw, []byte("---\n")) {
		return meta, string(raw)
	}
	rest := raw[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return meta, string(raw)
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return promptMeta{}, string(raw)
	}
	body := strings.TrimPrefix(string(rest[end+len("\n---\n"):]), "\n")
	return meta, body
}

func promptHandler(description, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: body},
				},
			},
		}, nil
	}
}
