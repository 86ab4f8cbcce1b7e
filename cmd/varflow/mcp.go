package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/varflow/varflow/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start the Model Context Protocol server",
		Description: `Starts an MCP server over stdio, exposing varflow's analysis to
LLM-based tools.

Available tools:
  check_files   - Analyze files or directories for variable usage defects
  check_source  - Analyze an in-memory C/C++ snippet

The server communicates over stdin/stdout and runs until the client
disconnects.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the MCP server manifest (server.json) and exit",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("manifest") {
				data, err := mcpserver.GenerateManifest(version)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			server := mcpserver.NewServer(version)
			return server.Run(context.Background())
		},
	}
}
