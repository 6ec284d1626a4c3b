// Command code-runner is an MCP stdio server that exposes the CodeCollab
// execution engine as tools.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/codecollab/internal/config"
	"github.com/michaelbrown/codecollab/internal/executor"
)

// maxResultText bounds what is handed back to the model.
const maxResultText = 4000

type codeRunner struct {
	runner *executor.Runner
}

func main() {
	// Logging stays disabled: stdout carries the protocol.
	cfg, err := config.Load(os.Getenv("CODECOLLAB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	s := newServer(executor.NewFromConfig(cfg.Execution))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(runner *executor.Runner) *server.MCPServer {
	cr := &codeRunner{runner: runner}
	s := server.NewMCPServer("codecollab-code-runner", "0.1.0",
		server.WithToolCapabilities(true),
	)

	var langs []string
	for _, tc := range runner.Registry().Toolchains() {
		langs = append(langs, string(tc.Language))
	}

	s.AddTool(mcp.NewTool("code_run",
		mcp.WithDescription(fmt.Sprintf(
			"Run a code snippet, or validate it for markup and stylesheet languages. Supported languages: %s.",
			strings.Join(langs, ", "))),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Language name or alias (python, js, c++, ...)"),
		),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source code to execute"),
		),
	), cr.handleCodeRun)

	s.AddTool(mcp.NewTool("code_languages",
		mcp.WithDescription("List supported languages with their execution kind and file extension"),
	), cr.handleLanguages)

	return s
}

func (cr *codeRunner) handleCodeRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, err := request.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := cr.runner.Run(ctx, executor.Request{Source: code, Language: language})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error: %v", err)), nil
	}

	text := truncate(out.Text, maxResultText)
	if !out.OK() {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", out.Kind, text)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (cr *codeRunner) handleLanguages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, tc := range cr.runner.Registry().Toolchains() {
		fmt.Fprintf(&b, "%s (%s, %s)\n", tc.Language, tc.Kind, tc.Extension)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (output truncated)"
}
