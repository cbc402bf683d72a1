package mcpserver

import (
	"bytes"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
)

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return def
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, def bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return def
	}
	return v
}

// listArg splits a comma-separated argument, dropping blanks.
func listArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	for _, part := range strings.Split(req.GetString(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := report.Encode(&buf, report.FormatJSON, v); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}
