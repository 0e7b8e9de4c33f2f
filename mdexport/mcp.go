package mdexport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/vitrine/kit"
)

// RegisterMCP registers the HTML-to-markdown tool on an MCP server.
func (c *Converter) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vitrine_html_to_markdown",
		Description: "Sanitize an HTML fragment and convert it to markdown.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"html":       map[string]any{"type": "string", "description": "HTML fragment to convert"},
				"source_url": map[string]any{"type": "string", "description": "Optional base URL for resolving relative links"},
			},
			"required": []string{"html"},
		},
	}

	type convertReq struct {
		HTML      string `json:"html"`
		SourceURL string `json:"source_url"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*convertReq)
		markdown, err := c.Convert(r.HTML, r.SourceURL)
		if err != nil {
			return nil, err
		}
		if markdown == "" {
			return nil, fmt.Errorf("mdexport: nothing to convert")
		}
		return map[string]string{"markdown": markdown}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r convertReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
