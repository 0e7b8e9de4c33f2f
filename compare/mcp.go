package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/vitrine/kit"
)

// RegisterMCP registers the comparison tool on an MCP server.
func (c *Comparer) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vitrine_compare",
		Description: "Compare two local documents (pdf, html, txt) and return a line-level diff.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"left_path":  map[string]any{"type": "string", "description": "Path of the base document"},
				"right_path": map[string]any{"type": "string", "description": "Path of the changed document"},
			},
			"required": []string{"left_path", "right_path"},
		},
	}

	type compareReq struct {
		LeftPath  string `json:"left_path"`
		RightPath string `json:"right_path"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*compareReq)
		left, err := os.Open(r.LeftPath)
		if err != nil {
			return nil, fmt.Errorf("compare: open left: %w", err)
		}
		defer left.Close()
		right, err := os.Open(r.RightPath)
		if err != nil {
			return nil, fmt.Errorf("compare: open right: %w", err)
		}
		defer right.Close()

		return c.Compare(ctx,
			Source{Name: r.LeftPath, Reader: left},
			Source{Name: r.RightPath, Reader: right},
		)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r compareReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
