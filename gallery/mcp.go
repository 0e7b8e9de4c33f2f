package gallery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/vitrine/kit"
)

// RegisterMCP registers the catalog browsing tool on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vitrine_samples",
		Description: "List the gallery's demo samples, optionally filtered by category, or fetch one by id.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":       map[string]any{"type": "string", "description": "Sample id to fetch"},
				"category": map[string]any{"type": "string", "description": "Filter the listing by category"},
			},
		},
	}

	type samplesReq struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*samplesReq)
		if r.ID != "" {
			sample, ok := s.catalog.Get(r.ID)
			if !ok {
				return nil, fmt.Errorf("gallery: unknown sample %q", r.ID)
			}
			return sample, nil
		}

		samples := s.catalog.List()
		if r.Category != "" {
			filtered := samples[:0]
			for _, smp := range samples {
				if smp.Category == r.Category {
					filtered = append(filtered, smp)
				}
			}
			samples = filtered
		}
		return map[string]any{
			"samples":    samples,
			"categories": s.catalog.Categories(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r samplesReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
