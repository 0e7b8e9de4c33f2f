package snapstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/vitrine/kit"
)

// RegisterMCP registers the saved-state inspection tool on an MCP server.
// Without a key the tool lists the profile's saved states; with one it
// returns the stored snapshot itself.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vitrine_saved_states",
		Description: "List a profile's saved annotation states, or fetch one snapshot by key.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"profile": map[string]any{"type": "string", "description": "Profile ID the states belong to"},
				"key":     map[string]any{"type": "string", "description": "Optional saved-state key to fetch"},
			},
			"required": []string{"profile"},
		},
	}

	type statesReq struct {
		Profile string `json:"profile"`
		Key     string `json:"key"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*statesReq)
		if r.Profile == "" {
			return nil, fmt.Errorf("snapstore: profile is required")
		}
		if r.Key != "" {
			blob, err := s.Load(ctx, r.Profile, r.Key)
			if err != nil {
				return nil, err
			}
			return map[string]any{"key": r.Key, "state": json.RawMessage(blob)}, nil
		}
		states, err := s.List(ctx, r.Profile)
		if err != nil {
			return nil, err
		}
		return map[string]any{"states": states}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r statesReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
