package editproxy

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/doodle/idgen"
	"github.com/hazyhaar/doodle/kit"
)

// newMCPRequestID names MCP calls in logs and the audit trail.
var newMCPRequestID = idgen.Prefixed("mcp_", idgen.Default)

// RegisterMCP exposes canvas_edit on an MCP server. The tool follows the
// given variant; the server wires it with VariantEdit2 so the image is
// optional.
func (s *Service) RegisterMCP(srv *mcp.Server, v Variant) {
	tool := &mcp.Tool{
		Name:        "canvas_edit",
		Description: "Edit a canvas snapshot (or draw from scratch) with a natural-language command. Returns {editedImage, responseText}.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image":   map[string]any{"type": "string", "description": "PNG or JPEG data URL (data:image/png;base64,...)"},
				"command": map[string]any{"type": "string", "description": "Edit instruction, e.g. \"add clouds\""},
			},
			"required": []string{"command"},
		},
	}

	var endpoint kit.Endpoint = func(ctx context.Context, req any) (any, error) {
		res, err := s.Edit(ctx, v, req.(*Request))
		if err != nil {
			return nil, err
		}
		if v.PersistLocally {
			return persistedResponse{Response: res.Response, SavedFilePath: res.SavedFilePath}, nil
		}
		return res.Response, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r Request
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.RequestID(newMCPRequestID))(endpoint), decode)
}
