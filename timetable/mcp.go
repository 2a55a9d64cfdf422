package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mykonosbus/kit"
)

// RegisterMCP registers the timetable tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListTool(srv)
	s.registerRouteTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type listResponse struct {
	FetchedAt time.Time                `json:"fetchedAt"`
	State     State                    `json:"state"`
	Routes    map[string]RouteSchedule `json:"routes"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timetables_list",
		Description: "List the current bus timetables of every Mykonos route. Routes without a timetable carry a message instead of times.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		v, err := s.Timetables(ctx)
		if err != nil {
			return nil, err
		}
		return listResponse{FetchedAt: v.Set.FetchedAt, State: v.State, Routes: v.Set.Routes}, nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolMiddleware(tool.Name)(endpoint), decode)
}

type routeRequest struct {
	Route string `json:"route"`
}

type routeResponse struct {
	Route     string        `json:"route"`
	FetchedAt time.Time     `json:"fetchedAt"`
	State     State         `json:"state"`
	Schedule  RouteSchedule `json:"schedule"`
}

func (s *Service) registerRouteTool(srv *mcp.Server) {
	names := make([]any, 0, s.cfg.Catalog.Len())
	for _, r := range s.cfg.Catalog.Routes() {
		names = append(names, r.CanonicalName)
	}
	tool := &mcp.Tool{
		Name:        "timetables_route",
		Description: "Get the departure times of one route by its name, e.g. \"fabrika (mykonos town) - airport\".",
		InputSchema: inputSchema(map[string]any{
			"route": map[string]any{"type": "string", "description": "Route name (case-insensitive)", "examples": names},
		}, []string{"route"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*routeRequest)
		sched, v, err := s.Route(ctx, r.Route)
		if err != nil {
			return nil, err
		}
		route, _ := s.cfg.Catalog.ByName(r.Route)
		return routeResponse{
			Route:     route.CanonicalName,
			FetchedAt: v.Set.FetchedAt,
			State:     v.State,
			Schedule:  sched,
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r routeRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		if r.Route == "" {
			return nil, errors.New("route is required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolMiddleware(tool.Name)(endpoint), decode)
}

// toolMiddleware logs each call and caps the caller's wait slightly above one
// pass so a stuck render never pins an MCP session.
func (s *Service) toolMiddleware(name string) kit.Middleware {
	return kit.Chain(
		kit.Logging(s.logger, name),
		kit.Timeout(s.cfg.PassTimeout+10*time.Second),
	)
}
