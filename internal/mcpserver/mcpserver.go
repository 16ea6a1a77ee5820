// Package mcpserver exposes the query service as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"websearch-mcp/pkg/types"
)

// Version is reported to MCP clients during initialisation.
const Version = "0.1.0"

// QueryService is the surface the MCP layer needs from the orchestrator.
type QueryService interface {
	Query(ctx context.Context, agentID, query string, maxResults int) (*types.QueryResponse, error)
	FetchPage(ctx context.Context, rawURL string) (*types.PageContent, error)
}

// Server adapts the query service to the Model Context Protocol.
type Server struct {
	service QueryService
	mcp     *mcp.Server
	logger  *slog.Logger
}

// New registers the search tools on a fresh MCP server.
func New(service QueryService) *Server {
	s := &Server{
		service: service,
		logger:  slog.Default().With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "websearch-mcp",
		Version: Version,
	}, nil)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "web_search_query",
		Description: "Run a web search and return a ranked summary, results, and page previews.",
	}, s.handleQuery)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "web_search_fetch_page",
		Description: "Fetch a single web page and return its extracted text.",
	}, s.handleFetchPage)

	return s
}

// Run serves MCP requests over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type queryInput struct {
	Query      string `json:"query" jsonschema:"the search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results to return"`
	AgentID    string `json:"agent_id,omitempty" jsonschema:"identifier of the calling agent"`
}

type fetchPageInput struct {
	URL string `json:"url" jsonschema:"absolute URL of the page to fetch"`
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest, input queryInput) (*mcp.CallToolResult, any, error) {
	resp, err := s.service.Query(ctx, input.AgentID, input.Query, input.MaxResults)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	return jsonResult(resp)
}

func (s *Server) handleFetchPage(ctx context.Context, req *mcp.CallToolRequest, input fetchPageInput) (*mcp.CallToolResult, any, error) {
	page, err := s.service.FetchPage(ctx, input.URL)
	if err != nil {
		return errorResult(fmt.Sprintf("fetch failed: %v", err)), nil, nil
	}
	if page == nil {
		return errorResult("page fetching is disabled on this server"), nil, nil
	}
	return jsonResult(page)
}

func jsonResult(payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
