package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"websearch-mcp/pkg/types"
)

type fakeService struct {
	resp *types.QueryResponse
	page *types.PageContent
	err  error
}

func (f *fakeService) Query(ctx context.Context, agentID, query string, maxResults int) (*types.QueryResponse, error) {
	return f.resp, f.err
}

func (f *fakeService) FetchPage(ctx context.Context, rawURL string) (*types.PageContent, error) {
	return f.page, f.err
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want *mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestHandleQueryReturnsJSON(t *testing.T) {
	svc := &fakeService{resp: &types.QueryResponse{
		Summary: types.Summary{Overview: "Rain expected.", Highlights: []string{}},
		Results: []types.SearchHit{{Title: "Weather", URL: "https://weather.com", Snippet: "Rain expected."}},
	}}
	server := New(svc)

	result, _, err := server.handleQuery(context.Background(), nil, queryInput{Query: "london weather"})
	if err != nil {
		t.Fatalf("handleQuery: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	var resp types.QueryResponse
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if resp.Summary.Overview != "Rain expected." {
		t.Errorf("overview = %q", resp.Summary.Overview)
	}
}

func TestHandleQueryReportsErrorInResult(t *testing.T) {
	server := New(&fakeService{err: errors.New("quota exceeded")})

	result, _, err := server.handleQuery(context.Background(), nil, queryInput{Query: "anything"})
	if err != nil {
		t.Fatalf("handleQuery: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError result")
	}
}

func TestHandleFetchPageDisabled(t *testing.T) {
	server := New(&fakeService{})

	result, _, err := server.handleFetchPage(context.Background(), nil, fetchPageInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("handleFetchPage: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError result when fetching is disabled")
	}
}

func TestHandleFetchPageReturnsContent(t *testing.T) {
	server := New(&fakeService{page: &types.PageContent{URL: "https://example.com", StatusCode: 200, Text: "hello"}})

	result, _, err := server.handleFetchPage(context.Background(), nil, fetchPageInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("handleFetchPage: %v", err)
	}
	var page types.PageContent
	if err := json.Unmarshal([]byte(resultText(t, result)), &page); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if page.Text != "hello" {
		t.Errorf("text = %q", page.Text)
	}
}
