package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"websearch-mcp/internal/limiter"
	"websearch-mcp/pkg/types"
)

type fakeService struct {
	resp *types.QueryResponse
	page *types.PageContent
	err  error

	lastAgentID    string
	lastQuery      string
	lastMaxResults int
}

func (f *fakeService) Query(ctx context.Context, agentID, query string, maxResults int) (*types.QueryResponse, error) {
	f.lastAgentID = agentID
	f.lastQuery = query
	f.lastMaxResults = maxResults
	return f.resp, f.err
}

func (f *fakeService) FetchPage(ctx context.Context, rawURL string) (*types.PageContent, error) {
	return f.page, f.err
}

func sampleResponse() *types.QueryResponse {
	return &types.QueryResponse{
		Summary: types.Summary{Overview: "Rain expected.", Highlights: []string{"Mild temperatures."}},
		Results: []types.SearchHit{
			{Title: "Weather", URL: "https://weather.com/london", Snippet: "Rain expected."},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(&fakeService{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status field = %v, want ok", payload["status"])
	}
}

func TestSearchGetPassesParameters(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	server := NewServer(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/search?query=london+weather&agent_id=agent-7&max_results=3", nil)
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuery != "london weather" || svc.lastAgentID != "agent-7" || svc.lastMaxResults != 3 {
		t.Errorf("service called with %q/%q/%d", svc.lastQuery, svc.lastAgentID, svc.lastMaxResults)
	}
	var resp types.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Overview != "Rain expected." {
		t.Errorf("overview = %q", resp.Summary.Overview)
	}
}

func TestSearchPostBody(t *testing.T) {
	svc := &fakeService{resp: sampleResponse()}
	server := NewServer(svc)

	body := strings.NewReader(`{"query":"london weather","agent_id":"agent-2","max_results":7}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/search", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastMaxResults != 7 || svc.lastAgentID != "agent-2" {
		t.Errorf("service called with %q/%d", svc.lastAgentID, svc.lastMaxResults)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	server := NewServer(&fakeService{resp: sampleResponse()})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchRejectsBadMaxResults(t *testing.T) {
	server := NewServer(&fakeService{resp: sampleResponse()})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search?query=x&max_results=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchQuotaErrorMapsTo429(t *testing.T) {
	svc := &fakeService{err: &limiter.QuotaError{Kind: limiter.GlobalRate, Limit: 60}}
	server := NewServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search?query=london", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["kind"] != string(limiter.GlobalRate) {
		t.Errorf("kind = %v, want %s", payload["kind"], limiter.GlobalRate)
	}
}

func TestSearchUpstreamErrorMapsTo502(t *testing.T) {
	svc := &fakeService{err: errors.New("upstream down")}
	server := NewServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search?query=london", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestPageEndpoint(t *testing.T) {
	svc := &fakeService{page: &types.PageContent{URL: "https://example.com", StatusCode: 200, Text: "hello"}}
	server := NewServer(svc)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/page?url=https%3A%2F%2Fexample.com", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var page types.PageContent
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Text != "hello" {
		t.Errorf("text = %q", page.Text)
	}
}

func TestPageDisabledReturns404(t *testing.T) {
	server := NewServer(&fakeService{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/page?url=https%3A%2F%2Fexample.com", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPageRequiresURL(t *testing.T) {
	server := NewServer(&fakeService{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/page", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(&fakeService{})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/search", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Errorf("Allow header = %q", allow)
	}
}
