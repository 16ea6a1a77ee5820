// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"websearch-mcp/internal/limiter"
	"websearch-mcp/pkg/types"
)

// QueryService is the surface the HTTP layer needs from the orchestrator.
type QueryService interface {
	Query(ctx context.Context, agentID, query string, maxResults int) (*types.QueryResponse, error)
	FetchPage(ctx context.Context, rawURL string) (*types.PageContent, error)
}

// Server exposes the HTTP API for executing searches and page fetches.
type Server struct {
	service QueryService
	mux     *http.ServeMux
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(service QueryService) *Server {
	s := &Server{
		service: service,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/v1/search", s.handleSearch)
	s.mux.HandleFunc("/v1/page", s.handlePage)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

type searchRequest struct {
	Query      string `json:"query"`
	AgentID    string `json:"agent_id"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.AgentID = q.Get("agent_id")
		if raw := q.Get("max_results"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "max_results must be an integer", http.StatusBadRequest)
				return
			}
			req.MaxResults = n
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid json payload: %v", err), http.StatusBadRequest)
			return
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	resp, err := s.service.Query(r.Context(), req.AgentID, req.Query, req.MaxResults)
	if err != nil {
		var quotaErr *limiter.QuotaError
		if errors.As(err, &quotaErr) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": quotaErr.Error(),
				"kind":  string(quotaErr.Kind),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	rawURL := r.URL.Query().Get("url")
	if strings.TrimSpace(rawURL) == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	page, err := s.service.FetchPage(r.Context(), rawURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if page == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
