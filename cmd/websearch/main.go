package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"websearch-mcp/internal/app"
	"websearch-mcp/internal/config"
	"websearch-mcp/internal/mcpserver"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to gateway configuration file")
	query := flag.String("query", "", "Execute one search query and print the JSON response")
	agentID := flag.String("agent-id", "", "Agent identifier for admission accounting")
	maxResults := flag.Int("max-results", 0, "Maximum number of search results")
	fetchURL := flag.String("fetch-url", "", "Fetch one page and print its extracted text")
	serveStdio := flag.Bool("serve-stdio", false, "Serve MCP tools over stdio")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	gateway, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise gateway: %v\n", err)
		os.Exit(1)
	}
	defer gateway.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *serveStdio:
		server := mcpserver.New(gateway.Service)
		if err := server.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "mcp server stopped with error: %v\n", err)
			os.Exit(1)
		}
	case *fetchURL != "":
		page, err := gateway.Service.FetchPage(ctx, *fetchURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
			os.Exit(1)
		}
		if page == nil {
			fmt.Fprintln(os.Stderr, "page fetching is disabled in the configuration")
			os.Exit(1)
		}
		printJSON(page)
	case *query != "":
		resp, err := gateway.Service.Query(ctx, *agentID, *query, *maxResults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			os.Exit(1)
		}
		printJSON(resp)
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -query, -fetch-url, or -serve-stdio")
		flag.Usage()
		os.Exit(2)
	}
}

func printJSON(payload any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
