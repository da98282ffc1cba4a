package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/linkgraph/internal/graph"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	MergedFile string        // Merged graph to serve and watch
	Version    string        // Reported server version
	Debounce   time.Duration // Settle delay before reloading a rewritten graph
}

// DefaultServerConfig returns the configuration used when none is given.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MergedFile: "target/linkgraph/merged.lg.json",
		Version:    "dev",
		Debounce:   DefaultDebounce,
	}
}

// MCPServer serves a merged call graph to MCP clients over stdio.
type MCPServer struct {
	config   *ServerConfig
	searcher graph.Searcher
	watcher  *FileWatcher
	mcp      *server.MCPServer
}

// NewMCPServer loads the merged graph, registers the linkgraph tools and
// starts watching the graph file for rewrites.
func NewMCPServer(ctx context.Context, config *ServerConfig) (*MCPServer, error) {
	if config == nil {
		config = DefaultServerConfig()
	}

	searcher, err := graph.NewSearcher(ctx, graph.FromFile(config.MergedFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}

	mcpServer := newToolServer(config.Version, searcher)

	watcher, err := NewFileWatcher(searcher, config.MergedFile)
	if err != nil {
		searcher.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if config.Debounce > 0 {
		watcher.SetDebounce(config.Debounce)
	}

	return &MCPServer{
		config:   config,
		searcher: searcher,
		watcher:  watcher,
		mcp:      mcpServer,
	}, nil
}

// newToolServer builds an MCP server with every linkgraph tool registered.
func newToolServer(version string, querier GraphQuerier) *server.MCPServer {
	s := server.NewMCPServer(
		"linkgraph-mcp",
		version,
		server.WithToolCapabilities(true),
	)
	AddQueryTool(s, querier)
	AddFindTool(s, querier)
	return s
}

// Serve starts the MCP server and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
	s.watcher.Start(ctx)
	defer s.watcher.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases all resources.
func (s *MCPServer) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.searcher != nil {
		return s.searcher.Close()
	}
	return nil
}
