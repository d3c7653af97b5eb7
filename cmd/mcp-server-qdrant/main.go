// Command mcp-server-qdrant is an MCP server that stores and retrieves
// memories in Qdrant.
//
// Usage:
//
//	# stdio, for clients that spawn the server
//	QDRANT_URL=http://localhost:6333 COLLECTION_NAME=notes mcp-server-qdrant
//
//	# streamable HTTP on SERVER_HOST:SERVER_PORT, endpoint /mcp
//	mcp-server-qdrant --transport streamable-http
//
//	# legacy SSE, endpoint /sse
//	mcp-server-qdrant --transport sse
//
// Configuration comes from the environment and an optional --config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Transports accepted by --transport.
const (
	transportStdio          = "stdio"
	transportSSE            = "sse"
	transportStreamableHTTP = "streamable-http"
)

// ErrInvalidTransport is returned for an unknown --transport value.
var ErrInvalidTransport = errors.New("invalid transport")

type options struct {
	transport  string
	configPath string
}

func validateTransport(t string) error {
	switch t {
	case transportStdio, transportSSE, transportStreamableHTTP:
		return nil
	default:
		return fmt.Errorf("%w %q (must be one of %s, %s, %s)",
			ErrInvalidTransport, t, transportStdio, transportSSE, transportStreamableHTTP)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mcp-server-qdrant",
		Short: "MCP server for storing and retrieving memories in Qdrant",
		Long: `mcp-server-qdrant exposes a semantic memory backed by Qdrant over the
Model Context Protocol.

Tools:
  store, find                  configurable memory tools
  memory_upsert, memory_query  long-term memory tools

Settings are read from the environment (QDRANT_URL, COLLECTION_NAME,
EMBEDDING_PROVIDER, ...) and optionally from a YAML or TOML file.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateTransport(opts.transport)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio,
		"transport protocol: stdio, sse or streamable-http")
	cmd.Flags().StringVar(&opts.configPath, "config", "",
		"config file (YAML or TOML) under ~/.config/mcp-server-qdrant or /etc/mcp-server-qdrant")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mcp-server-qdrant by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
