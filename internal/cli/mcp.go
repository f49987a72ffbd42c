package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/config"
	primegatemcp "github.com/primegate/primegate/internal/mcp"
)

var mcpWatch bool

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "Reload the governor when the config file changes")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs primegate as an MCP (Model Context Protocol) server over stdio.\nExposes the governance tools: govern, tickets, pending, resolve, stats.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := primegatemcp.New(cmd.Context(), primegatemcp.Config{ConfigPath: configPath})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	if mcpWatch {
		go func() {
			err := config.Watch(ctx, configPath, func() {
				if err := srv.Reload(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "config reload failed: %v\n", err)
					return
				}
				fmt.Fprintln(os.Stderr, "config reloaded")
			})
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "config watch stopped: %v\n", err)
			}
		}()
	}

	return srv.Run(ctx)
}
