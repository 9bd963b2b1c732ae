package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/docchat/internal/mcp"
	"github.com/ziadkadry99/docchat/internal/retrieval"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document search and statistics tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, embedder, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		retriever := retrieval.New(st, embedder, cfg.Retrieval)

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "docchat MCP server started on stdio (data=%s)\n", cfg.DataDir)

		srv := mcpserver.NewServer(st, retriever)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
