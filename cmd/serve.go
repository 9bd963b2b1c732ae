package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docchat/internal/agent"
	"github.com/ziadkadry99/docchat/internal/ingest"
	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/server"
	"github.com/ziadkadry99/docchat/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document chat server",
	Long:  `Starts the docchat server: websocket chat with agent modes plus a REST API for upload, search, comparison, and summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Port = servePort
		}

		st, embedder, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		llmProvider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		pipeline, err := ingest.New(st, embedder, cfg)
		if err != nil {
			return fmt.Errorf("creating ingest pipeline: %w", err)
		}
		defer pipeline.Close()

		retriever := retrieval.New(st, embedder, cfg.Retrieval)
		timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
		router := agent.NewRouter(pipeline, retriever, st, llmProvider, cfg.Model, timeout)
		sessions := session.NewRegistry()

		srv := server.New(*cfg, st, pipeline, router, sessions)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		stats, err := st.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		fmt.Fprintf(os.Stderr, "docchat server v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Data dir: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Documents indexed: %d (%d chunks)\n", stats.Documents, stats.Chunks)

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
