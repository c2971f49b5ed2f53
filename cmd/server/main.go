package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sandrender/internal/infrastructure/config"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/server"
)

// shutdownTimeout bounds the drain of in-flight renders.
const shutdownTimeout = 15 * time.Second

var (
	port string
	dev  bool
)

var rootCmd = &cobra.Command{
	Use:   "sandrender",
	Short: "sandrender serves EJS-style templates from a sandboxed JavaScript runtime",
	Long: `sandrender renders templates whose code runs in an isolated JavaScript VM.
Templates may call the outbound HTTP, include, cookie and redirect capabilities.

Configuration is read from environment variables; flags override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&port, "port", "", "Server port (overrides PORT)")
	rootCmd.Flags().BoolVar(&dev, "dev", false, "Development mode: console logs at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		_ = srv.Shutdown(context.Background())
		return err
	}
}
