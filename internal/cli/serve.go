package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/pipeline"
	"github.com/ppiankov/negcheck/internal/server"
)

var (
	serveAddr  string
	serveFetch fetchFlags
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API over HTTP",
	Long: `Serve exposes report analysis over HTTP:
  POST /analyze-report   multipart field "file", returns the JSON summary
  POST /export-excel     multipart field "file", returns the xlsx workbook
  GET  /health
  GET  /metrics          Prometheus metrics

Example:
  negcheck serve
  negcheck serve --addr 127.0.0.1:8080 --workers 4`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :4000)")
	serveFetch.register(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	serveFetch.apply(cmd, cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := notifyContext()
	defer stop()

	fmt.Fprintf(os.Stderr, "✓ negcheck v%s listening on %s (%d workers per request)\n",
		version, cfg.Server.Addr, cfg.Concurrency.Workers)

	srv := server.New(pipeline.NewPipeline(cfg), cfg.Server)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
