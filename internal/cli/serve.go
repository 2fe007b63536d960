package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/adveritas/internal/api"
)

var (
	serveAddr      string
	serveNoWorkers bool
	serveWorkers   int
	serveMaxUpload int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API together with an in-process job runner.

With queue.backend=redis, --no-workers serves the API only and leaves the
jobs to separate 'adveritas worker' processes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: http.addr)")
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "do not run jobs in this process (redis queue only)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "concurrent jobs (default: workers.count)")
	serveCmd.Flags().Int64Var(&serveMaxUpload, "max-upload", api.DefaultMaxUploadBytes, "maximum upload size in bytes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveNoWorkers && cfg.Queue.Backend != "redis" {
		return fmt.Errorf("--no-workers requires queue.backend=redis: jobs on the memory queue would never run")
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{queue: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv := api.New(a.orch, api.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        version,
		MaxUploadBytes: serveMaxUpload,
		Tracing:        cfg.Telemetry.Enabled,
	}, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	if !serveNoWorkers {
		runner := a.runner(serveWorkers)
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	fmt.Fprintf(os.Stderr, "✓ adveritas v%s listening on %s\n", version, addr)
	return g.Wait()
}
