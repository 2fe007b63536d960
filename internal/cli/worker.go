package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCount int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume stage jobs from the redis queue",
	Long: `Run a job runner against the shared redis stream. Several workers may run
side by side; each job is delivered to one consumer of the group and
redelivered if that consumer dies before acknowledging it.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "concurrent jobs (default: workers.count)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Queue.Backend != "redis" {
		return fmt.Errorf("worker requires queue.backend=redis (got %q); use 'adveritas serve' for the in-process queue", cfg.Queue.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{queue: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Fprintf(os.Stderr, "✓ worker %s consuming %s\n", consumerName(), cfg.Queue.Stream)
	return a.runner(workerCount).Run(ctx)
}
