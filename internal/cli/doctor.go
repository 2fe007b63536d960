package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that external tools and backends are reachable",
	Long: `Check the runtime environment: yt-dlp and ffmpeg on PATH, the database,
the redis queue (when configured), the transcription engine and the LLM
provider used for verdicts.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type check struct {
	name string
	err  error
	warn bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{queue: cfg.Queue.Backend == "redis"})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	checks := []check{
		{name: "yt-dlp and ffmpeg", err: a.downloader.AssertReady()},
		{name: "database (" + cfg.Database.Driver + ")", err: a.store.Ping(ctx)},
	}
	if a.redis != nil {
		checks = append(checks, check{name: "redis queue", err: a.redis.Ping(ctx).Err()})
	}
	if a.transcribe {
		checks = append(checks, check{name: "transcription (" + cfg.Transcription.Provider + ")"})
	} else {
		checks = append(checks, check{name: "transcription", err: fmt.Errorf("no provider configured"), warn: true})
	}
	switch {
	case a.generator == nil:
		checks = append(checks, check{name: "llm", err: fmt.Errorf("no provider configured"), warn: true})
	case !a.generator.IsAvailable(ctx):
		checks = append(checks, check{name: "llm (" + a.generator.Name() + ")", err: fmt.Errorf("not reachable")})
	default:
		checks = append(checks, check{name: "llm (" + a.generator.Name() + ")"})
	}

	failed := 0
	for _, c := range checks {
		switch {
		case c.err == nil:
			fmt.Printf("✓ %s\n", c.name)
		case c.warn:
			fmt.Printf("⚠ %s: %v\n", c.name, c.err)
		default:
			failed++
			fmt.Printf("✗ %s: %v\n", c.name, c.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
