package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/adveritas/internal/evidence"
	"github.com/ppiankov/adveritas/internal/model"
)

var (
	corpusPath string
	corpusTopK int
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the local reference corpus used as an offline evidence source",
	Long: `Manage the local full-text corpus searched alongside Wikipedia and NewsAPI.

Documents are JSON lines with id, title, url and text fields:
  {"id":"who-2023","title":"WHO report","url":"https://...","text":"..."}

The corpus is used by the evidence stage when evidence.corpus_path is set.`,
}

var corpusIndexCmd = &cobra.Command{
	Use:   "index <file.jsonl>",
	Short: "Index reference documents from a JSON lines file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		corpus, cfg, err := openCorpus()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := corpus.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close corpus: %w", closeErr)
			}
		}()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open documents: %w", err)
		}
		defer func() { _ = f.Close() }()

		n, err := corpus.IndexJSONL(f)
		if err != nil {
			return fmt.Errorf("index documents: %w", err)
		}
		total, err := corpus.Count()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Indexed %d documents into %s (%d total)\n", n, cfg.CorpusPath, total)
		return nil
	},
}

var corpusSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus the way the evidence stage does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		corpus, _, err := openCorpus()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := corpus.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close corpus: %w", closeErr)
			}
		}()

		hits, err := corpus.Search(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

func init() {
	corpusCmd.PersistentFlags().StringVar(&corpusPath, "path", "", "index directory (default: evidence.corpus_path)")
	corpusSearchCmd.Flags().IntVar(&corpusTopK, "top", 0, "maximum hits (default: evidence.corpus_topk)")
	corpusCmd.AddCommand(corpusIndexCmd)
	corpusCmd.AddCommand(corpusSearchCmd)
	rootCmd.AddCommand(corpusCmd)
}

func openCorpus() (*evidence.Corpus, model.EvidenceConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, model.EvidenceConfig{}, err
	}
	ev := cfg.Evidence
	if corpusPath != "" {
		ev.CorpusPath = corpusPath
	}
	if corpusTopK > 0 {
		ev.CorpusTopK = corpusTopK
	}
	if ev.CorpusPath == "" {
		return nil, ev, fmt.Errorf("no corpus path: set evidence.corpus_path or pass --path")
	}
	corpus, err := evidence.OpenCorpus(ev.CorpusPath, ev.CorpusTopK, ev.SnippetMax)
	if err != nil {
		return nil, ev, err
	}
	return corpus, ev, nil
}
