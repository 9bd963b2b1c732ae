package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/ingest"
	"github.com/ziadkadry99/docchat/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [patterns...]",
	Short: "Ingest documents into the local index",
	Long: `Ingests the files matching the given glob patterns (** supported) into
the document store: extraction, chunking, embedding, and indexing.
Files already ingested (same content) are skipped.`,
	Args: cobra.MinimumNArgs(1),
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

		pipeline, err := ingest.New(st, embedder, cfg)
		if err != nil {
			return fmt.Errorf("creating ingest pipeline: %w", err)
		}
		defer pipeline.Close()

		files, err := expandPatterns(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match the given patterns")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reporter := progress.NewReporter()
		reporter.Start(len(files))

		var ingested, duplicates, skipped int
		for i, path := range files {
			reporter.Update(i+1, filepath.Base(path))

			if err := ctx.Err(); err != nil {
				reporter.Finish()
				return err
			}

			kind, err := extract.KindForFilename(path)
			if err != nil {
				if verbose {
					fmt.Fprintf(os.Stderr, "skipping %s: unsupported format\n", path)
				}
				skipped++
				continue
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reading %s: %v\n", path, err)
				skipped++
				continue
			}

			summary, err := pipeline.Ingest(ctx, raw, filepath.Base(path), kind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ingesting %s: %v\n", path, err)
				skipped++
				continue
			}
			if summary.Duplicate {
				duplicates++
				continue
			}
			ingested++
		}
		reporter.Finish()

		fmt.Printf("Ingested %d document(s)", ingested)
		if duplicates > 0 {
			fmt.Printf(", %d duplicate(s) skipped", duplicates)
		}
		if skipped > 0 {
			fmt.Printf(", %d file(s) failed or unsupported", skipped)
		}
		fmt.Println()
		return nil
	},
}

// expandPatterns resolves doublestar globs to a sorted, deduplicated list
// of regular files.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
