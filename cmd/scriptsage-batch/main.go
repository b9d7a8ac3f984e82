package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/scriptsage/internal/application/batch"
	"github.com/bryanwahyu/scriptsage/internal/config"
	"github.com/bryanwahyu/scriptsage/internal/infra/bootstrap"
	minioStore "github.com/bryanwahyu/scriptsage/internal/infra/storage"
)

var (
	flagConfig       string
	flagDir          string
	flagPrefix       string
	flagConcurrency  int
	flagRate         float64
	flagSkipExisting bool
)

func main() {
	root := &cobra.Command{
		Use:   "scriptsage-batch",
		Short: "Bulk (re-)analysis and (re-)embedding over a script corpus",
		Long: `Runs the same fingerprint/analysis/embedding path the API uses over a
corpus of scripts, from a local directory or a MinIO prefix, with a
bounded worker pool and a shared provider rate limit.`,
		RunE: run,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "config.yaml", "path to config.yaml")
	root.Flags().StringVar(&flagDir, "dir", "", "local directory of scripts to process")
	root.Flags().StringVar(&flagPrefix, "prefix", "", "MinIO object prefix to process (requires minio enabled in config)")
	root.Flags().IntVar(&flagConcurrency, "concurrency", 0, "worker pool size (default from config)")
	root.Flags().Float64Var(&flagRate, "rate", 0, "provider calls per second shared by all workers (default from config)")
	root.Flags().BoolVar(&flagSkipExisting, "skip-existing", true, "skip content whose analysis and embedding are both cached")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if (flagDir == "") == (flagPrefix == "") {
		return fmt.Errorf("exactly one of --dir or --prefix is required")
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	if flagConcurrency == 0 {
		flagConcurrency = cfg.Pipeline.BatchConcurrency
	}
	if !cmd.Flags().Changed("rate") {
		flagRate = cfg.BatchRatePerSecond()
	}

	// SIGINT stops dispatching new items; in-flight calls finish.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipe, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer pipe.DB.Close()

	var items []batch.Item
	if flagDir != "" {
		items, err = loadDir(flagDir)
	} else {
		items, err = loadMinio(ctx, cfg, flagPrefix)
	}
	if err != nil {
		return err
	}
	log.Printf("batch start items=%d concurrency=%d rate=%.1f/s skip_existing=%v",
		len(items), flagConcurrency, flagRate, flagSkipExisting)

	report := pipe.Batch.Run(ctx, items, batch.Options{
		Concurrency:        flagConcurrency,
		RateLimitPerSecond: flagRate,
		SkipExisting:       flagSkipExisting,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", report.Failed, len(items))
	}
	return nil
}

func loadDir(dir string) ([]batch.Item, error) {
	var items []batch.Item
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		items = append(items, batch.Item{ArtifactID: filepath.ToSlash(rel), Content: content})
		return nil
	})
	return items, err
}

func loadMinio(ctx context.Context, cfg *config.Config, prefix string) ([]batch.Item, error) {
	if !cfg.Minio.Enabled {
		return nil, fmt.Errorf("--prefix requires minio to be enabled in config")
	}
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("minio list: %w", err)
	}
	var items []batch.Item
	for _, key := range keys {
		content, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("minio get %s: %w", key, err)
		}
		items = append(items, batch.Item{ArtifactID: key, Content: content})
	}
	return items, nil
}
