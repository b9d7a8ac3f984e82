package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	appbatch "github.com/bryanwahyu/scriptsage/internal/application/batch"
	appingest "github.com/bryanwahyu/scriptsage/internal/application/ingest"
	"github.com/bryanwahyu/scriptsage/internal/config"
	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/similarity"
	"github.com/bryanwahyu/scriptsage/internal/infra/ai"
	ailocal "github.com/bryanwahyu/scriptsage/internal/infra/ai/local"
	aiopenai "github.com/bryanwahyu/scriptsage/internal/infra/ai/openai"
	mysqldb "github.com/bryanwahyu/scriptsage/internal/infra/db/mysql"
	postgresdb "github.com/bryanwahyu/scriptsage/internal/infra/db/postgres"
	sqlitedb "github.com/bryanwahyu/scriptsage/internal/infra/db/sqlite"
	memindex "github.com/bryanwahyu/scriptsage/internal/infra/similarity/memory"
	minioStore "github.com/bryanwahyu/scriptsage/internal/infra/storage"
)

// Pipeline is the wired set of collaborators both binaries share.
type Pipeline struct {
	DB     *sql.DB
	Ingest *appingest.Service
	Batch  *appbatch.Coordinator
}

// Build selects the store backend, index, and analyzer/embedder strategy
// from config. Strategy selection happens here, once, not per call.
func Build(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	var (
		db    *sql.DB
		store cache.Store
		index similarity.Index
		err   error
	)

	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqldb.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		repo := mysqldb.NewCacheRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("mysql schema: %w", err)
		}
		store = repo
		index = memindex.NewIndex()
	case "postgres":
		db, err = postgresdb.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		repo := postgresdb.NewCacheRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		vix := postgresdb.NewVectorIndex(db)
		if err := vix.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("pgvector schema: %w", err)
		}
		store = repo
		index = vix
	case "sqlite":
		db, err = sqlitedb.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite connect: %w", err)
		}
		repo := sqlitedb.NewCacheRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		store = repo
		index = memindex.NewIndex()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	var (
		provider analysis.Analyzer
		embedder embedding.Embedder
	)
	if cfg.OpenAI.APIKey != "" {
		provider = aiopenai.NewAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		embedder = aiopenai.NewEmbedder(cfg.OpenAI.APIKey, cfg.EmbeddingTimeout())
	} else {
		log.Println("no OpenAI API key configured; running with local heuristic analyzer and deterministic embedder")
		embedder = ailocal.NewEmbedder()
	}

	orch := ai.NewOrchestrator(provider, ailocal.NewAnalyzer())
	orch.Retry.MaxRetries = cfg.MaxRetries()
	orch.Retry.Timeout = cfg.AnalysisTimeout()
	if cfg.Pipeline.MaxContentBytes > 0 {
		orch.MaxContentBytes = cfg.Pipeline.MaxContentBytes
	}

	svc := &appingest.Service{
		Cache:    store,
		Analyzer: orch,
		Embedder: embedder,
		Index:    index,
	}

	if cfg.Minio.Enabled {
		archive, err := minioStore.New(ctx,
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
		svc.Archive = archive
	}

	return &Pipeline{
		DB:     db,
		Ingest: svc,
		Batch:  appbatch.NewCoordinator(svc),
	}, nil
}
