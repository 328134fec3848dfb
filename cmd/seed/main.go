// Command seed fills the catalog with generated products for local load
// testing. Re-runs are idempotent: ids and slugs are deterministic and
// existing rows are left untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/slug"
)

const batchSize = 500

func main() {
	count := flag.Int("count", 10000, "number of products to generate")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, *count, *seed, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, count int, seed int64, log *slog.Logger) error {
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		MaxConns: 4,
		MinConns: 1,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := seedCategories(ctx, pool); err != nil {
		return err
	}

	products := generateProducts(rand.New(rand.NewSource(seed)), count, time.Now().UTC())
	log.Info("generated products", slog.Int("count", len(products)))

	inserted := 0
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		n, err := insertBatch(ctx, pool, products[start:end])
		if err != nil {
			return fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
		inserted += n
		log.Info("batch inserted", slog.Int("from", start), slog.Int("to", end), slog.Int("inserted", n))
	}

	log.Info("seed complete",
		slog.Int("generated", len(products)),
		slog.Int("inserted", inserted),
	)
	return nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, c := range categories {
		batch.Queue(`INSERT INTO categories (slug, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			slug.Generate(c.Name), c.Name)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

// insertBatch writes products in one round trip and returns how many rows
// were new.
func insertBatch(ctx context.Context, pool *pgxpool.Pool, products []domain.Product) (int, error) {
	batch := &pgx.Batch{}
	for i := range products {
		p := &products[i]
		batch.Queue(`
			INSERT INTO products (id, name, slug, category, image, price, brand, rating, num_reviews, count_in_stock, description, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT DO NOTHING`,
			p.ID, p.Name, p.Slug, p.Category, p.Image, p.Price, p.Brand, p.Rating,
			p.NumReviews, p.CountInStock, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range products {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, results.Close()
}
