// Command seed fills the catalog with demo products spread over a handful of
// sellers. Product and seller ids are derived from their index, so re-runs
// replace the same rows instead of piling up new ones.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sofi161/martapp/internal/config"
	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/repository/postgres"
	"github.com/sofi161/martapp/migrations"
	"github.com/sofi161/martapp/pkg/database"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/logger"
	"github.com/sofi161/martapp/pkg/slug"
)

var seedNamespace = uuid.MustParse("5b0c6f3e-8a52-4c8e-9d5e-2b7f4a1c9e10")

var (
	prefixes = []string{"Classic", "Everyday", "Premium", "Compact", "Vintage", "Studio", "Travel", "Eco"}
	colors   = []string{"Black", "White", "Navy", "Olive", "Sand", "Red", "Grey"}

	typesPerCategory = map[string][]string{
		domain.CategoryElectronics: {"Headphones", "Power Bank", "Desk Lamp", "Keyboard", "Speaker"},
		domain.CategoryFashion:     {"Jacket", "Sneakers", "Scarf", "Backpack", "Sunglasses"},
		domain.CategoryHome:        {"Mug Set", "Throw Pillow", "Cutting Board", "Vase", "Candle"},
		domain.CategorySports:      {"Yoga Mat", "Water Bottle", "Jump Rope", "Dumbbell", "Cap"},
		domain.CategoryBooks:       {"Cookbook", "Travel Guide", "Notebook", "Novel", "Atlas"},
	}

	descriptions = []string{
		"A dependable %s built for daily use.",
		"Our best-selling %s, now in a new finish.",
		"Lightweight %s that packs down small.",
		"Hand-finished %s from a small workshop.",
	}
)

func main() {
	count := flag.Int("products", 200, "number of products to seed")
	sellers := flag.Int("sellers", 5, "number of sellers to spread products over")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("martapp-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log, *count, *sellers, *seed); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, count, sellers int, seed int64) error {
	if count < 1 || sellers < 1 {
		return fmt.Errorf("products and sellers must be positive")
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return err
	}

	repo := postgres.NewProductRepository(pool)
	products := generate(rand.New(rand.NewSource(seed)), count, sellers, time.Now().UTC())

	var created int
	for i := range products {
		p := &products[i]
		if err := repo.Delete(ctx, p.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("remove previous %s: %w", p.ID, err)
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("insert %q: %w", p.Name, err)
		}
		created++
	}

	log.Info("catalog seeded",
		slog.Int("products", created),
		slog.Int("sellers", sellers),
	)
	for s := 0; s < sellers; s++ {
		log.Info("seller", slog.String("id", seededID("seller", s)))
	}
	return nil
}

func generate(rng *rand.Rand, count, sellers int, now time.Time) []domain.Product {
	categories := domain.Categories()
	out := make([]domain.Product, 0, count)

	for i := 0; i < count; i++ {
		category := categories[i%len(categories)]
		types := typesPerCategory[category]
		kind := types[rng.Intn(len(types))]
		name := fmt.Sprintf("%s %s - %s", prefixes[rng.Intn(len(prefixes))], kind, colors[rng.Intn(len(colors))])

		// Whole currency units between 5 and 500.
		price := int64(500+rng.Intn(49500)) / 100 * 100
		createdAt := now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour)

		status := domain.ProductStatusActive
		if rng.Intn(10) == 0 {
			status = domain.ProductStatusInactive
		}

		id := seededID("product", i)
		out = append(out, domain.Product{
			ID:          id,
			SellerID:    seededID("seller", i%sellers),
			Name:        name,
			Slug:        slug.WithSuffix(slug.Generate(name), id),
			Description: fmt.Sprintf(descriptions[rng.Intn(len(descriptions))], kind),
			Price:       price,
			Category:    category,
			ImageURLs:   []string{"https://picsum.photos/seed/" + strconv.Itoa(i) + "/600/600"},
			Stock:       rng.Intn(60),
			Status:      status,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		})
	}
	return out
}

func seededID(kind string, i int) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+strconv.Itoa(i))).String()
}
