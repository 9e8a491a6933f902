// Command seed loads categories, products, starting inventory and the first
// admin account from a YAML file. Running it again with the same file adds
// nothing twice: categories and products match by name, credentials by
// product and username.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/GTDGit/onhand_api/internal/config"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/service"
)

func main() {
	path := flag.String("file", "seed.yaml", "path to the seed file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(context.Background(), *path); err != nil {
		log.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	seed, err := parseSeed(raw)
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	return newSeeder(db).apply(ctx, seed)
}

func newSeeder(db *sqlx.DB) *seeder {
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	return &seeder{
		auth:        service.NewAuthService(repository.NewUserRepository(db)),
		catalog:     service.NewCatalogService(repository.NewCategoryRepository(db), productRepo, nil),
		inventory:   service.NewInventoryService(db, inventoryRepo, productRepo, nil, nil),
		credentials: inventoryRepo,
	}
}

// Seed is the layout of the seed file.
type Seed struct {
	Admin      *SeedAdmin     `yaml:"admin"`
	Categories []SeedCategory `yaml:"categories"`
}

type SeedAdmin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type SeedCategory struct {
	Name     string        `yaml:"name"`
	Sort     int           `yaml:"sort"`
	Products []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Price       string           `yaml:"price"`
	Available   *bool            `yaml:"available"`
	Credentials []SeedCredential `yaml:"credentials"`
}

type SeedCredential struct {
	Username      string `yaml:"username"`
	Secret        string `yaml:"secret"`
	OwnershipKind string `yaml:"ownership_kind"`
	CredKind      string `yaml:"cred_kind"`
	DurationDays  int    `yaml:"duration_days"`
	Notes         string `yaml:"notes"`
}

func parseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if seed.Admin != nil && seed.Admin.Password == "" {
		// Allow keeping the password out of the file.
		seed.Admin.Password = os.Getenv("SEED_ADMIN_PASSWORD")
	}
	return &seed, nil
}

type seeder struct {
	auth        *service.AuthService
	catalog     *service.CatalogService
	inventory   *service.InventoryService
	credentials *repository.InventoryRepository
}

func (s *seeder) apply(ctx context.Context, seed *Seed) error {
	if seed.Admin != nil {
		admin, generated, err := s.auth.EnsureAdmin(ctx, seed.Admin.Email, seed.Admin.Password, seed.Admin.Name)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info().Int("user_id", admin.ID).Str("email", admin.Email).Msg("admin ready")
		if generated != "" {
			fmt.Fprintf(os.Stderr, "generated password for %s: %s\n", admin.Email, generated)
		}
	}

	existingCats, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return err
	}
	catByName := make(map[string]models.Category, len(existingCats))
	for _, c := range existingCats {
		catByName[strings.ToLower(c.Name)] = c
	}

	existingProducts, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	productByName := make(map[string]models.Product, len(existingProducts))
	for _, p := range existingProducts {
		productByName[strings.ToLower(p.Name)] = p
	}

	for _, sc := range seed.Categories {
		cat, ok := catByName[strings.ToLower(sc.Name)]
		if !ok {
			created, err := s.catalog.CreateCategory(ctx, &service.CategoryRequest{Name: sc.Name, Sort: sc.Sort})
			if err != nil {
				return fmt.Errorf("seed category %q: %w", sc.Name, err)
			}
			cat = *created
			catByName[strings.ToLower(cat.Name)] = cat
		}

		for _, sp := range sc.Products {
			product, ok := productByName[strings.ToLower(sp.Name)]
			if !ok {
				created, err := s.createProduct(ctx, cat.ID, sp)
				if err != nil {
					return fmt.Errorf("seed product %q: %w", sp.Name, err)
				}
				product = *created
				productByName[strings.ToLower(product.Name)] = product
			}

			for _, cred := range sp.Credentials {
				exists, err := s.credentials.Exists(ctx, product.ID, strings.TrimSpace(cred.Username))
				if err != nil {
					return fmt.Errorf("look up credential for %q: %w", sp.Name, err)
				}
				if exists {
					log.Debug().Int("product_id", product.ID).Msg("credential already stocked, skipping")
					continue
				}
				id, err := s.inventory.StockCredential(ctx, &service.StockCredentialRequest{
					ProductID:     product.ID,
					Username:      cred.Username,
					Secret:        cred.Secret,
					OwnershipKind: models.OwnershipKind(cred.OwnershipKind),
					CredKind:      models.CredKind(cred.CredKind),
					DurationDays:  cred.DurationDays,
					Notes:         cred.Notes,
				})
				if err != nil {
					return fmt.Errorf("seed credential for %q: %w", sp.Name, err)
				}
				log.Debug().Int("credential_id", id).Int("product_id", product.ID).Msg("credential stocked")
			}
		}
	}

	log.Info().Int("categories", len(seed.Categories)).Msg("seed applied")
	return nil
}

func (s *seeder) createProduct(ctx context.Context, categoryID int, sp SeedProduct) (*models.Product, error) {
	price, err := decimal.NewFromString(sp.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", sp.Price, err)
	}
	return s.catalog.CreateProduct(ctx, &service.CreateProductRequest{
		CategoryID:  &categoryID,
		Name:        sp.Name,
		Description: sp.Description,
		Price:       price,
		Available:   sp.Available,
	})
}
