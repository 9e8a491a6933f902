package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/metrics"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// DefaultDurationDays is used when a credential is stocked without a duration.
const DefaultDurationDays = 30

// StockCredentialRequest is the input of stock_credential.
type StockCredentialRequest struct {
	ProductID     int                  `json:"productId" binding:"required"`
	Username      string               `json:"username" binding:"required"`
	Secret        string               `json:"secret" binding:"required"`
	OwnershipKind models.OwnershipKind `json:"ownershipKind" binding:"required"`
	CredKind      models.CredKind      `json:"credKind" binding:"required"`
	DurationDays  int                  `json:"durationDays"`
	Notes         string               `json:"notes"`
}

// InventoryService manages on-hand credentials and keeps the stock counter
// in step with every insert and delete.
type InventoryService struct {
	db        *sqlx.DB
	inventory *repository.InventoryRepository
	products  *repository.ProductRepository
	catalog   *cache.CatalogCache
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(
	db *sqlx.DB,
	inventory *repository.InventoryRepository,
	products *repository.ProductRepository,
	catalog *cache.CatalogCache,
	m *metrics.Metrics,
) *InventoryService {
	return &InventoryService{
		db:        db,
		inventory: inventory,
		products:  products,
		catalog:   catalog,
		metrics:   m,
		now:       database.Now,
	}
}

// StockCredential adds one unassigned credential and increments the
// product's stock counter in the same transaction. It returns the new id.
func (s *InventoryService) StockCredential(ctx context.Context, req *StockCredentialRequest) (int, error) {
	cred, err := s.validate(req)
	if err != nil {
		return 0, err
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.products.WithTx(tx).GetByID(ctx, cred.ProductID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return utils.ErrProductNotFound
			}
			return err
		}
		if err := s.inventory.WithTx(tx).Create(ctx, cred); err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
		if err := s.products.WithTx(tx).IncrementStock(ctx, cred.ProductID); err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.CredentialStocked()
	s.catalog.Invalidate(ctx)
	log.Info().Int("credential_id", cred.ID).Int("product_id", cred.ProductID).
		Str("ownership_kind", string(cred.OwnershipKind)).Msg("credential stocked")
	return cred.ID, nil
}

func (s *InventoryService) validate(req *StockCredentialRequest) (*models.InventoryCredential, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", utils.ErrValidation)
	}
	username := strings.TrimSpace(req.Username)
	secret := strings.TrimSpace(req.Secret)
	switch {
	case req.ProductID <= 0:
		return nil, fmt.Errorf("%w: productId is required", utils.ErrValidation)
	case username == "":
		return nil, fmt.Errorf("%w: username is required", utils.ErrValidation)
	case secret == "":
		return nil, fmt.Errorf("%w: secret is required", utils.ErrValidation)
	case !req.OwnershipKind.Valid():
		return nil, fmt.Errorf("%w: ownershipKind must be solo or shared", utils.ErrValidation)
	case !req.CredKind.Valid():
		return nil, fmt.Errorf("%w: credKind must be account or profile", utils.ErrValidation)
	case req.DurationDays < 0:
		return nil, fmt.Errorf("%w: durationDays must be positive", utils.ErrValidation)
	}

	days := req.DurationDays
	if days == 0 {
		days = DefaultDurationDays
	}
	return &models.InventoryCredential{
		ProductID:     req.ProductID,
		Username:      username,
		Secret:        secret,
		Notes:         strings.TrimSpace(req.Notes),
		OwnershipKind: req.OwnershipKind,
		CredKind:      req.CredKind,
		DurationDays:  days,
		CreatedAt:     s.now(),
	}, nil
}

// ListCredentials returns credentials for the admin console, secrets included.
func (s *InventoryService) ListCredentials(ctx context.Context, filter *repository.CredentialFilter) (*repository.CredentialResult, error) {
	return s.inventory.List(ctx, filter)
}

// ListOnHand returns the public on-hand view with masked usernames.
func (s *InventoryService) ListOnHand(ctx context.Context) ([]models.OnHandItem, error) {
	var items []models.OnHandItem
	err := s.catalog.Load(ctx, cache.KeyOnHand, &items, func() (interface{}, error) {
		list, err := s.inventory.ListOnHand(ctx)
		if err != nil {
			return nil, err
		}
		for i := range list {
			list[i].Username = utils.MaskUsername(list[i].Username)
		}
		return list, nil
	})
	return items, err
}

// DeleteCredential removes an unassigned credential and decrements the
// stock counter. Assigned credentials are kept forever.
func (s *InventoryService) DeleteCredential(ctx context.Context, id int) error {
	var productID int
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		inventory := s.inventory.WithTx(tx)
		cred, err := inventory.GetByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrCredentialNotFound
		}
		if err != nil {
			return err
		}
		if cred.Assigned {
			return utils.ErrCredentialAssigned
		}
		productID = cred.ProductID

		deleted, err := inventory.DeleteFree(ctx, id)
		if err != nil {
			return fmt.Errorf("delete credential: %w", err)
		}
		if !deleted {
			// Allocated between the read and the delete.
			return utils.ErrCredentialAssigned
		}

		products := s.products.WithTx(tx)
		ok, err := products.DecrementStock(ctx, productID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if !ok {
			n, err := products.RecountStock(ctx, productID)
			if err != nil {
				return err
			}
			s.metrics.StockCorrected("delete")
			return products.SetStock(ctx, productID, n)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.catalog.Invalidate(ctx)
	log.Info().Int("credential_id", id).Int("product_id", productID).Msg("credential deleted")
	return nil
}

// ReconcileStock recounts every product whose counter drifted and writes the
// recount back. It returns the corrections that were applied.
func (s *InventoryService) ReconcileStock(ctx context.Context) ([]models.StockCorrection, error) {
	drift, err := s.products.ListStockDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock drift: %w", err)
	}

	applied := make([]models.StockCorrection, 0, len(drift))
	for _, d := range drift {
		var recount int
		err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			products := s.products.WithTx(tx)
			if err := products.Lock(ctx, d.ProductID); err != nil {
				return err
			}
			var err error
			recount, err = products.RecountStock(ctx, d.ProductID)
			if err != nil {
				return err
			}
			return products.SetStock(ctx, d.ProductID, recount)
		})
		if err != nil {
			return applied, fmt.Errorf("correct stock of product %d: %w", d.ProductID, err)
		}
		if recount == d.Counter {
			continue
		}
		d.Recount = recount
		applied = append(applied, d)
		s.metrics.StockCorrected("reconcile")
		log.Warn().Int("product_id", d.ProductID).Int("counter", d.Counter).Int("recount", recount).Msg("stock counter corrected")
	}

	if len(applied) > 0 {
		s.catalog.Invalidate(ctx)
	}
	return applied, nil
}
