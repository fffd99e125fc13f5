package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
)

// Service exposes the identity lookups used by orders and the ledger, plus the
// minimal create paths needed to seed them.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error)
	CreateClient(ctx context.Context, input CreatePartyInput) (*models.Client, error)
	CreateSupplier(ctx context.Context, input CreatePartyInput) (*models.Supplier, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

type service struct {
	repo *Repository
}

// NewService builds the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}
	product := &models.Product{
		SKU:       strings.ToUpper(sku),
		Name:      name,
		Category:  input.Category,
		Active:    true,
		UnitPrice: input.UnitPrice,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, mapCreateError(err, "product", "sku "+product.SKU)
	}
	return product, nil
}

func (s *service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.Capacity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must be non-negative")
	}
	warehouse := &models.Warehouse{
		Code:      code,
		Name:      name,
		Capacity:  input.Capacity,
		Active:    true,
		ManagerID: input.ManagerID,
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		return nil, mapCreateError(err, "warehouse", "code "+code)
	}
	return warehouse, nil
}

func (s *service) CreateClient(ctx context.Context, input CreatePartyInput) (*models.Client, error) {
	name, email, err := normalizeParty(input)
	if err != nil {
		return nil, err
	}
	client := &models.Client{Name: name, Email: email, Active: true}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, mapCreateError(err, "client", "email "+email)
	}
	return client, nil
}

func (s *service) CreateSupplier(ctx context.Context, input CreatePartyInput) (*models.Supplier, error) {
	name, email, err := normalizeParty(input)
	if err != nil {
		return nil, err
	}
	supplier := &models.Supplier{Name: name, Email: email, Active: true}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return nil, mapCreateError(err, "supplier", "email "+email)
	}
	return supplier, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "product", id)
	}
	return product, nil
}

// GetProducts resolves every id or fails NotFound on the first missing one.
func (s *service) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	products, err := s.repo.FindProducts(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.NotFound("product", id)
		}
	}
	return byID, nil
}

func (s *service) GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	warehouse, err := s.repo.FindWarehouse(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "warehouse", id)
	}
	return warehouse, nil
}

func (s *service) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.repo.FindClient(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "client", id)
	}
	return client, nil
}

func (s *service) GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	supplier, err := s.repo.FindSupplier(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "supplier", id)
	}
	return supplier, nil
}

func normalizeParty(input CreatePartyInput) (string, string, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "name and email are required")
	}
	return name, email, nil
}

func mapLookupError(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity, id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}

func mapCreateError(err error, entity, key string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "%s with %s already exists", entity, key)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create "+entity)
}
