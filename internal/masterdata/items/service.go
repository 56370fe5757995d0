package items

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Item, error)
	GetBySKU(ctx context.Context, sku string) (Item, error)
	Create(ctx context.Context, item Item) (int64, error)
	Update(ctx context.Context, item Item) error
	List(ctx context.Context, limit, offset int, search string) ([]Item, int, error)
}

// Service exposes item master data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the item service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (Item, error) {
	return s.repo.GetBySKU(ctx, strings.TrimSpace(sku))
}

func (s *Service) List(ctx context.Context, limit, offset int, search string) ([]Item, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset, search)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := validate(&item); err != nil {
		return Item{}, err
	}
	id, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	item.Active = true
	return item, nil
}

func (s *Service) Update(ctx context.Context, item Item) error {
	if item.ID == 0 {
		return fmt.Errorf("id required: %w", ErrValidation)
	}
	if err := validate(&item); err != nil {
		return err
	}
	return s.repo.Update(ctx, item)
}

func validate(item *Item) error {
	item.SKU = strings.TrimSpace(item.SKU)
	item.Name = strings.TrimSpace(item.Name)
	if item.SKU == "" || item.Name == "" {
		return fmt.Errorf("sku and name required: %w", ErrValidation)
	}
	if item.GSTRate < 0 || item.GSTRate > 100 {
		return fmt.Errorf("gst rate out of range: %w", ErrValidation)
	}
	if item.Unit == "" {
		item.Unit = "pcs"
	}
	return nil
}
