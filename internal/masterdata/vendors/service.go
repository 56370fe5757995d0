package vendors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Vendor, error)
	GetByCode(ctx context.Context, code string) (Vendor, error)
	Create(ctx context.Context, v Vendor) (int64, error)
	Update(ctx context.Context, v Vendor) error
	List(ctx context.Context, limit, offset int, search string) ([]Vendor, int, error)
}

// Service exposes vendor master data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the vendor service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GSTIN format: 2-digit state code, 10-char PAN, entity digit, Z, checksum.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int, search string) ([]Vendor, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset, search)
}

func (s *Service) Create(ctx context.Context, v Vendor) (Vendor, error) {
	if err := validate(&v); err != nil {
		return Vendor{}, err
	}
	id, err := s.repo.Create(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	v.ID = id
	v.Active = true
	return v, nil
}

func (s *Service) Update(ctx context.Context, v Vendor) error {
	if v.ID == 0 {
		return fmt.Errorf("id required: %w", ErrValidation)
	}
	if err := validate(&v); err != nil {
		return err
	}
	return s.repo.Update(ctx, v)
}

func validate(v *Vendor) error {
	v.Name = strings.TrimSpace(v.Name)
	v.GSTIN = strings.ToUpper(strings.TrimSpace(v.GSTIN))
	v.StateCode = strings.ToUpper(strings.TrimSpace(v.StateCode))
	if v.Name == "" {
		return fmt.Errorf("name required: %w", ErrValidation)
	}
	if v.GSTIN != "" && !gstinPattern.MatchString(v.GSTIN) {
		return fmt.Errorf("malformed GSTIN %q: %w", v.GSTIN, ErrValidation)
	}
	return nil
}
