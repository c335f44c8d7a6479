package products

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/authz"
)

// Service is the catalog application service.
type Service struct {
	repo     Repository
	auth     authz.Authorizer
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the catalog service.
func NewService(repo Repository, auth authz.Authorizer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create registers a new SKU with an optional opening stock balance.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if req.TaxPercent.IsNegative() || req.TaxPercent.GreaterThan(hundredPct) {
		return nil, fmt.Errorf("%w: tax percent must be between 0 and 100", ErrValidation)
	}
	if err := s.requireWrite(ctx, req.BusinessID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Product{
		BusinessID:  req.BusinessID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		TaxPercent:  req.TaxPercent,
		QtyOnHand:   req.OpeningQty,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		slog.Int64("business_id", p.BusinessID),
		slog.String("code", p.Code),
	)
	return p, nil
}

// Update edits catalog attributes of an existing SKU.
func (s *Service) Update(ctx context.Context, businessID, productID int64, req UpdateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if req.TaxPercent != nil && (req.TaxPercent.IsNegative() || req.TaxPercent.GreaterThan(hundredPct)) {
		return nil, fmt.Errorf("%w: tax percent must be between 0 and 100", ErrValidation)
	}
	if err := s.requireWrite(ctx, businessID); err != nil {
		return nil, err
	}

	p, err := s.repo.Get(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}

	if req.Code != nil {
		p.Code = *req.Code
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.TaxPercent != nil {
		p.TaxPercent = *req.TaxPercent
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one live SKU.
func (s *Service) Get(ctx context.Context, businessID, productID int64) (*Product, error) {
	if err := s.requireView(ctx, businessID); err != nil {
		return nil, err
	}
	p, err := s.repo.Get(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return p, nil
}

// List returns catalog entries matching the filter.
func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.requireView(ctx, req.BusinessID); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// Delete soft-deletes a SKU. Products still referenced by live
// documents are refused; their history depends on the row.
func (s *Service) Delete(ctx context.Context, businessID, productID int64) error {
	if err := s.requireWrite(ctx, businessID); err != nil {
		return err
	}
	p, err := s.repo.Get(ctx, businessID, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	inUse, err := s.repo.HasLiveDocumentLines(ctx, productID)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: product %q", ErrInUse, p.Code)
	}
	return s.repo.SoftDelete(ctx, businessID, productID, s.now().UTC())
}

func (s *Service) requireWrite(ctx context.Context, businessID int64) error {
	caller := authz.CallerFromContext(ctx)
	ok, err := s.auth.CanWrite(ctx, caller, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: write access required", ErrUnauthorized)
	}
	return nil
}

func (s *Service) requireView(ctx context.Context, businessID int64) error {
	caller := authz.CallerFromContext(ctx)
	ok, err := s.auth.CanView(ctx, caller, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: membership required", ErrUnauthorized)
	}
	return nil
}
