package parties

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/authz"
)

// Service is the directory application service.
type Service struct {
	repo     Repository
	auth     authz.Authorizer
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the directory service.
func NewService(repo Repository, auth authz.Authorizer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create registers a customer or supplier.
func (s *Service) Create(ctx context.Context, req CreatePartyRequest) (*Party, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown party kind %q", ErrValidation, req.Kind)
	}
	if err := s.requireWrite(ctx, req.BusinessID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Party{
		BusinessID: req.BusinessID,
		Kind:       req.Kind,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("party created",
		slog.Int64("business_id", p.BusinessID),
		slog.String("kind", string(p.Kind)),
	)
	return p, nil
}

// Update edits a directory entry.
func (s *Service) Update(ctx context.Context, businessID, partyID int64, req UpdatePartyRequest) (*Party, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.requireWrite(ctx, businessID); err != nil {
		return nil, err
	}

	p, err := s.repo.Get(ctx, businessID, partyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: party %d", ErrNotFound, partyID)
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one live directory entry.
func (s *Service) Get(ctx context.Context, businessID, partyID int64) (*Party, error) {
	if err := s.requireView(ctx, businessID); err != nil {
		return nil, err
	}
	p, err := s.repo.Get(ctx, businessID, partyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: party %d", ErrNotFound, partyID)
	}
	return p, nil
}

// List returns directory entries, optionally filtered by kind.
func (s *Service) List(ctx context.Context, businessID int64, kind Kind) ([]Party, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown party kind %q", ErrValidation, kind)
	}
	if err := s.requireView(ctx, businessID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, businessID, kind)
}

// Delete soft-deletes a directory entry. Documents keep their party
// reference; reads resolve it against deleted rows as well.
func (s *Service) Delete(ctx context.Context, businessID, partyID int64) error {
	if err := s.requireWrite(ctx, businessID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, businessID, partyID, s.now().UTC())
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
