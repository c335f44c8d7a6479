package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the PostgreSQL-backed Authorizer over business_members.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) grant(ctx context.Context, callerID, businessID int64) (Grant, error) {
	g := Grant{BusinessID: businessID, UserID: callerID}
	err := s.pool.QueryRow(ctx,
		`SELECT role, can_delete FROM business_members WHERE business_id=$1 AND user_id=$2`,
		businessID, callerID,
	).Scan(&g.Role, &g.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrNoMembership
		}
		return Grant{}, err
	}
	return g, nil
}

// CanView reports whether the caller has any membership on the business.
func (s *Service) CanView(ctx context.Context, callerID, businessID int64) (bool, error) {
	_, err := s.grant(ctx, callerID, businessID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CanWrite reports whether the caller may create or update documents.
func (s *Service) CanWrite(ctx context.Context, callerID, businessID int64) (bool, error) {
	g, err := s.grant(ctx, callerID, businessID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return false, nil
		}
		return false, err
	}
	return g.allowsWrite(), nil
}

// CanDelete reports whether the caller may delete documents.
func (s *Service) CanDelete(ctx context.Context, callerID, businessID int64) (bool, error) {
	g, err := s.grant(ctx, callerID, businessID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return false, nil
		}
		return false, err
	}
	return g.allowsDelete(), nil
}
