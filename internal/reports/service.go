package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/billing"
)

// Service resolves report queries through the versioned cache.
type Service struct {
	repo   Repository
	cache  *Cache
	auth   authz.Authorizer
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the report service. cache may be nil to bypass
// caching entirely.
func NewService(repo Repository, cache *Cache, auth authz.Authorizer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// Summary aggregates the documents the query selects. Named ranges are
// resolved against the server clock; custom ranges pass through as
// given.
func (s *Service) Summary(ctx context.Context, q Query) (*Summary, error) {
	if q.BusinessID <= 0 {
		return nil, fmt.Errorf("%w: business id required", ErrValidation)
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrValidation, q.Kind)
	}
	if q.PaymentStatus != nil && !q.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, *q.PaymentStatus)
	}
	if err := s.requireView(ctx, q.BusinessID); err != nil {
		return nil, err
	}

	start, end, err := s.resolveWindow(q)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, q, start, end)
}

// Warmup precomputes the named ranges for one business, both across all
// kinds and per kind, so the first dashboard hit after an invalidation
// is served from cache.
func (s *Service) Warmup(ctx context.Context, businessID int64) error {
	kinds := append([]billing.DocumentKind{""}, billing.DocumentKinds...)
	for _, name := range NamedRanges {
		start, end, err := ResolveRange(name, s.now())
		if err != nil {
			return err
		}
		for _, kind := range kinds {
			q := Query{BusinessID: businessID, Range: name, Kind: kind}
			if _, err := s.summarize(ctx, q, start, end); err != nil {
				return fmt.Errorf("warm %s range for business %d: %w", name, businessID, err)
			}
		}
	}
	return nil
}

// BusinessIDs exposes the warmup target list to the job runner.
func (s *Service) BusinessIDs(ctx context.Context) ([]int64, error) {
	return s.repo.BusinessIDs(ctx)
}

func (s *Service) summarize(ctx context.Context, q Query, start, end time.Time) (*Summary, error) {
	status := ""
	if q.PaymentStatus != nil {
		status = string(*q.PaymentStatus)
	}
	key, err := s.cache.BuildKey(ctx, keySummary(q.BusinessID, string(q.Kind), status, start, end)...)
	if err != nil {
		return nil, err
	}

	var sum Summary
	err = s.cache.FetchJSON(ctx, key, &sum, func(ctx context.Context) (any, error) {
		return s.repo.Summarize(ctx, q, start, end)
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Service) resolveWindow(q Query) (time.Time, time.Time, error) {
	if q.Range != "" {
		return ResolveRange(q.Range, s.now())
	}
	if q.From == nil || q.To == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: either range or from/to is required", ErrValidation)
	}
	if !q.To.After(*q.From) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be after from", ErrValidation)
	}
	return *q.From, *q.To, nil
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

// kindFromQuery parses an optional kind string.
func kindFromQuery(s string) (billing.DocumentKind, error) {
	if s == "" {
		return "", nil
	}
	k := billing.DocumentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown document kind %q", ErrValidation, s)
	}
	return k, nil
}
