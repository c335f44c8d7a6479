package authz

import "context"

// Static is an in-memory Authorizer used by tests and single-tenant
// deployments configured from the environment.
type Static struct {
	grants map[int64]map[int64]Grant
}

// NewStatic builds a Static authorizer from explicit grants.
func NewStatic(grants ...Grant) *Static {
	s := &Static{grants: make(map[int64]map[int64]Grant)}
	for _, g := range grants {
		byUser, ok := s.grants[g.BusinessID]
		if !ok {
			byUser = make(map[int64]Grant)
			s.grants[g.BusinessID] = byUser
		}
		byUser[g.UserID] = g
	}
	return s
}

// CanView reports whether the caller has any membership on the business.
func (s *Static) CanView(_ context.Context, callerID, businessID int64) (bool, error) {
	_, ok := s.grants[businessID][callerID]
	return ok, nil
}

// CanWrite reports whether the caller may create or update documents.
func (s *Static) CanWrite(_ context.Context, callerID, businessID int64) (bool, error) {
	g, ok := s.grants[businessID][callerID]
	if !ok {
		return false, nil
	}
	return g.allowsWrite(), nil
}

// CanDelete reports whether the caller may delete documents.
func (s *Static) CanDelete(_ context.Context, callerID, businessID int64) (bool, error) {
	g, ok := s.grants[businessID][callerID]
	if !ok {
		return false, nil
	}
	return g.allowsDelete(), nil
}
