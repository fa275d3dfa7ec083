package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/roles"
)

var (
	// ErrAuthentication denies requests without a valid credential.
	ErrAuthentication = errors.New("access: authentication failed")
	// ErrAuthorization denies valid callers that are not administrators.
	ErrAuthorization = errors.New("access: insufficient permissions")

	errMissingVerifier = errors.New("access: credential verifier required")
	errMissingResolver = errors.New("access: role resolver required")
)

// CredentialVerifier resolves a bearer token to a caller.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (auth.Caller, error)
}

// RoleResolver reads the caller's role from the trusted store.
type RoleResolver interface {
	ResolveRole(ctx context.Context, callerID string) (roles.Role, error)
}

// Context is the request-scoped outcome of an admitted request.
type Context struct {
	CallerID    string
	CallerEmail string
	Role        roles.Role
}

// Gate decides whether a request may reach identity administration. It holds
// no per-caller state; every call re-verifies the credential and re-reads the role.
type Gate struct {
	verifier CredentialVerifier
	resolver RoleResolver
}

// NewGate composes a verifier and a resolver.
func NewGate(verifier CredentialVerifier, resolver RoleResolver) (*Gate, error) {
	if verifier == nil {
		return nil, errMissingVerifier
	}
	if resolver == nil {
		return nil, errMissingResolver
	}
	return &Gate{verifier: verifier, resolver: resolver}, nil
}

// Authorize runs bearer extraction, credential verification and role
// resolution in order, stopping at the first denial.
func (g *Gate) Authorize(ctx context.Context, authorizationHeader string) (Context, error) {
	token, err := auth.BearerToken(authorizationHeader)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	caller, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if caller.ID == "" {
		return Context{}, fmt.Errorf("%w: %w", ErrAuthentication, auth.ErrMissingSubject)
	}

	role, err := g.resolver.ResolveRole(ctx, caller.ID)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	if role != roles.RoleAdmin {
		return Context{}, fmt.Errorf("%w: role %q", ErrAuthorization, role)
	}

	return Context{CallerID: caller.ID, CallerEmail: caller.Email, Role: role}, nil
}
