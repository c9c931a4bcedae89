package boundary

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/latticekit/lattice/internal/storage"
)

type contextKey string

// tokenKey carries the caller's raw bearer token through the context.
const tokenKey contextKey = "lattice.boundary.token"

// WithToken returns a context carrying the caller's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext extracts the bearer token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// ClaimsFilter narrows every query to the tenant named in the caller's
// validated JWT claims.
type ClaimsFilter struct {
	secretKey   string
	tenantField string
	claimName   string
}

// NewClaimsFilter creates a claims-scoped boundary filter. tenantField is the
// record column the narrowing predicate is added on; the tenant value is read
// from the claim of the same name.
func NewClaimsFilter(secretKey, tenantField string) *ClaimsFilter {
	return &ClaimsFilter{
		secretKey:   secretKey,
		tenantField: tenantField,
		claimName:   tenantField,
	}
}

// Apply implements Filter. A missing or invalid token denies access rather
// than widening it.
func (f *ClaimsFilter) Apply(ctx context.Context, q storage.Query) (storage.Query, error) {
	tokenString, ok := TokenFromContext(ctx)
	if !ok {
		return q, ErrPermissionDenied
	}

	claims, err := f.validateToken(tokenString)
	if err != nil {
		return q, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	tenant, ok := claims[f.claimName]
	if !ok {
		return q, fmt.Errorf("%w: missing %s claim", ErrPermissionDenied, f.claimName)
	}

	narrowed := q
	narrowed.Filters = make(map[string]interface{}, len(q.Filters)+1)
	for k, v := range q.Filters {
		narrowed.Filters[k] = v
	}
	narrowed.Filters[f.tenantField] = tenant

	return narrowed, nil
}

// validateToken validates a JWT token and returns the claims.
func (f *ClaimsFilter) validateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify exact signing method to prevent algorithm confusion attacks
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(f.secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
