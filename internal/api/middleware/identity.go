package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// UserIDHeader identifies the authenticated caller. It is set by the upstream auth proxy.
const UserIDHeader = "X-User-ID"

type principalKey struct{}

// WithPrincipal returns a new context carrying the caller
func WithPrincipal(ctx context.Context, p entities.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller resolved by IdentityResolver
func PrincipalFromContext(ctx context.Context) (entities.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(entities.Principal)
	return p, ok
}

// IdentityResolver maps a user id to a principal, including the driver's resource
type IdentityResolver struct {
	users     repositories.UserRepository
	resources repositories.ResourceRepository
	cache     *expirable.LRU[string, entities.Principal]
}

// NewIdentityResolver creates a resolver with a bounded principal cache
func NewIdentityResolver(users repositories.UserRepository, resources repositories.ResourceRepository, size int, ttl time.Duration) *IdentityResolver {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IdentityResolver{
		users:     users,
		resources: resources,
		cache:     expirable.NewLRU[string, entities.Principal](size, nil, ttl),
	}
}

// Resolve looks up the principal for userID
func (r *IdentityResolver) Resolve(ctx context.Context, userID string) (entities.Principal, error) {
	if p, ok := r.cache.Get(userID); ok {
		return p, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return entities.Principal{}, apperrors.NewUnauthorizedError("unknown user")
		}
		return entities.Principal{}, err
	}

	p := entities.Principal{UserID: user.ID, Role: user.Role}
	if user.Role == entities.RoleDriver {
		resource, err := r.resources.GetByDriverUserID(ctx, user.ID)
		switch {
		case err == nil:
			p.ResourceID = resource.ID
		case apperrors.IsNotFound(err):
			// not cached, so a resource linked later is picked up on the next request
			observability.ComponentLogger(ctx, "identity").Warn().Str("user_id", user.ID).Msg("driver has no linked resource")
			return p, nil
		default:
			return entities.Principal{}, err
		}
	}

	r.cache.Add(userID, p)
	return p, nil
}

// Middleware rejects requests without a resolvable caller and attaches the principal
func (r *IdentityResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID := strings.TrimSpace(req.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		p, err := r.Resolve(req.Context(), userID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			observability.ComponentLogger(req.Context(), "identity").Error().Err(err).Msg("failed to resolve caller")
			writeError(w, http.StatusInternalServerError, "failed to resolve caller")
			return
		}

		next.ServeHTTP(w, req.WithContext(WithPrincipal(req.Context(), p)))
	})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
