package api

import (
	"context"
	"time"

	"github.com/societymgmt/society-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the resolved caller attached to every authenticated request.
// Handlers never see the credential itself, only this.
type Identity struct {
	UserID string
	Role   string
}

// AdminCapable reports whether the identity may perform moderation actions.
func (i Identity) AdminCapable() bool {
	return models.IsAdminCapable(i.Role)
}

// WithIdentity returns a context carrying the resolved identity
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFrom extracts the resolved identity set by the auth middleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}
