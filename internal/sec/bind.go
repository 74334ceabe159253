package sec

import (
	"context"
	"net/http"

	"github.com/swapshelf/swapshelf/internal/diag"
	"github.com/swapshelf/swapshelf/internal/observability"
	"github.com/swapshelf/swapshelf/internal/storage"
)

// ConnPool leases identity-stamped connections. Satisfied by
// [*storage.Pool].
type ConnPool interface {
	Bind(ctx context.Context, callerID int32) (*storage.Conn, error)
}

// RequestContext is the bound capability handed to business handlers: a
// leased connection whose session state carries the resolved caller, plus
// the caller itself for convenience. Handlers must not acquire their own
// connections or re-resolve identity.
type RequestContext struct {
	Conn *storage.Conn
	User *Identity // nil for anonymous requests
}

// Binder establishes the caller at the transport boundary, once per
// request, before any business logic runs.
type Binder struct {
	pool  ConnPool
	users storage.Users
}

// NewBinder creates a Binder over the given pool and user store.
func NewBinder(pool ConnPool, users storage.Users) *Binder {
	return &Binder{pool: pool, users: users}
}

// Bind runs the full pipeline for one request: resolve the claimed
// credential, authenticate it, lease a connection, and stamp the caller id
// (or the anonymous sentinel) onto its session. The stamped id always
// matches the identity returned in the context; a connection that could not
// be stamped is destroyed inside the pool layer and never reaches handlers.
func (b *Binder) Bind(r *http.Request) (*RequestContext, error) {
	ctx := r.Context()

	cred, err := Resolve(r)
	if err != nil {
		observability.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeMalformed).Inc()
		return nil, err
	}

	user, err := Authenticate(ctx, cred, b.users)
	if err != nil {
		observability.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeRejected).Inc()
		return nil, err
	}

	callerID := storage.AnonymousID
	outcome := observability.AuthOutcomeAnonymous
	if user != nil {
		callerID = user.ID
		outcome = observability.AuthOutcomeAuthenticated
	}
	observability.AuthAttemptsTotal.WithLabelValues(outcome).Inc()

	conn, err := b.pool.Bind(ctx, callerID)
	if err != nil {
		if user != nil {
			// An authenticated caller whose session cannot be established
			// should discard the cached credential before retrying.
			return nil, diag.Wrap(err, "failed to establish session for caller",
				"username", user.Username,
			).SuggestSignOut()
		}
		return nil, err
	}

	return &RequestContext{Conn: conn, User: user}, nil
}
