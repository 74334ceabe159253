package sec

import (
	"context"
	"errors"
	"net/http"

	"github.com/swapshelf/swapshelf/internal/diag"
	"github.com/swapshelf/swapshelf/internal/storage"
)

// Identity is the authenticated caller record.
type Identity struct {
	ID       int32  `json:"id"`
	Username string `json:"username"`
}

// Authenticate verifies a resolved credential against the user store.
//
// Anonymous callers, and bearer credentials in their reserved state, carry
// no identity and return (nil, nil); supplying no credential is not a
// failure. Supplying a Basic credential and having it be wrong is: an
// unknown username or a digest mismatch fails with a 401 that suggests
// discarding the cached credential.
func Authenticate(ctx context.Context, cred Credential, users storage.Users) (*Identity, error) {
	if cred.Kind != KindBasic {
		return nil, nil
	}

	user, err := users.GetUserByName(ctx, cred.Username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, diag.New(http.StatusUnauthorized, "invalid username or password",
			"username", cred.Username,
		).SuggestSignOut()
	case err != nil:
		return nil, diag.Wrap(err, "failed to get user from database").
			WithStatus(http.StatusInternalServerError).
			SuggestSignOut()
	}

	if !HashCredential(cred.Username, cred.Secret).Matches(user.Password) {
		return nil, diag.New(http.StatusUnauthorized, "passwords didn't match").
			SuggestSignOut()
	}

	return &Identity{ID: user.ID, Username: user.Username}, nil
}

type identityKey struct{}

// WithIdentity stores the authenticated caller in the context. The binder
// middleware injects this; the function is exported for tests and the CLI.
func WithIdentity(ctx context.Context, user *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// IdentityFrom returns the authenticated caller, or nil for anonymous
// requests.
func IdentityFrom(ctx context.Context) *Identity {
	if user, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return user
	}
	return nil
}
