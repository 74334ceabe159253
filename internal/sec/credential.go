package sec

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/swapshelf/swapshelf/internal/diag"
)

// SessionCookie carries a cached copy of the Basic credential payload
// between requests. Its value is the same base64 "username:secret" string
// the Authorization header would hold.
const SessionCookie = "sessionid"

// CredentialKind discriminates the closed set of resolved credential
// variants.
type CredentialKind int

// Credential variants, in resolution precedence order.
const (
	KindAnonymous CredentialKind = iota
	KindBasic
	KindBearer
)

// Credential is the caller's claimed credential for a single request. It is
// transient: the secret is never stored, only its digest.
type Credential struct {
	Kind CredentialKind

	// Username and Secret are set for KindBasic.
	Username string
	Secret   string

	// Token is set for KindBearer. Bearer credentials are parsed but
	// reserved: nothing validates them yet.
	Token string
}

// Resolve determines the caller's claimed credential from the request.
// Precedence, first match wins: a Basic Authorization header, then a
// session cookie carrying a Basic payload, then a Bearer Authorization
// header, then anonymous.
//
// A scheme-matching but unparsable Authorization header fails immediately
// with a 400; only the absence of a scheme falls through. A cookie that
// fails to decode falls through silently, since stale cookies should not
// lock a caller out of the anonymous paths.
func Resolve(r *http.Request) (Credential, error) {
	authz := r.Header.Get("Authorization")

	if payload, ok := cutScheme(authz, "Basic"); ok {
		username, secret, err := DecodeBasic(payload)
		if err != nil {
			return Credential{}, diag.Wrap(err, "failed to parse basic auth header").
				WithStatus(http.StatusBadRequest).
				SuggestSignOut()
		}
		return Credential{Kind: KindBasic, Username: username, Secret: secret}, nil
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if username, secret, err := DecodeBasic(cookie.Value); err == nil {
			return Credential{Kind: KindBasic, Username: username, Secret: secret}, nil
		}
	}

	if token, ok := cutScheme(authz, "Bearer"); ok {
		if token == "" {
			return Credential{}, diag.New(http.StatusBadRequest, "failed to parse bearer auth header").
				SuggestSignOut()
		}
		return Credential{Kind: KindBearer, Token: token}, nil
	}

	return Credential{Kind: KindAnonymous}, nil
}

// DecodeBasic decodes a base64 "username:secret" Basic credential payload.
func DecodeBasic(payload string) (username, secret string, err error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", err
	}
	username, secret, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", errors.New("credential payload has no colon separator")
	}
	return username, secret, nil
}

// EncodeBasic encodes a username/secret pair into the Basic credential
// payload stored in [SessionCookie].
func EncodeBasic(username, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + secret))
}

// cutScheme returns the value after "scheme " when the header uses that
// scheme (case-insensitively), like the net/http Basic auth parser does.
func cutScheme(header, scheme string) (string, bool) {
	if len(header) <= len(scheme) || header[len(scheme)] != ' ' {
		return "", false
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(header[len(scheme)+1:]), true
}
