// Package pagination provides utilities around page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

var tokenEncoding = base64.RawURLEncoding

// Cursor is a resumption point that can be carried in an opaque page token.
// Validate is called after decoding, so a tampered or stale token never
// reaches query code.
type Cursor interface {
	Validate() error
}

// TokenError is an opaque error related to pagination tokens. The error message
// does not reveal internal details; use [errors.Unwrap] to access the cause.
type TokenError struct {
	cause error
}

// Error satisfies [error].
func (terr TokenError) Error() string {
	return "invalid pagination token"
}

// Unwrap returns the underlying cause of the token error.
func (terr TokenError) Unwrap() error {
	return terr.cause
}

// FromToken decodes an opaque pagination token into the provided cursor.
// Returns a [TokenError] if decoding or validation fails.
func FromToken(tkn string, cur Cursor) error {
	data, err := tokenEncoding.DecodeString(tkn)
	if err != nil {
		return TokenError{cause: err}
	}
	if err = json.Unmarshal(data, cur); err != nil {
		return TokenError{cause: err}
	}
	if err = cur.Validate(); err != nil {
		return TokenError{cause: err}
	}
	return nil
}

// ToToken encodes a cursor into an opaque pagination token. Returns a
// [TokenError] if validation or encoding fails.
func ToToken(cur Cursor) (string, error) {
	if err := cur.Validate(); err != nil {
		return "", TokenError{cause: err}
	}
	data, err := json.Marshal(cur)
	if err != nil {
		return "", TokenError{cause: err}
	}
	return tokenEncoding.EncodeToString(data), nil
}
