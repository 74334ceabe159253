// Package storage provides the PostgreSQL-backed state for users and the
// game exchange catalog. Catalog access control is enforced by the database
// itself through row-level security policies keyed off the per-connection
// `app.current_user_id` session variable; see [Pool.Bind].
package storage

import "context"

const (
	// ErrNotFound is returned when a game or user cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique user already exists.
	ErrAlreadyExists Error = "already exists"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Users is the identity lookup consumed by the authentication layer. It is
// satisfied by both [*Pool] (for lookups before a request connection exists)
// and [*Conn].
type Users interface {
	// GetUserByName returns the user with the given username. An
	// [ErrNotFound] is returned if the username does not exist.
	GetUserByName(ctx context.Context, name string) (User, error)
}

// User is a row of the users table. Password holds the credential digest,
// never the secret itself.
type User struct {
	ID            int32
	Username      string
	StreetAddress *string
	Password      []byte
}

// Condition describes the physical state of a listed game.
type Condition string

// Condition values, matching the `condition` enum in the database.
const (
	ConditionMint Condition = "Mint"
	ConditionGood Condition = "Good"
	ConditionFair Condition = "Fair"
	ConditionPoor Condition = "Poor"
)

// Valid reports whether c is one of the known enum values.
func (c Condition) Valid() bool {
	switch c {
	case ConditionMint, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Owner is the public slice of a game's owning user.
type Owner struct {
	ID       int32  `json:"id"`
	Username string `json:"username"`
}

// Game is a catalog row joined with its owner.
type Game struct {
	ID        int32      `json:"id"`
	Name      string     `json:"name"`
	Publisher *string    `json:"publisher"`
	Year      *int16     `json:"year"`
	Platform  *string    `json:"platform"`
	Condition *Condition `json:"condition"`
	Owner     Owner      `json:"user"`
}

// NewGame is the payload for creating or fully replacing a game. OwnedBy is
// always assigned by the handler from the bound identity, never from the
// request body.
type NewGame struct {
	Name      string     `json:"name" form:"name"`
	Publisher *string    `json:"publisher" form:"publisher"`
	Year      *int16     `json:"year" form:"year"`
	Platform  *string    `json:"platform" form:"platform"`
	Condition *Condition `json:"condition" form:"condition"`
	OwnedBy   int32      `json:"-" form:"-"`
}

// GamePatch is a partial update; nil fields are left unchanged.
type GamePatch struct {
	Name      *string    `json:"name"`
	Publisher *string    `json:"publisher"`
	Year      *int16     `json:"year"`
	Platform  *string    `json:"platform"`
	Condition *Condition `json:"condition"`
}
