package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and [PoolConn], so queries can
// run pool-level (identity lookup before a lease exists) or on a bound
// request connection (everything else).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultListLimit = 50

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func getUserByName(ctx context.Context, q querier, name string) (User, error) {
	row := q.QueryRow(ctx,
		`SELECT id, username, street_address, password FROM users WHERE username = $1`,
		name,
	)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.StreetAddress, &u.Password); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUserByName satisfies [Users] on the bound connection.
func (c *Conn) GetUserByName(ctx context.Context, name string) (User, error) {
	return getUserByName(ctx, c.lease, name)
}

// CreateUser inserts a new user with the given credential digest and returns
// the stored row. An [ErrAlreadyExists] is returned when the username is
// taken.
func (c *Conn) CreateUser(ctx context.Context, username string, digest []byte) (User, error) {
	row := c.lease.QueryRow(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2)
		 RETURNING id, username, street_address, password`,
		username, digest,
	)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.StreetAddress, &u.Password); err != nil {
		if isDuplicateKey(err) {
			return User{}, ErrAlreadyExists
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// UpdateUserLogin replaces the username and credential digest of an existing
// user. The digest must already be derived from the new username.
func (c *Conn) UpdateUserLogin(ctx context.Context, id int32, username string, digest []byte) error {
	_, err := c.lease.Exec(ctx,
		`UPDATE users SET username = $2, password = $3 WHERE id = $1`,
		id, username, digest,
	)
	if isDuplicateKey(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user row. Games owned by the user must be removed
// first by the caller; the foreign key is not cascading.
func (c *Conn) DeleteUser(ctx context.Context, id int32) error {
	tag, err := c.lease.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const gameColumns = `
	g.id, g.name, g.publisher, g.year, g.platform, g.condition,
	u.id, u.username`

func scanGame(row pgx.Row) (Game, error) {
	var (
		g    Game
		cond *string
	)
	err := row.Scan(
		&g.ID, &g.Name, &g.Publisher, &g.Year, &g.Platform, &cond,
		&g.Owner.ID, &g.Owner.Username,
	)
	if err != nil {
		return Game{}, err
	}
	if cond != nil {
		c := Condition(*cond)
		g.Condition = &c
	}
	return g, nil
}

// ListGames returns catalog rows joined with their owners, ordered by id,
// starting after afterID. Row-level security does not restrict reads, so
// every caller sees the full exchange list.
func (c *Conn) ListGames(ctx context.Context, afterID int32, limit int32) ([]Game, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := c.lease.Query(ctx,
		`SELECT `+gameColumns+`
		 FROM games g JOIN users u ON u.id = g.owned_by
		 WHERE g.id > $1
		 ORDER BY g.id
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}
	return games, nil
}

// GetGame returns a single game joined with its owner.
func (c *Conn) GetGame(ctx context.Context, id int32) (Game, error) {
	row := c.lease.QueryRow(ctx,
		`SELECT `+gameColumns+`
		 FROM games g JOIN users u ON u.id = g.owned_by
		 WHERE g.id = $1`,
		id,
	)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, fmt.Errorf("failed to query game: %w", err)
	}
	return g, nil
}

// InsertGame adds a game to the catalog and returns its assigned id. The
// insert policy rejects rows whose owner is not the stamped caller.
func (c *Conn) InsertGame(ctx context.Context, game NewGame) (int32, error) {
	row := c.lease.QueryRow(ctx,
		`INSERT INTO games (name, publisher, year, platform, condition, owned_by)
		 VALUES ($1, $2, $3, $4, $5::condition, $6)
		 RETURNING id`,
		game.Name, game.Publisher, game.Year, game.Platform, conditionArg(game.Condition), game.OwnedBy,
	)
	var id int32
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert game: %w", err)
	}
	return id, nil
}

// UpdateGame fully replaces a game's properties. The update policy filters
// out rows the stamped caller does not own, in which case no row changes and
// [ErrNotFound] is returned.
func (c *Conn) UpdateGame(ctx context.Context, id int32, game NewGame) error {
	tag, err := c.lease.Exec(ctx,
		`UPDATE games
		 SET name = $2, publisher = $3, year = $4, platform = $5,
		     condition = $6::condition, owned_by = $7
		 WHERE id = $1`,
		id, game.Name, game.Publisher, game.Year, game.Platform, conditionArg(game.Condition), game.OwnedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PatchGame updates only the provided fields, leaving nil fields unchanged.
func (c *Conn) PatchGame(ctx context.Context, id int32, patch GamePatch) error {
	tag, err := c.lease.Exec(ctx,
		`UPDATE games
		 SET name = COALESCE($2, name),
		     publisher = COALESCE($3, publisher),
		     year = COALESCE($4::smallint, year),
		     platform = COALESCE($5, platform),
		     condition = COALESCE($6::condition, condition)
		 WHERE id = $1`,
		id, patch.Name, patch.Publisher, patch.Year, patch.Platform, conditionArg(patch.Condition),
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGame removes a game. Deleting a row the caller does not own is a
// no-op under the delete policy, mirroring the original exchange behavior.
func (c *Conn) DeleteGame(ctx context.Context, id int32) error {
	if _, err := c.lease.Exec(ctx, `DELETE FROM games WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

// DeleteUserGames removes every game owned by the user. The connection must
// be bound to that user, or the delete policy filters everything out and the
// user row cannot be removed afterwards.
func (c *Conn) DeleteUserGames(ctx context.Context, ownerID int32) error {
	if _, err := c.lease.Exec(ctx, `DELETE FROM games WHERE owned_by = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to delete games: %w", err)
	}
	return nil
}

// conditionArg converts an optional Condition into a driver argument, since
// pgx cannot infer the enum type from a named Go string type.
func conditionArg(c *Condition) any {
	if c == nil {
		return nil
	}
	return string(*c)
}
