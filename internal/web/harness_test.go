package web

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/swapshelf/swapshelf/internal/config"
	"github.com/swapshelf/swapshelf/internal/sec"
	"github.com/swapshelf/swapshelf/internal/storage"
)

// stubLease is an in-memory stand-in for a pooled connection. It pattern
// matches the statements the storage layer issues and mimics the row-level
// security policies using the caller id stamped via set_config.
type stubLease struct {
	users      map[string]storage.User
	games      map[int32]storage.Game
	nextUserID int32
	nextGameID int32
	boundAs    int32
}

func newLease() *stubLease {
	return &stubLease{
		users: map[string]storage.User{},
		games: map[int32]storage.Game{},
	}
}

func (l *stubLease) addUser(name, password string) storage.User {
	digest := sec.HashCredential(name, password)
	l.nextUserID++
	u := storage.User{ID: l.nextUserID, Username: name, Password: digest[:]}
	l.users[name] = u
	return u
}

func (l *stubLease) addGame(owner storage.User, name string) storage.Game {
	l.nextGameID++
	g := storage.Game{
		ID:    l.nextGameID,
		Name:  name,
		Owner: storage.Owner{ID: owner.ID, Username: owner.Username},
	}
	l.games[g.ID] = g
	return g
}

func (l *stubLease) usernameByID(id int32) string {
	for _, u := range l.users {
		if u.ID == id {
			return u.Username
		}
	}
	return ""
}

func (l *stubLease) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "set_config"):
		l.boundAs = args[0].(int32)
		return pgconn.NewCommandTag("SELECT 1"), nil

	case strings.Contains(sql, "UPDATE games") && strings.Contains(sql, "COALESCE"):
		g, ok := l.games[args[0].(int32)]
		if !ok || g.Owner.ID != l.boundAs {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		if v, ok := args[1].(*string); ok && v != nil {
			g.Name = *v
		}
		if v, ok := args[2].(*string); ok && v != nil {
			g.Publisher = v
		}
		if v, ok := args[3].(*int16); ok && v != nil {
			g.Year = v
		}
		if v, ok := args[4].(*string); ok && v != nil {
			g.Platform = v
		}
		if v, ok := args[5].(string); ok {
			c := storage.Condition(v)
			g.Condition = &c
		}
		l.games[g.ID] = g
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE games"):
		g, ok := l.games[args[0].(int32)]
		if !ok || g.Owner.ID != l.boundAs {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		owner := args[6].(int32)
		g = storage.Game{
			ID:        g.ID,
			Name:      args[1].(string),
			Publisher: args[2].(*string),
			Year:      args[3].(*int16),
			Platform:  args[4].(*string),
			Condition: condFrom(args[5]),
			Owner:     storage.Owner{ID: owner, Username: l.usernameByID(owner)},
		}
		l.games[g.ID] = g
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "UPDATE users"):
		id := args[0].(int32)
		for name, u := range l.users {
			if u.ID == id {
				delete(l.users, name)
				u.Username = args[1].(string)
				u.Password = args[2].([]byte)
				l.users[u.Username] = u
			}
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "DELETE FROM games"):
		g, ok := l.games[args[0].(int32)]
		if !ok || g.Owner.ID != l.boundAs {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(l.games, g.ID)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
}

func (l *stubLease) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM users WHERE username"):
		u, ok := l.users[args[0].(string)]
		if !ok {
			return stubRow{err: pgx.ErrNoRows}
		}
		return stubRow{values: []any{u.ID, u.Username, u.StreetAddress, u.Password}}

	case strings.Contains(sql, "INSERT INTO users"):
		name := args[0].(string)
		if _, ok := l.users[name]; ok {
			return stubRow{err: &pgconn.PgError{Code: "23505"}}
		}
		l.nextUserID++
		u := storage.User{ID: l.nextUserID, Username: name, Password: args[1].([]byte)}
		l.users[name] = u
		return stubRow{values: []any{u.ID, u.Username, u.StreetAddress, u.Password}}

	case strings.Contains(sql, "INSERT INTO games"):
		owner := args[5].(int32)
		if owner != l.boundAs {
			return stubRow{err: &pgconn.PgError{Code: "42501"}}
		}
		l.nextGameID++
		g := storage.Game{
			ID:        l.nextGameID,
			Name:      args[0].(string),
			Publisher: args[1].(*string),
			Year:      args[2].(*int16),
			Platform:  args[3].(*string),
			Condition: condFrom(args[4]),
			Owner:     storage.Owner{ID: owner, Username: l.usernameByID(owner)},
		}
		l.games[g.ID] = g
		return stubRow{values: []any{g.ID}}

	case strings.Contains(sql, "WHERE g.id ="):
		g, ok := l.games[args[0].(int32)]
		if !ok {
			return stubRow{err: pgx.ErrNoRows}
		}
		return stubRow{values: gameValues(g)}
	}
	return stubRow{err: fmt.Errorf("unexpected query: %s", sql)}
}

func (l *stubLease) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(sql, "FROM games") {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	afterID := args[0].(int32)
	limit := args[1].(int32)

	var ids []int32
	for id := range l.games {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if int32(len(ids)) > limit {
		ids = ids[:limit]
	}

	rows := &stubRows{}
	for _, id := range ids {
		rows.rows = append(rows.rows, gameValues(l.games[id]))
	}
	return rows, nil
}

func (l *stubLease) Release()          {}
func (l *stubLease) Hijack() *pgx.Conn { return nil }

func gameValues(g storage.Game) []any {
	var cond *string
	if g.Condition != nil {
		s := string(*g.Condition)
		cond = &s
	}
	return []any{
		g.ID, g.Name, g.Publisher, g.Year, g.Platform, cond,
		g.Owner.ID, g.Owner.Username,
	}
}

func condFrom(v any) *storage.Condition {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	c := storage.Condition(s)
	return &c
}

type stubRow struct {
	err    error
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if r.values[i] == nil {
			continue
		}
		v := reflect.ValueOf(r.values[i])
		if v.Kind() == reflect.Ptr && v.IsNil() {
			continue
		}
		reflect.ValueOf(d).Elem().Set(v)
	}
	return nil
}

type stubRows struct {
	rows [][]any
	idx  int
}

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *stubRows) Scan(dest ...any) error {
	return stubRow{values: r.rows[r.idx-1]}.Scan(dest...)
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

// stubPool leases the shared stub connection, like a pool of size one.
type stubPool struct {
	lease   *stubLease
	bindErr error
}

func (p *stubPool) Bind(ctx context.Context, callerID int32) (*storage.Conn, error) {
	if p.bindErr != nil {
		return nil, p.bindErr
	}
	if _, err := p.lease.Exec(ctx, `SELECT set_config('app.current_user_id', $1::text, false)`, callerID); err != nil {
		return nil, err
	}
	return storage.NewConn(p.lease), nil
}

// GetUserByName satisfies [storage.Users] for the identity loader, which
// runs before the request connection is leased.
func (p *stubPool) GetUserByName(ctx context.Context, name string) (storage.User, error) {
	u, ok := p.lease.users[name]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func newTestApp(t *testing.T, lease *stubLease) *echo.Echo {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.URL = "postgres://stub"
	cfg.Metrics.Enabled = false

	pool := &stubPool{lease: lease}
	return New(&cfg, slog.New(slog.DiscardHandler), pool, pool)
}
