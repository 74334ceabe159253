package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/swapshelf/swapshelf/internal/diag"
	"github.com/swapshelf/swapshelf/internal/pagination"
	"github.com/swapshelf/swapshelf/internal/sec"
	"github.com/swapshelf/swapshelf/internal/storage"
	"github.com/swapshelf/swapshelf/internal/web/component"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type handler struct{}

func (h handler) register(g *echo.Group) {
	g.GET("/", h.home)

	games := g.Group("/games")
	games.GET("", h.listGames)
	games.POST("", h.createGame)
	games.GET("/:id", h.getGame)
	games.PUT("/:id", h.updateGame)
	games.PATCH("/:id", h.patchGame)
	games.DELETE("/:id", h.deleteGame)

	auth := g.Group("/auth")
	auth.GET("/login", h.loginPage)
	auth.POST("/login", h.login)
	auth.POST("/signup", h.signup)
	auth.POST("/patchlogin", h.patchLogin)
	auth.GET("/logout", h.logout)
}

func (h handler) home(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/games")
}

// gameCursor is the resumption point carried in an opaque page token.
type gameCursor struct {
	AfterID int32 `json:"after_id"`
}

func (cur *gameCursor) Validate() error {
	if cur.AfterID <= 0 {
		return errors.New("after_id must be positive")
	}
	return nil
}

type gameListResponse struct {
	Games         []storage.Game `json:"games"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h handler) listGames(c echo.Context) error {
	var cur gameCursor
	if tkn := c.QueryParam("page_token"); tkn != "" {
		if err := pagination.FromToken(tkn, &cur); err != nil {
			return diag.Wrap(err, "invalid page token").
				WithStatus(http.StatusBadRequest)
		}
	}
	size := pageSize(c)

	games, err := session(c).Conn.ListGames(c.Request().Context(), cur.AfterID, size)
	if err != nil {
		return diag.Wrap(err, "failed to list games")
	}

	next := ""
	if len(games) == int(size) {
		next, err = pagination.ToToken(&gameCursor{AfterID: games[len(games)-1].ID})
		if err != nil {
			return diag.Wrap(err, "failed to build page token")
		}
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, gameListResponse{Games: games, NextPageToken: next})
	}

	viewer := sec.IdentityFrom(c.Request().Context())
	if isHTMX(c) {
		return component.GameList(games, viewer, next).Render(
			c.Request().Context(),
			c.Response().Writer,
		)
	}
	return render(
		c.Request().Context(),
		component.GamesPage(games, viewer, next),
		c.Response().Writer,
	)
}

func pageSize(c echo.Context) int32 {
	size, err := strconv.ParseInt(c.QueryParam("page_size"), 10, 32)
	if err != nil || size <= 0 {
		return defaultPageSize
	}
	return int32(min(size, maxPageSize))
}

func (h handler) createGame(c echo.Context) error {
	viewer := sec.IdentityFrom(c.Request().Context())
	if viewer == nil {
		return diag.New(http.StatusUnauthorized, "sign in to list a game")
	}

	game, err := bindGame(c)
	if err != nil {
		return err
	}
	game.OwnedBy = viewer.ID

	conn := session(c).Conn
	id, err := conn.InsertGame(c.Request().Context(), game)
	if err != nil {
		return diag.Wrap(err, "failed to add game", "name", game.Name)
	}
	stored, err := conn.GetGame(c.Request().Context(), id)
	if err != nil {
		return diag.Wrap(err, "failed to read back game", "id", id)
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, stored)
	}
	if isHTMX(c) {
		c.Response().WriteHeader(http.StatusCreated)
		return component.GameItem(stored, viewer).Render(
			c.Request().Context(),
			c.Response().Writer,
		)
	}
	return c.Redirect(http.StatusSeeOther, "/games")
}

func (h handler) getGame(c echo.Context) error {
	id, err := gameID(c)
	if err != nil {
		return err
	}

	game, err := session(c).Conn.GetGame(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return diag.Wrap(err, "no such game").WithStatus(http.StatusNotFound)
	}
	if err != nil {
		return diag.Wrap(err, "failed to get game", "id", id)
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, game)
	}

	viewer := sec.IdentityFrom(c.Request().Context())
	edit := c.QueryParam("edit") == "true" &&
		viewer != nil && viewer.ID == game.Owner.ID

	if isHTMX(c) {
		frag := component.GameItem(game, viewer)
		if edit {
			frag = component.GameEditForm(game)
		}
		return frag.Render(c.Request().Context(), c.Response().Writer)
	}
	return render(
		c.Request().Context(),
		component.GamePage(game, viewer, edit),
		c.Response().Writer,
	)
}

func (h handler) updateGame(c echo.Context) error {
	viewer := sec.IdentityFrom(c.Request().Context())
	if viewer == nil {
		return diag.New(http.StatusUnauthorized, "sign in to edit a game")
	}
	id, err := gameID(c)
	if err != nil {
		return err
	}
	game, err := bindGame(c)
	if err != nil {
		return err
	}
	game.OwnedBy = viewer.ID

	conn := session(c).Conn
	err = conn.UpdateGame(c.Request().Context(), id, game)
	if errors.Is(err, storage.ErrNotFound) {
		// Also the outcome when the row exists but belongs to someone else:
		// the update policy filters it out.
		return diag.Wrap(err, "no such game of yours").WithStatus(http.StatusNotFound)
	}
	if err != nil {
		return diag.Wrap(err, "failed to update game", "id", id)
	}

	return h.respondWithGame(c, id)
}

func (h handler) patchGame(c echo.Context) error {
	viewer := sec.IdentityFrom(c.Request().Context())
	if viewer == nil {
		return diag.New(http.StatusUnauthorized, "sign in to edit a game")
	}
	id, err := gameID(c)
	if err != nil {
		return err
	}

	var patch storage.GamePatch
	if err := c.Bind(&patch); err != nil {
		return diag.Wrap(err, "failed to parse game").WithStatus(http.StatusBadRequest)
	}
	if patch.Condition != nil && !patch.Condition.Valid() {
		return diag.New(http.StatusBadRequest, "unknown condition",
			"condition", string(*patch.Condition),
		)
	}

	conn := session(c).Conn
	err = conn.PatchGame(c.Request().Context(), id, patch)
	if errors.Is(err, storage.ErrNotFound) {
		return diag.Wrap(err, "no such game of yours").WithStatus(http.StatusNotFound)
	}
	if err != nil {
		return diag.Wrap(err, "failed to update game", "id", id)
	}

	return h.respondWithGame(c, id)
}

func (h handler) respondWithGame(c echo.Context, id int32) error {
	stored, err := session(c).Conn.GetGame(c.Request().Context(), id)
	if err != nil {
		return diag.Wrap(err, "failed to read back game", "id", id)
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, stored)
	}
	if isHTMX(c) {
		viewer := sec.IdentityFrom(c.Request().Context())
		return component.GameItem(stored, viewer).Render(
			c.Request().Context(),
			c.Response().Writer,
		)
	}
	return c.Redirect(http.StatusSeeOther, "/games")
}

// deleteGame removes the row if the caller owns it. Deleting someone else's
// game (or a missing one) succeeds without deleting anything, so the response
// never reveals whether the id exists.
func (h handler) deleteGame(c echo.Context) error {
	id, err := gameID(c)
	if err != nil {
		return err
	}
	if err := session(c).Conn.DeleteGame(c.Request().Context(), id); err != nil {
		return diag.Wrap(err, "failed to delete game", "id", id)
	}
	if isHTMX(c) {
		// Empty body replaces the targeted row, removing it from the list.
		return c.NoContent(http.StatusOK)
	}
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/games")
}

func gameID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, diag.New(http.StatusBadRequest, "invalid game id", "id", c.Param("id"))
	}
	return int32(id), nil
}

func bindGame(c echo.Context) (storage.NewGame, error) {
	var game storage.NewGame
	if err := c.Bind(&game); err != nil {
		return game, diag.Wrap(err, "failed to parse game").WithStatus(http.StatusBadRequest)
	}
	if game.Name == "" {
		return game, diag.New(http.StatusBadRequest, "a game needs a name")
	}
	if game.Condition != nil {
		// Form posts submit the placeholder option as an empty string.
		if *game.Condition == "" {
			game.Condition = nil
		} else if !game.Condition.Valid() {
			return game, diag.New(http.StatusBadRequest, "unknown condition",
				"condition", string(*game.Condition),
			)
		}
	}
	return game, nil
}

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h handler) loginPage(c echo.Context) error {
	viewer := sec.IdentityFrom(c.Request().Context())
	edit := c.QueryParam("edit") == "true"
	return render(
		c.Request().Context(),
		component.LoginPage(viewer, edit),
		c.Response().Writer,
	)
}

func (h handler) login(c echo.Context) error {
	creds, err := bindCredentials(c)
	if err != nil {
		return err
	}

	cred := sec.Credential{Kind: sec.KindBasic, Username: creds.Username, Secret: creds.Password}
	user, err := sec.Authenticate(c.Request().Context(), cred, session(c).Conn)
	if err != nil {
		return err
	}

	setSessionCookie(c, sec.EncodeBasic(creds.Username, creds.Password))
	return h.respondSignedIn(c, user)
}

func (h handler) signup(c echo.Context) error {
	creds, err := bindCredentials(c)
	if err != nil {
		return err
	}

	digest := sec.HashCredential(creds.Username, creds.Password)
	user, err := session(c).Conn.CreateUser(c.Request().Context(), creds.Username, digest[:])
	if errors.Is(err, storage.ErrAlreadyExists) {
		return diag.Wrap(err, "that username is taken").WithStatus(http.StatusConflict)
	}
	if err != nil {
		return diag.Wrap(err, "failed to create user", "username", creds.Username)
	}

	setSessionCookie(c, sec.EncodeBasic(creds.Username, creds.Password))
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, sec.Identity{ID: user.ID, Username: user.Username})
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// patchLogin replaces the caller's username and password. Anonymous callers
// are bounced home rather than rejected, matching the sign-out flow a stale
// form post lands in.
func (h handler) patchLogin(c echo.Context) error {
	viewer := sec.IdentityFrom(c.Request().Context())
	if viewer == nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	creds, err := bindCredentials(c)
	if err != nil {
		return err
	}

	digest := sec.HashCredential(creds.Username, creds.Password)
	err = session(c).Conn.UpdateUserLogin(c.Request().Context(), viewer.ID, creds.Username, digest[:])
	if errors.Is(err, storage.ErrAlreadyExists) {
		return diag.Wrap(err, "that username is taken").WithStatus(http.StatusConflict)
	}
	if err != nil {
		return diag.Wrap(err, "failed to update credentials").SuggestSignOut()
	}

	setSessionCookie(c, sec.EncodeBasic(creds.Username, creds.Password))
	return h.respondSignedIn(c, &sec.Identity{ID: viewer.ID, Username: creds.Username})
}

func (h handler) logout(c echo.Context) error {
	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h handler) respondSignedIn(c echo.Context, user *sec.Identity) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, user)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func bindCredentials(c echo.Context) (credentials, error) {
	var creds credentials
	if err := c.Bind(&creds); err != nil {
		return creds, diag.Wrap(err, "failed to parse credentials").
			WithStatus(http.StatusBadRequest)
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, diag.New(http.StatusBadRequest, "username and password are required")
	}
	return creds, nil
}

// setSessionCookie stores the encoded credential so later requests can
// re-present it. Logout simply removes the cookie again.
func setSessionCookie(c echo.Context, value string) {
	c.SetCookie(&http.Cookie{
		Name:     sec.SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sec.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

const htmxTrue = "true"

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("Hx-Request") == htmxTrue
}

var renderBufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

func render(ctx context.Context, component templ.Component, w io.Writer) error {
	buf := renderBufferPool.Get().(*bytes.Buffer) //nolint:forcetypeassert // guaranteed by impl
	defer renderBufferPool.Put(buf)
	buf.Reset()

	if err := component.Render(ctx, buf); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}
