package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/swapshelf/swapshelf/internal/diag"
	"github.com/swapshelf/swapshelf/internal/web/component"
)

// Diagnostic is the failure payload served to JSON callers. HTML callers
// receive only the rendered Content fragment.
type Diagnostic struct {
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Icon      string       `json:"icon"`
	Chain     []string     `json:"chain"`
	Spantrace []diag.Frame `json:"spantrace"`
	Buttons   Buttons      `json:"buttons"`
	Content   string       `json:"content"`
}

// Buttons describes the recovery actions a client should offer. SignOut,
// when set, is the path that discards the stored credential.
type Buttons struct {
	SignOut string `json:"sign_out,omitempty"`
	OK      bool   `json:"ok"`
}

const signOutPath = "/auth/logout"

// errorHandler builds echo's HTTPErrorHandler: every failure, including
// panics surfaced by the recover middleware, is rendered through content
// negotiation. HTML fragments are appended into the page's error container
// via HX-Reswap rather than replacing the swap target.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, d := describe(err)
		if status >= http.StatusInternalServerError {
			logger.LogAttrs(c.Request().Context(), slog.LevelError, "request failed",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}

		if wantsJSON(c) {
			if err := c.JSON(status, d); err != nil {
				logger.Warn("failed to write error response", slog.Any("error", err))
			}
			return
		}

		c.Response().Header().Set("HX-Reswap", "beforeend")
		c.Response().Header().Set("HX-Retarget", component.TargetError)
		if err := c.HTML(status, d.Content); err != nil {
			logger.Warn("failed to write error response", slog.Any("error", err))
		}
	}
}

func describe(err error) (int, Diagnostic) {
	status := diag.StatusOf(err)
	text := err.Error()
	chain := diag.Chain(err)

	// Router-level failures arrive as echo errors, not diag ones.
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		text = http.StatusText(status)
		if msg, ok := httpErr.Message.(string); ok {
			text = msg
		}
		chain = []string{text}
	}
	if len(chain) > 0 {
		text = chain[0]
	}

	d := Diagnostic{
		Title:     http.StatusText(status),
		Text:      text,
		Icon:      icon(status),
		Chain:     chain,
		Spantrace: diag.Trace(err),
		Buttons:   Buttons{OK: true},
	}
	if diag.ActionsOf(err).SignOut {
		d.Buttons.SignOut = signOutPath
	}

	var buf bytes.Buffer
	if rerr := component.Toast(d.Title, d.Text, d.Buttons.SignOut != "").Render(context.Background(), &buf); rerr == nil {
		d.Content = buf.String()
	}
	return status, d
}

func icon(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "lock"
	default:
		return "warning"
	}
}

// wantsJSON reports whether the caller asked for a JSON response. Anything
// other than an explicit application/json preference gets HTML.
func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
