// Package component provides component templates used by the swapshelf web
// app.
package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/swapshelf/swapshelf/internal/sec"
)

// Page wraps body in the site chrome. The empty error container is the swap
// target that failure toasts are appended into.
func Page(title string, viewer *sec.Identity, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!doctype html><html lang="en"><head><meta charset="utf-8"/>`+
				`<meta name="viewport" content="width=device-width, initial-scale=1"/>`+
				`<title>%s · swapshelf</title>`+
				`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`+
				`</head><body>`,
			templ.EscapeString(title),
		); err != nil {
			return err
		}
		if err := header(viewer).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<div id="%s"></div><main>`, IDError); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func header(viewer *sec.Identity) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		nav := `<a href="/auth/login">sign in</a>`
		if viewer != nil {
			nav = fmt.Sprintf(
				`<span>%s</span> <a href="/auth/login?edit=true">account</a> <a href="/auth/logout">sign out</a>`,
				templ.EscapeString(viewer.Username),
			)
		}
		_, err := fmt.Fprintf(w,
			`<header class="%s"><a class="%s" href="/games">swapshelf</a><nav>%s</nav></header>`,
			ClassSiteHeader, ClassSiteTitle, nav,
		)
		return err
	})
}

// Toast renders a dismissible failure notice. It is served both inline on
// full-page errors and appended via hx-swap into the error container.
func Toast(title, text string, signOut bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		signOutLink := ""
		if signOut {
			signOutLink = ` <a href="/auth/logout">sign out</a>`
		}
		_, err := fmt.Fprintf(w,
			`<div class="%s" role="alert"><strong>%s</strong> %s`+
				`<button type="button" onclick="this.closest('.%s').remove()">ok</button>%s</div>`,
			ClassToast,
			templ.EscapeString(title),
			templ.EscapeString(text),
			ClassToast,
			signOutLink,
		)
		return err
	})
}
