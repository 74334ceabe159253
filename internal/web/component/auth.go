package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/swapshelf/swapshelf/internal/sec"
)

// LoginPage renders the sign-in and sign-up forms, or the credential update
// form when a signed-in user asks to edit their account.
func LoginPage(viewer *sec.Identity, edit bool) templ.Component {
	if viewer != nil && edit {
		return Page("Account", viewer, patchLoginForm(viewer))
	}
	return Page("Sign in", viewer, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := credentialForm("/auth/login", "sign in", "").Render(ctx, w); err != nil {
			return err
		}
		return credentialForm("/auth/signup", "sign up", "").Render(ctx, w)
	}))
}

func patchLoginForm(viewer *sec.Identity) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<p>Changing your username or password signs your other sessions out.</p>`); err != nil {
			return err
		}
		return credentialForm("/auth/patchlogin", "update", viewer.Username).Render(ctx, w)
	})
}

func credentialForm(action, label, username string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<form method="post" action="%s">`+
				`<input name="username" required placeholder="username" autocomplete="username" value="%s"/>`+
				`<input name="password" type="password" required placeholder="password"/>`+
				`<button type="submit">%s</button></form>`,
			action,
			templ.EscapeString(username),
			label,
		)
		return err
	})
}
