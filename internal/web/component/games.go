package component

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/swapshelf/swapshelf/internal/sec"
	"github.com/swapshelf/swapshelf/internal/storage"
)

var conditions = []storage.Condition{
	storage.ConditionMint,
	storage.ConditionGood,
	storage.ConditionFair,
	storage.ConditionPoor,
}

// GamesPage is the full catalog page: the exchange list plus, for signed-in
// users, the listing form.
func GamesPage(games []storage.Game, viewer *sec.Identity, nextPage string) templ.Component {
	return Page("Games", viewer, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := GameList(games, viewer, nextPage).Render(ctx, w); err != nil {
			return err
		}
		if viewer == nil {
			_, err := io.WriteString(w, `<p><a href="/auth/login">Sign in</a> to list a game for exchange.</p>`)
			return err
		}
		return GameForm(nil).Render(ctx, w)
	}))
}

// GamePage is the full single-game page.
func GamePage(game storage.Game, viewer *sec.Identity, edit bool) templ.Component {
	body := GameItem(game, viewer)
	if edit {
		body = GameEditForm(game)
	}
	return Page(game.Name, viewer, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<ul>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	}))
}

// GameList renders the exchange list. The list element is the swap target
// for newly created rows and for appended pages.
func GameList(games []storage.Game, viewer *sec.Identity, nextPage string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<ul id="%s">`, IDGameList); err != nil {
			return err
		}
		for _, g := range games {
			if err := GameItem(g, viewer).Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</ul>`); err != nil {
			return err
		}
		if nextPage == "" {
			return nil
		}
		next := "/games?page_token=" + url.QueryEscape(nextPage)
		_, err := fmt.Fprintf(w,
			`<nav class="%s"><a href="%s" hx-get="%s" hx-target="%s" hx-swap="beforeend">more</a></nav>`,
			ClassPagination, next, next, TargetGameList,
		)
		return err
	})
}

// GameItem renders one catalog row. Edit and delete controls are only shown
// to the owner; the database rejects the mutation regardless.
func GameItem(game storage.Game, viewer *sec.Identity) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		self := "/games/" + strconv.Itoa(int(game.ID))
		if _, err := fmt.Fprintf(w,
			`<li id="game-%d"><a href="%s">%s</a> <span>%s</span> offered by %s`,
			game.ID, self,
			templ.EscapeString(game.Name),
			templ.EscapeString(details(game)),
			templ.EscapeString(game.Owner.Username),
		); err != nil {
			return err
		}
		if viewer != nil && viewer.ID == game.Owner.ID {
			if _, err := fmt.Fprintf(w,
				` <button hx-get="%s?edit=true" hx-target="%s" hx-swap="outerHTML">edit</button>`+
					`<button hx-delete="%s" hx-target="%s" hx-swap="outerHTML" hx-confirm="Remove %s?">delete</button>`,
				self, TargetClosestRow,
				self, TargetClosestRow,
				templ.EscapeString(game.Name),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</li>`)
		return err
	})
}

// GameForm is the listing form. A nil game renders the creation form that
// appends its result to the list; otherwise see [GameEditForm].
func GameForm(game *storage.Game) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<form hx-post="/games" hx-target="%s" hx-swap="beforeend">`, TargetGameList,
		); err != nil {
			return err
		}
		if err := gameFields(game).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">add game</button></form>`)
		return err
	})
}

// GameEditForm renders an in-place replacement for a list row.
func GameEditForm(game storage.Game) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<li id="game-%d"><form hx-put="/games/%d" hx-target="%s" hx-swap="outerHTML">`,
			game.ID, game.ID, TargetClosestRow,
		); err != nil {
			return err
		}
		if err := gameFields(&game).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">save</button></form></li>`)
		return err
	})
}

func gameFields(game *storage.Game) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var name, publisher, year, platform string
		var condition storage.Condition
		if game != nil {
			name = game.Name
			publisher = deref(game.Publisher)
			platform = deref(game.Platform)
			if game.Year != nil {
				year = strconv.Itoa(int(*game.Year))
			}
			if game.Condition != nil {
				condition = *game.Condition
			}
		}

		_, err := fmt.Fprintf(w,
			`<input name="name" required placeholder="name" value="%s"/>`+
				`<input name="publisher" placeholder="publisher" value="%s"/>`+
				`<input name="year" type="number" placeholder="year" value="%s"/>`+
				`<input name="platform" placeholder="platform" value="%s"/>`,
			templ.EscapeString(name),
			templ.EscapeString(publisher),
			templ.EscapeString(year),
			templ.EscapeString(platform),
		)
		if err != nil {
			return err
		}

		if _, err = io.WriteString(w, `<select name="condition"><option value="">condition</option>`); err != nil {
			return err
		}
		for _, c := range conditions {
			selected := ""
			if c == condition {
				selected = " selected"
			}
			if _, err = fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, c, selected, c); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</select>`)
		return err
	})
}

func details(game storage.Game) string {
	out := deref(game.Publisher)
	if game.Year != nil {
		out += " " + strconv.Itoa(int(*game.Year))
	}
	if game.Platform != nil {
		out += " · " + *game.Platform
	}
	if game.Condition != nil {
		out += " · " + string(*game.Condition)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
