package humastar

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Action is a hypermedia action on one resource. It is sent as an RFC 8288
// Link header, and when it has an editor endpoint it also becomes a button
// on the page.
//
//	</api/v1/layers/7f3c>; rel="delete"; method="DELETE"; title="Remove layer"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	// Label is the button text.
	Label string
	// Editor is the Datastar endpoint performing the action from the page.
	// Empty for read-only links.
	Editor       string
	EditorMethod string
}

// Actor is implemented by response bodies that carry per-resource actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	return b.String()
}

// ActionDef is an action template. Pattern and Editor take the resource ID
// for their single %s verb.
type ActionDef struct {
	Rel          string
	Pattern      string
	Method       string
	Title        string
	Label        string
	Editor       string
	EditorMethod string
}

// ActionsFor expands defs for the resource id.
func ActionsFor(id string, defs []ActionDef) []Action {
	id = url.PathEscape(id)
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
			Label:  d.Label,
		}
		if d.Editor != "" {
			actions[i].Editor = fmt.Sprintf(d.Editor, id)
			actions[i].EditorMethod = d.EditorMethod
			if actions[i].EditorMethod == "" {
				actions[i].EditorMethod = http.MethodPost
			}
		}
	}
	return actions
}

// Buttons keeps the actions that can be triggered from the page.
func Buttons(actions []Action) []Action {
	return slices.DeleteFunc(slices.Clone(actions), func(a Action) bool { return a.Editor == "" })
}
