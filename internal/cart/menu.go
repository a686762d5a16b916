package cart

import (
	"strings"

	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
)

// Filter narrows the menu. An empty typ shows every type; an empty category or
// "Todos" shows every category; query matches name or description ignoring case.
func Filter(items []model.MenuItem, typ, category, query string) []model.MenuItem {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.MenuItem, 0, len(items))
	for _, it := range items {
		if typ != "" && it.Type != typ {
			continue
		}
		if category != "" && category != enum.MenuCategoryAll && it.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(it.Name), query) &&
			!strings.Contains(strings.ToLower(it.Description), query) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Categories lists the categories present under typ, in menu order.
func Categories(items []model.MenuItem, typ string) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if typ != "" && it.Type != typ {
			continue
		}
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	return out
}

// Find returns the menu item with id.
func Find(items []model.MenuItem, id int64) (model.MenuItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return model.MenuItem{}, false
}
