// Package nav строит боковое меню панели.
package nav

// Item — пункт меню.
type Item struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

type entry struct {
	label     string
	path      string
	adminOnly bool
}

var entries = []entry{
	{label: "Dashboard", path: "/dashboard"},
	{label: "Disparos", path: "/messages"},
	{label: "Categorias", path: "/categories"},
	{label: "Contatos", path: "/contacts"},
	{label: "Usuários", path: "/users", adminOnly: true},
	{label: "Pagamentos", path: "/payments", adminOnly: true},
}

// Menu возвращает пункты меню для текущего пути. Пункты администратора
// не попадают в меню, если isAdmin ложно.
func Menu(isAdmin bool, currentPath string) []Item {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.adminOnly && !isAdmin {
			continue
		}
		items = append(items, Item{
			Label:  e.label,
			Path:   e.path,
			Active: e.path == currentPath,
		})
	}
	return items
}

// AdminOnly сообщает, доступен ли путь только администраторам.
func AdminOnly(path string) bool {
	for _, e := range entries {
		if e.path == path {
			return e.adminOnly
		}
	}
	return false
}
