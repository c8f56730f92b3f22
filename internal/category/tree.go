// Package category строит дерево категорий из плоского списка и
// выполняет поиск и раскрытие потомков. Связь с родителем рекомендательная:
// недостижимые родители и циклы допустимы и обрабатываются здесь.
package category

import (
	"sort"
	"strings"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// PathSeparator разделяет имена предков в полном названии категории.
const PathSeparator = " - "

// Node — узел дерева.
type Node struct {
	*models.Category
	Children []*Node `json:"children,omitempty"`
}

// Build строит лес из плоского списка. Категории с неизвестным родителем
// становятся корнями; связь, замыкающая цикл, разрывается, и узел цикла
// с наименьшим id становится корнем.
func Build(list []*models.Category) []*Node {
	nodes := make(map[string]*Node, len(list))
	for _, c := range list {
		nodes[c.ID] = &Node{Category: c}
	}

	parentOf := make(map[string]string, len(list))
	for _, c := range list {
		if c.ParentID == nil {
			continue
		}
		if _, ok := nodes[*c.ParentID]; ok && *c.ParentID != c.ID {
			parentOf[c.ID] = *c.ParentID
		}
	}
	breakCycles(list, parentOf)

	var roots []*Node
	for _, c := range list {
		n := nodes[c.ID]
		if pid, ok := parentOf[c.ID]; ok {
			parent := nodes[pid]
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	sortNodes(roots)
	return roots
}

// breakCycles удаляет из parentOf по одной связи в каждом цикле.
func breakCycles(list []*models.Category, parentOf map[string]string) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(list))

	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		var chain []string
		id := start
		for {
			if state[id] == done {
				break
			}
			if state[id] == inProgress {
				// id замыкает цикл: разрываем связь у узла цикла с наименьшим id
				cycle := cycleFrom(chain, id)
				root := cycle[0]
				for _, c := range cycle[1:] {
					if c < root {
						root = c
					}
				}
				delete(parentOf, root)
				break
			}
			state[id] = inProgress
			chain = append(chain, id)
			next, ok := parentOf[id]
			if !ok {
				break
			}
			id = next
		}
		for _, c := range chain {
			state[c] = done
		}
	}
}

func cycleFrom(chain []string, id string) []string {
	for i, c := range chain {
		if c == id {
			return chain[i:]
		}
	}
	return chain
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// Filter оставляет узлы, имя которых содержит query без учета регистра,
// вместе с их предками. Пустой запрос возвращает дерево без изменений.
func Filter(roots []*Node, query string) []*Node {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return roots
	}
	var res []*Node
	for _, n := range roots {
		if f := filterNode(n, q); f != nil {
			res = append(res, f)
		}
	}
	return res
}

func filterNode(n *Node, q string) *Node {
	var children []*Node
	for _, c := range n.Children {
		if f := filterNode(c, q); f != nil {
			children = append(children, f)
		}
	}
	if len(children) == 0 && !strings.Contains(strings.ToLower(n.Name), q) {
		return nil
	}
	return &Node{Category: n.Category, Children: children}
}

// Descendants возвращает ids вместе со всеми потомками, без повторов.
// Идентификаторы, отсутствующие в списке, сохраняются как есть.
func Descendants(list []*models.Category, ids []string) []string {
	children := make(map[string][]string, len(list))
	for _, c := range list {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	seen := make(map[string]bool, len(ids))
	var res []string
	queue := append([]string(nil), ids...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
		queue = append(queue, children[id]...)
	}
	return res
}

// Labels возвращает полное название каждой категории: имена от корня
// до категории через PathSeparator. Цикл обрывается на повторе.
func Labels(list []*models.Category) map[string]string {
	byID := make(map[string]*models.Category, len(list))
	for _, c := range list {
		byID[c.ID] = c
	}

	labels := make(map[string]string, len(list))
	for _, c := range list {
		var names []string
		seen := map[string]bool{}
		for cur := c; cur != nil && !seen[cur.ID]; {
			seen[cur.ID] = true
			names = append(names, cur.Name)
			if cur.ParentID == nil {
				break
			}
			cur = byID[*cur.ParentID]
		}
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
		labels[c.ID] = strings.Join(names, PathSeparator)
	}
	return labels
}

// Option — вариант выбора категории в формах.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Options возвращает категории с полными названиями, отсортированные по названию.
func Options(list []*models.Category) []Option {
	labels := Labels(list)
	opts := make([]Option, 0, len(list))
	for _, c := range list {
		opts = append(opts, Option{ID: c.ID, Label: labels[c.ID], Type: c.Type})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Label) < strings.ToLower(opts[j].Label)
	})
	return opts
}
