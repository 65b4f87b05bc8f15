// Package navigation projeta a árvore estática do menu para o papel e a
// localização atuais.
package navigation

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iermgmt/painel/internal/access"
)

// Node é um item estático do menu.
type Node struct {
	Title    string             `yaml:"title"`
	Icon     string             `yaml:"icon,omitempty"`
	Path     string             `yaml:"path"`
	Required access.Requirement `yaml:"required,omitempty"`
	Children []Node             `yaml:"children,omitempty"`
}

// Item é a projeção de um Node para exibição.
type Item struct {
	Title    string `json:"title"`
	Icon     string `json:"icon,omitempty"`
	Path     string `json:"path"`
	Active   bool   `json:"active"`
	Children []Item `json:"children,omitempty"`
}

// Menu agrupa as duas áreas do menu lateral.
type Menu struct {
	Main      []Node `yaml:"main"`
	Secondary []Node `yaml:"secondary"`
}

// Filter devolve os itens visíveis para role em profundidade, sem alterar tree.
// Um nó com filhos só sobrevive se algum filho sobreviver; o ativo sobe dos
// descendentes para o pai.
func Filter(tree []Node, role access.Role, location string) []Item {
	if role == "" {
		return nil
	}
	locPath, locQuery := splitPath(location)

	var out []Item
	for _, node := range tree {
		if len(node.Required) > 0 && !node.Required.Allows(role) {
			continue
		}
		item := Item{
			Title:  node.Title,
			Icon:   node.Icon,
			Path:   node.Path,
			Active: matches(node.Path, locPath, locQuery),
		}
		if len(node.Children) > 0 {
			children := Filter(node.Children, role, location)
			if len(children) == 0 {
				continue
			}
			item.Children = children
			for _, child := range children {
				if child.Active {
					item.Active = true
					break
				}
			}
		}
		out = append(out, item)
	}
	return out
}

// matches compara o caminho do item com a localização. "#" nunca casa; um
// item com query exige a mesma query.
func matches(target, locPath, locQuery string) bool {
	if target == "" || target == "#" {
		return false
	}
	path, query := splitPath(target)
	if query != "" {
		return path == locPath && query == locQuery
	}
	return locPath == path || strings.HasPrefix(locPath, strings.TrimSuffix(path, "/")+"/")
}

func splitPath(raw string) (string, string) {
	if i := strings.IndexByte(raw, '#'); i > 0 {
		raw = raw[:i]
	}
	path, query, _ := strings.Cut(raw, "?")
	return path, query
}

// LoadYAML lê um Menu no formato de Default.
func LoadYAML(r io.Reader) (Menu, error) {
	var menu Menu
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&menu); err != nil {
		return Menu{}, fmt.Errorf("navigation: decodificar menu: %w", err)
	}
	if err := validate(menu.Main); err != nil {
		return Menu{}, err
	}
	if err := validate(menu.Secondary); err != nil {
		return Menu{}, err
	}
	return menu, nil
}

func validate(nodes []Node) error {
	for _, n := range nodes {
		if strings.TrimSpace(n.Title) == "" {
			return fmt.Errorf("navigation: item sem título (path %q)", n.Path)
		}
		if n.Path == "" {
			return fmt.Errorf("navigation: item %q sem path", n.Title)
		}
		if err := validate(n.Children); err != nil {
			return err
		}
	}
	return nil
}
