package guard

import (
	"sort"
	"strings"

	"github.com/iermgmt/painel/internal/access"
)

// Route associa um caminho ao papel exigido.
type Route struct {
	Path     string
	Required access.Requirement
}

// Routes são as superfícies protegidas da aplicação. "/" é o login e não
// aparece aqui.
var Routes = []Route{
	{Path: "/dashboard", Required: access.Any()},
	{Path: "/profile", Required: access.Any()},
	{Path: "/profile/edit", Required: access.Any()},
	{Path: "/settings", Required: access.Any()},
	{Path: "/users", Required: access.Require(access.RoleAdmin)},
}

// Lookup devolve a rota protegida mais específica que cobre path.
func Lookup(path string) (Route, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	candidates := make([]Route, 0, 1)
	for _, r := range Routes {
		if path == r.Path || strings.HasPrefix(path, r.Path+"/") {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Route{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i].Path) > len(candidates[j].Path)
	})
	return candidates[0], true
}

// ForPath cria um guard para a rota que cobre path.
func ForPath(path string, opts ...Option) (*Guard, bool) {
	r, ok := Lookup(path)
	if !ok {
		return nil, false
	}
	return New(r.Required, opts...), true
}
