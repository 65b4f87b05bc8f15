package navigation

import "github.com/iermgmt/painel/internal/access"

var (
	staff    = access.Require(access.RoleAdmin, access.RoleManager, access.RoleInspector)
	managers = access.Require(access.RoleAdmin, access.RoleManager)
	admins   = access.Require(access.RoleAdmin)
)

// Default devolve o menu da aplicação. Cada chamada monta uma árvore nova.
func Default() Menu {
	return Menu{
		Main: []Node{
			{Title: "Dashboard", Icon: "pie-chart", Path: "/dashboard", Required: staff},
			{Title: "Map", Icon: "map", Path: "/map", Required: staff},
			{Title: "Establishments", Icon: "building-2", Path: "#", Required: staff, Children: []Node{
				{Title: "All Establishments", Path: "/establishments", Required: managers},
				{Title: "Add Establishment", Path: "/establishments/add", Required: managers},
				{Title: "Establishment Areas", Path: "/establishments/areas", Required: staff},
			}},
			{Title: "Inspections", Icon: "clipboard-list", Path: "#", Required: staff, Children: []Node{
				{Title: "All Inspections", Path: "/inspections", Required: managers},
				{Title: "Add Inspection", Path: "/inspections/add", Required: managers},
				{Title: "Inspections Pending", Path: "/inspections/pending", Required: access.Require(access.RoleAdmin, access.RoleInspector)},
			}},
			{Title: "Compliance", Icon: "file-text", Path: "/compliance", Required: managers},
			{Title: "Reports", Icon: "file-text", Path: "#", Required: managers, Children: []Node{
				{Title: "All Reports", Path: "/reports"},
				{Title: "Add Report", Path: "/reports/add"},
				{Title: "Documents", Path: "/reports/documents"},
			}},
			{Title: "User Management", Icon: "user-2", Path: "/users", Required: admins, Children: []Node{
				{Title: "All Users", Path: "/users"},
				{Title: "Add New User", Path: "/users?action=add"},
				{Title: "Profile", Path: "/profile"},
			}},
			{Title: "Settings", Icon: "settings-2", Path: "/settings", Required: admins, Children: []Node{
				{Title: "General", Path: "/settings/general", Required: admins},
				{Title: "About", Path: "/settings/about", Required: admins},
			}},
		},
		Secondary: []Node{
			{Title: "Version 1.0.0", Icon: "badge-info", Path: "/about"},
		},
	}
}

// Sidebar projeta as duas áreas do menu.
func (m Menu) Sidebar(role access.Role, location string) (main, secondary []Item) {
	return Filter(m.Main, role, location), Filter(m.Secondary, role, location)
}
