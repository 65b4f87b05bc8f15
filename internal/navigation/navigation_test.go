package navigation

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/iermgmt/painel/internal/access"
)

func titles(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func find(items []Item, title string) (Item, bool) {
	for _, it := range items {
		if it.Title == title {
			return it, true
		}
	}
	return Item{}, false
}

func TestFilterByRole(t *testing.T) {
	menu := Default()
	cases := []struct {
		role access.Role
		want []string
	}{
		{access.RoleAdmin, []string{"Dashboard", "Map", "Establishments", "Inspections", "Compliance", "Reports", "User Management", "Settings"}},
		{access.RoleManager, []string{"Dashboard", "Map", "Establishments", "Inspections", "Compliance", "Reports"}},
		{access.RoleInspector, []string{"Dashboard", "Map", "Establishments", "Inspections"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			got := titles(Filter(menu.Main, tc.role, "/dashboard"))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFilterPrunesChildren(t *testing.T) {
	items := Filter(Default().Main, access.RoleInspector, "/dashboard")
	est, ok := find(items, "Establishments")
	if !ok {
		t.Fatal("inspector must see establishments")
	}
	if got := titles(est.Children); !reflect.DeepEqual(got, []string{"Establishment Areas"}) {
		t.Fatalf("unexpected children %v", got)
	}
}

func TestFilterDropsParentWithoutVisibleChildren(t *testing.T) {
	tree := []Node{
		{Title: "Pai", Path: "#", Children: []Node{
			{Title: "Só admin", Path: "/admin", Required: access.Require(access.RoleAdmin)},
		}},
		{Title: "Folha", Path: "/folha"},
	}
	got := titles(Filter(tree, access.RoleInspector, "/"))
	if !reflect.DeepEqual(got, []string{"Folha"}) {
		t.Fatalf("expected only leaf, got %v", got)
	}
}

func TestFilterActivePropagatesUp(t *testing.T) {
	items := Filter(Default().Main, access.RoleAdmin, "/inspections/pending")
	insp, _ := find(items, "Inspections")
	if !insp.Active {
		t.Fatal("parent must be active when a child is active")
	}
	pending, _ := find(insp.Children, "Inspections Pending")
	if !pending.Active {
		t.Fatal("pending must be active")
	}
	// "/inspections" casa por prefixo
	all, _ := find(insp.Children, "All Inspections")
	if !all.Active {
		t.Fatal("prefix match must mark All Inspections active")
	}
	add, _ := find(insp.Children, "Add Inspection")
	if add.Active {
		t.Fatal("sibling must not be active")
	}
	dash, _ := find(items, "Dashboard")
	if dash.Active {
		t.Fatal("dashboard must not be active")
	}
}

func TestFilterActiveRules(t *testing.T) {
	cases := []struct {
		target, location string
		want             bool
	}{
		{"/users", "/users", true},
		{"/users", "/users/42", true},
		{"/users", "/usersx", false},
		{"#", "#", false},
		{"/users?action=add", "/users", false},
		{"/users?action=add", "/users?action=add", true},
		{"/users", "/users?action=add", true},
	}
	for _, tc := range cases {
		locPath, locQuery := splitPath(tc.location)
		if got := matches(tc.target, locPath, locQuery); got != tc.want {
			t.Fatalf("matches(%q, %q) = %v", tc.target, tc.location, got)
		}
	}
}

func TestFilterDoesNotMutateTree(t *testing.T) {
	menu := Default()
	before := Default()
	_ = Filter(menu.Main, access.RoleInspector, "/establishments/areas")
	if !reflect.DeepEqual(menu, before) {
		t.Fatal("filter must not mutate the tree")
	}
}

func TestFilterWithoutUser(t *testing.T) {
	if got := Filter(Default().Main, "", "/dashboard"); len(got) != 0 {
		t.Fatalf("expected empty menu, got %v", titles(got))
	}
}

func TestSidebarSecondary(t *testing.T) {
	_, secondary := Default().Sidebar(access.RoleInspector, "/about")
	if len(secondary) != 1 || !secondary[0].Active {
		t.Fatalf("unexpected secondary menu %+v", secondary)
	}
}

func TestLoadYAML(t *testing.T) {
	f, err := os.Open("testdata/menu.yaml")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	menu, err := LoadYAML(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	main := Filter(menu.Main, access.RoleManager, "/inspections")
	if got := titles(main); !reflect.DeepEqual(got, []string{"Dashboard", "Inspections"}) {
		t.Fatalf("unexpected items %v", got)
	}
	insp, _ := find(main, "Inspections")
	if !insp.Active || len(insp.Children) != 2 {
		t.Fatalf("unexpected inspections item %+v", insp)
	}
}

func TestLoadYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown role":  "main:\n  - title: X\n    path: /x\n    required: root\n",
		"missing path":  "main:\n  - title: X\n",
		"unknown field": "main:\n  - title: X\n    path: /x\n    url: /y\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadYAML(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
