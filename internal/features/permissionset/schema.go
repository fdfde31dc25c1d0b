package permissionset

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/stoewer/go-strcase"
)

// Tier is an ordinal record-visibility scope. Lower is broader.
type Tier int

const (
	TierEverything Tier = 1
	TierTeamOnly   Tier = 2
	TierOwnedOnly  Tier = 3
	TierNone       Tier = 4
)

func (t Tier) Valid() bool {
	return t >= TierEverything && t <= TierNone
}

func (t Tier) String() string {
	switch t {
	case TierEverything:
		return "Everything"
	case TierTeamOnly:
		return "TeamOnly"
	case TierOwnedOnly:
		return "OwnedOnly"
	case TierNone:
		return "None"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Kind is the value type of a leaf capability.
type Kind int

const (
	KindBool Kind = iota
	KindTier
)

func (k Kind) String() string {
	if k == KindTier {
		return "tier"
	}
	return "bool"
}

// Leaf is one persisted capability of the permission matrix.
type Leaf struct {
	Group      string
	Capability string
	Subfield   string
	Kind       Kind
	// Gate is the column of the master boolean that gates this leaf, empty when ungated.
	Gate string
	// SalesPro leaves are only granted by the Super Admin with Sales Pro template.
	SalesPro bool
}

// Column returns the persisted column name, <group>_<capability>[_<subfield>] in snake case.
func (l Leaf) Column() string {
	parts := []string{strcase.SnakeCase(l.Group), strcase.SnakeCase(l.Capability)}
	if l.Subfield != "" {
		parts = append(parts, strcase.SnakeCase(l.Subfield))
	}
	return strings.Join(parts, "_")
}

// Path returns the keys that locate the leaf in the nested shape.
func (l Leaf) Path() []string {
	if l.Subfield == "" {
		return []string{l.Group, l.Capability}
	}
	return []string{l.Group, l.Capability, l.Subfield}
}

func (l Leaf) String() string {
	return strings.Join(l.Path(), ".")
}

// Restrictive returns the most restrictive value for the leaf.
func (l Leaf) Restrictive() any {
	if l.Kind == KindTier {
		return TierNone
	}
	return false
}

// Permissive returns the broadest value for the leaf.
func (l Leaf) Permissive() any {
	if l.Kind == KindTier {
		return TierEverything
	}
	return true
}

// Schema is the read-only capability matrix.
type Schema struct {
	leaves   []Leaf
	byColumn map[string]int
	children map[string][]Leaf
	masters  []string
}

// NewSchema indexes leaves and checks that column names are unique and gates point at
// ungated boolean leaves of the same group.
func NewSchema(leaves []Leaf) (*Schema, error) {
	s := &Schema{
		leaves:   slices.Clone(leaves),
		byColumn: make(map[string]int, len(leaves)),
		children: make(map[string][]Leaf),
	}

	for i, leaf := range s.leaves {
		col := leaf.Column()
		if _, dup := s.byColumn[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		s.byColumn[col] = i
	}

	for _, leaf := range s.leaves {
		if leaf.Gate == "" {
			continue
		}
		idx, ok := s.byColumn[leaf.Gate]
		if !ok {
			return nil, fmt.Errorf("leaf %s gated by unknown column %q", leaf, leaf.Gate)
		}
		master := s.leaves[idx]
		if master.Kind != KindBool || master.Gate != "" || master.Group != leaf.Group {
			return nil, fmt.Errorf("leaf %s has invalid master %s", leaf, master)
		}
		if _, seen := s.children[leaf.Gate]; !seen {
			s.masters = append(s.masters, leaf.Gate)
		}
		s.children[leaf.Gate] = append(s.children[leaf.Gate], leaf)
	}

	return s, nil
}

// Leaves yields every leaf in declaration order.
func (s *Schema) Leaves() iter.Seq[Leaf] {
	return func(yield func(Leaf) bool) {
		for _, leaf := range s.leaves {
			if !yield(leaf) {
				return
			}
		}
	}
}

// Len returns the number of leaves.
func (s *Schema) Len() int {
	return len(s.leaves)
}

// Leaf looks up a leaf by column name.
func (s *Schema) Leaf(column string) (Leaf, bool) {
	idx, ok := s.byColumn[column]
	if !ok {
		return Leaf{}, false
	}
	return s.leaves[idx], true
}

// Columns returns every column in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.leaves))
	for _, leaf := range s.leaves {
		cols = append(cols, leaf.Column())
	}
	return cols
}

// Masters returns the columns of every master boolean.
func (s *Schema) Masters() []string {
	return slices.Clone(s.masters)
}

// Children returns the leaves gated by master.
func (s *Schema) Children(master string) []Leaf {
	return slices.Clone(s.children[master])
}

// IsMaster reports whether column gates other leaves.
func (s *Schema) IsMaster(column string) bool {
	_, ok := s.children[column]
	return ok
}

var defaultSchema = mustSchema(defaultLeaves())

// DefaultSchema returns the CRM capability matrix. Adding a leaf requires a migration that
// adds its column to permission_sets.
func DefaultSchema() *Schema {
	return defaultSchema
}

func mustSchema(leaves []Leaf) *Schema {
	s, err := NewSchema(leaves)
	if err != nil {
		panic(err)
	}
	return s
}

// groupBuilder keeps the matrix declaration readable.
type groupBuilder struct {
	group  string
	gate   string
	leaves []Leaf
}

func newGroup(group string) *groupBuilder {
	return &groupBuilder{group: group}
}

// master declares the group's master boolean; every leaf declared after it is gated.
func (g *groupBuilder) master(capability string) *groupBuilder {
	leaf := Leaf{Group: g.group, Capability: capability, Kind: KindBool}
	g.leaves = append(g.leaves, leaf)
	g.gate = leaf.Column()
	return g
}

func (g *groupBuilder) scalar(capability string, kind Kind) *groupBuilder {
	g.leaves = append(g.leaves, Leaf{Group: g.group, Capability: capability, Kind: kind, Gate: g.gate})
	return g
}

func (g *groupBuilder) object(capability string, kind Kind, subfields ...string) *groupBuilder {
	for _, sub := range subfields {
		g.leaves = append(g.leaves, Leaf{Group: g.group, Capability: capability, Subfield: sub, Kind: kind, Gate: g.gate})
	}
	return g
}

func (g *groupBuilder) salesPro(capability string, kind Kind, subfields ...string) *groupBuilder {
	start := len(g.leaves)
	if len(subfields) == 0 {
		g.scalar(capability, kind)
	} else {
		g.object(capability, kind, subfields...)
	}
	for i := start; i < len(g.leaves); i++ {
		g.leaves[i].SalesPro = true
	}
	return g
}

func defaultLeaves() []Leaf {
	crm := newGroup("crm").
		object("contacts", KindTier, "view", "edit", "delete").
		object("companies", KindTier, "view", "edit", "delete").
		object("deals", KindTier, "view", "edit", "delete").
		object("tickets", KindTier, "view", "edit", "delete").
		object("tasks", KindTier, "view", "edit").
		scalar("export", KindBool).
		scalar("import", KindBool).
		scalar("customViews", KindBool).
		scalar("bulkDelete", KindBool)

	marketing := newGroup("marketing").
		master("marketingAccess").
		object("ads", KindBool, "view", "publish").
		object("campaigns", KindTier, "view", "edit").
		object("campaigns", KindBool, "publish").
		object("emails", KindTier, "view", "edit").
		object("emails", KindBool, "publish").
		object("socialMedia", KindBool, "publish").
		object("landingPages", KindTier, "view", "edit").
		object("landingPages", KindBool, "publish").
		object("forms", KindBool, "view", "edit").
		scalar("chatflows", KindBool)

	sales := newGroup("sales").
		master("salesAccess").
		salesPro("forecasts", KindTier, "view").
		salesPro("forecasts", KindBool, "edit").
		object("quotes", KindTier, "view", "edit").
		salesPro("playbooks", KindBool, "view", "edit").
		salesPro("sequences", KindBool, "use").
		object("meetings", KindBool, "schedule").
		object("templates", KindBool, "view", "edit").
		object("products", KindBool, "view", "edit")

	service := newGroup("service").
		master("serviceAccess").
		object("knowledgeBase", KindBool, "view", "edit", "publish").
		object("feedback", KindBool, "view", "edit").
		object("conversations", KindTier, "view").
		object("conversations", KindBool, "reply").
		object("helpDesk", KindTier, "view")

	reports := newGroup("reports").
		master("reportsAccess").
		object("dashboards", KindTier, "view").
		object("dashboards", KindBool, "edit").
		object("reports", KindTier, "view").
		object("reports", KindBool, "edit").
		object("analytics", KindBool, "view").
		scalar("export", KindBool)

	account := newGroup("account").
		object("appMarketplace", KindBool, "access").
		object("users", KindBool, "view", "invite", "edit", "delete").
		object("teams", KindBool, "view", "edit").
		object("permissionSets", KindBool, "view", "edit").
		object("billing", KindBool, "view", "edit").
		object("domains", KindBool, "edit").
		object("integrations", KindBool, "edit").
		object("auditLog", KindBool, "view")

	var leaves []Leaf
	for _, g := range []*groupBuilder{crm, marketing, sales, service, reports, account} {
		leaves = append(leaves, g.leaves...)
	}
	return leaves
}

// Columns used by the authorization guard.
const (
	CapabilityPermissionSetsView = "account_permission_sets_view"
	CapabilityPermissionSetsEdit = "account_permission_sets_edit"
)
