package permissionset

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of a permission set.
type State int

const (
	StateDraft State = iota
	StateActive
	StatePendingDeletion
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "Draft"
	case StateActive:
		return "Active"
	case StatePendingDeletion:
		return "PendingDeletion"
	case StateDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateDraft:           {StateActive},
	StateActive:          {StateActive, StatePendingDeletion},
	StatePendingDeletion: {StateDeleted, StateActive},
}

// PermissionSet is a named, tenant-scoped value of the capability matrix.
type PermissionSet struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	Name         string     `json:"name"`
	Predefined   bool       `json:"predefined"`
	Editable     bool       `json:"editable"`
	AccountOwner bool       `json:"accountOwner"`
	SuperAdmin   bool       `json:"superAdmin"`
	Permissions  FlatRecord `json:"-"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	State        State      `json:"-"`
}

// Mutable reports whether the set may be updated.
func (p *PermissionSet) Mutable() bool {
	return p.Editable && !p.AccountOwner
}

// Deletable reports whether the set may be deleted.
func (p *PermissionSet) Deletable() bool {
	return p.Editable && !p.AccountOwner
}

func (p *PermissionSet) transition(to State) error {
	for _, allowed := range transitions[p.State] {
		if allowed == to {
			p.State = to
			return nil
		}
	}
	return fmt.Errorf("illegal permission set transition %s -> %s", p.State, to)
}

// clone returns a private copy of the set's effective values for one seat.
func (p *PermissionSet) clone(id, name, actorID string, now time.Time) *PermissionSet {
	return &PermissionSet{
		ID:          id,
		TenantID:    p.TenantID,
		Name:        name,
		Predefined:  false,
		Editable:    true,
		SuperAdmin:  p.SuperAdmin,
		Permissions: p.Permissions.Clone(),
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       StateActive,
	}
}

// View is the API representation with the nested permission tree.
type View struct {
	*PermissionSet
	PermissionDataSet Nested `json:"permissionDataSet"`
}

func NewView(schema *Schema, set *PermissionSet) View {
	return View{PermissionSet: set, PermissionDataSet: Unflatten(schema, set.Permissions)}
}

type templateKind int

const (
	templateCustom templateKind = iota
	templateSuperAdmin
	templateSuperAdminWithSalesPro
)

// Template selects how a set's values are produced.
type Template struct {
	kind   templateKind
	nested Nested
}

// SuperAdmin grants everything except Sales Pro capabilities.
func SuperAdmin() Template {
	return Template{kind: templateSuperAdmin}
}

// SuperAdminWithSalesPro grants every capability.
func SuperAdminWithSalesPro() Template {
	return Template{kind: templateSuperAdminWithSalesPro}
}

// Custom takes values from a nested payload.
func Custom(nested Nested) Template {
	return Template{kind: templateCustom, nested: nested}
}

// IsSuperAdmin reports whether the template is one of the Super Admin templates.
func (t Template) IsSuperAdmin() bool {
	return t.kind != templateCustom
}

// Flatten produces the template's flat record.
func (t Template) Flatten(schema *Schema) (FlatRecord, error) {
	return Flatten(schema, t.nested, t.IsSuperAdmin(), t.kind == templateSuperAdminWithSalesPro)
}

func (t Template) String() string {
	switch t.kind {
	case templateSuperAdmin:
		return "super_admin"
	case templateSuperAdminWithSalesPro:
		return "super_admin_sales_pro"
	default:
		return "custom"
	}
}

// CreatePermissionSetRequest is the POST body.
type CreatePermissionSetRequest struct {
	Name                        string          `json:"name" validate:"required,max=120"`
	SetAsSuperAdmin             bool            `json:"setAsSuperAdmin"`
	SetAsSuperAdminWithSalesPro bool            `json:"setAsSuperAdminWithSalesPro"`
	PermissionDataSet           json.RawMessage `json:"permissionDataSet" swaggertype:"object"`
}

// UpdatePermissionSetRequest is the PUT body.
type UpdatePermissionSetRequest struct {
	ID                          string          `json:"id" validate:"required,uuid"`
	Name                        string          `json:"name" validate:"required,max=120"`
	SetAsSuperAdmin             bool            `json:"setAsSuperAdmin"`
	SetAsSuperAdminWithSalesPro bool            `json:"setAsSuperAdminWithSalesPro"`
	PermissionDataSet           json.RawMessage `json:"permissionDataSet" swaggertype:"object"`
}

// DeletePermissionSetRequest is the DELETE body.
type DeletePermissionSetRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

// Scope narrows a list to template-origin or private sets.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeShared  Scope = "shared"
	ScopePrivate Scope = "private"
)

// ListQuery holds list parameters as they arrive on the query string.
type ListQuery struct {
	ToTake             int    `query:"toTake"`
	ToSkip             int    `query:"toSkip"`
	SearchTerm         string `query:"searchTerm"`
	ToOrderBy          string `query:"toOrderBy"`
	ToOrderByStartWith string `query:"toOrderByStartWith"`
	Scope              Scope  `query:"scope" validate:"omitempty,oneof=all shared private"`
}

// Event is pushed to realtime subscribers of a tenant.
type Event struct {
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
	SetID    string `json:"setId"`
	Name     string `json:"name,omitempty"`
}

const (
	EventCreated = "permission_set.created"
	EventUpdated = "permission_set.updated"
	EventDeleted = "permission_set.deleted"
)
