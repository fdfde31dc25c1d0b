package seat

import (
	"time"

	"twol-crm/internal/features/permissionset"
)

// Seat binds a user of a tenant to exactly one permission set.
type Seat struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	UserID          string    `json:"userId"`
	PermissionSetID string    `json:"permissionSetId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CreateSeatRequest struct {
	UserID          string `json:"userId" validate:"required,max=64"`
	PermissionSetID string `json:"permissionSetId" validate:"required,uuid"`
}

type AssignPermissionSetRequest struct {
	PermissionSetID string `json:"permissionSetId" validate:"required,uuid"`
}

// EffectivePermissions is what a seat may do right now.
type EffectivePermissions struct {
	SeatID            string               `json:"seatId"`
	PermissionSetID   string               `json:"permissionSetId"`
	AccountOwner      bool                 `json:"accountOwner"`
	SuperAdmin        bool                 `json:"superAdmin"`
	PermissionDataSet permissionset.Nested `json:"permissionDataSet"`
}

// grant is the cached form of a seat's permissions. Tiers and booleans are kept apart so
// they survive a JSON round trip with their types.
type grant struct {
	PermissionSetID string                        `json:"permissionSetId"`
	AccountOwner    bool                          `json:"accountOwner"`
	SuperAdmin      bool                          `json:"superAdmin"`
	Tiers           map[string]permissionset.Tier `json:"tiers"`
	Bools           map[string]bool               `json:"bools"`
}

func newGrant(set *permissionset.PermissionSet) grant {
	g := grant{
		PermissionSetID: set.ID,
		AccountOwner:    set.AccountOwner,
		SuperAdmin:      set.SuperAdmin,
		Tiers:           make(map[string]permissionset.Tier),
		Bools:           make(map[string]bool),
	}
	for col, v := range set.Permissions {
		switch v := v.(type) {
		case permissionset.Tier:
			g.Tiers[col] = v
		case bool:
			g.Bools[col] = v
		}
	}
	return g
}

func (g grant) flat() permissionset.FlatRecord {
	flat := make(permissionset.FlatRecord, len(g.Tiers)+len(g.Bools))
	for col, t := range g.Tiers {
		flat[col] = t
	}
	for col, b := range g.Bools {
		flat[col] = b
	}
	return flat
}

// allows reports whether the grant covers capability. Account owner seats pass every check;
// Super Admin seats are judged on their stored values so Sales Pro columns stay closed
// without the Sales Pro template.
func (g grant) allows(capability string) bool {
	if g.AccountOwner {
		return true
	}
	return g.flat().Grants(capability)
}
