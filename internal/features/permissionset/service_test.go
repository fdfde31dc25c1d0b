package permissionset

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	tenantA = "aaaaaaaa-0000-4000-8000-000000000001"
	tenantB = "bbbbbbbb-0000-4000-8000-000000000002"
)

func actorCtx() context.Context {
	return common_models.WithTenant(context.Background(), tenantA, "user-1")
}

func TestCreatePermissionSet(t *testing.T) {
	h := newHarness()

	id, err := h.svc.CreatePermissionSet(actorCtx(), tenantA, "  Marketing team ", Custom(allGranted(DefaultSchema())))
	require.NoError(t, err)

	stored := h.store.sets[id]
	require.NotNil(t, stored)
	assert.Equal(t, "Marketing team", stored.Name)
	assert.Equal(t, tenantA, stored.TenantID)
	assert.True(t, stored.Predefined)
	assert.True(t, stored.Editable)
	assert.False(t, stored.AccountOwner)
	assert.False(t, stored.SuperAdmin)
	assert.Equal(t, StateActive, stored.State)
	assert.Equal(t, "user-1", stored.CreatedBy)
	assert.Len(t, stored.Permissions, DefaultSchema().Len())

	assert.Equal(t, 1, h.audit.count(common_models.AuditActionCreate))
	require.Len(t, h.events.events, 1)
	assert.Equal(t, EventCreated, h.events.events[0].Type)
}

func TestCreatePermissionSetSuperAdmin(t *testing.T) {
	h := newHarness()

	id, err := h.svc.CreatePermissionSet(actorCtx(), tenantA, "Admins", SuperAdminWithSalesPro())
	require.NoError(t, err)

	stored := h.store.sets[id]
	assert.True(t, stored.SuperAdmin)
	assert.Equal(t, TierEverything, stored.Permissions.Tier("sales_forecasts_view"))
	assert.True(t, stored.Permissions.Bool("sales_sequences_use"))
}

func TestCreatePermissionSetRejectsInput(t *testing.T) {
	broken := allGranted(DefaultSchema())
	delete(broken, "service")

	tests := []struct {
		name   string
		tenant string
		set    string
		tpl    Template
		want   error
	}{
		{"empty name", tenantA, "   ", SuperAdmin(), errs.ErrValidation},
		{"long name", tenantA, strings.Repeat("x", 121), SuperAdmin(), errs.ErrValidation},
		{"no tenant", "", "Ops", SuperAdmin(), errs.ErrValidation},
		{"missing leaves", tenantA, "Ops", Custom(broken), errs.ErrSchemaMismatch},
		{"bad group", tenantA, "Ops", Custom(Nested{"crm": 3}), errs.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.CreatePermissionSet(actorCtx(), tt.tenant, tt.set, tt.tpl)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, h.store.sets)
			assert.Empty(t, h.events.events)
		})
	}
}

func TestUpdatePermissionSetReplacesEverything(t *testing.T) {
	h := newHarness()
	set := h.seed(tenantA, "set-1", nil)
	h.store.seats["seat-1"] = set.ID

	nested := allGranted(DefaultSchema())
	group(nested, "marketing")["marketingAccess"] = false
	group(nested, "crm")["contacts"].(map[string]any)["view"] = TierOwnedOnly

	require.NoError(t, h.svc.UpdatePermissionSet(actorCtx(), tenantA, set.ID, "Renamed", Custom(nested)))

	stored := h.store.sets[set.ID]
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.SuperAdmin)
	assert.Equal(t, TierOwnedOnly, stored.Permissions.Tier("crm_contacts_view"))
	assert.False(t, stored.Permissions.Bool("marketing_ads_publish"))
	assert.Equal(t, h.now, stored.UpdatedAt)

	assert.Equal(t, []string{"seat-1"}, h.cache.invalidated)
	require.Equal(t, 1, h.audit.count(common_models.AuditActionUpdate))
	changes := h.audit.entries[0].changes
	assert.Equal(t, common_models.Change{Old: "Set set-1", New: "Renamed"}, changes["name"])
	assert.Equal(t, common_models.Change{Old: TierEverything, New: TierOwnedOnly}, changes["crm_contacts_view"])
}

func TestUpdateAndDeleteRefuseImmutableSets(t *testing.T) {
	cases := map[string]func(*PermissionSet){
		"not editable":  func(p *PermissionSet) { p.Editable = false },
		"account owner": func(p *PermissionSet) { p.AccountOwner = true },
		"owner and editable flag": func(p *PermissionSet) {
			p.AccountOwner = true
			p.Editable = true
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			set := h.seed(tenantA, "set-1", mutate)
			h.store.seats["seat-1"] = set.ID
			before := copySet(h.store.sets[set.ID])

			err := h.svc.UpdatePermissionSet(actorCtx(), tenantA, set.ID, "New", SuperAdmin())
			assert.ErrorIs(t, err, errs.ErrNotAuthorized)

			err = h.svc.DeletePermissionSet(actorCtx(), tenantA, set.ID)
			assert.ErrorIs(t, err, errs.ErrNotAuthorized)

			assert.Equal(t, before, h.store.sets[set.ID])
			assert.Len(t, h.store.sets, 1)
			assert.Equal(t, set.ID, h.store.seats["seat-1"])
			assert.Empty(t, h.audit.entries)
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	h := newHarness()
	set := h.seed(tenantB, "set-b", nil)
	before := copySet(set)

	err := h.svc.UpdatePermissionSet(actorCtx(), tenantA, set.ID, "Hijack", SuperAdmin())
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	err = h.svc.DeletePermissionSet(actorCtx(), tenantA, set.ID)
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	_, err = h.svc.GetPermissionSet(actorCtx(), tenantA, set.ID)
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	assert.Equal(t, before, h.store.sets[set.ID])
}

func TestUpdateUnknownSet(t *testing.T) {
	h := newHarness()
	err := h.svc.UpdatePermissionSet(actorCtx(), tenantA, "missing", "Name", SuperAdmin())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteMigratesEveryDependent(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("%d dependents", k), func(t *testing.T) {
			h := newHarness()
			set := h.seed(tenantA, "set-1", func(p *PermissionSet) {
				p.Permissions["crm_deals_view"] = TierTeamOnly
			})
			h.seed(tenantA, "other", nil)

			seatIDs := make([]string, 0, k)
			for i := 0; i < k; i++ {
				seatID := fmt.Sprintf("seat-%02d-abcdef", i)
				seatIDs = append(seatIDs, seatID)
				h.store.seats[seatID] = set.ID
			}

			require.NoError(t, h.svc.DeletePermissionSet(actorCtx(), tenantA, set.ID))

			_, exists := h.store.sets[set.ID]
			assert.False(t, exists, "original must be gone")
			assert.Len(t, h.store.sets, 1+k)

			cloneIDs := map[string]bool{}
			for _, seatID := range seatIDs {
				cloneID := h.store.seats[seatID]
				require.NotEqual(t, set.ID, cloneID)
				cloneIDs[cloneID] = true

				clone := h.store.sets[cloneID]
				require.NotNil(t, clone)
				assert.False(t, clone.Predefined)
				assert.True(t, clone.Editable)
				assert.False(t, clone.AccountOwner)
				assert.Equal(t, tenantA, clone.TenantID)
				assert.Equal(t, set.Permissions, clone.Permissions)
				assert.Equal(t, "Set set-1 ("+seatID[:8]+")", clone.Name)
			}
			assert.Len(t, cloneIDs, k, "one clone per seat")

			assert.Equal(t, k, h.audit.count(common_models.AuditActionMigrate))
			assert.Equal(t, 1, h.audit.count(common_models.AuditActionDelete))
			assert.ElementsMatch(t, seatIDs, h.cache.invalidated)
			require.Len(t, h.events.events, 1)
			assert.Equal(t, EventDeleted, h.events.events[0].Type)
		})
	}
}

func TestDeleteAbortsOnCloneFailure(t *testing.T) {
	faults := map[string]func(*memStore){
		"first clone insert": func(m *memStore) { m.failCreateAt = 1 },
		"third clone insert": func(m *memStore) { m.failCreateAt = 3 },
		"second seat attach": func(m *memStore) { m.failAttachAt = 2 },
	}

	for name, inject := range faults {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			set := h.seed(tenantA, "set-1", nil)
			for i := 0; i < 3; i++ {
				h.store.seats[fmt.Sprintf("seat-%d", i)] = set.ID
			}
			inject(h.store)

			err := h.svc.DeletePermissionSet(actorCtx(), tenantA, set.ID)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrMigrationIncomplete)

			assert.Len(t, h.store.sets, 1, "no clone may survive")
			assert.Contains(t, h.store.sets, set.ID)
			for seatID, setID := range h.store.seats {
				assert.Equal(t, set.ID, setID, seatID)
			}
			assert.Empty(t, h.audit.entries)
			assert.Empty(t, h.events.events)
			assert.Empty(t, h.cache.invalidated)
		})
	}
}

func TestSeedAccountOwner(t *testing.T) {
	h := newHarness()

	id, err := h.svc.SeedAccountOwner(context.Background(), tenantA, "owner-1")
	require.NoError(t, err)

	owner := h.store.sets[id]
	assert.Equal(t, AccountOwnerName, owner.Name)
	assert.True(t, owner.Predefined)
	assert.False(t, owner.Editable)
	assert.True(t, owner.AccountOwner)
	assert.True(t, owner.SuperAdmin)
	assert.Equal(t, "owner-1", owner.CreatedBy)

	want, err := Flatten(DefaultSchema(), nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, want, owner.Permissions)
	assert.Empty(t, h.audit.entries)

	_, err = h.svc.SeedAccountOwner(context.Background(), tenantA, "owner-1")
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = h.svc.SeedAccountOwner(context.Background(), tenantB, "owner-2")
	assert.NoError(t, err)
}

func TestListPermissionSetsPagination(t *testing.T) {
	h := newHarness()
	for i := 0; i < 47; i++ {
		h.seed(tenantA, fmt.Sprintf("set-%02d", i), nil)
	}
	h.seed(tenantB, "foreign", nil)

	page, err := h.svc.ListPermissionSets(actorCtx(), tenantA, ListQuery{ToTake: 25, ToSkip: 25})
	require.NoError(t, err)

	assert.Len(t, page.Data, 22)
	assert.Equal(t, int64(47), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.PageCount)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, int64(26), page.Pagination.From)
	assert.Equal(t, int64(47), page.Pagination.To)
	assert.Equal(t, "Set set-25", page.Data[0].Name)
	assert.NotEmpty(t, page.Data[0].PermissionDataSet["crm"])
}

func TestSweepOrphans(t *testing.T) {
	h := newHarness()
	old := h.now.Add(-2 * time.Hour)
	h.seed(tenantA, "orphan", func(p *PermissionSet) { p.Predefined = false; p.CreatedAt = old })
	h.seed(tenantA, "fresh", func(p *PermissionSet) { p.Predefined = false; p.CreatedAt = h.now })
	h.seed(tenantA, "used", func(p *PermissionSet) { p.Predefined = false; p.CreatedAt = old })
	h.seed(tenantA, "shared", func(p *PermissionSet) { p.CreatedAt = old })
	h.store.seats["seat-1"] = "used"

	removed, err := h.svc.SweepOrphans(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NotContains(t, h.store.sets, "orphan")
	assert.Contains(t, h.store.sets, "fresh")
	assert.Contains(t, h.store.sets, "used")
	assert.Contains(t, h.store.sets, "shared")
	assert.Equal(t, 1, h.audit.count(common_models.AuditActionMaintain))
}

func TestExportPermissionSets(t *testing.T) {
	h := newHarness()
	h.seed(tenantA, "set-1", func(p *PermissionSet) {
		p.Name = "Support"
		p.Permissions["crm_tickets_edit"] = TierTeamOnly
	})
	h.seed(tenantB, "set-2", nil)

	data, err := h.svc.ExportPermissionSets(actorCtx(), tenantA)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Equal(t, "id", header[0])
	assert.Len(t, header, len(exportMetaHeaders)+DefaultSchema().Len())

	col := -1
	for i, name := range header {
		if name == "crm_tickets_edit" {
			col = i
		}
	}
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "Support", rows[1][1])
	assert.Equal(t, "TeamOnly", rows[1][col])
}

func TestStateTransitions(t *testing.T) {
	p := &PermissionSet{State: StateDraft}
	assert.Error(t, p.transition(StateDeleted))
	require.NoError(t, p.transition(StateActive))
	require.NoError(t, p.transition(StateActive))
	require.NoError(t, p.transition(StatePendingDeletion))
	require.NoError(t, p.transition(StateActive))
	require.NoError(t, p.transition(StatePendingDeletion))
	require.NoError(t, p.transition(StateDeleted))
	assert.ErrorContains(t, p.transition(StateActive), "Deleted -> Active")
}
