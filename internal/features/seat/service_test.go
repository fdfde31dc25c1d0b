package seat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"twol-crm/internal/cache"
	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/config"
	"twol-crm/internal/features/permissionset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tenantA = "11111111-1111-4111-8111-111111111111"
	tenantB = "22222222-2222-4222-8222-222222222222"
)

type memSeats struct {
	seats map[string]*Seat
}

func (m *memSeats) Create(ctx context.Context, seat *Seat) error {
	for _, s := range m.seats {
		if s.TenantID == seat.TenantID && s.UserID == seat.UserID {
			return errs.ErrConflict
		}
	}
	c := *seat
	m.seats[seat.ID] = &c
	return nil
}

func (m *memSeats) FindByID(ctx context.Context, id string) (*Seat, error) {
	s, ok := m.seats[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *memSeats) FindByUser(ctx context.Context, tenantID, userID string) (*Seat, error) {
	for _, s := range m.seats {
		if s.TenantID == tenantID && s.UserID == userID {
			c := *s
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memSeats) ListDependents(ctx context.Context, setID string) ([]string, error) {
	var ids []string
	for id, s := range m.seats {
		if s.PermissionSetID == setID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memSeats) AttachPermissionSet(ctx context.Context, seatID, setID string) error {
	s, ok := m.seats[seatID]
	if !ok {
		return errs.ErrNotFound
	}
	s.PermissionSetID = setID
	return nil
}

type memSets struct {
	permissionset.PermissionSetRepository
	sets map[string]*permissionset.PermissionSet
}

func (m *memSets) FindByID(ctx context.Context, id string) (*permissionset.PermissionSet, error) {
	p, ok := m.sets[id]
	if !ok {
		return nil, fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}
	return p, nil
}

type fakeAudit struct {
	actions []common_models.AuditAction
	changes []map[string]common_models.Change
}

func (f *fakeAudit) LogChange(ctx context.Context, action common_models.AuditAction, module, recordID string, changes map[string]common_models.Change) error {
	f.actions = append(f.actions, action)
	f.changes = append(f.changes, changes)
	return nil
}

func (f *fakeAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type fixture struct {
	svc   *SeatServiceImpl
	seats *memSeats
	sets  *memSets
	audit *fakeAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seats := &memSeats{seats: map[string]*Seat{}}
	sets := &memSets{sets: map[string]*permissionset.PermissionSet{}}
	audit := &fakeAudit{}

	schema := permissionset.DefaultSchema()
	limited := make(permissionset.FlatRecord)
	for leaf := range schema.Leaves() {
		limited[leaf.Column()] = leaf.Restrictive()
	}
	limited["crm_contacts_view"] = permissionset.TierTeamOnly
	limited[permissionset.CapabilityPermissionSetsView] = true

	owner, err := permissionset.Flatten(schema, nil, true, true)
	require.NoError(t, err)

	sets.sets["set-limited"] = &permissionset.PermissionSet{ID: "set-limited", TenantID: tenantA, Name: "Limited", Permissions: limited}
	sets.sets["set-owner"] = &permissionset.PermissionSet{ID: "set-owner", TenantID: tenantA, Name: "Account Owner", AccountOwner: true, SuperAdmin: true, Permissions: owner}
	admin, err := permissionset.Flatten(schema, nil, true, false)
	require.NoError(t, err)
	sets.sets["set-admin"] = &permissionset.PermissionSet{ID: "set-admin", TenantID: tenantA, Name: "Admins", SuperAdmin: true, Permissions: admin}
	sets.sets["set-other"] = &permissionset.PermissionSet{ID: "set-other", TenantID: tenantB, Name: "Other", Permissions: limited}

	n := 0
	svc := &SeatServiceImpl{
		Repo:         seats,
		Sets:         sets,
		Cache:        NewEffectiveCache(&cache.Client{}, &config.Config{CacheTTL: time.Minute}, zap.NewNop()),
		AuditService: audit,
		Logger:       zap.NewNop(),
		Schema:       schema,
		NewID: func() string {
			n++
			return fmt.Sprintf("seat-%d", n)
		},
		Now: func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	return &fixture{svc: svc, seats: seats, sets: sets, audit: audit}
}

func TestCreateSeat(t *testing.T) {
	f := newFixture(t)

	seat, err := f.svc.CreateSeat(context.Background(), tenantA, " user-1 ", "set-limited")
	require.NoError(t, err)
	assert.Equal(t, "seat-1", seat.ID)
	assert.Equal(t, "user-1", seat.UserID)
	assert.Equal(t, []common_models.AuditAction{common_models.AuditActionCreate}, f.audit.actions)

	_, err = f.svc.CreateSeat(context.Background(), tenantA, "user-1", "set-limited")
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestCreateSeatRejects(t *testing.T) {
	tests := []struct {
		name    string
		tenant  string
		user    string
		set     string
		wantErr error
	}{
		{"no user", tenantA, "  ", "set-limited", errs.ErrValidation},
		{"no set", tenantA, "u", "", errs.ErrValidation},
		{"unknown set", tenantA, "u", "nope", errs.ErrNotFound},
		{"foreign set", tenantA, "u", "set-other", errs.ErrNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateSeat(context.Background(), tt.tenant, tt.user, tt.set)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.seats.seats)
		})
	}
}

func TestAssignPermissionSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat, err := f.svc.CreateSeat(ctx, tenantA, "user-1", "set-limited")
	require.NoError(t, err)

	require.NoError(t, f.svc.AssignPermissionSet(ctx, tenantA, seat.ID, "set-owner"))
	assert.Equal(t, "set-owner", f.seats.seats[seat.ID].PermissionSetID)
	assert.Equal(t, common_models.AuditActionAssign, f.audit.actions[1])
	assert.Equal(t, common_models.Change{Old: "set-limited", New: "set-owner"}, f.audit.changes[1]["permission_set_id"])

	// reassigning the same set is a no-op
	require.NoError(t, f.svc.AssignPermissionSet(ctx, tenantA, seat.ID, "set-owner"))
	assert.Len(t, f.audit.actions, 2)

	assert.ErrorIs(t, f.svc.AssignPermissionSet(ctx, tenantA, seat.ID, "set-other"), errs.ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.AssignPermissionSet(ctx, tenantB, seat.ID, "set-other"), errs.ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.AssignPermissionSet(ctx, tenantA, "missing", "set-owner"), errs.ErrNotFound)
}

func TestGetEffectivePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat, err := f.svc.CreateSeat(ctx, tenantA, "user-1", "set-limited")
	require.NoError(t, err)

	perms, err := f.svc.GetEffectivePermissions(ctx, tenantA, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, "set-limited", perms.PermissionSetID)
	assert.False(t, perms.AccountOwner)

	contacts := perms.PermissionDataSet["crm"].(map[string]any)["contacts"].(map[string]any)
	assert.Equal(t, permissionset.TierTeamOnly, contacts["view"])
	assert.Equal(t, permissionset.TierNone, contacts["edit"])

	_, err = f.svc.GetEffectivePermissions(ctx, tenantB, seat.ID)
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
}

func TestHasCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateSeat(ctx, tenantA, "limited-user", "set-limited")
	require.NoError(t, err)
	_, err = f.svc.CreateSeat(ctx, tenantA, "owner-user", "set-owner")
	require.NoError(t, err)
	_, err = f.svc.CreateSeat(ctx, tenantA, "admin-user", "set-admin")
	require.NoError(t, err)

	tests := []struct {
		name       string
		tenant     string
		user       string
		capability string
		want       bool
	}{
		{"granted boolean", tenantA, "limited-user", permissionset.CapabilityPermissionSetsView, true},
		{"withheld boolean", tenantA, "limited-user", permissionset.CapabilityPermissionSetsEdit, false},
		{"granted tier", tenantA, "limited-user", "crm_contacts_view", true},
		{"none tier", tenantA, "limited-user", "crm_contacts_edit", false},
		{"owner passes", tenantA, "owner-user", permissionset.CapabilityPermissionSetsEdit, true},
		{"owner passes unknown", tenantA, "owner-user", "anything", true},
		{"super admin granted", tenantA, "admin-user", permissionset.CapabilityPermissionSetsEdit, true},
		{"super admin without sales pro", tenantA, "admin-user", "sales_forecasts_view", false},
		{"super admin unknown", tenantA, "admin-user", "anything", false},
		{"no seat", tenantA, "stranger", permissionset.CapabilityPermissionSetsView, false},
		{"other tenant", tenantB, "owner-user", permissionset.CapabilityPermissionSetsView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.HasCapability(ctx, tt.tenant, tt.user, tt.capability)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrantKeepsTypes(t *testing.T) {
	set := &permissionset.PermissionSet{
		ID:          "p1",
		Permissions: permissionset.FlatRecord{"crm_contacts_view": permissionset.TierOwnedOnly, "crm_export": true},
	}
	g := newGrant(set)

	flat := g.flat()
	assert.Equal(t, permissionset.TierOwnedOnly, flat["crm_contacts_view"])
	assert.Equal(t, true, flat["crm_export"])
	assert.True(t, g.allows("crm_export"))
	assert.False(t, g.allows("crm_import"))
}
