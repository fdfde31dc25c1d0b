package permissionset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/config"

	"go.uber.org/zap"
)

var errInjected = errors.New("injected failure")

// memStore implements PermissionSetRepository and SeatStore over maps.
type memStore struct {
	sets  map[string]*PermissionSet
	seats map[string]string // seat id -> set id

	creates      int
	failCreateAt int // 1-based, 0 disables
	attaches     int
	failAttachAt int
}

func newMemStore() *memStore {
	return &memStore{sets: map[string]*PermissionSet{}, seats: map[string]string{}}
}

func copySet(p *PermissionSet) *PermissionSet {
	c := *p
	c.Permissions = p.Permissions.Clone()
	return &c
}

func (m *memStore) put(p *PermissionSet) {
	m.sets[p.ID] = copySet(p)
}

func (m *memStore) Create(ctx context.Context, set *PermissionSet) error {
	m.creates++
	if m.failCreateAt > 0 && m.creates == m.failCreateAt {
		return fmt.Errorf("%w: %v", errs.ErrStorageFailure, errInjected)
	}
	if _, ok := m.sets[set.ID]; ok {
		return errs.ErrConflict
	}
	m.put(set)
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*PermissionSet, error) {
	p, ok := m.sets[id]
	if !ok {
		return nil, fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}
	return copySet(p), nil
}

func tenantOfFilter(f ListFilter) string {
	for _, c := range f.conditions {
		if strings.HasPrefix(c.sql, "tenant_id") {
			return c.args[0].(string)
		}
	}
	return ""
}

func (m *memStore) tenantSets(tenantID string) []PermissionSet {
	out := make([]PermissionSet, 0)
	for _, p := range m.sets {
		if p.TenantID == tenantID {
			out = append(out, *copySet(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memStore) List(ctx context.Context, filter ListFilter) ([]PermissionSet, error) {
	all := m.tenantSets(tenantOfFilter(filter))
	start := min(filter.Page.Offset(), len(all))
	end := min(start+filter.Page.Limit(), len(all))
	return all[start:end], nil
}

func (m *memStore) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return int64(len(m.tenantSets(tenantOfFilter(filter)))), nil
}

func (m *memStore) Update(ctx context.Context, set *PermissionSet) error {
	if _, ok := m.sets[set.ID]; !ok {
		return errs.ErrNotFound
	}
	m.put(set)
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.sets[id]; !ok {
		return fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}
	for _, setID := range m.seats {
		if setID == id {
			return fmt.Errorf("%w: still assigned", errs.ErrConflict)
		}
	}
	delete(m.sets, id)
	return nil
}

func (m *memStore) FindAccountOwner(ctx context.Context, tenantID string) (*PermissionSet, error) {
	for _, p := range m.sets {
		if p.TenantID == tenantID && p.AccountOwner {
			return copySet(p), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memStore) ListOrphans(ctx context.Context, createdBefore time.Time) ([]PermissionSet, error) {
	referenced := map[string]bool{}
	for _, setID := range m.seats {
		referenced[setID] = true
	}
	out := make([]PermissionSet, 0)
	for _, p := range m.sets {
		if !p.Predefined && !p.AccountOwner && p.CreatedAt.Before(createdBefore) && !referenced[p.ID] {
			out = append(out, *copySet(p))
		}
	}
	return out, nil
}

func (m *memStore) ListAll(ctx context.Context, tenantID string) ([]PermissionSet, error) {
	return m.tenantSets(tenantID), nil
}

func (m *memStore) ListDependents(ctx context.Context, setID string) ([]string, error) {
	out := make([]string, 0)
	for seatID, id := range m.seats {
		if id == setID {
			out = append(out, seatID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) AttachPermissionSet(ctx context.Context, seatID, setID string) error {
	m.attaches++
	if m.failAttachAt > 0 && m.attaches == m.failAttachAt {
		return fmt.Errorf("%w: %v", errs.ErrStorageFailure, errInjected)
	}
	m.seats[seatID] = setID
	return nil
}

// memTx snapshots the store and restores it when fn fails.
type memTx struct {
	store *memStore
}

func (t memTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sets := make(map[string]*PermissionSet, len(t.store.sets))
	for k, v := range t.store.sets {
		sets[k] = copySet(v)
	}
	seats := make(map[string]string, len(t.store.seats))
	for k, v := range t.store.seats {
		seats[k] = v
	}

	if err := fn(ctx); err != nil {
		t.store.sets, t.store.seats = sets, seats
		return err
	}
	return nil
}

type auditEntry struct {
	action   common_models.AuditAction
	recordID string
	changes  map[string]common_models.Change
}

type fakeAudit struct {
	entries []auditEntry
}

func (f *fakeAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	f.entries = append(f.entries, auditEntry{action: action, recordID: recordID, changes: changes})
	return nil
}

func (f *fakeAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func (f *fakeAudit) count(action common_models.AuditAction) int {
	n := 0
	for _, e := range f.entries {
		if e.action == action {
			n++
		}
	}
	return n
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEvents) Publish(tenantID string, event any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event.(Event))
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateSeats(ctx context.Context, seatIDs ...string) error {
	f.invalidated = append(f.invalidated, seatIDs...)
	return nil
}

type harness struct {
	svc    *PermissionSetServiceImpl
	store  *memStore
	audit  *fakeAudit
	events *fakeEvents
	cache  *fakeCache
	now    time.Time
}

func newHarness() *harness {
	store := newMemStore()
	h := &harness{
		store:  store,
		audit:  &fakeAudit{},
		events: &fakeEvents{},
		cache:  &fakeCache{},
		now:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}

	ids := 0
	h.svc = &PermissionSetServiceImpl{
		Repo:         store,
		Seats:        store,
		Tx:           memTx{store: store},
		AuditService: h.audit,
		Events:       h.events,
		Cache:        h.cache,
		Logger:       zap.NewNop(),
		Schema:       DefaultSchema(),
		NewID: func() string {
			ids++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", ids)
		},
		Now: func() time.Time { return h.now },
	}
	return h
}

// seed stores a set for tenantID directly.
func (h *harness) seed(tenantID, id string, mutate func(*PermissionSet)) *PermissionSet {
	flat, err := Flatten(DefaultSchema(), nil, true, false)
	if err != nil {
		panic(err)
	}
	p := &PermissionSet{
		ID:          id,
		TenantID:    tenantID,
		Name:        "Set " + id,
		Predefined:  true,
		Editable:    true,
		Permissions: flat,
		CreatedAt:   h.now.Add(-time.Hour),
		UpdatedAt:   h.now.Add(-time.Hour),
		State:       StateActive,
	}
	if mutate != nil {
		mutate(p)
	}
	h.store.put(p)
	return p
}

func testConfig() *config.Config {
	return &config.Config{SkipAuth: true}
}
