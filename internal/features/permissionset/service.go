package permissionset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/features/audit"
	"twol-crm/internal/metrics"
	"twol-crm/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	auditModule      = "permission_set"
	maxNameLength    = 120
	AccountOwnerName = "Account Owner"
)

// SeatStore is the seat collaborator seen from the lifecycle manager.
type SeatStore interface {
	ListDependents(ctx context.Context, setID string) ([]string, error)
	AttachPermissionSet(ctx context.Context, seatID, setID string) error
}

// Transactor runs fn atomically. Repositories used inside fn must join the transaction
// carried by the ctx passed to fn.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher pushes events to a tenant's realtime subscribers.
type EventPublisher interface {
	Publish(tenantID string, event any)
}

// PermissionCache drops cached effective permissions of seats.
type PermissionCache interface {
	InvalidateSeats(ctx context.Context, seatIDs ...string) error
}

type PermissionSetService interface {
	CreatePermissionSet(ctx context.Context, tenantID, name string, tpl Template) (string, error)
	UpdatePermissionSet(ctx context.Context, tenantID, setID, name string, tpl Template) error
	DeletePermissionSet(ctx context.Context, tenantID, setID string) error
	GetPermissionSet(ctx context.Context, tenantID, setID string) (*PermissionSet, error)
	ListPermissionSets(ctx context.Context, tenantID string, q ListQuery) (pagination.Page[View], error)
	SeedAccountOwner(ctx context.Context, tenantID, actorID string) (string, error)
	ExportPermissionSets(ctx context.Context, tenantID string) ([]byte, error)
	SweepOrphans(ctx context.Context, olderThan time.Duration) (int, error)
}

type PermissionSetServiceImpl struct {
	Repo         PermissionSetRepository
	Seats        SeatStore
	Tx           Transactor
	AuditService audit.AuditService
	Events       EventPublisher
	Cache        PermissionCache
	Logger       *zap.Logger
	Schema       *Schema
	NewID        func() string
	Now          func() time.Time
}

func NewPermissionSetService(
	repo PermissionSetRepository,
	seats SeatStore,
	tx Transactor,
	auditService audit.AuditService,
	events EventPublisher,
	cache PermissionCache,
	logger *zap.Logger,
) PermissionSetService {
	return &PermissionSetServiceImpl{
		Repo:         repo,
		Seats:        seats,
		Tx:           tx,
		AuditService: auditService,
		Events:       events,
		Cache:        cache,
		Logger:       logger.Named("permission_set"),
		Schema:       DefaultSchema(),
		NewID:        uuid.NewString,
		Now:          time.Now,
	}
}

func (s *PermissionSetServiceImpl) CreatePermissionSet(ctx context.Context, tenantID, name string, tpl Template) (id string, err error) {
	defer s.observe("create", time.Now(), &err)

	name, err = validateName(tenantID, name)
	if err != nil {
		return "", err
	}

	flat, err := tpl.Flatten(s.Schema)
	if err != nil {
		return "", err
	}

	now := s.Now().UTC()
	set := &PermissionSet{
		ID:           s.NewID(),
		TenantID:     tenantID,
		Name:         name,
		Predefined:   true,
		Editable:     true,
		AccountOwner: false,
		SuperAdmin:   tpl.IsSuperAdmin(),
		Permissions:  flat,
		CreatedBy:    common_models.ActorFromContext(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        StateDraft,
	}
	if err := set.transition(StateActive); err != nil {
		return "", err
	}

	if err := s.Repo.Create(ctx, set); err != nil {
		return "", err
	}

	s.audit(ctx, common_models.AuditActionCreate, set.ID, map[string]common_models.Change{
		"name":     {New: set.Name},
		"template": {New: tpl.String()},
	})
	s.publish(EventCreated, set)

	return set.ID, nil
}

// UpdatePermissionSet replaces the name and every leaf value of an editable set.
func (s *PermissionSetServiceImpl) UpdatePermissionSet(ctx context.Context, tenantID, setID, name string, tpl Template) (err error) {
	defer s.observe("update", time.Now(), &err)

	name, err = validateName(tenantID, name)
	if err != nil {
		return err
	}

	set, err := s.load(ctx, tenantID, setID)
	if err != nil {
		return err
	}
	if !set.Mutable() {
		return fmt.Errorf("%w: permission set %q is not editable", errs.ErrNotAuthorized, setID)
	}

	flat, err := tpl.Flatten(s.Schema)
	if err != nil {
		return err
	}

	changes := diff(set.Permissions, flat)
	if set.Name != name {
		changes["name"] = common_models.Change{Old: set.Name, New: name}
	}

	updated := *set
	updated.Name = name
	updated.SuperAdmin = tpl.IsSuperAdmin()
	updated.Permissions = flat
	updated.UpdatedAt = s.Now().UTC()
	if err := updated.transition(StateActive); err != nil {
		return err
	}

	if err := s.Repo.Update(ctx, &updated); err != nil {
		return err
	}

	s.audit(ctx, common_models.AuditActionUpdate, setID, changes)
	s.invalidateDependents(ctx, setID)
	s.publish(EventUpdated, &updated)

	return nil
}

// deletionPlan is the output of the load phase.
type deletionPlan struct {
	set     *PermissionSet
	seatIDs []string
}

// migrationResult is the output of the migrate phase.
type migrationResult struct {
	clones map[string]*PermissionSet // seat id -> clone
}

// DeletePermissionSet moves every dependent seat onto a private clone of the set and then
// deletes it. All three phases share one transaction; a failure leaves nothing behind.
func (s *PermissionSetServiceImpl) DeletePermissionSet(ctx context.Context, tenantID, setID string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if tenantID == "" {
		return fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}

	var (
		plan   *deletionPlan
		result *migrationResult
	)

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.loadDeletion(ctx, tenantID, setID)
		if err != nil {
			return err
		}

		result, err = s.migrateDependents(ctx, plan)
		if err != nil {
			_ = plan.set.transition(StateActive)
			return fmt.Errorf("%w: %v", errs.ErrMigrationIncomplete, err)
		}

		if err := s.deleteOriginal(ctx, plan); err != nil {
			_ = plan.set.transition(StateActive)
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrMigrationIncomplete) {
			s.Logger.Error("permission set delete aborted",
				zap.String("tenant_id", tenantID),
				zap.String("set_id", setID),
				zap.Error(err))
		}
		return err
	}

	metrics.SeatsMigratedTotal.Add(float64(len(result.clones)))
	for _, seatID := range plan.seatIDs {
		clone := result.clones[seatID]
		s.audit(ctx, common_models.AuditActionMigrate, clone.ID, map[string]common_models.Change{
			"source": {Old: setID},
			"seat":   {New: seatID},
		})
	}
	s.audit(ctx, common_models.AuditActionDelete, setID, map[string]common_models.Change{
		"name": {Old: plan.set.Name},
	})
	if len(plan.seatIDs) > 0 {
		if err := s.Cache.InvalidateSeats(ctx, plan.seatIDs...); err != nil {
			s.Logger.Warn("failed to invalidate seat permissions", zap.Error(err))
		}
	}
	s.publish(EventDeleted, plan.set)

	return nil
}

func (s *PermissionSetServiceImpl) loadDeletion(ctx context.Context, tenantID, setID string) (*deletionPlan, error) {
	set, err := s.load(ctx, tenantID, setID)
	if err != nil {
		return nil, err
	}
	if !set.Deletable() {
		return nil, fmt.Errorf("%w: permission set %q cannot be deleted", errs.ErrNotAuthorized, setID)
	}

	seatIDs, err := s.Seats.ListDependents(ctx, setID)
	if err != nil {
		return nil, err
	}

	if err := set.transition(StatePendingDeletion); err != nil {
		return nil, err
	}
	return &deletionPlan{set: set, seatIDs: seatIDs}, nil
}

// migrateDependents stops at the first failure.
func (s *PermissionSetServiceImpl) migrateDependents(ctx context.Context, plan *deletionPlan) (*migrationResult, error) {
	result := &migrationResult{clones: make(map[string]*PermissionSet, len(plan.seatIDs))}
	now := s.Now().UTC()
	actorID := common_models.ActorFromContext(ctx)

	for _, seatID := range plan.seatIDs {
		clone := plan.set.clone(s.NewID(), cloneName(plan.set.Name, seatID), actorID, now)

		if err := s.Repo.Create(ctx, clone); err != nil {
			return nil, fmt.Errorf("clone for seat %s: %w", seatID, err)
		}
		if err := s.Seats.AttachPermissionSet(ctx, seatID, clone.ID); err != nil {
			return nil, fmt.Errorf("attach seat %s: %w", seatID, err)
		}
		result.clones[seatID] = clone
	}
	return result, nil
}

func (s *PermissionSetServiceImpl) deleteOriginal(ctx context.Context, plan *deletionPlan) error {
	if err := s.Repo.Delete(ctx, plan.set.ID); err != nil {
		return err
	}
	return plan.set.transition(StateDeleted)
}

func (s *PermissionSetServiceImpl) GetPermissionSet(ctx context.Context, tenantID, setID string) (*PermissionSet, error) {
	return s.load(ctx, tenantID, setID)
}

func (s *PermissionSetServiceImpl) ListPermissionSets(ctx context.Context, tenantID string, q ListQuery) (pagination.Page[View], error) {
	if tenantID == "" {
		return pagination.Page[View]{}, fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}

	filter := NewListFilter(tenantID, q)

	total, err := s.Repo.Count(ctx, filter)
	if err != nil {
		return pagination.Page[View]{}, err
	}

	sets, err := s.Repo.List(ctx, filter)
	if err != nil {
		return pagination.Page[View]{}, err
	}

	views := make([]View, 0, len(sets))
	for i := range sets {
		views = append(views, NewView(s.Schema, &sets[i]))
	}
	return pagination.NewPage(views, total, filter.Page), nil
}

// SeedAccountOwner creates the tenant's single Account Owner set. It writes no audit entry;
// callers log one once their transaction commits.
func (s *PermissionSetServiceImpl) SeedAccountOwner(ctx context.Context, tenantID, actorID string) (id string, err error) {
	defer s.observe("seed_account_owner", time.Now(), &err)

	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}

	existing, err := s.Repo.FindAccountOwner(ctx, tenantID)
	if err == nil {
		return "", fmt.Errorf("%w: tenant already has account owner set %s", errs.ErrConflict, existing.ID)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}

	flat, err := SuperAdminWithSalesPro().Flatten(s.Schema)
	if err != nil {
		return "", err
	}

	now := s.Now().UTC()
	set := &PermissionSet{
		ID:           s.NewID(),
		TenantID:     tenantID,
		Name:         AccountOwnerName,
		Predefined:   true,
		Editable:     false,
		AccountOwner: true,
		SuperAdmin:   true,
		Permissions:  flat,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        StateDraft,
	}
	if err := set.transition(StateActive); err != nil {
		return "", err
	}
	if err := s.Repo.Create(ctx, set); err != nil {
		return "", err
	}
	return set.ID, nil
}

func (s *PermissionSetServiceImpl) ExportPermissionSets(ctx context.Context, tenantID string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}

	sets, err := s.Repo.ListAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(s.Schema, sets)
}

// SweepOrphans deletes private sets older than olderThan that no seat references.
func (s *PermissionSetServiceImpl) SweepOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	orphans, err := s.Repo.ListOrphans(ctx, s.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, orphan := range orphans {
		if err := s.Repo.Delete(ctx, orphan.ID); err != nil {
			if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrConflict) {
				continue
			}
			return removed, err
		}
		removed++

		tenantCtx := common_models.WithTenant(ctx, orphan.TenantID, "system")
		s.audit(tenantCtx, common_models.AuditActionMaintain, orphan.ID, map[string]common_models.Change{
			"name": {Old: orphan.Name},
		})
	}

	metrics.OrphansSweptTotal.Add(float64(removed))
	return removed, nil
}

// load fetches a set and checks that it belongs to tenantID.
func (s *PermissionSetServiceImpl) load(ctx context.Context, tenantID, setID string) (*PermissionSet, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}
	if setID == "" {
		return nil, fmt.Errorf("%w: id is required", errs.ErrValidation)
	}

	set, err := s.Repo.FindByID(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set.TenantID != tenantID {
		return nil, fmt.Errorf("%w: permission set %q belongs to another tenant", errs.ErrNotAuthorized, setID)
	}
	return set, nil
}

func (s *PermissionSetServiceImpl) invalidateDependents(ctx context.Context, setID string) {
	seatIDs, err := s.Seats.ListDependents(ctx, setID)
	if err != nil {
		s.Logger.Warn("failed to list dependents for cache invalidation", zap.String("set_id", setID), zap.Error(err))
		return
	}
	if len(seatIDs) == 0 {
		return
	}
	if err := s.Cache.InvalidateSeats(ctx, seatIDs...); err != nil {
		s.Logger.Warn("failed to invalidate seat permissions", zap.String("set_id", setID), zap.Error(err))
	}
}

func (s *PermissionSetServiceImpl) audit(ctx context.Context, action common_models.AuditAction, recordID string, changes map[string]common_models.Change) {
	if err := s.AuditService.LogChange(ctx, action, auditModule, recordID, changes); err != nil {
		s.Logger.Warn("failed to write audit log",
			zap.String("action", string(action)),
			zap.String("record_id", recordID),
			zap.Error(err))
	}
}

func (s *PermissionSetServiceImpl) publish(eventType string, set *PermissionSet) {
	s.Events.Publish(set.TenantID, Event{
		Type:     eventType,
		TenantID: set.TenantID,
		SetID:    set.ID,
		Name:     set.Name,
	})
}

func (s *PermissionSetServiceImpl) observe(operation string, start time.Time, err *error) {
	metrics.ObserveOperation(operation, time.Since(start).Seconds(), *err)
}

func validateName(tenantID, name string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", errs.ErrValidation, maxNameLength)
	}
	return name, nil
}

func cloneName(name, seatID string) string {
	prefix := seatID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s (%s)", name, prefix)
}

// diff lists columns whose value changed.
func diff(before, after FlatRecord) map[string]common_models.Change {
	changes := make(map[string]common_models.Change)
	for col, v := range after {
		if old, ok := before[col]; !ok || old != v {
			changes[col] = common_models.Change{Old: before[col], New: v}
		}
	}
	return changes
}
