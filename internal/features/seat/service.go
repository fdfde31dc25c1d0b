package seat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/features/audit"
	"twol-crm/internal/features/permissionset"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditModule = "seat"

type SeatService interface {
	CreateSeat(ctx context.Context, tenantID, userID, setID string) (*Seat, error)
	GetSeat(ctx context.Context, tenantID, seatID string) (*Seat, error)
	AssignPermissionSet(ctx context.Context, tenantID, seatID, setID string) error
	GetEffectivePermissions(ctx context.Context, tenantID, seatID string) (*EffectivePermissions, error)
	HasCapability(ctx context.Context, tenantID, userID, capability string) (bool, error)
}

type SeatServiceImpl struct {
	Repo         SeatRepository
	Sets         permissionset.PermissionSetRepository
	Cache        *EffectiveCache
	AuditService audit.AuditService
	Logger       *zap.Logger
	Schema       *permissionset.Schema
	NewID        func() string
	Now          func() time.Time
}

func NewSeatService(
	repo SeatRepository,
	sets permissionset.PermissionSetRepository,
	cache *EffectiveCache,
	auditService audit.AuditService,
	logger *zap.Logger,
) SeatService {
	return &SeatServiceImpl{
		Repo:         repo,
		Sets:         sets,
		Cache:        cache,
		AuditService: auditService,
		Logger:       logger,
		Schema:       permissionset.DefaultSchema(),
		NewID:        uuid.NewString,
		Now:          time.Now,
	}
}

func (s *SeatServiceImpl) CreateSeat(ctx context.Context, tenantID, userID, setID string) (*Seat, error) {
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("%w: tenant and user are required", errs.ErrValidation)
	}
	if _, err := s.setOf(ctx, tenantID, setID); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	seat := &Seat{
		ID:              s.NewID(),
		TenantID:        tenantID,
		UserID:          userID,
		PermissionSetID: setID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, seat); err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionCreate, seat.ID, map[string]common_models.Change{
		"permission_set_id": {New: setID},
	})
	return seat, nil
}

func (s *SeatServiceImpl) GetSeat(ctx context.Context, tenantID, seatID string) (*Seat, error) {
	seat, err := s.Repo.FindByID(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if seat.TenantID != tenantID {
		return nil, fmt.Errorf("%w: seat %q belongs to another tenant", errs.ErrNotAuthorized, seatID)
	}
	return seat, nil
}

// AssignPermissionSet points the seat at another set of the same tenant.
func (s *SeatServiceImpl) AssignPermissionSet(ctx context.Context, tenantID, seatID, setID string) error {
	seat, err := s.GetSeat(ctx, tenantID, seatID)
	if err != nil {
		return err
	}
	if _, err := s.setOf(ctx, tenantID, setID); err != nil {
		return err
	}
	if seat.PermissionSetID == setID {
		return nil
	}

	if err := s.Repo.AttachPermissionSet(ctx, seatID, setID); err != nil {
		return err
	}
	if err := s.Cache.InvalidateSeats(ctx, seatID); err != nil {
		s.Logger.Warn("failed to invalidate seat permissions", zap.String("seat_id", seatID), zap.Error(err))
	}

	s.audit(ctx, common_models.AuditActionAssign, seatID, map[string]common_models.Change{
		"permission_set_id": {Old: seat.PermissionSetID, New: setID},
	})
	return nil
}

func (s *SeatServiceImpl) GetEffectivePermissions(ctx context.Context, tenantID, seatID string) (*EffectivePermissions, error) {
	seat, err := s.GetSeat(ctx, tenantID, seatID)
	if err != nil {
		return nil, err
	}
	g, err := s.resolve(ctx, seat)
	if err != nil {
		return nil, err
	}

	return &EffectivePermissions{
		SeatID:            seat.ID,
		PermissionSetID:   g.PermissionSetID,
		AccountOwner:      g.AccountOwner,
		SuperAdmin:        g.SuperAdmin,
		PermissionDataSet: permissionset.Unflatten(s.Schema, g.flat()),
	}, nil
}

// HasCapability reports whether the user's seat in tenantID grants capability. Users without
// a seat have no capabilities.
func (s *SeatServiceImpl) HasCapability(ctx context.Context, tenantID, userID, capability string) (bool, error) {
	seat, err := s.Repo.FindByUser(ctx, tenantID, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	g, err := s.resolve(ctx, seat)
	if err != nil {
		return false, err
	}
	return g.allows(capability), nil
}

func (s *SeatServiceImpl) resolve(ctx context.Context, seat *Seat) (grant, error) {
	if g, ok := s.Cache.get(ctx, seat.ID); ok && g.PermissionSetID == seat.PermissionSetID {
		return g, nil
	}

	set, err := s.Sets.FindByID(ctx, seat.PermissionSetID)
	if err != nil {
		return grant{}, err
	}
	g := newGrant(set)
	s.Cache.put(ctx, seat.ID, g)
	return g, nil
}

func (s *SeatServiceImpl) setOf(ctx context.Context, tenantID, setID string) (*permissionset.PermissionSet, error) {
	if setID == "" {
		return nil, fmt.Errorf("%w: permissionSetId is required", errs.ErrValidation)
	}
	set, err := s.Sets.FindByID(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set.TenantID != tenantID {
		return nil, fmt.Errorf("%w: permission set %q belongs to another tenant", errs.ErrNotAuthorized, setID)
	}
	return set, nil
}

func (s *SeatServiceImpl) audit(ctx context.Context, action common_models.AuditAction, recordID string, changes map[string]common_models.Change) {
	if err := s.AuditService.LogChange(ctx, action, auditModule, recordID, changes); err != nil {
		s.Logger.Warn("failed to write audit log",
			zap.String("action", string(action)),
			zap.String("record_id", recordID),
			zap.Error(err))
	}
}
