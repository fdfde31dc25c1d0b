package organization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/features/audit"
	"twol-crm/internal/features/permissionset"
	"twol-crm/internal/features/seat"
	"twol-crm/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrganizationService interface {
	Onboard(ctx context.Context, name, ownerUserID string) (*Onboarding, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
}

type OrganizationServiceImpl struct {
	Repo           OrganizationRepository
	PermissionSets permissionset.PermissionSetService
	Seats          seat.SeatRepository
	Tx             permissionset.Transactor
	AuditService   audit.AuditService
	Logger         *zap.Logger
	NewID          func() string
	Now            func() time.Time
}

func NewOrganizationService(
	repo OrganizationRepository,
	permissionSets permissionset.PermissionSetService,
	seats seat.SeatRepository,
	tx permissionset.Transactor,
	auditService audit.AuditService,
	logger *zap.Logger,
) OrganizationService {
	return &OrganizationServiceImpl{
		Repo:           repo,
		PermissionSets: permissionSets,
		Seats:          seats,
		Tx:             tx,
		AuditService:   auditService,
		Logger:         logger,
		NewID:          uuid.NewString,
		Now:            time.Now,
	}
}

// Onboard creates the organization, its Account Owner set and the owner's seat in one
// transaction.
func (s *OrganizationServiceImpl) Onboard(ctx context.Context, name, ownerUserID string) (*Onboarding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if ownerUserID == "" {
		return nil, fmt.Errorf("%w: owner is required", errs.ErrValidation)
	}

	now := s.Now().UTC()
	org := &Organization{
		ID:          s.NewID(),
		Name:        name,
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	org.Slug = slugFor(name, org.ID)

	result := &Onboarding{Organization: org}
	ctx = common_models.WithTenant(ctx, org.ID, ownerUserID)

	err := s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.Repo.Create(ctx, org); err != nil {
			return err
		}

		setID, err := s.PermissionSets.SeedAccountOwner(ctx, org.ID, ownerUserID)
		if err != nil {
			return fmt.Errorf("seed account owner: %w", err)
		}
		result.AccountOwnerSetID = setID

		ownerSeat := &seat.Seat{
			ID:              s.NewID(),
			TenantID:        org.ID,
			UserID:          ownerUserID,
			PermissionSetID: setID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Seats.Create(ctx, ownerSeat); err != nil {
			return fmt.Errorf("create owner seat: %w", err)
		}
		result.OwnerSeatID = ownerSeat.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "organization", org.ID, org.Name)
	s.audit(ctx, "permission_set", result.AccountOwnerSetID, permissionset.AccountOwnerName)

	s.Logger.Info("organization onboarded",
		zap.String("tenant_id", org.ID),
		zap.String("slug", org.Slug),
		zap.String("owner_user_id", ownerUserID))
	return result, nil
}

func (s *OrganizationServiceImpl) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: tenant is required", errs.ErrValidation)
	}
	return s.Repo.FindByID(ctx, id)
}

func slugFor(name, id string) string {
	slug := utils.Slugify(name)
	if slug == "" {
		slug = "org"
	}
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return slug + "-" + suffix
}

func (s *OrganizationServiceImpl) audit(ctx context.Context, module, recordID, name string) {
	if err := s.AuditService.LogChange(ctx, common_models.AuditActionOnboard, module, recordID, map[string]common_models.Change{
		"name": {New: name},
	}); err != nil {
		s.Logger.Warn("failed to write audit log",
			zap.String("module", module),
			zap.String("record_id", recordID),
			zap.Error(err))
	}
}
