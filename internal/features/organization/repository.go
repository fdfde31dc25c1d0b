package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"twol-crm/internal/common/errs"
	"twol-crm/internal/database"

	"github.com/google/uuid"
)

const organizationColumns = "id, name, slug, owner_user_id, created_at, updated_at"

type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id string) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
}

type executorSource interface {
	Executor(ctx context.Context) database.Executor
}

type OrganizationRepositoryImpl struct {
	db executorSource
}

func NewOrganizationRepository(db *database.Postgres) OrganizationRepository {
	return &OrganizationRepositoryImpl{db: db}
}

func (r *OrganizationRepositoryImpl) Create(ctx context.Context, org *Organization) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		"INSERT INTO organizations ("+organizationColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		org.ID, org.Name, org.Slug, org.OwnerUserID, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: organization %q already exists", errs.ErrConflict, org.Slug)
		}
		return database.StorageError("create organization", err)
	}
	return nil
}

func (r *OrganizationRepositoryImpl) FindByID(ctx context.Context, id string) (*Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("organization %q: %w", id, errs.ErrNotFound)
	}
	row := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE id = $1", id)
	return scanOrganization(row, id)
}

func (r *OrganizationRepositoryImpl) FindBySlug(ctx context.Context, slug string) (*Organization, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE slug = $1", slug)
	return scanOrganization(row, slug)
}

func scanOrganization(row *sql.Row, key string) (*Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.OwnerUserID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %q: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return nil, database.StorageError("find organization", err)
	}
	return &org, nil
}
