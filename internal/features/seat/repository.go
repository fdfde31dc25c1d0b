package seat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"twol-crm/internal/common/errs"
	"twol-crm/internal/database"

	"github.com/google/uuid"
)

const seatColumns = "id, tenant_id, user_id, permission_set_id, created_at, updated_at"

type SeatRepository interface {
	Create(ctx context.Context, seat *Seat) error
	FindByID(ctx context.Context, id string) (*Seat, error)
	FindByUser(ctx context.Context, tenantID, userID string) (*Seat, error)
	ListDependents(ctx context.Context, setID string) ([]string, error)
	AttachPermissionSet(ctx context.Context, seatID, setID string) error
}

type executorSource interface {
	Executor(ctx context.Context) database.Executor
}

type SeatRepositoryImpl struct {
	db executorSource
}

func NewSeatRepository(db *database.Postgres) SeatRepository {
	return &SeatRepositoryImpl{db: db}
}

func (r *SeatRepositoryImpl) Create(ctx context.Context, seat *Seat) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		"INSERT INTO seats ("+seatColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		seat.ID, seat.TenantID, seat.UserID, seat.PermissionSetID, seat.CreatedAt, seat.UpdatedAt)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return fmt.Errorf("%w: user %q already has a seat", errs.ErrConflict, seat.UserID)
		case database.IsForeignKeyViolation(err):
			return fmt.Errorf("permission set %q: %w", seat.PermissionSetID, errs.ErrNotFound)
		}
		return database.StorageError("create seat", err)
	}
	return nil
}

func (r *SeatRepositoryImpl) FindByID(ctx context.Context, id string) (*Seat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("seat %q: %w", id, errs.ErrNotFound)
	}
	row := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT "+seatColumns+" FROM seats WHERE id = $1", id)
	return r.one(row, "seat "+id)
}

func (r *SeatRepositoryImpl) FindByUser(ctx context.Context, tenantID, userID string) (*Seat, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE tenant_id = $1 AND user_id = $2", tenantID, userID)
	return r.one(row, "seat of user "+userID)
}

// ListDependents returns the ids of seats that use setID.
func (r *SeatRepositoryImpl) ListDependents(ctx context.Context, setID string) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		"SELECT id FROM seats WHERE permission_set_id = $1 ORDER BY id", setID)
	if err != nil {
		return nil, database.StorageError("list dependent seats", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, database.StorageError("list dependent seats", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageError("list dependent seats", err)
	}
	return ids, nil
}

func (r *SeatRepositoryImpl) AttachPermissionSet(ctx context.Context, seatID, setID string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		"UPDATE seats SET permission_set_id = $2, updated_at = NOW() WHERE id = $1", seatID, setID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("permission set %q: %w", setID, errs.ErrNotFound)
		}
		return database.StorageError("attach permission set", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return database.StorageError("attach permission set", err)
	}
	if n == 0 {
		return fmt.Errorf("seat %q: %w", seatID, errs.ErrNotFound)
	}
	return nil
}

func (r *SeatRepositoryImpl) one(row *sql.Row, what string) (*Seat, error) {
	var s Seat
	err := row.Scan(&s.ID, &s.TenantID, &s.UserID, &s.PermissionSetID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	}
	if err != nil {
		return nil, database.StorageError("find seat", err)
	}
	return &s, nil
}
