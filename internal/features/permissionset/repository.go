package permissionset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"twol-crm/internal/common/errs"
	"twol-crm/internal/database"
	"twol-crm/pkg/pagination"

	"github.com/google/uuid"
)

type PermissionSetRepository interface {
	Create(ctx context.Context, set *PermissionSet) error
	FindByID(ctx context.Context, id string) (*PermissionSet, error)
	List(ctx context.Context, filter ListFilter) ([]PermissionSet, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Update(ctx context.Context, set *PermissionSet) error
	Delete(ctx context.Context, id string) error
	FindAccountOwner(ctx context.Context, tenantID string) (*PermissionSet, error)
	ListOrphans(ctx context.Context, createdBefore time.Time) ([]PermissionSet, error)
	ListAll(ctx context.Context, tenantID string) ([]PermissionSet, error)
}

var metaColumns = []string{
	"id", "tenant_id", "name", "predefined", "editable", "account_owner", "super_admin",
	"created_by", "created_at", "updated_at",
}

var sortColumns = map[string]string{
	"name":       "name",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"predefined": "predefined",
}

var defaultSort = pagination.Sort{Column: "created_at", Order: pagination.SortDesc}

// ListFilter is a set of optional predicates combined with AND, plus ordering and paging.
type ListFilter struct {
	conditions []condition
	Sort       pagination.Sort
	Page       pagination.Pagination
}

type condition struct {
	sql  string
	args []any
}

// NewListFilter translates query string parameters into a filter scoped to tenantID.
func NewListFilter(tenantID string, q ListQuery) ListFilter {
	f := ListFilter{
		Sort: pagination.ParseSort(q.ToOrderBy, q.ToOrderByStartWith, sortColumns, defaultSort),
		Page: pagination.New(q.ToSkip, q.ToTake),
	}
	return f.WithTenant(tenantID).WithSearch(q.SearchTerm).WithScope(q.Scope)
}

func (f ListFilter) with(c condition) ListFilter {
	f.conditions = append(append([]condition(nil), f.conditions...), c)
	return f
}

func (f ListFilter) WithTenant(tenantID string) ListFilter {
	if tenantID == "" {
		return f
	}
	return f.with(condition{sql: "tenant_id = ?", args: []any{tenantID}})
}

// WithSearch matches the name case-insensitively.
func (f ListFilter) WithSearch(term string) ListFilter {
	term = strings.TrimSpace(term)
	if term == "" {
		return f
	}
	return f.with(condition{sql: "name ILIKE ?", args: []any{"%" + escapeLike(term) + "%"}})
}

func (f ListFilter) WithScope(scope Scope) ListFilter {
	switch scope {
	case ScopeShared:
		return f.with(condition{sql: "predefined = ?", args: []any{true}})
	case ScopePrivate:
		return f.with(condition{sql: "predefined = ?", args: []any{false}})
	default:
		return f
	}
}

// where renders the predicates with numbered placeholders.
func (f ListFilter) where() (string, []any) {
	if len(f.conditions) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(f.conditions))
	var args []any
	for _, c := range f.conditions {
		clause := c.sql
		for _, a := range c.args {
			args = append(args, a)
			clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		parts = append(parts, clause)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type executorSource interface {
	Executor(ctx context.Context) database.Executor
}

type PermissionSetRepositoryImpl struct {
	db     executorSource
	schema *Schema
}

func NewPermissionSetRepository(db *database.Postgres) PermissionSetRepository {
	return &PermissionSetRepositoryImpl{db: db, schema: DefaultSchema()}
}

func (r *PermissionSetRepositoryImpl) selectColumns() string {
	return strings.Join(append(append([]string(nil), metaColumns...), r.schema.Columns()...), ", ")
}

func (r *PermissionSetRepositoryImpl) Create(ctx context.Context, set *PermissionSet) error {
	columns := append(append([]string(nil), metaColumns...), r.schema.Columns()...)
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	args := []any{
		set.ID, set.TenantID, set.Name, set.Predefined, set.Editable, set.AccountOwner,
		set.SuperAdmin, set.CreatedBy, set.CreatedAt, set.UpdatedAt,
	}
	args = append(args, r.permissionArgs(set.Permissions)...)

	query := fmt.Sprintf("INSERT INTO permission_sets (%s) VALUES (%s)",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: permission set already exists", errs.ErrConflict)
		}
		return database.StorageError("create permission set", err)
	}
	return nil
}

func (r *PermissionSetRepositoryImpl) FindByID(ctx context.Context, id string) (*PermissionSet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}

	query := fmt.Sprintf("SELECT %s FROM permission_sets WHERE id = $1", r.selectColumns())
	set, err := r.scan(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, database.StorageError("find permission set", err)
	}
	return set, nil
}

func (r *PermissionSetRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]PermissionSet, error) {
	where, args := filter.where()
	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf("SELECT %s FROM permission_sets%s ORDER BY %s, id LIMIT $%d OFFSET $%d",
		r.selectColumns(), where, filter.Sort.SQL(), len(args)-1, len(args))

	return r.query(ctx, "list permission sets", query, args...)
}

func (r *PermissionSetRepositoryImpl) Count(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := filter.where()
	var total int64
	if err := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM permission_sets"+where, args...).Scan(&total); err != nil {
		return 0, database.StorageError("count permission sets", err)
	}
	return total, nil
}

// Update replaces the name, flags and every leaf value.
func (r *PermissionSetRepositoryImpl) Update(ctx context.Context, set *PermissionSet) error {
	assignments := []string{"name = $2", "super_admin = $3", "updated_at = $4"}
	args := []any{set.ID, set.Name, set.SuperAdmin, set.UpdatedAt}
	for i, col := range r.schema.Columns() {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, i+5))
	}
	args = append(args, r.permissionArgs(set.Permissions)...)

	query := fmt.Sprintf("UPDATE permission_sets SET %s WHERE id = $1", strings.Join(assignments, ", "))
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return database.StorageError("update permission set", err)
	}
	return expectRow(result, set.ID)
}

func (r *PermissionSetRepositoryImpl) Delete(ctx context.Context, id string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, "DELETE FROM permission_sets WHERE id = $1", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: permission set %q is still assigned to seats", errs.ErrConflict, id)
		}
		return database.StorageError("delete permission set", err)
	}
	return expectRow(result, id)
}

func (r *PermissionSetRepositoryImpl) FindAccountOwner(ctx context.Context, tenantID string) (*PermissionSet, error) {
	query := fmt.Sprintf("SELECT %s FROM permission_sets WHERE tenant_id = $1 AND account_owner = TRUE", r.selectColumns())
	set, err := r.scan(r.db.Executor(ctx).QueryRowContext(ctx, query, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account owner set for tenant %q: %w", tenantID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, database.StorageError("find account owner set", err)
	}
	return set, nil
}

// ListOrphans returns private sets created before createdBefore that no seat references.
func (r *PermissionSetRepositoryImpl) ListOrphans(ctx context.Context, createdBefore time.Time) ([]PermissionSet, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_sets ps
		WHERE ps.predefined = FALSE AND ps.account_owner = FALSE AND ps.created_at < $1
		AND NOT EXISTS (SELECT 1 FROM seats s WHERE s.permission_set_id = ps.id)
		ORDER BY ps.created_at`, r.selectColumns())
	return r.query(ctx, "list orphan permission sets", query, createdBefore)
}

func (r *PermissionSetRepositoryImpl) ListAll(ctx context.Context, tenantID string) ([]PermissionSet, error) {
	query := fmt.Sprintf("SELECT %s FROM permission_sets WHERE tenant_id = $1 ORDER BY name, id", r.selectColumns())
	return r.query(ctx, "list all permission sets", query, tenantID)
}

func (r *PermissionSetRepositoryImpl) query(ctx context.Context, op, query string, args ...any) ([]PermissionSet, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.StorageError(op, err)
	}
	defer rows.Close()

	sets := make([]PermissionSet, 0)
	for rows.Next() {
		set, err := r.scan(rows)
		if err != nil {
			return nil, database.StorageError(op, err)
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageError(op, err)
	}
	return sets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PermissionSetRepositoryImpl) scan(row rowScanner) (*PermissionSet, error) {
	set := &PermissionSet{State: StateActive}
	dest := []any{
		&set.ID, &set.TenantID, &set.Name, &set.Predefined, &set.Editable, &set.AccountOwner,
		&set.SuperAdmin, &set.CreatedBy, &set.CreatedAt, &set.UpdatedAt,
	}

	tiers := make(map[string]*int64)
	bools := make(map[string]*bool)
	for leaf := range r.schema.Leaves() {
		if leaf.Kind == KindTier {
			v := new(int64)
			tiers[leaf.Column()] = v
			dest = append(dest, v)
		} else {
			v := new(bool)
			bools[leaf.Column()] = v
			dest = append(dest, v)
		}
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	set.Permissions = make(FlatRecord, r.schema.Len())
	for col, v := range tiers {
		set.Permissions[col] = Tier(*v)
	}
	for col, v := range bools {
		set.Permissions[col] = *v
	}
	return set, nil
}

// permissionArgs returns leaf values in column order, restrictive for absent columns.
func (r *PermissionSetRepositoryImpl) permissionArgs(flat FlatRecord) []any {
	args := make([]any, 0, r.schema.Len())
	for leaf := range r.schema.Leaves() {
		col := leaf.Column()
		if leaf.Kind == KindTier {
			t, ok := flat[col].(Tier)
			if !ok {
				t = TierNone
			}
			args = append(args, int64(t))
			continue
		}
		args = append(args, flat.Bool(col))
	}
	return args
}

func expectRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return database.StorageError("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("permission set %q: %w", id, errs.ErrNotFound)
	}
	return nil
}
