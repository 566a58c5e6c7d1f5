package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
)

// Versioned is an entity updated under optimistic locking.
type Versioned interface {
	GetID() id.ID
	GetVersion() int
	SetVersion(v int)
	SetUpdatedAt(at time.Time)
}

// BaseRepo provides CRUD for one table whose rows map onto T by db tags.
type BaseRepo[T Versioned] struct {
	txManager  *TxManager
	tableName  string
	entityName string
	selectCols []string
	defaultOrd string
}

// NewBaseRepo creates a base repository. Columns are taken from T's db tags.
func NewBaseRepo[T Versioned](txManager *TxManager, tableName, entityName, defaultOrder string, selectCols []string) *BaseRepo[T] {
	return &BaseRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		defaultOrd: defaultOrder,
	}
}

// Builder returns a squirrel builder with Postgres placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction or pool for ctx.
func (r *BaseRepo[T]) Querier(ctx context.Context) Querier {
	return r.txManager.GetQuerier(ctx)
}

// Table returns the table name.
func (r *BaseRepo[T]) Table() string { return r.tableName }

// Select starts a SELECT of all mapped columns.
func (r *BaseRepo[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(r.selectCols...).From(r.tableName)
}

// Create inserts entity.
func (r *BaseRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.insertSQL(entity)
	if err != nil {
		return err
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewDuplicate(r.entityName, "id", entity.GetID().String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

func (r *BaseRepo[T]) insertSQL(entity T) (string, []any, error) {
	data := StructToMap(entity)
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	if len(filtered) == 0 {
		return "", nil, fmt.Errorf("no db tags found in %T", entity)
	}

	sql, args, err := Builder().Insert(r.tableName).SetMap(filtered).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return sql, args, nil
}

// Update writes entity if its version still matches the stored row, then
// syncs the new version and timestamp back into entity.
func (r *BaseRepo[T]) Update(ctx context.Context, entity T) error {
	q, err := r.updateQuery(entity)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var (
		version   int
		updatedAt time.Time
	)
	err = r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewConcurrentModification(r.entityName, entity.GetID())
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}

	entity.SetVersion(version)
	entity.SetUpdatedAt(updatedAt)
	return nil
}

func (r *BaseRepo[T]) updateQuery(entity T) (squirrel.UpdateBuilder, error) {
	data := StructToMap(entity)
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "created_at", "created_by", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	if len(filtered) == 0 {
		return squirrel.UpdateBuilder{}, fmt.Errorf("no db tags found in %T", entity)
	}

	return Builder().
		Update(r.tableName).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entity.GetID()}).
		Where(squirrel.Eq{"version": entity.GetVersion()}).
		Suffix("RETURNING version, updated_at"), nil
}

// Delete removes a row.
func (r *BaseRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := Builder().Delete(r.tableName).Where(squirrel.Eq{"id": entityID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// Get scans one row of q into dst.
func (r *BaseRepo[T]) Get(ctx context.Context, dst T, q squirrel.SelectBuilder, key any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.Querier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(r.entityName, key)
		}
		return fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return nil
}

// GetByID loads one row into dst.
func (r *BaseRepo[T]) GetByID(ctx context.Context, dst T, entityID id.ID) error {
	return r.Get(ctx, dst, r.Select().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// GetForUpdate loads one row into dst and locks it.
func (r *BaseRepo[T]) GetForUpdate(ctx context.Context, dst T, entityID id.ID) error {
	return r.Get(ctx, dst, r.Select().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID.String())
}

// SelectAll scans all rows of q into dst.
func (r *BaseRepo[T]) SelectAll(ctx context.Context, dst *[]T, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.Querier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return nil
}

// List counts and pages q.
func (r *BaseRepo[T]) List(ctx context.Context, q squirrel.SelectBuilder, f domain.ListFilter) (domain.ListResult[T], error) {
	f.Normalize()
	result := domain.ListResult[T]{Items: []T{}, Limit: f.Limit, Offset: f.Offset}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	orderBy, err := r.ParseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id").Limit(uint64(f.Limit)).Offset(uint64(f.Offset))

	if err := r.SelectAll(ctx, &result.Items, q); err != nil {
		return result, err
	}
	return result, nil
}

// ParseOrderBy turns "field" or "-field" into an ORDER BY clause, accepting
// only mapped columns.
func (r *BaseRepo[T]) ParseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return r.defaultOrd, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}

	for _, col := range r.selectCols {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}

// IsUniqueViolation reports a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
