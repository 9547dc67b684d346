package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	slotserrors "hotelops/internal/slots/errors"
	"hotelops/pkg/model"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	TableName = "slot_allocations"

	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	pgUniqueViolation = "23505"
)

var recordColumns = []string{"id", "slot_number", "occupant_ref", "allocated_at", "released_at"}

type sqlAllocationStore struct {
	db      *sql.DB
	dialect string
	builder squirrel.StatementBuilderType
	timeout time.Duration
}

// NewSQLAllocationStore returns a store over the slot_allocations table. The
// partial unique index on slot_number WHERE released_at IS NULL provides the
// one-active-record guarantee, and the identity column is the sequence.
func NewSQLAllocationStore(db *sql.DB, dialect string, timeout time.Duration) (AllocationStore, error) {
	var placeholder squirrel.PlaceholderFormat
	switch dialect {
	case DialectPostgres:
		placeholder = squirrel.Dollar
	case DialectSQLite:
		placeholder = squirrel.Question
	default:
		return nil, fmt.Errorf("unsupported SQL dialect: %s", dialect)
	}

	return &sqlAllocationStore{
		db:      db,
		dialect: dialect,
		builder: squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		timeout: timeout,
	}, nil
}

func (r *sqlAllocationStore) Append(ctx context.Context, rec *model.AllocationRecord) (string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query, args, err := r.builder.Insert(TableName).
		Columns("slot_number", "occupant_ref", "allocated_at", "released_at").
		Values(rec.SlotNumber, rec.OccupantRef, rec.AllocatedAt.UTC(), nullTime(rec.ReleasedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert query: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return "", slotserrors.ErrActiveAllocationExists
		}
		return "", fmt.Errorf("failed to append allocation: %w", err)
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.Sequence = id
	return rec.ID, nil
}

func (r *sqlAllocationStore) LatestForSlot(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query, args, err := r.builder.Select(recordColumns...).
		From(TableName).
		Where(squirrel.Eq{"slot_number": slotNumber}).
		OrderBy("allocated_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest query: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest allocation: %w", err)
	}
	return rec, nil
}

func (r *sqlAllocationStore) MarkReleased(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	recordID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	query, args, err := r.builder.Update(TableName).
		Set("released_at", releasedAt.UTC()).
		Where(squirrel.Eq{"id": recordID, "released_at": nil}).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build release query: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to release allocation: %w", err)
	}

	return nil, r.releaseMissReason(ctx, recordID)
}

// releaseMissReason tells an unknown id from an already released one after the
// conditional update matched nothing.
func (r *sqlAllocationStore) releaseMissReason(ctx context.Context, id int64) error {
	query, args, err := r.builder.Select("released_at").
		From(TableName).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lookup query: %w", err)
	}

	var releasedAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&releasedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slotserrors.ErrNotFound
		}
		return fmt.Errorf("failed to look up allocation: %w", err)
	}
	if releasedAt.Valid {
		return slotserrors.ErrAlreadyReleased
	}
	return fmt.Errorf("allocation %d was not released", id)
}

func (r *sqlAllocationStore) HistoryForSlot(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error) {
	query, args, err := r.builder.Select(recordColumns...).
		From(TableName).
		Where(squirrel.Eq{"slot_number": slotNumber}).
		OrderBy("allocated_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}
	return r.queryRecords(ctx, query, args)
}

func (r *sqlAllocationStore) ActiveAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	query, args, err := r.builder.Select(recordColumns...).
		From(TableName).
		Where(squirrel.Eq{"released_at": nil}).
		OrderBy("slot_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build active query: %w", err)
	}
	return r.queryRecords(ctx, query, args)
}

func (r *sqlAllocationStore) AllAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	query, args, err := r.builder.Select(recordColumns...).
		From(TableName).
		OrderBy("allocated_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build allocation log query: %w", err)
	}
	return r.queryRecords(ctx, query, args)
}

func (r *sqlAllocationStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *sqlAllocationStore) queryRecords(ctx context.Context, query string, args []any) ([]*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	records := []*model.AllocationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.AllocationRecord, error) {
	var (
		id         int64
		rec        model.AllocationRecord
		releasedAt sql.NullTime
	)
	if err := row.Scan(&id, &rec.SlotNumber, &rec.OccupantRef, &rec.AllocatedAt, &releasedAt); err != nil {
		return nil, err
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.Sequence = id
	rec.AllocatedAt = rec.AllocatedAt.UTC()
	if releasedAt.Valid {
		ts := releasedAt.Time.UTC()
		rec.ReleasedAt = &ts
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

