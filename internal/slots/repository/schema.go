package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	slotserrors "hotelops/internal/slots/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const mongoNamespaceNotFound = 26

type schemaChecker interface {
	checkSchema(ctx context.Context) error
}

// VerifySchema fails with ErrSchemaNotMigrated when the store lacks the
// active-slot unique index that Append relies on. Stores that enforce the
// guarantee in process always pass.
func VerifySchema(ctx context.Context, store AllocationStore) error {
	checker, ok := store.(schemaChecker)
	if !ok {
		return nil
	}
	return checker.checkSchema(ctx)
}

func (r *mongoAllocationStore) checkSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	specs, err := r.collection.Indexes().ListSpecifications(ctx)
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == mongoNamespaceNotFound {
			return fmt.Errorf("%w: collection %s does not exist", slotserrors.ErrSchemaNotMigrated, CollectionName)
		}
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	for _, spec := range specs {
		if spec.Name != ActiveSlotIndexName {
			continue
		}
		if spec.Unique == nil || !*spec.Unique {
			return fmt.Errorf("%w: index %s is not unique", slotserrors.ErrSchemaNotMigrated, ActiveSlotIndexName)
		}
		return nil
	}
	return fmt.Errorf("%w: index %s is missing", slotserrors.ErrSchemaNotMigrated, ActiveSlotIndexName)
}

func (r *sqlAllocationStore) checkSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	builder := r.builder.Select("sql").From("sqlite_master").
		Where("type = ? AND tbl_name = ? AND name = ?", "index", TableName, ActiveSlotIndexName)
	if r.dialect == DialectPostgres {
		builder = r.builder.Select("indexdef").From("pg_indexes").
			Where("tablename = ? AND indexname = ?", TableName, ActiveSlotIndexName)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build index query: %w", err)
	}

	var definition string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&definition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: index %s is missing", slotserrors.ErrSchemaNotMigrated, ActiveSlotIndexName)
		}
		return fmt.Errorf("failed to read index definition: %w", err)
	}

	definition = strings.ToUpper(definition)
	if !strings.Contains(definition, "UNIQUE") || !strings.Contains(definition, "RELEASED_AT IS NULL") {
		return fmt.Errorf("%w: index %s is not a partial unique index", slotserrors.ErrSchemaNotMigrated, ActiveSlotIndexName)
	}
	return nil
}
