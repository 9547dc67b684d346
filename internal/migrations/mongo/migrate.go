package mongo

import (
	"context"
	"fmt"

	"hotelops/internal/migrations"
	"hotelops/internal/slots/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	SlotAllocationsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "slot_number", Value: 1}},
			Options: options.Index().
				SetName(repository.ActiveSlotIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{
			{Key: "slot_number", Value: 1},
			{Key: "allocated_at", Value: -1},
			{Key: "seq", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "active", Value: 1},
			{Key: "slot_number", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "allocated_at", Value: -1},
			{Key: "seq", Value: -1},
		}},
	}
)

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, db *mongo.Database, report *migrations.Reporter) error {
	report.Infof("Running slot Mongo migrations on database: %s", db.Name())

	collections := []collectionDef{
		{
			Name:      repository.CollectionName,
			Indexes:   SlotAllocationsIndexes,
			Validator: SlotAllocationValidator,
		},
		{
			Name: repository.CountersCollectionName,
		},
	}

	for _, def := range collections {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, report); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if len(def.Indexes) == 0 {
			continue
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, report); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	report.Successf("All Mongo migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, report *migrations.Reporter) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		report.Infof("Creating collection: %s", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		report.Infof("Collection %s already exists", name)
		return nil
	}

	report.Infof("Collection %s already exists, updating validator", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		report.Warnf("Failed updating validator for %s: %v", name, err)
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, report *migrations.Reporter) error {
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	report.Infof("Ensured %d indexes for %s", len(models), name)
	return nil
}
