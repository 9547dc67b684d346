package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "hotelops/internal/slots/errors"
	"hotelops/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionName         = "Slot_allocations"
	CountersCollectionName = "Counters"

	// ActiveSlotIndexName names the partial unique index on slot_number
	// restricted to documents with active: true.
	ActiveSlotIndexName = "uniq_active_slot"

	allocationSequenceID = "slot_allocations"
)

// allocationDocument carries the active flag the partial unique index filters
// on. Mongo partial indexes cannot express "released_at is absent".
type allocationDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SlotNumber  int                `bson:"slot_number"`
	OccupantRef string             `bson:"occupant_ref"`
	AllocatedAt time.Time          `bson:"allocated_at"`
	ReleasedAt  *time.Time         `bson:"released_at,omitempty"`
	Sequence    int64              `bson:"seq"`
	Active      bool               `bson:"active"`
}

func (d *allocationDocument) toModel() *model.AllocationRecord {
	rec := &model.AllocationRecord{
		ID:          d.ID.Hex(),
		SlotNumber:  d.SlotNumber,
		OccupantRef: d.OccupantRef,
		AllocatedAt: d.AllocatedAt.UTC(),
		Sequence:    d.Sequence,
	}
	if d.ReleasedAt != nil {
		ts := d.ReleasedAt.UTC()
		rec.ReleasedAt = &ts
	}
	return rec
}

type mongoAllocationStore struct {
	db         *mongo.Database
	collection *mongo.Collection
	counters   *mongo.Collection
	timeout    time.Duration
}

func NewMongoAllocationStore(db *mongo.Database, timeout time.Duration) AllocationStore {
	return &mongoAllocationStore{
		db:         db,
		collection: db.Collection(CollectionName),
		counters:   db.Collection(CountersCollectionName),
		timeout:    timeout,
	}
}

func (r *mongoAllocationStore) nextSequence(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": allocationSequenceID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return counter.Seq, nil
}

func (r *mongoAllocationStore) Append(ctx context.Context, rec *model.AllocationRecord) (string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	seq, err := r.nextSequence(ctx)
	if err != nil {
		return "", err
	}

	doc := allocationDocument{
		ID:          primitive.NewObjectID(),
		SlotNumber:  rec.SlotNumber,
		OccupantRef: rec.OccupantRef,
		AllocatedAt: rec.AllocatedAt.UTC(),
		ReleasedAt:  rec.ReleasedAt,
		Sequence:    seq,
		Active:      rec.ReleasedAt == nil,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", slotserrors.ErrActiveAllocationExists
		}
		return "", fmt.Errorf("failed to append allocation: %w", err)
	}

	rec.ID = doc.ID.Hex()
	rec.Sequence = seq
	return rec.ID, nil
}

func (r *mongoAllocationStore) LatestForSlot(ctx context.Context, slotNumber int) (*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{
		{Key: "allocated_at", Value: -1},
		{Key: "seq", Value: -1},
	})

	var doc allocationDocument
	err := r.collection.FindOne(ctx, bson.M{"slot_number": slotNumber}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest allocation: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoAllocationStore) MarkReleased(ctx context.Context, id string, releasedAt time.Time) (*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "active": true}
	update := bson.M{
		"$set": bson.M{
			"released_at": releasedAt.UTC(),
			"active":      false,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc allocationDocument
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to release allocation: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up allocation: %w", err)
	}
	if count == 0 {
		return nil, slotserrors.ErrNotFound
	}
	return nil, slotserrors.ErrAlreadyReleased
}

func (r *mongoAllocationStore) HistoryForSlot(ctx context.Context, slotNumber int) ([]*model.AllocationRecord, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "allocated_at", Value: -1},
		{Key: "seq", Value: -1},
	})
	return r.find(ctx, bson.M{"slot_number": slotNumber}, opts)
}

func (r *mongoAllocationStore) ActiveAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "slot_number", Value: 1}})
	return r.find(ctx, bson.M{"active": true}, opts)
}

func (r *mongoAllocationStore) AllAllocations(ctx context.Context) ([]*model.AllocationRecord, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "allocated_at", Value: -1},
		{Key: "seq", Value: -1},
	})
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoAllocationStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.Client().Ping(ctx, readpref.Primary())
}

func (r *mongoAllocationStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.AllocationRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find allocations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []allocationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode allocations: %w", err)
	}

	records := make([]*model.AllocationRecord, 0, len(docs))
	for i := range docs {
		records = append(records, docs[i].toModel())
	}
	return records, nil
}
