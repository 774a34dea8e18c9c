package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	carserrors "roadquest/internal/cars/errors"
	"roadquest/pkg/config"
	mongotx "roadquest/pkg/db/mongo"
	"roadquest/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Cars"
)

// Filter narrows car listings. Empty fields match everything.
type Filter struct {
	OwnerEmail   string
	Availability string
}

func (f Filter) toBSON() bson.M {
	filter := bson.M{}
	if f.OwnerEmail != "" {
		filter["owner_email"] = f.OwnerEmail
	}
	if f.Availability != "" {
		filter["availability"] = f.Availability
	}
	return filter
}

type CarRepository interface {
	Create(ctx context.Context, car *model.Car) error
	FindByID(ctx context.Context, id string) (*model.Car, error)
	Find(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Car, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Update(ctx context.Context, id string, update *model.CarUpdate) (*model.Car, error)
	Delete(ctx context.Context, id string) error
	IncrementBookingCount(ctx context.Context, id string, delta int64) error
}

type mongoCarRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCarRepository(cfg *config.Config) CarRepository {
	return &mongoCarRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoCarRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.InTransaction(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func objectIDFromHex(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", carserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

func (r *mongoCarRepository) Create(ctx context.Context, car *model.Car) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	car.CreatedAt = now
	car.LastModified = now

	result, err := r.collection.InsertOne(ctx, car)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return carserrors.ErrDuplicateRegistration
		}
		return fmt.Errorf("failed to create car: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		car.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCarRepository) FindByID(ctx context.Context, id string) (*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var car model.Car
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&car); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, carserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return &car, nil
}

func (r *mongoCarRepository) Find(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find cars: %w", err)
	}
	defer cursor.Close(ctx)

	cars := make([]*model.Car, 0)
	if err := cursor.All(ctx, &cars); err != nil {
		return nil, fmt.Errorf("failed to decode cars: %w", err)
	}
	return cars, nil
}

func (r *mongoCarRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count cars: %w", err)
	}
	return count, nil
}

// Update applies the non-nil fields of update and returns the stored car.
func (r *mongoCarRepository) Update(ctx context.Context, id string, update *model.CarUpdate) (*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	set, err := toSetDocument(update)
	if err != nil {
		return nil, err
	}
	set["last_modified"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var car model.Car
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, carserrors.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, carserrors.ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("failed to update car: %w", err)
	}
	return &car, nil
}

func toSetDocument(update *model.CarUpdate) (bson.M, error) {
	raw, err := bson.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to encode car update: %w", err)
	}
	set := bson.M{}
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to encode car update: %w", err)
	}
	return set, nil
}

func (r *mongoCarRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	if result.DeletedCount == 0 {
		return carserrors.ErrNotFound
	}
	return nil
}

func (r *mongoCarRepository) IncrementBookingCount(ctx context.Context, id string, delta int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := objectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$inc": bson.M{"booking_count": delta}})
	if err != nil {
		return fmt.Errorf("failed to increment booking count: %w", err)
	}
	if result.MatchedCount == 0 {
		return carserrors.ErrNotFound
	}
	return nil
}
