package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/procktails/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: collection}
}

// Close releases the underlying client's connections.
func (m *MongoRepository) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}

func (m *MongoRepository) Get(ctx context.Context, actorKey string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"_id": actorKey}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) Upsert(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()

	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"_id": cart.ActorKey}
	update := bson.M{"$set": cart}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *MongoRepository) RemoveLine(ctx context.Context, actorKey, productID string) error {
	filter := bson.M{"_id": actorKey}
	update := bson.M{
		"$pull": bson.M{
			"lines": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	// Removing from an absent cart or an absent line is not an error.
	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}

	return nil
}

func (m *MongoRepository) ClearLines(ctx context.Context, actorKey string) error {
	filter := bson.M{"_id": actorKey}
	update := bson.M{
		"$set": bson.M{
			"lines":      bson.A{},
			"updated_at": time.Now(),
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

func (m *MongoRepository) Delete(ctx context.Context, actorKey string) error {
	filter := bson.M{"_id": actorKey}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

// MergeCarts runs the login reconciliation in a session transaction so the
// account upsert and the anonymous delete commit or abort together.
func (m *MongoRepository) MergeCarts(ctx context.Context, anonymousKey, accountKey string, merge MergeFunc) error {
	session, err := m.collection.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		anonymous, err := m.Get(sc, anonymousKey)
		if errors.Is(err, ErrCartNotFound) {
			return nil, nil // nothing to merge
		}
		if err != nil {
			return nil, err
		}

		account, err := m.Get(sc, accountKey)
		if err != nil && !errors.Is(err, ErrCartNotFound) {
			return nil, err
		}

		merged := merge(account, anonymous)
		if err := m.Upsert(sc, merged); err != nil {
			return nil, err
		}

		if err := m.Delete(sc, anonymousKey); err != nil {
			return nil, err
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to merge carts: %w", err)
	}

	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// Anonymous carts live 90 days past their last mutation. Account
			// carts are excluded: they only go away through an explicit
			// clear or a merge delete, no matter how long they sit idle.
			Keys: bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(90 * 24 * 60 * 60).
				SetPartialFilterExpression(bson.M{"kind": string(domain.ActorAnonymous)}),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
