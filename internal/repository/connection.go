package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config controls the cart store's MongoDB connection. Zero values fall back
// to defaults sized for one storefront process.
type Config struct {
	URI              string
	Database         string
	Collection       string
	ConnectTimeout   time.Duration
	SelectionTimeout time.Duration
	MaxPoolSize      uint64
	MinPoolSize      uint64
}

func (c Config) withDefaults() Config {
	if c.Collection == "" {
		c.Collection = "carts"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SelectionTimeout == 0 {
		c.SelectionTimeout = 5 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = 10
	}
	return c
}

// Connect dials the cart store and returns the repository bound to its
// collection. The ping makes an unreachable store fail at boot, not on the
// first cart read.
func Connect(ctx context.Context, cfg Config) (*MongoRepository, error) {
	cfg = cfg.withDefaults()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cart store: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping cart store: %w", err)
	}

	return NewMongoRepository(client.Database(cfg.Database).Collection(cfg.Collection)), nil
}
