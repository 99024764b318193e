package repository

import (
	"context"
	"testing"
	"time"

	"github.com/procktails/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	// Replica set is required for the merge transaction.
	mongoContainer, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	repo, err := Connect(ctx, Config{URI: uri, Database: "testdb"})
	require.NoError(t, err)

	err = repo.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := repo.Close(ctx); err != nil {
			t.Logf("failed to close repository: %s", err)
		}
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testCart(actorKey string, kind domain.ActorKind, lines ...domain.CartLine) *domain.Cart {
	return &domain.Cart{
		ActorKey: actorKey,
		Kind:     kind,
		Lines:    lines,
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.Get(context.Background(), "anonymous:nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestUpsert_RoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := testCart("account:42", domain.ActorAccount, domain.CartLine{
		ProductID: "gid://prod/1",
		Quantity:  3,
		UnitPrice: 12.50,
		Product:   domain.ProductSnapshot{Name: "Negroni Royale"},
		AddedAt:   time.Now(),
	})

	require.NoError(t, repo.Upsert(ctx, cart))

	got, err := repo.Get(ctx, "account:42")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorAccount, got.Kind)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "gid://prod/1", got.Lines[0].ProductID)
	assert.Equal(t, 3, got.Lines[0].Quantity)
	assert.Equal(t, "Negroni Royale", got.Lines[0].Product.Name)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestUpsert_ReplacesLines(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCart("account:42", domain.ActorAccount,
		domain.CartLine{ProductID: "A", Quantity: 1})))
	require.NoError(t, repo.Upsert(ctx, testCart("account:42", domain.ActorAccount,
		domain.CartLine{ProductID: "A", Quantity: 4},
		domain.CartLine{ProductID: "B", Quantity: 2})))

	got, err := repo.Get(ctx, "account:42")
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 4, got.Lines[0].Quantity)
}

func TestRemoveLine_Idempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCart("anonymous:anon_1", domain.ActorAnonymous,
		domain.CartLine{ProductID: "A", Quantity: 1},
		domain.CartLine{ProductID: "B", Quantity: 2})))

	require.NoError(t, repo.RemoveLine(ctx, "anonymous:anon_1", "A"))
	// removing again is not an error
	require.NoError(t, repo.RemoveLine(ctx, "anonymous:anon_1", "A"))
	// neither is removing from a cart that does not exist
	require.NoError(t, repo.RemoveLine(ctx, "anonymous:anon_none", "A"))

	got, err := repo.Get(ctx, "anonymous:anon_1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "B", got.Lines[0].ProductID)
}

func TestClearLines(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCart("account:9", domain.ActorAccount,
		domain.CartLine{ProductID: "A", Quantity: 1})))

	require.NoError(t, repo.ClearLines(ctx, "account:9"))

	got, err := repo.Get(ctx, "account:9")
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
}

func TestMergeCarts_DeletesAnonymous(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCart("anonymous:anon_1", domain.ActorAnonymous,
		domain.CartLine{ProductID: "A", Quantity: 2})))
	require.NoError(t, repo.Upsert(ctx, testCart("account:7", domain.ActorAccount,
		domain.CartLine{ProductID: "A", Quantity: 1},
		domain.CartLine{ProductID: "B", Quantity: 3})))

	err := repo.MergeCarts(ctx, "anonymous:anon_1", "account:7", func(account, anonymous *domain.Cart) *domain.Cart {
		account.Lines = domain.MergeLines(account.Lines, anonymous.Lines)
		return account
	})
	require.NoError(t, err)

	merged, err := repo.Get(ctx, "account:7")
	require.NoError(t, err)
	require.Len(t, merged.Lines, 2)
	assert.Equal(t, 3, merged.Lines[0].Quantity)
	assert.Equal(t, 3, merged.Lines[1].Quantity)

	_, err = repo.Get(ctx, "anonymous:anon_1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCreateIndexes_ExpiryOnlyForAnonymousCarts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cursor, err := repo.collection.Indexes().List(ctx)
	require.NoError(t, err)

	var indexes []struct {
		Name                    string `bson:"name"`
		ExpireAfterSeconds      *int32 `bson:"expireAfterSeconds"`
		PartialFilterExpression bson.M `bson:"partialFilterExpression"`
	}
	require.NoError(t, cursor.All(ctx, &indexes))

	found := false
	for _, idx := range indexes {
		if idx.ExpireAfterSeconds == nil {
			continue
		}
		found = true
		require.NotNil(t, idx.PartialFilterExpression,
			"expiry must not apply to account carts")
		assert.Equal(t, string(domain.ActorAnonymous), idx.PartialFilterExpression["kind"])
	}
	assert.True(t, found, "expiry index is missing")
}

func TestMergeCarts_NoAnonymousCartIsNoOp(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCart("account:7", domain.ActorAccount,
		domain.CartLine{ProductID: "B", Quantity: 3})))

	called := false
	err := repo.MergeCarts(ctx, "anonymous:anon_missing", "account:7", func(account, anonymous *domain.Cart) *domain.Cart {
		called = true
		return account
	})
	require.NoError(t, err)
	assert.False(t, called)

	got, err := repo.Get(ctx, "account:7")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 3, got.Lines[0].Quantity)
}
