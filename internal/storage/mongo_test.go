package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestMongo(t *testing.T) (*Mongo, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return NewMongo(db), cleanup
}

func TestMongo_RoundTrip(t *testing.T) {
	s, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Get(ctx, "@RocketShoes:cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "@RocketShoes:cart", []byte(`[{"id":1,"amount":1}]`)))
	require.NoError(t, s.Set(ctx, "@RocketShoes:cart", []byte(`[{"id":1,"amount":2}]`)))

	got, err := s.Get(ctx, "@RocketShoes:cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":2}]`, string(got))

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.Delete(ctx, "@RocketShoes:cart"))
	_, err = s.Get(ctx, "@RocketShoes:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}
