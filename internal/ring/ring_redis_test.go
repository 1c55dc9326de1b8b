package ring

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRedisClient(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func Test_Add_ShouldAddItemToList(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 1000, "waits")
	err := ring.Add(context.Background(), 23)
	assert.Nil(t, err)
	r := client.LIndex(context.Background(), "nxlock:ring:waits", 0).Val()
	assert.Equal(t, "23", r)
}

func Test_Add_ShouldKeepNewestItems_WhenLengthExceeds(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 100, "waits")
	for i := 0; i < 200; i++ {
		err := ring.Add(context.Background(), float64(i))
		assert.Nil(t, err)
	}

	size, err := ring.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, size)

	assert.Equal(t, "199", client.LIndex(context.Background(), ring.Key(), 0).Val())
	assert.Equal(t, "100", client.LIndex(context.Background(), ring.Key(), -1).Val())
}

func Test_Add_ShouldAcceptBatches(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 3, "waits")

	require.NoError(t, ring.Add(context.Background(), 1, 2, 3, 4, 5))
	require.NoError(t, ring.Add(context.Background()))

	all, err := ring.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 4, 3}, all)
}

func Test_GetAll_ShouldOnlyReturnExistingCountOfValuesInsideTheRing(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 1000, "waits")

	expectedCount := 102
	for i := 0; i < expectedCount; i++ {
		err := ring.Add(context.Background(), float64(i))
		assert.Nil(t, err)
	}

	all, err := ring.GetAll(context.Background())
	assert.Nil(t, err)

	assert.Equal(t, expectedCount, len(all))
}

func Test_GetAll_ShouldSkipInvalidSamples(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 10, "waits")

	require.NoError(t, client.LPush(context.Background(), ring.Key(), "1.5", "not-a-number").Err())

	all, err := ring.GetAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []float64{1.5}, all)
}

func Test_Clear(t *testing.T) {
	client := createRedisClient(t)
	ring := NewRedisRing(client, 10, "waits")
	require.NoError(t, ring.Add(context.Background(), 1))

	require.NoError(t, ring.Clear(context.Background()))

	size, err := ring.Size(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, size)
}
