package registry

import (
	"context"
	"testing"
	"time"

	"batepapo/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestDB 用 testcontainers 啟動一個臨時的 MongoDB
func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return client.Database("chatUOL_test")
}

// backdate 直接把參與者的 lastStatus 改到過去，模擬長時間沒有心跳
func backdate(t *testing.T, db *mongo.Database, name string, age time.Duration) {
	t.Helper()
	_, err := db.Collection("participants").UpdateOne(context.Background(),
		bson.M{"name": name},
		bson.M{"$set": bson.M{"lastStatus": time.Now().Add(-age).UnixMilli()}},
	)
	require.NoError(t, err)
}

func TestJoinRejectsDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	alice, err := r.Join(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.Greater(t, alice.LastStatus, int64(0))

	// 同名再次加入要拿到 Conflict
	_, err = r.Join(ctx, "Alice")
	assert.ErrorIs(t, err, models.ErrConflict)

	// 不同名稱不受影響
	_, err = r.Join(ctx, "Bob")
	assert.NoError(t, err)
}

func TestHeartbeatRefreshesLastStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	_, err = r.Join(ctx, "Alice")
	require.NoError(t, err)
	backdate(t, db, "Alice", 8*time.Second)

	// 在窗口內送出心跳，下一輪掃描不該移除
	require.NoError(t, r.Heartbeat(ctx, "Alice"))

	evicted, err := r.EvictExpired(ctx, 10*time.Second, time.Now())
	require.NoError(t, err)
	assert.Empty(t, evicted)

	active, err := r.IsActive(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHeartbeatUnknownParticipant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Heartbeat(ctx, "Ninguém"), models.ErrNotFound)
}

func TestEvictExpiredRemovesExactlyTheStale(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	_, err = r.Join(ctx, "Alice")
	require.NoError(t, err)
	_, err = r.Join(ctx, "Bob")
	require.NoError(t, err)

	// 只有 Alice 超過窗口
	backdate(t, db, "Alice", time.Minute)

	evicted, err := r.EvictExpired(ctx, 10*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, "Alice", evicted[0].Name)

	// 被移除的不再是在線參與者，留下的不受影響
	active, err := r.IsActive(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = r.IsActive(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, active)

	participants, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "Bob", participants[0].Name)
}

func TestHeartbeatDoesNotResurrectEvicted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	_, err = r.Join(ctx, "Alice")
	require.NoError(t, err)
	backdate(t, db, "Alice", time.Minute)

	evicted, err := r.EvictExpired(ctx, 10*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, evicted, 1)

	// 移除之後的心跳必須失敗，想回來只能重新 Join
	assert.ErrorIs(t, r.Heartbeat(ctx, "Alice"), models.ErrNotFound)

	_, err = r.Join(ctx, "Alice")
	assert.NoError(t, err)
}

func TestEvictExpiredLeavesFreshParticipants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := New(ctx, db)
	require.NoError(t, err)

	_, err = r.Join(ctx, "Alice")
	require.NoError(t, err)

	// 剛加入的參與者在窗口內，不該出現在移除清單裡
	evicted, err := r.EvictExpired(ctx, 10*time.Second, time.Now())
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
