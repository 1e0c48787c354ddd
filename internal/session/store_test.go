package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ayxworxfr/go_backoffice/internal/dao"
	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/xorm"
)

// 所有驱动共用的行为
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	sid := NewSessionID()
	other := NewSessionID()

	_, ok, err := store.Get(ctx, sid, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, sid, KeyToken, "t1"))
	require.NoError(t, store.Set(ctx, sid, KeyUser, `{"id":"1"}`))
	require.NoError(t, store.Set(ctx, other, KeyToken, "t2"))

	value, ok, err := store.Get(ctx, sid, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t1", value)

	// 覆盖写
	require.NoError(t, store.Set(ctx, sid, KeyToken, "t1b"))
	value, _, _ = store.Get(ctx, sid, KeyToken)
	assert.Equal(t, "t1b", value)

	require.NoError(t, store.Delete(ctx, sid, KeyToken, KeyUser))
	_, ok, _ = store.Get(ctx, sid, KeyToken)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, sid, KeyUser)
	assert.False(t, ok)

	// 其他会话不受影响
	value, ok, _ = store.Get(ctx, other, KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "t2", value)

	assert.NoError(t, store.Delete(ctx, sid))
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "a", KeyToken, "x"))
	require.NoError(t, store.Set(ctx, "b", KeyToken, "y"))

	now = now.Add(30 * time.Second)
	// 写入续期 b
	require.NoError(t, store.Set(ctx, "b", KeyUser, "{}"))

	now = now.Add(45 * time.Second)
	_, ok, _ := store.Get(ctx, "a", KeyToken)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "b", KeyToken)
	assert.True(t, ok)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:session:", time.Hour, crypter.DeriveKey("secret"))
	defer store.Close()

	runStoreContract(t, store)
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:session:", time.Hour, crypter.DeriveKey("secret"))
	defer store.Close()

	require.NoError(t, store.Set(ctx, "raw-sid", KeyToken, "x"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "raw-sid")
	assert.Equal(t, store.key("raw-sid"), keys[0])
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	mr.FastForward(2 * time.Hour)
	_, ok, err := store.Get(ctx, "raw-sid", KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

// 需要 MySQL，设置 BACKOFFICE_TEST_MYSQL_DSN 后运行
func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("BACKOFFICE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("BACKOFFICE_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	engine, err := xorm.NewEngine("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, dao.SyncDB(ctx, engine, dao.Models()...))

	store := NewSQLStore(engine, time.Hour, crypter.DeriveKey("secret"))
	defer store.Close()
	runStoreContract(t, store)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)
}
