package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/NebulousLabs/fastrand"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/dao"
	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// 持久化的两个键，浏览器端唯一需要长期保存的状态
const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// Store 会话键值存储
type Store interface {
	// Get 读取值，ok 为 false 表示不存在或已过期
	Get(ctx context.Context, sid, key string) (value string, ok bool, err error)
	// Set 写入值并续期整个会话
	Set(ctx context.Context, sid, key, value string) error
	Delete(ctx context.Context, sid string, keys ...string) error
	// Sweep 清理过期数据，返回清理的条数
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// NewSessionID 生成 32 字节随机会话ID
func NewSessionID() string {
	return hex.EncodeToString(fastrand.Bytes(32))
}

// NewStore 按配置的驱动创建存储
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	ttl := cfg.Session.TTLDuration()
	digestKey := crypter.DeriveKey(cfg.Session.Secret)

	switch cfg.Session.Driver {
	case DriverMemory, "":
		return NewMemoryStore(ttl), nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrapf(err, "connect redis %s", cfg.Redis.Addr)
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix, ttl, digestKey), nil
	case DriverSQL:
		engine, err := dao.InitDB(ctx, cfg.Database, cfg.Logger.Level)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(engine, ttl, digestKey), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Session.Driver)
	}
}

func expireAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}
