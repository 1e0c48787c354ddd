package session

import (
	"context"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/domain/models"
	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/pkg/errors"
	"xorm.io/xorm"
)

// SQLStore 基于 xorm 的存储，一行一个键值
type SQLStore struct {
	engine    *xorm.Engine
	ttl       time.Duration
	digestKey []byte
	now       func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(engine *xorm.Engine, ttl time.Duration, digestKey []byte) *SQLStore {
	return &SQLStore{
		engine:    engine,
		ttl:       ttl,
		digestKey: digestKey,
		now:       time.Now,
	}
}

func (s *SQLStore) sessionKey(sid string) string {
	return crypter.Digest(s.digestKey, sid)
}

func (s *SQLStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	var row models.SessionValue
	has, err := s.engine.Context(ctx).
		Where("session_key = ? AND name = ? AND expire_at > ?", s.sessionKey(sid), key, s.now()).
		Get(&row)
	if err != nil {
		return "", false, errors.Wrap(err, "query session value")
	}
	if !has {
		return "", false, nil
	}
	return row.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, sid, key, value string) error {
	sessionKey := s.sessionKey(sid)
	expire := expireAt(s.now(), s.ttl)

	_, err := s.engine.Transaction(func(session *xorm.Session) (any, error) {
		session = session.Context(ctx)
		affected, err := session.
			Where("session_key = ? AND name = ?", sessionKey, key).
			Cols("value", "expire_at").
			Update(&models.SessionValue{Value: value, ExpireAt: expire})
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			row := &models.SessionValue{SessionKey: sessionKey, Name: key, Value: value, ExpireAt: expire}
			if _, err := session.Insert(row); err != nil {
				return nil, err
			}
		}
		// 同一会话的其他键一起续期
		_, err = session.Where("session_key = ?", sessionKey).
			Cols("expire_at").
			Update(&models.SessionValue{ExpireAt: expire})
		return nil, err
	})
	return errors.Wrap(err, "save session value")
}

func (s *SQLStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.engine.Context(ctx).
		Where("session_key = ?", s.sessionKey(sid)).
		In("name", keys).
		Delete(new(models.SessionValue))
	return errors.Wrap(err, "delete session values")
}

func (s *SQLStore) Sweep(ctx context.Context) (int, error) {
	affected, err := s.engine.Context(ctx).
		Where("expire_at <= ?", s.now()).
		Delete(new(models.SessionValue))
	if err != nil {
		return 0, errors.Wrap(err, "sweep session values")
	}
	return int(affected), nil
}

func (s *SQLStore) Close() error {
	return s.engine.Close()
}
