package session

import (
	"context"
	"encoding/json"

	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/pkg/errors"
)

// Manager 在 Store 之上读写令牌与用户资料，令牌加密后才落盘
type Manager struct {
	store   Store
	crypter crypter.Crypter
}

func NewManager(store Store, c crypter.Crypter) *Manager {
	return &Manager{store: store, crypter: c}
}

// Store 底层存储
func (m *Manager) Store() Store {
	return m.store
}

// Token 返回解密后的令牌，不存在时返回空串
func (m *Manager) Token(ctx context.Context, sid string) (string, error) {
	encrypted, ok, err := m.store.Get(ctx, sid, KeyToken)
	if err != nil || !ok {
		return "", err
	}
	token, err := crypter.DecryptString(m.crypter, encrypted)
	if err != nil {
		return "", errors.Wrap(err, "decrypt session token")
	}
	return token, nil
}

// User 将保存的用户资料解码到 out，ok 为 false 表示没有资料
func (m *Manager) User(ctx context.Context, sid string, out any) (bool, error) {
	raw, ok, err := m.store.Get(ctx, sid, KeyUser)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, errors.Wrap(err, "decode session user")
	}
	return true, nil
}

// Save 同时保存令牌与用户资料
func (m *Manager) Save(ctx context.Context, sid, token string, user any) error {
	encrypted, err := crypter.EncryptString(m.crypter, token)
	if err != nil {
		return errors.Wrap(err, "encrypt session token")
	}
	if err := m.store.Set(ctx, sid, KeyToken, encrypted); err != nil {
		return err
	}
	return m.SetUser(ctx, sid, user)
}

// SetUser 覆盖用户资料
func (m *Manager) SetUser(ctx context.Context, sid string, user any) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "encode session user")
	}
	return m.store.Set(ctx, sid, KeyUser, string(raw))
}

// Clear 删除令牌与用户资料
func (m *Manager) Clear(ctx context.Context, sid string) error {
	return m.store.Delete(ctx, sid, KeyToken, KeyUser)
}
