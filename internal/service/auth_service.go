package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/domain/vo"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultLoginMessage    = "Login failed. Please check your credentials."
	DefaultRegisterMessage = "Registration failed. Please try again."
)

// AuthBackend 认证相关的后端接口
type AuthBackend interface {
	Login(ctx context.Context, req backend.LoginRequest) (*backend.AuthResponse, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*backend.User, error)
}

// SessionDropper 登出时释放会话持有的其他资源，例如表格 loader
type SessionDropper interface {
	DropSession(sid string)
}

// State 当前认证状态快照
type State struct {
	User    *vo.User
	Loading bool
}

func (s State) IsAuthenticated() bool {
	return s.User.IsAuthenticated()
}

// Result 登录/注册结果，失败信息直接展示给用户
type Result struct {
	OK      bool
	Message string
	Errors  map[string][]string
}

type validatedUser struct {
	user     *vo.User
	lastSeen time.Time
}

// pendingValidation 一次进行中的令牌校验；期间发生的 Invalidate 会使其结果作废
type pendingValidation struct {
	invalidated bool
}

const sessionStripes = 64

// AuthService 认证服务，按会话维护用户状态
type AuthService struct {
	backend  AuthBackend
	sessions *session.Manager
	droppers []SessionDropper

	mu        sync.Mutex
	validated map[string]*validatedUser
	inflight  map[string]*pendingValidation

	// 同一会话的令牌读取、资料回写与 Invalidate 互斥
	stripes [sessionStripes]sync.Mutex
}

// NewAuthService 创建认证服务实例
func NewAuthService(b AuthBackend, sessions *session.Manager, droppers ...SessionDropper) *AuthService {
	return &AuthService{
		backend:   b,
		sessions:  sessions,
		droppers:  droppers,
		validated: make(map[string]*validatedUser),
		inflight:  make(map[string]*pendingValidation),
	}
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, sid, email, password string) (Result, error) {
	rsp, err := s.backend.Login(ctx, backend.LoginRequest{Email: email, Password: password})
	if err != nil {
		logger.Warn(ctx, "Login rejected", zap.String("email", email), zap.Error(err))
		return failure(err, DefaultLoginMessage), nil
	}
	if err := s.establish(ctx, sid, rsp); err != nil {
		return Result{}, err
	}
	logger.Info(ctx, "Login successful", zap.String("user_id", string(rsp.User.ID)))
	return Result{OK: true}, nil
}

// Register 注册并直接登录
func (s *AuthService) Register(ctx context.Context, sid string, req backend.RegisterRequest) (Result, error) {
	rsp, err := s.backend.Register(ctx, req)
	if err != nil {
		logger.Warn(ctx, "Registration rejected", zap.String("email", req.Email), zap.Error(err))
		return failure(err, DefaultRegisterMessage), nil
	}
	if err := s.establish(ctx, sid, rsp); err != nil {
		return Result{}, err
	}
	logger.Info(ctx, "Registration successful", zap.String("user_id", string(rsp.User.ID)))
	return Result{OK: true}, nil
}

func failure(err error, fallback string) Result {
	return Result{
		Message: backend.Message(err, fallback),
		Errors:  backend.FieldErrors(err),
	}
}

func (s *AuthService) establish(ctx context.Context, sid string, rsp *backend.AuthResponse) error {
	user, err := toUser(&rsp.User)
	if err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, sid, rsp.Token, user); err != nil {
		return errors.Wrap(err, "persist session")
	}
	s.remember(sid, user)
	return nil
}

func toUser(u *backend.User) (*vo.User, error) {
	user := &vo.User{}
	if err := copier.Copy(user, u); err != nil {
		return nil, errors.Wrap(err, "copy user profile")
	}
	return user, nil
}

// Logout 尽力通知后端，本地状态无论如何都会清除
func (s *AuthService) Logout(ctx context.Context, sid string) {
	token, err := s.sessions.Token(ctx, sid)
	if err != nil {
		logger.Warn(ctx, "Read session token failed", zap.Error(err))
	}
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			logger.Warn(ctx, "Backend logout failed", zap.Error(err))
		}
	}
	s.Invalidate(ctx, sid)
	logger.Info(ctx, "Logout")
}

func (s *AuthService) stripe(sid string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sid))
	return &s.stripes[h.Sum32()%sessionStripes]
}

// Invalidate 丢弃会话的令牌、用户资料与缓存状态，并作废进行中的校验
func (s *AuthService) Invalidate(ctx context.Context, sid string) {
	lock := s.stripe(sid)
	lock.Lock()
	s.mu.Lock()
	delete(s.validated, sid)
	if p, ok := s.inflight[sid]; ok {
		p.invalidated = true
	}
	s.mu.Unlock()
	if err := s.sessions.Clear(ctx, sid); err != nil {
		logger.Error(ctx, "Clear session failed", zap.Error(err))
	}
	lock.Unlock()

	for _, dropper := range s.droppers {
		dropper.DropSession(sid)
	}
}

// Resolve 返回会话当前的认证状态；令牌只在本进程第一次见到该会话时向后端校验一次
func (s *AuthService) Resolve(ctx context.Context, sid string) State {
	if sid == "" {
		return State{}
	}

	s.mu.Lock()
	if v, ok := s.validated[sid]; ok {
		v.lastSeen = time.Now()
		s.mu.Unlock()
		return State{User: v.user}
	}
	if _, ok := s.inflight[sid]; ok {
		s.mu.Unlock()
		return State{User: s.storedUser(ctx, sid), Loading: true}
	}
	pending := &pendingValidation{}
	s.inflight[sid] = pending
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.inflight[sid] == pending {
			delete(s.inflight, sid)
		}
		s.mu.Unlock()
	}()

	lock := s.stripe(sid)
	lock.Lock()
	token, err := s.sessions.Token(ctx, sid)
	lock.Unlock()
	if err != nil {
		logger.Warn(ctx, "Stored token unreadable, clearing session", zap.Error(err))
		s.Invalidate(ctx, sid)
		return State{}
	}
	if token == "" {
		return State{}
	}

	profile, err := s.backend.Me(ctx, token)
	if err != nil {
		logger.Info(ctx, "Token validation failed, clearing session", zap.Error(err))
		s.Invalidate(ctx, sid)
		return State{}
	}
	user, err := toUser(profile)
	if err != nil {
		logger.Error(ctx, "Convert profile failed", zap.Error(err))
		return State{}
	}
	if !s.commit(ctx, sid, pending, user) {
		logger.Info(ctx, "Session invalidated during validation, result dropped")
		return State{}
	}
	return State{User: user}
}

// commit 校验期间会话未被作废时回写资料并缓存
func (s *AuthService) commit(ctx context.Context, sid string, pending *pendingValidation, user *vo.User) bool {
	lock := s.stripe(sid)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	invalidated := pending.invalidated
	s.mu.Unlock()
	if invalidated {
		return false
	}
	if err := s.sessions.SetUser(ctx, sid, user); err != nil {
		logger.Warn(ctx, "Refresh stored profile failed", zap.Error(err))
	}
	s.remember(sid, user)
	return true
}

func (s *AuthService) storedUser(ctx context.Context, sid string) *vo.User {
	var user vo.User
	if ok, err := s.sessions.User(ctx, sid, &user); err != nil || !ok {
		return nil
	}
	return &user
}

func (s *AuthService) remember(sid string, user *vo.User) {
	s.mu.Lock()
	s.validated[sid] = &validatedUser{user: user, lastSeen: time.Now()}
	s.mu.Unlock()
}

// Token 当前会话的令牌，匿名时为空串
func (s *AuthService) Token(ctx context.Context, sid string) (string, error) {
	return s.sessions.Token(ctx, sid)
}

// EvictIdle 遗忘长时间未访问的会话缓存，下次访问时重新校验
func (s *AuthService) EvictIdle(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(-idle)
	evicted := 0
	for sid, v := range s.validated {
		if v.lastSeen.Before(deadline) {
			delete(s.validated, sid)
			evicted++
		}
	}
	return evicted
}

// HasRole 对快照做成员判断
func HasRole(user *vo.User, name string) bool {
	return user.HasRole(name)
}

// HasPermission 对快照做成员判断
func HasPermission(user *vo.User, name string) bool {
	return user.HasPermission(name)
}
