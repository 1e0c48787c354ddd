package jwtauth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionTokenType 会话 cookie 中的 token 类型
	SessionTokenType = "session"
	// DefaultIssuer 默认签发者
	DefaultIssuer = "backoffice"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("not a session token")
)

// Claims 会话 cookie 载荷，只携带会话ID，不携带任何用户数据
type Claims struct {
	SessionID string `json:"sid"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// Signer 负责签发与校验会话 cookie
type Signer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewSigner 创建签名器，ttl 支持 s/m/h/d/w 单位
func NewSigner(signingKey, ttl string) (*Signer, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}
	dur, err := ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid session ttl: %w", err)
	}
	return &Signer{
		signingKey: []byte(signingKey),
		issuer:     DefaultIssuer,
		ttl:        dur,
	}, nil
}

// TTL 会话有效期
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// ParseDuration 解析时间格式字符串为time.Duration
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration string")
	}

	// 支持的时间单位
	units := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": time.Hour * 24,
		"w": time.Hour * 24 * 7,
	}

	// 提取数字和单位
	var numStr, unit strings.Builder
	for _, char := range s {
		if char >= '0' && char <= '9' || char == '.' {
			numStr.WriteRune(char)
		} else {
			unit.WriteRune(char)
		}
	}

	if numStr.Len() == 0 || unit.Len() == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	num, err := strconv.ParseFloat(numStr.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in duration: %s", s)
	}

	dur, ok := units[strings.ToLower(unit.String())]
	if !ok {
		return 0, fmt.Errorf("unknown unit in duration: %s", unit.String())
	}

	return time.Duration(num * float64(dur)), nil
}

// Sign 为会话ID签发 token，返回 token 与过期时间
func (s *Signer) Sign(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		SessionID: sessionID,
		Type:      SessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token failed: %w", err)
	}
	return token, expiresAt, nil
}

// Parse 校验签名与过期时间并返回载荷
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != SessionTokenType {
		return nil, ErrWrongTokenType
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
