package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession 会话凭证缺失/无效/过期
var ErrInvalidSession = errors.New("invalid session credential")

// Session 已验证的会话身份
type Session struct {
	UID    string
	Email  string
	Claims map[string]any
}

// Verifier 会话凭证验证接口（外部身份服务的窄契约）
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Session, error)
}

// JWTVerifier 基于共享密钥的 JWT 会话验证
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify 验证签名会话凭证，返回 uid + custom claims
func (v *JWTVerifier) Verify(_ context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, ErrInvalidSession
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	uid, _ := claims["sub"].(string)
	if uid == "" {
		// 兼容历史凭证：部分会话使用 uid 字段而不是 sub
		uid, _ = claims["uid"].(string)
	}
	if uid == "" {
		return nil, ErrInvalidSession
	}

	email, _ := claims["email"].(string)

	custom := make(map[string]any, len(claims))
	for k, v := range claims {
		custom[k] = v
	}

	return &Session{
		UID:    uid,
		Email:  NormalizeEmail(email),
		Claims: custom,
	}, nil
}
