package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/knowledge-gateway/internal/permission"
)

// JWTTokenCodec signs session tokens with a symmetric HS256 secret. The
// clock is injected so expiry behavior is testable.
type JWTTokenCodec struct {
	Secret []byte
	TTL    time.Duration
	Now    permission.Clock
}

func NewJWTTokenCodec(secret string, ttl time.Duration, now permission.Clock) *JWTTokenCodec {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenCodec{
		Secret: []byte(secret),
		TTL:    ttl,
		Now:    now,
	}
}

// Issue embeds the user id, email and role snapshot with issued-at and
// expiry claims.
func (c *JWTTokenCodec) Issue(userID int64, email string, roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	issuedAt := c.Now()

	claims := &Claims{
		UserID: strconv.FormatInt(userID, 10),
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.Secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify validates signature and expiry and returns the claims. Expected
// failures come back as ErrInvalidToken or ErrTokenExpired.
func (c *JWTTokenCodec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.Secret, nil
	}, jwt.WithTimeFunc(c.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
