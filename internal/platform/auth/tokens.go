package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "pacigest"

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role        Role        `json:"role"`
	DoctorID    string      `json:"doctor_id"`
	Email       string      `json:"email"`
	Permissions Permissions `json:"permissions,omitempty"`
}

// TokenManager issues and validates HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for s and returns it with its expiry.
func (m *TokenManager) Issue(s Session) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role:        s.Role,
		DoctorID:    s.DoctorID.String(),
		Email:       s.Email,
		Permissions: s.Permissions,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

var errMalformedClaims = errors.New("malformed token claims")

// Parse validates a token and returns the session it carries.
func (m *TokenManager) Parse(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errMalformedClaims
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errMalformedClaims
	}
	doctorID, err := uuid.Parse(claims.DoctorID)
	if err != nil {
		return nil, errMalformedClaims
	}
	if !claims.Role.Valid() {
		return nil, errMalformedClaims
	}
	return &Session{
		UserID:      userID,
		Role:        claims.Role,
		DoctorID:    doctorID,
		Email:       claims.Email,
		Permissions: claims.Permissions,
	}, nil
}
