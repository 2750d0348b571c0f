// Package auth provides JWT issuance, password hashing, the GitHub OAuth
// provider and the bearer-token middleware.
//
// Session model: every successful authentication issues a pair of tokens.
// The access token (15 min) authorizes API calls and is verified statelessly.
// The refresh token (7 days) exists only to mint the next pair; its signed
// value is also stored in the user's single refresh-token slot, and rotation
// swaps that slot atomically, so a refresh token is usable exactly once.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/mmmykhailo/timecracker-api/internal/model"
)

const (
	issuer     = "timecracker-api"
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour

	typAccess  = "access"
	typRefresh = "refresh"
)

// ErrInvalidToken is the single failure value for any verification problem:
// bad signature, wrong secret, wrong typ, expired, malformed. Callers must
// not branch on why a token failed.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload. Subject carries the internal user ID; username
// and email ride along so clients can render the session without another
// round trip. The typ claim separates the two token kinds, because each kind
// is signed with its own secret and must never verify against the other's.
type Claims struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair bundles the two tokens issued by a successful authentication.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService signs and verifies access/refresh token pairs. The two secrets
// are distinct so possession of one kind of token can never forge the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService. Both secrets must be at least 16
// characters and must differ from each other.
func NewTokenService(accessSecret, refreshSecret string) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: JWT secrets must be at least 16 characters")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// IssuePair signs a fresh access/refresh pair for the user. The caller is
// responsible for persisting the refresh token into the user's slot.
func (s *TokenService) IssuePair(user *model.User) (TokenPair, error) {
	now := time.Now()

	access, err := s.sign(user, typAccess, s.accessSecret, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: signing access token: %w", err)
	}
	refresh, err := s.sign(user, typRefresh, s.refreshSecret, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: signing refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess parses and verifies an access token. Any failure yields
// ErrInvalidToken.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, typAccess, s.accessSecret)
}

// VerifyRefresh parses and verifies a refresh token signature and expiry.
// It does NOT check the stored slot — that is the rotation step in the
// service layer, where the compare happens atomically against the store.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, typRefresh, s.refreshSecret)
}

func (s *TokenService) sign(user *model.User, typ string, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	c := Claims{
		Username:  user.Username,
		Email:     user.Email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes every signed token unique even within the same
			// second, so rotation always swaps in a distinct value.
			ID:        xid.New().String(),
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenStr, wantTyp string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Subject == "" || c.TokenType != wantTyp {
		return nil, ErrInvalidToken
	}

	return c, nil
}
