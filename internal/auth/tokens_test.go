package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmmykhailo/timecracker-api/internal/model"
)

const (
	testAccessSecret  = "access-secret-at-least-16-chars"
	testRefreshSecret = "refresh-secret-at-least-16-chars"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testAccessSecret, testRefreshSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testUser() *model.User {
	return &model.User{ID: "user-1", Username: "alice", Email: "a@x.com"}
}

func TestNewTokenServiceRejectsShortSecrets(t *testing.T) {
	if _, err := NewTokenService("short", testRefreshSecret); err == nil {
		t.Error("short access secret should be rejected")
	}
	if _, err := NewTokenService(testAccessSecret, "short"); err == nil {
		t.Error("short refresh secret should be rejected")
	}
}

func TestNewTokenServiceRejectsIdenticalSecrets(t *testing.T) {
	if _, err := NewTokenService(testAccessSecret, testAccessSecret); err == nil {
		t.Error("identical secrets should be rejected")
	}
}

func TestIssuePairAndVerify(t *testing.T) {
	ts := newTestTokenService(t)

	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("IssuePair() returned empty token")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	access, err := ts.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if access.Subject != "user-1" || access.Username != "alice" || access.Email != "a@x.com" {
		t.Errorf("access claims = %+v, want subject/username/email of test user", access)
	}

	refresh, err := ts.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if refresh.Subject != "user-1" {
		t.Errorf("refresh subject = %q, want %q", refresh.Subject, "user-1")
	}
}

// The two token kinds are signed with distinct secrets; each must fail
// verification against the other's verifier.
func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	ts := newTestTokenService(t)

	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	if _, err := ts.VerifyAccess(pair.RefreshToken); err == nil {
		t.Error("refresh token must not verify as access token")
	}
	if _, err := ts.VerifyRefresh(pair.AccessToken); err == nil {
		t.Error("access token must not verify as refresh token")
	}
}

func TestVerifyAccessFailsClosed(t *testing.T) {
	ts := newTestTokenService(t)

	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "truncated", token: pair.AccessToken[:len(pair.AccessToken)-10]},
		{name: "tampered signature", token: pair.AccessToken[:len(pair.AccessToken)-2] + "xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.VerifyAccess(tt.token)
			if err != ErrInvalidToken {
				t.Errorf("VerifyAccess() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifyAccessRejectsExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)
	ts.accessTTL = -time.Minute // issue already-expired tokens

	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	if _, err := ts.VerifyAccess(pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("expired token: error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccessRejectsForeignIssuer(t *testing.T) {
	ts := newTestTokenService(t)

	c := Claims{
		Username:  "alice",
		TokenType: typAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "some-other-app",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ts.VerifyAccess(foreign); err != ErrInvalidToken {
		t.Errorf("foreign issuer: error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyAccessRejectsAlgNone(t *testing.T) {
	ts := newTestTokenService(t)

	c := Claims{
		TokenType: typAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ts.VerifyAccess(unsigned); err != ErrInvalidToken {
		t.Errorf("alg=none: error = %v, want ErrInvalidToken", err)
	}
}

func TestIssuedTokensAreWellFormedJWTs(t *testing.T) {
	ts := newTestTokenService(t)

	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	for _, token := range []string{pair.AccessToken, pair.RefreshToken} {
		if got := strings.Count(token, "."); got != 2 {
			t.Errorf("token has %d dots, want 2", got)
		}
	}
}
