package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey:           "test-secret-key",
		AccessTokenDuration: 15 * time.Minute,
		Issuer:              "test-issuer",
	}
}

func signHS256(t *testing.T, secret string, claims JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func validClaims(issuer string) JWTClaims {
	now := time.Now()
	return JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "firebase-uid-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestJWTManager_GenerateAndVerifyAccessToken(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.GenerateAccessToken("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Error("GenerateAccessToken() returned empty token")
	}

	claims, err := manager.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if claims.Email != "test@example.com" {
		t.Errorf("claims.Email = %v, want %v", claims.Email, "test@example.com")
	}

	raw, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if raw.ID == "" {
		t.Error("issued token has no jti")
	}
	if raw.Issuer != "test-issuer" {
		t.Errorf("claims.Issuer = %v, want %v", raw.Issuer, "test-issuer")
	}
}

func TestJWTManager_UniqueTokenIDs(t *testing.T) {
	manager := NewJWTManager(testConfig())

	first, _ := manager.GenerateAccessToken("user-1", "")
	second, _ := manager.GenerateAccessToken("user-1", "")
	if first == second {
		t.Error("two tokens issued in the same second are identical")
	}
}

func TestJWTManager_SubjectFallback(t *testing.T) {
	manager := NewJWTManager(testConfig())
	token := signHS256(t, "test-secret-key", validClaims("test-issuer"))

	claims, err := manager.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if claims.UserID != "firebase-uid-1" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "firebase-uid-1")
	}
}

func TestJWTManager_RejectsInvalidTokens(t *testing.T) {
	manager := NewJWTManager(testConfig())

	expired := validClaims("test-issuer")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("test-issuer")
	noExpiry.ExpiresAt = nil

	refresh := validClaims("test-issuer")
	refresh.TokenType = "refresh"

	anonymous := validClaims("test-issuer")
	anonymous.Subject = ""

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"expired", signHS256(t, "test-secret-key", expired), ErrExpiredToken},
		{"no expiry", signHS256(t, "test-secret-key", noExpiry), ErrInvalidToken},
		{"wrong secret", signHS256(t, "other-secret", validClaims("test-issuer")), ErrInvalidToken},
		{"wrong issuer", signHS256(t, "test-secret-key", validClaims("someone-else")), ErrInvalidToken},
		{"refresh token", signHS256(t, "test-secret-key", refresh), ErrInvalidToken},
		{"no subject", signHS256(t, "test-secret-key", anonymous), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.VerifyAccessToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyAccessToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager_EmptyIssuerSkipsCheck(t *testing.T) {
	config := testConfig()
	config.Issuer = ""
	manager := NewJWTManager(config)

	token := signHS256(t, "test-secret-key", validClaims("anyone"))
	if _, err := manager.VerifyAccessToken(token); err != nil {
		t.Errorf("VerifyAccessToken() error = %v", err)
	}
}

func writePublicKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "jwt.pub")
	data := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestJWTManager_RS256(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	publicKey, err := LoadPublicKey(writePublicKey(t, privateKey))
	if err != nil {
		t.Fatalf("LoadPublicKey() error = %v", err)
	}

	manager := NewJWTManager(JWTConfig{PublicKey: publicKey, Issuer: "test-issuer"})
	if manager.Algorithm() != "RS256" {
		t.Errorf("Algorithm() = %v, want RS256", manager.Algorithm())
	}
	if manager.CanIssue() {
		t.Error("CanIssue() = true with a public key only")
	}
	if _, err := manager.GenerateAccessToken("user-1", ""); !errors.Is(err, ErrSigningUnavailable) {
		t.Errorf("GenerateAccessToken() error = %v, want %v", err, ErrSigningUnavailable)
	}

	claims := validClaims("test-issuer")
	claims.UserID = "rsa-user"
	claims.Email = "rsa@example.com"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	got, err := manager.VerifyAccessToken(signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if got.UserID != "rsa-user" || got.Email != "rsa@example.com" {
		t.Errorf("VerifyAccessToken() = %+v", got)
	}

	// An HMAC token must not be accepted in RS256 mode.
	hmacToken := signHS256(t, "test-secret-key", validClaims("test-issuer"))
	if _, err := manager.VerifyAccessToken(hmacToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccessToken(HS256) error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestLoadPublicKey_Errors(t *testing.T) {
	if _, err := LoadPublicKey(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("LoadPublicKey() expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadPublicKey(path); err == nil {
		t.Error("LoadPublicKey() expected error for malformed PEM")
	}
}

func TestAuthModule_Handlers(t *testing.T) {
	ctx := context.Background()
	m := NewModule(Config{JWT: testConfig(), AllowIssue: true})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	issued, err := m.handleIssueToken(ctx, IssueTokenRequest{UserID: "user-9", Email: "nine@example.com"}, nil)
	if err != nil {
		t.Fatalf("handleIssueToken() error = %v", err)
	}
	if issued.TokenType != "Bearer" || issued.ExpiresIn != 900 {
		t.Errorf("handleIssueToken() = %+v", issued)
	}

	verified, err := m.handleVerifyToken(ctx, VerifyTokenRequest{Token: issued.AccessToken}, nil)
	if err != nil {
		t.Fatalf("handleVerifyToken() error = %v", err)
	}
	if !verified.Valid || verified.UserID != "user-9" {
		t.Errorf("handleVerifyToken() = %+v", verified)
	}

	rejected, err := m.handleVerifyToken(ctx, VerifyTokenRequest{Token: "bogus"}, nil)
	if err != nil {
		t.Fatalf("handleVerifyToken() error = %v", err)
	}
	if rejected.Valid || rejected.Error != "invalid token" {
		t.Errorf("handleVerifyToken(bogus) = %+v", rejected)
	}

	empty, _ := m.handleIssueToken(ctx, IssueTokenRequest{}, nil)
	if empty.Error == "" {
		t.Error("handleIssueToken() accepted an empty user id")
	}
}

func TestAuthModule_StartRequiresKey(t *testing.T) {
	m := NewModule(Config{JWT: JWTConfig{}})
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() expected error without any key")
	}
}
