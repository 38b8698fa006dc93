package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Config configures the auth module.
type Config struct {
	JWT JWTConfig
	// AllowIssue registers the token issuing service. Development only.
	AllowIssue bool
}

// AuthModule verifies bearer tokens for the other modules.
type AuthModule struct {
	config Config
	jwt    *JWTManager
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config) *AuthModule {
	return &AuthModule{
		config: config,
		jwt:    NewJWTManager(config.JWT),
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start initializes the auth module.
func (m *AuthModule) Start(_ context.Context) error {
	if m.config.JWT.PublicKey == nil && m.config.JWT.SecretKey == "" {
		return errors.New("either a JWT secret key or a public key is required")
	}
	log.Printf("[auth] Module started (algorithm: %s, issuer: %q, issue-token: %t)",
		m.jwt.Algorithm(), m.config.JWT.Issuer, m.config.AllowIssue && m.jwt.CanIssue())
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"algorithm": m.jwt.Algorithm(),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceVerifyToken,
		json.Unmarshal,
		json.Marshal,
		m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceVerifyToken, err)
	}

	if !m.config.AllowIssue || !m.jwt.CanIssue() {
		log.Printf("[auth] Registered services: %s", ServiceVerifyToken)
		return nil
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceIssueToken,
		json.Unmarshal,
		json.Marshal,
		m.handleIssueToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceIssueToken, err)
	}

	log.Printf("[auth] Registered services: %s, %s", ServiceVerifyToken, ServiceIssueToken)
	return nil
}

// handleVerifyToken handles token verification.
func (m *AuthModule) handleVerifyToken(_ context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	claims, err := m.jwt.VerifyAccessToken(req.Token)
	if err != nil {
		errMsg := "invalid token"
		switch {
		case errors.Is(err, ErrExpiredToken):
			errMsg = "token expired"
		case errors.Is(err, ErrMissingToken):
			errMsg = "missing token"
		}
		return VerifyTokenResponse{
			Valid: false,
			Error: errMsg,
		}, nil // Return response, not error, for verification failures
	}

	return VerifyTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// handleIssueToken signs an access token for any user id. Development only.
func (m *AuthModule) handleIssueToken(_ context.Context, req IssueTokenRequest, _ *mono.Msg) (IssueTokenResponse, error) {
	if req.UserID == "" || len(req.UserID) > maxUserIDLength {
		return IssueTokenResponse{Error: "user_id must be 1 to 128 characters"}, nil
	}

	token, err := m.jwt.GenerateAccessToken(req.UserID, req.Email)
	if err != nil {
		log.Printf("[auth] Failed to issue token: %v", err)
		return IssueTokenResponse{}, fmt.Errorf("failed to issue token: %w", err)
	}

	log.Printf("[auth] Issued development token for user %s", req.UserID)
	return IssueTokenResponse{
		AccessToken: token,
		ExpiresIn:   m.jwt.AccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}
