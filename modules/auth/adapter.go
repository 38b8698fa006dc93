package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	taskdomain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	// VerifyToken resolves a bearer token. Every failure wraps ErrUnauthenticated.
	VerifyToken(ctx context.Context, token string) (*domain.Claims, error)
	// IssueToken signs a development token.
	IssueToken(ctx context.Context, userID, email string) (*domain.TokenPair, error)
}

// ErrIssueRejected is returned when the issuer refuses the request.
var ErrIssueRejected = errors.New("token request rejected")

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// VerifyToken validates an access token and returns claims. An unreachable
// verifier counts as a failed verification.
func (a *AuthAdapter) VerifyToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceVerifyToken,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%w: %s request failed: %v", taskdomain.ErrUnauthenticated, ServiceVerifyToken, err)
	}

	if !resp.Valid {
		return nil, fmt.Errorf("%w: %s", taskdomain.ErrUnauthenticated, resp.Error)
	}

	return &domain.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// IssueToken requests a development access token.
func (a *AuthAdapter) IssueToken(ctx context.Context, userID, email string) (*domain.TokenPair, error) {
	req := IssueTokenRequest{UserID: userID, Email: email}
	var resp IssueTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceIssueToken,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceIssueToken, err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrIssueRejected, resp.Error)
	}

	return &domain.TokenPair{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		TokenType:   resp.TokenType,
	}, nil
}
