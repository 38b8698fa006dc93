package auth

// Service names registered by the auth module.
const (
	ServiceVerifyToken = "auth.verify-token"
	ServiceIssueToken  = "auth.issue-token"
)

// VerifyTokenRequest represents a token verification request.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse represents a token verification response.
type VerifyTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
}

// IssueTokenRequest represents a development token request.
type IssueTokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IssueTokenResponse represents a development token response.
type IssueTokenResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Error       string `json:"error,omitempty"`
}
