package user

// Claims identifies the authenticated caller of a request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// TokenPair is returned by the development token issuer.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
