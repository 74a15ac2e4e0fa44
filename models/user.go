package models

// User is an account known to the devserver login endpoint.
type User struct {
	ID       string `json:"id" mapstructure:"id"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"` // bcrypt hash
	Type     string `json:"type" mapstructure:"type"`  // admin, client
}

// Identity is the acting user extracted from a credential claim.
type Identity struct {
	UserID   string
	Username string
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}
