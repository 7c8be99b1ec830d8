package model

// UserProfile is the user record returned by the API. It is replaced
// wholesale on every auth-affecting operation.
type UserProfile struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Credentials is the opaque bearer token pair issued by the API.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	Message      string       `json:"message,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *UserProfile `json:"user"`
}

func (r AuthResponse) Credentials() Credentials {
	return Credentials{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type ProfileResponse struct {
	User *UserProfile `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type VerifyResetTokenResponse struct {
	Message string `json:"message"`
	Valid   bool   `json:"valid"`
	Email   string `json:"email,omitempty"`
}

// AuthClaims is what the fake API reads back out of a bearer token.
type AuthClaims struct {
	UserID  int64
	Type    string
	TokenID string
}
