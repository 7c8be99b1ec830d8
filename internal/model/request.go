package model

type RegisterRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,emailfmt,nodisposable"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type VerifyEmailRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	OTP    string `json:"otp" validate:"required,otp"`
}

// LoginRequest carries the "remember me" choice alongside the credentials;
// Remember selects the persistence mode and is never sent to the API.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,emailfmt"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"-"`
}

type ResendOTPRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,emailfmt"`
}

type VerifyResetTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}
