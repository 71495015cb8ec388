package handlers

import (
	"net/http"

	"studynotes/internal/models"
	"studynotes/internal/services"
	"studynotes/internal/utils"
)

// UserHandler exposes the auth service under /api/users.
type UserHandler struct {
	authService services.AuthService
}

func NewUserHandler(authService services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// validator is implemented by every request body under /api/users.
type validator interface {
	Validate() error
}

// decodeAndValidate answers the request itself and reports false when the
// body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req validator) bool {
	if err := utils.DecodeJSON(w, r, req); err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid request body")
		return false
	}
	if err := req.Validate(); err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid request")
		return false
	}
	return true
}

func (u *UserHandler) RegisterSendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := u.authService.RequestRegistrationOTP(r.Context(), &req); err != nil {
		utils.RespondWithAppError(w, r, err, "Error sending OTP")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "OTP sent to your email", nil)
}

func (u *UserHandler) RegisterVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterVerifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := u.authService.CompleteRegistration(r.Context(), &req)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Registration failed")
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "Registration successful", user)
}

func (u *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := u.authService.Login(r.Context(), &req)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Login failed")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Login successful", user)
}

func (u *UserHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleAuthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := u.authService.GoogleAuth(r.Context(), &req)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Google authentication failed")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Google authentication successful", user)
}

func (u *UserHandler) ForgotPasswordSendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := u.authService.RequestPasswordReset(r.Context(), &req); err != nil {
		utils.RespondWithAppError(w, r, err, "Error sending OTP")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Password reset OTP sent to your email", nil)
}

func (u *UserHandler) ResetPasswordWithOTP(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := u.authService.CompleteReset(r.Context(), &req); err != nil {
		utils.RespondWithAppError(w, r, err, "Password reset failed")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Password reset successful", nil)
}
