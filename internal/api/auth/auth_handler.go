package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-identity-service/internal/api"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

const (
	registeredMessage     = "User registered. Please verify your email."
	registeredNoMailMsg   = "User registered, but the verification email could not be sent. Request a new verification link."
	verifiedMessage       = "Email verified successfully"
	verificationLinkMsg   = "If the account exists and is not verified yet, a verification link has been sent"
	resetRequestedMessage = "If the account exists, a password reset link has been sent"
	passwordResetMessage  = "Password has been reset successfully"
)

type AuthHandler struct {
	authService   AuthService
	logger        *slog.Logger
	maxPhotoBytes int64
}

func NewAuthHandler(authService AuthService, logger *slog.Logger, maxPhotoBytes int64) *AuthHandler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = api.DefaultMaxPhotoBytes
	}
	return &AuthHandler{
		authService:   authService,
		logger:        logger,
		maxPhotoBytes: maxPhotoBytes,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an unverified account and emails a verification link. Accepts JSON or multipart/form-data with an optional photo file.
// @Tags         Auth
// @Accept       json,mpfd
// @Produce      json
// @Param        body  body      types.RegisterRequest  false  "Registration data (JSON)"
// @Param        photo formData  file                   false  "Profile photo (multipart)"
// @Success      201 {object} types.RegisterResponse
// @Failure      400 {object} types.ErrorBody "Invalid input or email already registered"
// @Failure      500 {object} types.ErrorBody
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	var photo *types.Photo
	if api.IsMultipart(r) {
		if err := api.ParseMultipart(w, r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
		req.Name = r.FormValue("name")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")

		var err error
		if photo, err = api.ReadPhoto(r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
	} else if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	res, err := h.authService.Register(ctx, req, photo)
	if err != nil {
		l.InfoContext(ctx, "Registration failed", slog.Any("error", err))
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	msg := registeredMessage
	if !res.VerificationSent {
		msg = registeredNoMailMsg
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, types.RegisterResponse{
		Success:          true,
		Message:          msg,
		User:             res.User,
		VerificationSent: res.VerificationSent,
	})
}

// VerifyEmail godoc
// @Summary      Verify email address
// @Tags         Auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} types.UserResponse
// @Failure      400 {object} types.ErrorBody "Invalid or expired token"
// @Failure      404 {object} types.ErrorBody "User not found"
// @Router       /verify-email [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "VerifyEmail"))

	user, err := h.authService.VerifyEmail(r.Context(), types.VerifyEmailRequest{Token: r.URL.Query().Get("token")})
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.UserResponse{Success: true, Message: verifiedMessage, User: user})
}

// ResendVerification godoc
// @Summary      Request a new verification link
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.EmailRequest true "Account email"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.ErrorBody
// @Failure      500 {object} types.ErrorBody
// @Router       /verification-link [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "ResendVerification"))

	var req types.EmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	if err := h.authService.ResendVerification(r.Context(), req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: verificationLinkMsg})
}

// Login godoc
// @Summary      Log in
// @Description  Exchanges verified credentials for a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.LoginRequest true "Credentials"
// @Success      200 {object} types.LoginResponse
// @Failure      400 {object} types.ErrorBody "Invalid credentials or email not verified"
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.LoginResponse{Success: true, Token: res.Token, User: res.User})
}

// RequestPasswordReset godoc
// @Summary      Request a password reset link
// @Description  Always answers with the same message whether or not the account exists.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.EmailRequest true "Account email"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.ErrorBody
// @Failure      500 {object} types.ErrorBody
// @Router       /reset-password [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "RequestPasswordReset"))

	var req types.EmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	if err := h.authService.RequestPasswordReset(r.Context(), req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: resetRequestedMessage})
}

// ResetPassword godoc
// @Summary      Set a new password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        token path string                     true "Reset token"
// @Param        body  body types.ResetPasswordRequest true "New password"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.ErrorBody "Invalid input or token"
// @Failure      404 {object} types.ErrorBody "User not found"
// @Router       /reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "ResetPassword"))

	var req types.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	req.Token = chi.URLParam(r, "token")

	if err := h.authService.ResetPassword(r.Context(), req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: passwordResetMessage})
}
