package user

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-identity-service/internal/api"
	"github.com/FACorreiaa/go-identity-service/internal/api/auth"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetProfile(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	ListUsers(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService   UserService
	logger        *slog.Logger
	maxPhotoBytes int64
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger, maxPhotoBytes int64) *HandlerImpl {
	if logger == nil {
		panic("user.NewHandlerImpl: nil logger")
	}
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = api.DefaultMaxPhotoBytes
	}
	return &HandlerImpl{
		userService:   userService,
		logger:        logger,
		maxPhotoBytes: maxPhotoBytes,
	}
}

// GetProfile godoc
// @Summary      Get own profile
// @Description  Retrieves the authenticated user's profile information.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.UserResponse
// @Failure      401 {object} types.ErrorBody "Unauthorized"
// @Failure      403 {object} types.ErrorBody "Invalid or expired token"
// @Failure      404 {object} types.ErrorBody "User Not Found"
// @Security     BearerAuth
// @Router       /profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetProfile"))

	userID, err := auth.AuthenticatedUserID(ctx)
	if err != nil {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.UserResponse{Success: true, User: profile})
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Partially updates name, email, password and photo. JSON or multipart/form-data.
// @Tags         User
// @Accept       json,mpfd
// @Produce      json
// @Param        body  body     types.UpdateProfileRequest false "Fields to change (JSON)"
// @Param        photo formData file                       false "New profile photo (multipart)"
// @Success      200 {object} types.UserResponse
// @Failure      400 {object} types.ErrorBody "Invalid Input"
// @Failure      401 {object} types.ErrorBody "Unauthorized"
// @Failure      403 {object} types.ErrorBody
// @Failure      404 {object} types.ErrorBody
// @Failure      500 {object} types.ErrorBody
// @Security     BearerAuth
// @Router       /profile [put]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateProfile"))

	userID, err := auth.AuthenticatedUserID(ctx)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	var req types.UpdateProfileRequest
	var photo *types.Photo
	if api.IsMultipart(r) {
		if err := api.ParseMultipart(w, r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
		req.Name = api.FormString(r, "name")
		req.Email = api.FormString(r, "email")
		req.Password = api.FormString(r, "password")
		if photo, err = api.ReadPhoto(r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
	} else if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	updated, err := h.userService.UpdateProfile(ctx, userID, req, photo)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	l.InfoContext(ctx, "Profile updated", slog.String("userID", userID.String()))
	api.WriteJSONResponse(w, r, http.StatusOK, types.UserResponse{Success: true, Message: "Profile updated", User: updated})
}

// ListUsers godoc
// @Summary      List users
// @Tags         Users
// @Produce      json
// @Success      200 {object} types.UsersResponse
// @Failure      401 {object} types.ErrorBody
// @Failure      403 {object} types.ErrorBody
// @Security     BearerAuth
// @Router       /users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.UsersResponse{Success: true, Users: users})
}

// GetUser godoc
// @Summary      Get a user by id
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ID (UUID)"
// @Success      200 {object} types.UserResponse
// @Failure      400 {object} types.ErrorBody "Invalid id"
// @Failure      401 {object} types.ErrorBody
// @Failure      403 {object} types.ErrorBody
// @Failure      404 {object} types.ErrorBody
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetUser"))

	userID, err := api.ParseUUIDParam(r, "id")
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	u, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.UserResponse{Success: true, User: u})
}

// UpdateUser godoc
// @Summary      Update any user (admin)
// @Description  Partially updates name, email, role and photo of the given user.
// @Tags         Users
// @Accept       json,mpfd
// @Produce      json
// @Param        id    path     string                       true  "User ID (UUID)"
// @Param        body  body     types.AdminUpdateUserRequest false "Fields to change (JSON)"
// @Param        photo formData file                         false "New profile photo (multipart)"
// @Success      200 {object} types.UserResponse
// @Failure      400 {object} types.ErrorBody "Invalid input or role"
// @Failure      401 {object} types.ErrorBody
// @Failure      403 {object} types.ErrorBody
// @Failure      404 {object} types.ErrorBody
// @Security     BearerAuth
// @Router       /users/{id} [put]
func (h *HandlerImpl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateUser"))

	userID, err := api.ParseUUIDParam(r, "id")
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	var req types.AdminUpdateUserRequest
	var photo *types.Photo
	if api.IsMultipart(r) {
		if err := api.ParseMultipart(w, r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
		req.Name = api.FormString(r, "name")
		req.Email = api.FormString(r, "email")
		if role := api.FormString(r, "role"); role != nil {
			rl := types.Role(*role)
			req.Role = &rl
		}
		if photo, err = api.ReadPhoto(r, h.maxPhotoBytes); err != nil {
			api.ServiceErrorResponse(w, r, l, err)
			return
		}
	} else if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	updated, err := h.userService.AdminUpdateUser(ctx, userID, req, photo)
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	actor, _ := auth.GetUserIDFromContext(ctx)
	l.InfoContext(ctx, "User updated by admin", slog.String("userID", userID.String()), slog.String("actor", actor))
	api.WriteJSONResponse(w, r, http.StatusOK, types.UserResponse{Success: true, Message: "User updated", User: updated})
}

// DeleteUser godoc
// @Summary      Delete a user (admin)
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ID (UUID)"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.ErrorBody "Invalid id"
// @Failure      401 {object} types.ErrorBody
// @Failure      403 {object} types.ErrorBody
// @Failure      404 {object} types.ErrorBody
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	userID, err := api.ParseUUIDParam(r, "id")
	if err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		api.ServiceErrorResponse(w, r, l, err)
		return
	}

	actor, _ := auth.GetUserIDFromContext(ctx)
	l.InfoContext(ctx, "User deleted by admin", slog.String("userID", userID.String()), slog.String("actor", actor))
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "User deleted successfully"})
}
