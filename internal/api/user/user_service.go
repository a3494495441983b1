package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-service/internal/cache"
	"github.com/FACorreiaa/go-identity-service/internal/gateway/media"
	"github.com/FACorreiaa/go-identity-service/internal/password"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the profile and administration workflows.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (types.PublicUser, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req types.UpdateProfileRequest, photo *types.Photo) (types.PublicUser, error)

	ListUsers(ctx context.Context) ([]types.PublicUser, error)
	GetUser(ctx context.Context, userID uuid.UUID) (types.PublicUser, error)
	AdminUpdateUser(ctx context.Context, userID uuid.UUID, req types.AdminUpdateUserRequest, photo *types.Photo) (types.PublicUser, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	codec  password.Codec
	media  media.Store
	cache  cache.DirectoryCache
}

// NewUserService creates a new user service instance.
func NewUserService(repo UserRepo, codec password.Codec, store media.Store, dirCache cache.DirectoryCache, logger *slog.Logger) *UserServiceImpl {
	if dirCache == nil {
		dirCache = cache.NoopDirectoryCache{}
	}
	if store == nil {
		store = media.DisabledStore{}
	}
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		codec:  codec,
		media:  store,
		cache:  dirCache,
	}
}

func (s *UserServiceImpl) startSpan(ctx context.Context, name string, userID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer("UserService").Start(ctx, name, trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
}

// GetProfile returns the safe projection of the caller.
func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (types.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "GetProfile", userID)
	defer span.End()
	l := s.logger.With(slog.String("method", "GetProfile"), slog.String("userID", userID.String()))

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch user profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch profile")
		return types.PublicUser{}, fmt.Errorf("error fetching user profile: %w", err)
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	return u.Public(), nil
}

// GetUser returns the safe projection of any user.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (types.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "GetUser", userID)
	defer span.End()

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch user")
		return types.PublicUser{}, fmt.Errorf("error fetching user: %w", err)
	}
	return u.Public(), nil
}

// UpdateProfile applies a self-service patch. Role can never change here.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, req types.UpdateProfileRequest, photo *types.Photo) (types.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "UpdateProfile", userID)
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return types.PublicUser{}, err
	}

	patch := types.UserPatch{Name: req.Name, Email: req.Email}
	u, err := s.applyUpdate(ctx, userID, patch, req.Password, photo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return types.PublicUser{}, err
	}
	span.SetStatus(codes.Ok, "Profile updated")
	return u.Public(), nil
}

// AdminUpdateUser applies an admin patch to an arbitrary user.
func (s *UserServiceImpl) AdminUpdateUser(ctx context.Context, userID uuid.UUID, req types.AdminUpdateUserRequest, photo *types.Photo) (types.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "AdminUpdateUser", userID)
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return types.PublicUser{}, err
	}

	patch := types.UserPatch{Name: req.Name, Email: req.Email, Role: req.Role}
	u, err := s.applyUpdate(ctx, userID, patch, nil, photo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return types.PublicUser{}, err
	}
	span.SetStatus(codes.Ok, "User updated")
	return u.Public(), nil
}

// applyUpdate runs the shared update steps: the target must exist, a new
// password is hashed, a new photo is uploaded before the record points at it
// and the previous photo is removed only after the record has moved on.
func (s *UserServiceImpl) applyUpdate(ctx context.Context, userID uuid.UUID, patch types.UserPatch, newPassword *string, photo *types.Photo) (*types.User, error) {
	l := s.logger.With(slog.String("method", "applyUpdate"), slog.String("userID", userID.String()))

	current, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading user for update: %w", err)
	}

	if patch.Email != nil {
		normalized := types.NormalizeEmail(*patch.Email)
		patch.Email = &normalized
	}

	if newPassword != nil {
		digest, err := s.codec.Hash(ctx, *newPassword)
		if err != nil {
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		patch.PasswordHash = &digest
	}

	var uploaded *types.StoredMedia
	if photo != nil {
		stored, err := s.media.Upload(ctx, *photo)
		if err != nil {
			l.ErrorContext(ctx, "Photo upload failed", slog.Any("error", err))
			return nil, fmt.Errorf("error uploading photo: %w", err)
		}
		uploaded = &stored
		patch.PhotoURL = &stored.URL
		patch.PhotoRef = &stored.Ref
	}

	updated, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		if uploaded != nil {
			s.discardPhoto(ctx, l, uploaded.Ref)
		}
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	if uploaded != nil && current.PhotoRef != nil && *current.PhotoRef != uploaded.Ref {
		s.discardPhoto(ctx, l, *current.PhotoRef)
	}

	s.invalidate(ctx, l)
	l.InfoContext(ctx, "User updated")
	return updated, nil
}

// ListUsers serves the directory listing through the cache.
func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]types.PublicUser, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()
	l := s.logger.With(slog.String("method", "ListUsers"))

	if users, ok := s.cache.GetUsers(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		l.DebugContext(ctx, "Serving user listing from cache", slog.Int("count", len(users)))
		return users, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	gen := s.cache.Generation(ctx)
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	users := types.PublicUsers(records)
	s.cache.SetUsers(ctx, gen, users)
	span.SetStatus(codes.Ok, "Users listed")
	return users, nil
}

// DeleteUser removes the record, then its photo (best-effort).
func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := s.startSpan(ctx, "DeleteUser", userID)
	defer span.End()
	l := s.logger.With(slog.String("method", "DeleteUser"), slog.String("userID", userID.String()))

	current, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return fmt.Errorf("error loading user for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("error deleting user: %w", err)
	}
	s.invalidate(ctx, l)

	if current.PhotoRef != nil {
		s.discardPhoto(ctx, l, *current.PhotoRef)
	}

	l.InfoContext(ctx, "User deleted")
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

func (s *UserServiceImpl) invalidate(ctx context.Context, l *slog.Logger) {
	if err := s.cache.Invalidate(ctx); err != nil {
		l.WarnContext(ctx, "Failed to invalidate user listing cache", slog.Any("error", err))
	}
}

func (s *UserServiceImpl) discardPhoto(ctx context.Context, l *slog.Logger, ref string) {
	if err := s.media.Delete(ctx, ref); err != nil {
		l.WarnContext(ctx, "Failed to delete stored photo", slog.String("ref", ref), slog.Any("error", err))
	}
}
