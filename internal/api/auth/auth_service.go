package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-identity-service/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-service/internal/cache"
	"github.com/FACorreiaa/go-identity-service/internal/gateway/mail"
	"github.com/FACorreiaa/go-identity-service/internal/gateway/media"
	"github.com/FACorreiaa/go-identity-service/internal/password"
	"github.com/FACorreiaa/go-identity-service/internal/token"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService runs the unauthenticated account workflows.
type AuthService interface {
	Register(ctx context.Context, req types.RegisterRequest, photo *types.Photo) (types.RegisterResult, error)
	VerifyEmail(ctx context.Context, req types.VerifyEmailRequest) (types.PublicUser, error)
	ResendVerification(ctx context.Context, req types.EmailRequest) error
	Login(ctx context.Context, req types.LoginRequest) (types.LoginResult, error)
	RequestPasswordReset(ctx context.Context, req types.EmailRequest) error
	ResetPassword(ctx context.Context, req types.ResetPasswordRequest) error
}

// UserDirectory is the part of the user store the auth workflows touch.
type UserDirectory interface {
	Create(ctx context.Context, params types.NewUserParams) (*types.User, error)
	FindByEmail(ctx context.Context, email string) (*types.User, error)
	FindByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	Update(ctx context.Context, userID uuid.UUID, patch types.UserPatch) (*types.User, error)
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

// TokenTTLs sets how long each kind of token stays valid.
type TokenTTLs struct {
	Session       time.Duration
	EmailVerify   time.Duration
	PasswordReset time.Duration
}

func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{
		Session:       time.Hour,
		EmailVerify:   24 * time.Hour,
		PasswordReset: time.Hour,
	}
}

// Deps groups the collaborators of AuthServiceImpl.
type Deps struct {
	Users    UserDirectory
	Codec    password.Codec
	Tokens   token.Manager
	Notifier mail.Notifier
	Media    media.Store
	Cache    cache.DirectoryCache
	TTLs     TokenTTLs
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	users    UserDirectory
	codec    password.Codec
	tokens   token.Manager
	notifier mail.Notifier
	media    media.Store
	cache    cache.DirectoryCache
	ttls     TokenTTLs

	dummyMu   sync.Mutex
	dummyHash string
}

func NewAuthService(deps Deps, logger *slog.Logger) *AuthServiceImpl {
	defaults := DefaultTokenTTLs()
	ttls := deps.TTLs
	if ttls.Session <= 0 {
		ttls.Session = defaults.Session
	}
	if ttls.EmailVerify <= 0 {
		ttls.EmailVerify = defaults.EmailVerify
	}
	if ttls.PasswordReset <= 0 {
		ttls.PasswordReset = defaults.PasswordReset
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopDirectoryCache{}
	}
	if deps.Media == nil {
		deps.Media = media.DisabledStore{}
	}

	return &AuthServiceImpl{
		logger:   logger,
		users:    deps.Users,
		codec:    deps.Codec,
		tokens:   deps.Tokens,
		notifier: deps.Notifier,
		media:    deps.Media,
		cache:    deps.Cache,
		ttls:     ttls,
	}
}

// Register creates an unverified account and emails a verification link.
// A failed delivery does not undo the registration; the client can ask for a
// new link later.
func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest, photo *types.Photo) (types.RegisterResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()
	l := s.logger.With(slog.String("method", "Register"))
	start := time.Now()
	m := metrics.Get()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return types.RegisterResult{}, err
	}
	email := types.NormalizeEmail(req.Email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		span.SetStatus(codes.Error, "email exists")
		return types.RegisterResult{}, fmt.Errorf("email %s: %w", email, types.ErrConflict)
	case !errors.Is(err, types.ErrNotFound):
		span.RecordError(err)
		return types.RegisterResult{}, fmt.Errorf("error checking email: %w", err)
	}

	digest, err := s.codec.Hash(ctx, req.Password)
	if err != nil {
		span.RecordError(err)
		return types.RegisterResult{}, fmt.Errorf("error hashing password: %w", err)
	}

	params := types.NewUserParams{
		Name:         req.Name,
		Email:        email,
		PasswordHash: digest,
		Role:         types.RoleUser,
	}
	var uploaded *types.StoredMedia
	if photo != nil {
		stored, err := s.media.Upload(ctx, *photo)
		if err != nil {
			l.ErrorContext(ctx, "Photo upload failed, aborting registration", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload failed")
			return types.RegisterResult{}, fmt.Errorf("error uploading photo: %w", err)
		}
		uploaded = &stored
		params.PhotoURL = &stored.URL
		params.PhotoRef = &stored.Ref
	}

	u, err := s.users.Create(ctx, params)
	if err != nil {
		if uploaded != nil {
			if delErr := s.media.Delete(ctx, uploaded.Ref); delErr != nil {
				l.WarnContext(ctx, "Failed to remove photo of failed registration", slog.Any("error", delErr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return types.RegisterResult{}, fmt.Errorf("error creating user: %w", err)
	}
	s.invalidate(ctx, l)

	sent := s.sendLink(ctx, l, u, types.PurposeEmailVerify, s.ttls.EmailVerify) == nil

	m.RegisterRequestsTotal.Add(ctx, 1)
	m.RegisterDurationSeconds.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(attribute.String("user.id", u.ID.String()), attribute.Bool("verification.sent", sent))
	span.SetStatus(codes.Ok, "User registered")
	l.InfoContext(ctx, "User registered", slog.String("userID", u.ID.String()), slog.Bool("verification_sent", sent))

	return types.RegisterResult{User: u.Public(), VerificationSent: sent}, nil
}

// VerifyEmail marks the token's subject as verified. Replaying a valid token
// for an already verified user succeeds again.
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, req types.VerifyEmailRequest) (types.PublicUser, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "VerifyEmail")
	defer span.End()
	l := s.logger.With(slog.String("method", "VerifyEmail"))

	if err := req.Validate(); err != nil {
		return types.PublicUser{}, err
	}

	userID, err := s.subjectOf(types.PurposeEmailVerify, req.Token)
	if err != nil {
		l.WarnContext(ctx, "Rejected verification token", slog.Any("error", err))
		span.SetStatus(codes.Error, "bad token")
		return types.PublicUser{}, err
	}

	u, err := s.users.MarkEmailVerified(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return types.PublicUser{}, fmt.Errorf("error verifying email: %w", err)
	}
	s.invalidate(ctx, l)

	span.SetStatus(codes.Ok, "Email verified")
	l.InfoContext(ctx, "Email verified", slog.String("userID", userID.String()))
	return u.Public(), nil
}

// ResendVerification issues a fresh verification link. Unknown and already
// verified addresses get the same silent success.
func (s *AuthServiceImpl) ResendVerification(ctx context.Context, req types.EmailRequest) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResendVerification")
	defer span.End()
	l := s.logger.With(slog.String("method", "ResendVerification"))

	if err := req.Validate(); err != nil {
		return err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, types.ErrNotFound) {
		l.DebugContext(ctx, "Verification link requested for unknown email")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error looking up user: %w", err)
	}
	if u.IsVerified {
		l.DebugContext(ctx, "Verification link requested for verified user", slog.String("userID", u.ID.String()))
		return nil
	}

	return s.sendLink(ctx, l, u, types.PurposeEmailVerify, s.ttls.EmailVerify)
}

// Login checks credentials and issues a session token. Unknown email and wrong
// password produce the same error, and an unknown email still pays for one
// bcrypt comparison.
func (s *AuthServiceImpl) Login(ctx context.Context, req types.LoginRequest) (types.LoginResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()
	l := s.logger.With(slog.String("method", "Login"))
	m := metrics.Get()

	if err := req.Validate(); err != nil {
		m.CountLogin(ctx, "invalid_input")
		return types.LoginResult{}, err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, types.ErrNotFound) {
		if _, verr := s.codec.Verify(ctx, req.Password, s.dummyDigest(ctx)); verr != nil {
			return types.LoginResult{}, fmt.Errorf("error checking password: %w", verr)
		}
		m.CountLogin(ctx, "invalid_credentials")
		span.SetStatus(codes.Error, "invalid credentials")
		return types.LoginResult{}, types.ErrInvalidCredentials
	}
	if err != nil {
		span.RecordError(err)
		return types.LoginResult{}, fmt.Errorf("error looking up user: %w", err)
	}

	ok, err := s.codec.Verify(ctx, req.Password, u.PasswordHash)
	if err != nil {
		return types.LoginResult{}, fmt.Errorf("error checking password: %w", err)
	}
	if !ok {
		m.CountLogin(ctx, "invalid_credentials")
		span.SetStatus(codes.Error, "invalid credentials")
		l.InfoContext(ctx, "Login rejected", slog.String("userID", u.ID.String()))
		return types.LoginResult{}, types.ErrInvalidCredentials
	}
	if !u.IsVerified {
		m.CountLogin(ctx, "not_verified")
		span.SetStatus(codes.Error, "not verified")
		return types.LoginResult{}, types.ErrNotVerified
	}

	tok, err := s.tokens.Issue(types.PurposeSession, types.TokenSubject{UserID: u.ID, Role: u.Role}, s.ttls.Session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issue failed")
		return types.LoginResult{}, fmt.Errorf("error issuing session token: %w", err)
	}

	m.CountLogin(ctx, "success")
	span.SetStatus(codes.Ok, "Logged in")
	l.InfoContext(ctx, "User logged in", slog.String("userID", u.ID.String()))
	return types.LoginResult{Token: tok, User: u.Public()}, nil
}

// RequestPasswordReset emails a reset link. Unknown addresses get the same
// silent success so the endpoint cannot be used to enumerate accounts.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, req types.EmailRequest) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestPasswordReset")
	defer span.End()
	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	if err := req.Validate(); err != nil {
		return err
	}
	metrics.Get().PasswordResetRequestsTotal.Add(ctx, 1)

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, types.ErrNotFound) {
		l.DebugContext(ctx, "Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error looking up user: %w", err)
	}

	return s.sendLink(ctx, l, u, types.PurposePasswordReset, s.ttls.PasswordReset)
}

// ResetPassword replaces the password of the reset token's subject.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, req types.ResetPasswordRequest) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()
	l := s.logger.With(slog.String("method", "ResetPassword"))

	if err := req.Validate(); err != nil {
		return err
	}

	userID, err := s.subjectOf(types.PurposePasswordReset, req.Token)
	if err != nil {
		l.WarnContext(ctx, "Rejected reset token", slog.Any("error", err))
		span.SetStatus(codes.Error, "bad token")
		return err
	}

	digest, err := s.codec.Hash(ctx, req.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	if _, err := s.users.Update(ctx, userID, types.UserPatch{PasswordHash: &digest}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("error resetting password: %w", err)
	}
	s.invalidate(ctx, l)

	span.SetStatus(codes.Ok, "Password reset")
	l.InfoContext(ctx, "Password reset", slog.String("userID", userID.String()))
	return nil
}

func (s *AuthServiceImpl) subjectOf(purpose types.TokenPurpose, raw string) (uuid.UUID, error) {
	claims, err := s.tokens.Verify(purpose, raw)
	if err != nil {
		return uuid.Nil, err
	}
	return token.SubjectID(claims)
}

// sendLink mints a token of purpose for u and hands it to the notifier.
func (s *AuthServiceImpl) sendLink(ctx context.Context, l *slog.Logger, u *types.User, purpose types.TokenPurpose, ttl time.Duration) error {
	outcome := "sent"
	defer func() {
		metrics.Get().EmailDeliveriesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("purpose", string(purpose)),
			attribute.String("outcome", outcome)))
	}()

	tok, err := s.tokens.Issue(purpose, types.TokenSubject{UserID: u.ID}, ttl)
	if err != nil {
		outcome = "token_error"
		l.ErrorContext(ctx, "Failed to issue token", slog.String("purpose", string(purpose)), slog.Any("error", err))
		return fmt.Errorf("error issuing %s token: %w", purpose, err)
	}
	if err := s.notifier.Deliver(ctx, u.Email, tok, purpose); err != nil {
		outcome = "failed"
		l.ErrorContext(ctx, "Failed to deliver email", slog.String("purpose", string(purpose)), slog.Any("error", err))
		return fmt.Errorf("error delivering %s email: %w", purpose, err)
	}
	return nil
}

func (s *AuthServiceImpl) invalidate(ctx context.Context, l *slog.Logger) {
	if err := s.cache.Invalidate(ctx); err != nil {
		l.WarnContext(ctx, "Failed to invalidate user listing cache", slog.Any("error", err))
	}
}

// dummyDigest is compared against when the email is unknown so that both
// login failures cost one bcrypt verification.
func (s *AuthServiceImpl) dummyDigest(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash == "" {
		digest, err := s.codec.Hash(ctx, uuid.NewString())
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to prepare dummy digest", slog.Any("error", err))
			return ""
		}
		s.dummyHash = digest
	}
	return s.dummyHash
}
