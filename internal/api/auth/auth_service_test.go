package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-identity-service/internal/cache"
	"github.com/FACorreiaa/go-identity-service/internal/password"
	"github.com/FACorreiaa/go-identity-service/internal/token"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// MockUserDirectory is a mock implementation of the UserDirectory interface
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Create(ctx context.Context, params types.NewUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserDirectory) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserDirectory) FindByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserDirectory) Update(ctx context.Context, userID uuid.UUID, patch types.UserPatch) (*types.User, error) {
	args := m.Called(ctx, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserDirectory) MarkEmailVerified(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(ctx context.Context, address, tok string, purpose types.TokenPurpose) error {
	return m.Called(ctx, address, tok, purpose).Error(0)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Upload(ctx context.Context, photo types.Photo) (types.StoredMedia, error) {
	args := m.Called(ctx, photo)
	return args.Get(0).(types.StoredMedia), args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

type serviceFixture struct {
	users    *MockUserDirectory
	notifier *MockNotifier
	media    *MockMediaStore
	codec    *password.BcryptCodec
	tokens   *token.Service
	cache    *cache.MemoryDirectoryCache
	service  *AuthServiceImpl
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		users:    new(MockUserDirectory),
		notifier: new(MockNotifier),
		media:    new(MockMediaStore),
		codec:    password.NewBcryptCodec(bcrypt.MinCost, 4),
		tokens: token.NewService("test-issuer", map[types.TokenPurpose]string{
			types.PurposeSession:       "session-secret",
			types.PurposeEmailVerify:   "verify-secret",
			types.PurposePasswordReset: "reset-secret",
		}),
		cache: cache.NewMemoryDirectoryCache(time.Minute, time.Minute),
	}
	f.service = NewAuthService(Deps{
		Users:    f.users,
		Codec:    f.codec,
		Tokens:   f.tokens,
		Notifier: f.notifier,
		Media:    f.media,
		Cache:    f.cache,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *serviceFixture) hash(t *testing.T, p string) string {
	t.Helper()
	h, err := f.codec.Hash(context.Background(), p)
	require.NoError(t, err)
	return h
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	req := types.RegisterRequest{Name: "Jane", Email: "Jane@Example.com", Password: "secret1"}

	t.Run("Success", func(t *testing.T) {
		f := newServiceFixture()
		f.cache.SetUsers(ctx, f.cache.Generation(ctx), []types.PublicUser{{Name: "stale"}})
		created := &types.User{ID: uuid.New(), Name: "Jane", Email: "jane@example.com", Role: types.RoleUser}

		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, types.ErrNotFound).Once()
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(p types.NewUserParams) bool {
			ok, _ := f.codec.Verify(ctx, "secret1", p.PasswordHash)
			return p.Email == "jane@example.com" && p.Role == types.RoleUser && ok && p.PhotoURL == nil
		})).Return(created, nil).Once()

		var deliveredToken string
		f.notifier.On("Deliver", mock.Anything, "jane@example.com", mock.AnythingOfType("string"), types.PurposeEmailVerify).
			Run(func(args mock.Arguments) { deliveredToken = args.String(2) }).
			Return(nil).Once()

		res, err := f.service.Register(ctx, req, nil)
		require.NoError(t, err)
		assert.True(t, res.VerificationSent)
		assert.Equal(t, created.ID, res.User.ID)

		claims, err := f.tokens.Verify(types.PurposeEmailVerify, deliveredToken)
		require.NoError(t, err)
		assert.Equal(t, created.ID.String(), claims.UserID)

		_, hit := f.cache.GetUsers(ctx)
		assert.False(t, hit, "registration must invalidate the listing")

		f.users.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(&types.User{ID: uuid.New()}, nil).Once()

		_, err := f.service.Register(ctx, req, nil)
		assert.ErrorIs(t, err, types.ErrConflict)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.notifier.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidInputNeverTouchesDirectory", func(t *testing.T) {
		f := newServiceFixture()
		bad := []types.RegisterRequest{
			{Name: "", Email: "jane@example.com", Password: "secret1"},
			{Name: "Jane", Email: "not-an-email", Password: "secret1"},
			{Name: "Jane", Email: "jane@example.com", Password: "short"},
		}
		for _, r := range bad {
			_, err := f.service.Register(ctx, r, nil)
			assert.ErrorIs(t, err, types.ErrValidation)
		}
		f.users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("PhotoUploadFailureAbortsBeforeWrite", func(t *testing.T) {
		f := newServiceFixture()
		photo := &types.Photo{Filename: "me.png", ContentType: "image/png", Data: []byte("png")}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, types.ErrNotFound).Once()
		f.media.On("Upload", mock.Anything, *photo).Return(types.StoredMedia{}, types.ErrUpstream).Once()

		_, err := f.service.Register(ctx, req, photo)
		assert.ErrorIs(t, err, types.ErrUpstream)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("CreateFailureRemovesUploadedPhoto", func(t *testing.T) {
		f := newServiceFixture()
		photo := &types.Photo{Filename: "me.png", ContentType: "image/png", Data: []byte("png")}
		stored := types.StoredMedia{URL: "https://cdn/p.png", Ref: "profile-photos/p.png"}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, types.ErrNotFound).Once()
		f.media.On("Upload", mock.Anything, *photo).Return(stored, nil).Once()
		f.users.On("Create", mock.Anything, mock.Anything).Return(nil, types.ErrConflict).Once()
		f.media.On("Delete", mock.Anything, stored.Ref).Return(nil).Once()

		_, err := f.service.Register(ctx, req, photo)
		assert.ErrorIs(t, err, types.ErrConflict)
		f.media.AssertExpectations(t)
	})

	t.Run("DeliveryFailureStillRegisters", func(t *testing.T) {
		f := newServiceFixture()
		created := &types.User{ID: uuid.New(), Email: "jane@example.com", Role: types.RoleUser}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, types.ErrNotFound).Once()
		f.users.On("Create", mock.Anything, mock.Anything).Return(created, nil).Once()
		f.notifier.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(types.ErrUpstream).Once()

		res, err := f.service.Register(ctx, req, nil)
		require.NoError(t, err)
		assert.False(t, res.VerificationSent)
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("SuccessAndIdempotentReplay", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposeEmailVerify, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)

		verified := &types.User{ID: userID, Email: "jane@example.com", IsVerified: true}
		f.users.On("MarkEmailVerified", mock.Anything, userID).Return(verified, nil).Twice()

		u, err := f.service.VerifyEmail(ctx, types.VerifyEmailRequest{Token: tok})
		require.NoError(t, err)
		assert.True(t, u.IsVerified)

		u, err = f.service.VerifyEmail(ctx, types.VerifyEmailRequest{Token: tok})
		require.NoError(t, err)
		assert.True(t, u.IsVerified)
		f.users.AssertExpectations(t)
	})

	t.Run("SessionTokenRejected", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposeSession, types.TokenSubject{UserID: userID, Role: types.RoleUser}, time.Hour)
		require.NoError(t, err)

		_, err = f.service.VerifyEmail(ctx, types.VerifyEmailRequest{Token: tok})
		assert.ErrorIs(t, err, types.ErrTokenInvalid)
		f.users.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything)
	})

	t.Run("MissingToken", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.service.VerifyEmail(ctx, types.VerifyEmailRequest{})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("SubjectGone", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposeEmailVerify, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)
		f.users.On("MarkEmailVerified", mock.Anything, userID).Return(nil, types.ErrNotFound).Once()

		_, err = f.service.VerifyEmail(ctx, types.VerifyEmailRequest{Token: tok})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newServiceFixture()
		u := &types.User{ID: uuid.New(), Email: "jane@example.com", PasswordHash: f.hash(t, "secret1"), Role: types.RoleAdmin, IsVerified: true}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(u, nil).Once()

		res, err := f.service.Login(ctx, types.LoginRequest{Email: "jane@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, u.ID, res.User.ID)

		claims, err := f.tokens.Verify(types.PurposeSession, res.Token)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
		assert.Equal(t, types.RoleAdmin, claims.Role)
	})

	t.Run("UnknownEmailAndWrongPasswordLookTheSame", func(t *testing.T) {
		f := newServiceFixture()
		u := &types.User{ID: uuid.New(), Email: "jane@example.com", PasswordHash: f.hash(t, "secret1"), IsVerified: true}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(u, nil).Once()
		f.users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		_, wrongPw := f.service.Login(ctx, types.LoginRequest{Email: "jane@example.com", Password: "wrong-password"})
		_, unknown := f.service.Login(ctx, types.LoginRequest{Email: "ghost@example.com", Password: "secret1"})

		assert.ErrorIs(t, wrongPw, types.ErrInvalidCredentials)
		assert.ErrorIs(t, unknown, types.ErrInvalidCredentials)
		assert.Equal(t, wrongPw.Error(), unknown.Error())
	})

	t.Run("NotVerifiedOnlyAfterPasswordMatches", func(t *testing.T) {
		f := newServiceFixture()
		u := &types.User{ID: uuid.New(), Email: "jane@example.com", PasswordHash: f.hash(t, "secret1"), IsVerified: false}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(u, nil).Twice()

		_, err := f.service.Login(ctx, types.LoginRequest{Email: "jane@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, types.ErrNotVerified)

		_, err = f.service.Login(ctx, types.LoginRequest{Email: "jane@example.com", Password: "nope-nope"})
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	})

	t.Run("DirectoryFailure", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, errors.New("db down")).Once()

		_, err := f.service.Login(ctx, types.LoginRequest{Email: "jane@example.com", Password: "secret1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrInvalidCredentials)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownEmailIsGenericSuccess", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		err := f.service.RequestPasswordReset(ctx, types.EmailRequest{Email: "ghost@example.com"})
		assert.NoError(t, err)
		f.notifier.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("DeliversResetToken", func(t *testing.T) {
		f := newServiceFixture()
		u := &types.User{ID: uuid.New(), Email: "jane@example.com"}
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(u, nil).Once()

		var tok string
		f.notifier.On("Deliver", mock.Anything, "jane@example.com", mock.AnythingOfType("string"), types.PurposePasswordReset).
			Run(func(args mock.Arguments) { tok = args.String(2) }).
			Return(nil).Once()

		require.NoError(t, f.service.RequestPasswordReset(ctx, types.EmailRequest{Email: "jane@example.com"}))

		claims, err := f.tokens.Verify(types.PurposePasswordReset, tok)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
		assert.Empty(t, claims.Role)
	})

	t.Run("DeliveryFailure", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(&types.User{ID: uuid.New(), Email: "jane@example.com"}, nil).Once()
		f.notifier.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(types.ErrUpstream).Once()

		err := f.service.RequestPasswordReset(ctx, types.EmailRequest{Email: "jane@example.com"})
		assert.ErrorIs(t, err, types.ErrUpstream)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposePasswordReset, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)

		f.users.On("Update", mock.Anything, userID, mock.MatchedBy(func(p types.UserPatch) bool {
			if p.PasswordHash == nil || p.Name != nil || p.Email != nil || p.Role != nil {
				return false
			}
			ok, _ := f.codec.Verify(ctx, "n3wSecret", *p.PasswordHash)
			return ok
		})).Return(&types.User{ID: userID}, nil).Once()

		require.NoError(t, f.service.ResetPassword(ctx, types.ResetPasswordRequest{Token: tok, NewPassword: "n3wSecret"}))
		f.users.AssertExpectations(t)
	})

	t.Run("VerificationTokenCannotReset", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposeEmailVerify, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)

		err = f.service.ResetPassword(ctx, types.ResetPasswordRequest{Token: tok, NewPassword: "n3wSecret"})
		assert.ErrorIs(t, err, types.ErrTokenInvalid)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		f := newServiceFixture()
		past := token.NewService("test-issuer", map[types.TokenPurpose]string{types.PurposePasswordReset: "reset-secret"},
			token.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
		tok, err := past.Issue(types.PurposePasswordReset, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)

		err = f.service.ResetPassword(ctx, types.ResetPasswordRequest{Token: tok, NewPassword: "n3wSecret"})
		assert.ErrorIs(t, err, types.ErrTokenExpired)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		f := newServiceFixture()
		err := f.service.ResetPassword(ctx, types.ResetPasswordRequest{Token: "x", NewPassword: "123"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("SubjectGone", func(t *testing.T) {
		f := newServiceFixture()
		tok, err := f.tokens.Issue(types.PurposePasswordReset, types.TokenSubject{UserID: userID}, time.Hour)
		require.NoError(t, err)
		f.users.On("Update", mock.Anything, userID, mock.Anything).Return(nil, types.ErrNotFound).Once()

		err = f.service.ResetPassword(ctx, types.ResetPasswordRequest{Token: tok, NewPassword: "n3wSecret"})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("VerifiedUserGetsNothing", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(&types.User{ID: uuid.New(), IsVerified: true}, nil).Once()

		assert.NoError(t, f.service.ResendVerification(ctx, types.EmailRequest{Email: "jane@example.com"}))
		f.notifier.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnverifiedUserGetsNewLink", func(t *testing.T) {
		f := newServiceFixture()
		f.users.On("FindByEmail", mock.Anything, "jane@example.com").Return(&types.User{ID: uuid.New(), Email: "jane@example.com"}, nil).Once()
		f.notifier.On("Deliver", mock.Anything, "jane@example.com", mock.AnythingOfType("string"), types.PurposeEmailVerify).Return(nil).Once()

		assert.NoError(t, f.service.ResendVerification(ctx, types.EmailRequest{Email: "jane@example.com"}))
		f.notifier.AssertExpectations(t)
	})
}
