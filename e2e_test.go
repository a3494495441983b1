package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-identity-service/config"
	"github.com/FACorreiaa/go-identity-service/internal/api/user"
	"github.com/FACorreiaa/go-identity-service/internal/cache"
	"github.com/FACorreiaa/go-identity-service/internal/container"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// memoryDirectory is an in-process user.UserRepo with the same contract as the
// Postgres one.
type memoryDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

var _ user.UserRepo = (*memoryDirectory)(nil)

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: make(map[uuid.UUID]types.User)}
}

func (d *memoryDirectory) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range d.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (d *memoryDirectory) Create(_ context.Context, p types.NewUserParams) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := types.NormalizeEmail(p.Email)
	if d.emailTaken(email, uuid.Nil) {
		return nil, types.ErrConflict
	}
	role := p.Role
	if role == "" {
		role = types.RoleUser
	}
	now := time.Now().UTC()
	u := types.User{ID: uuid.New(), Name: p.Name, Email: email, PasswordHash: p.PasswordHash, Role: role,
		PhotoURL: p.PhotoURL, PhotoRef: p.PhotoRef, CreatedAt: now, UpdatedAt: now}
	d.users[u.ID] = u
	return &u, nil
}

func (d *memoryDirectory) FindByEmail(_ context.Context, email string) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = types.NormalizeEmail(email)
	for _, u := range d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, types.ErrNotFound
}

func (d *memoryDirectory) FindByID(_ context.Context, id uuid.UUID) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &u, nil
}

func (d *memoryDirectory) Update(_ context.Context, id uuid.UUID, p types.UserPatch) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		email := types.NormalizeEmail(*p.Email)
		if d.emailTaken(email, id) {
			return nil, types.ErrConflict
		}
		u.Email = email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.PhotoURL != nil {
		u.PhotoURL = p.PhotoURL
	}
	if p.PhotoRef != nil {
		u.PhotoRef = p.PhotoRef
	}
	u.UpdatedAt = time.Now().UTC()
	d.users[id] = u
	return &u, nil
}

func (d *memoryDirectory) MarkEmailVerified(_ context.Context, id uuid.UUID) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	u.IsVerified = true
	d.users[id] = u
	return &u, nil
}

func (d *memoryDirectory) Delete(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return types.ErrNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *memoryDirectory) ListAll(_ context.Context) ([]types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *memoryDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// inbox records every link the service would have emailed.
type inbox struct {
	mu     sync.Mutex
	tokens map[string]string
	sent   int
}

func newInbox() *inbox {
	return &inbox{tokens: make(map[string]string)}
}

func (i *inbox) Deliver(_ context.Context, address, token string, purpose types.TokenPurpose) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens[string(purpose)+":"+address] = token
	i.sent++
	return nil
}

func (i *inbox) Token(purpose types.TokenPurpose, address string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokens[string(purpose)+":"+address]
}

func (i *inbox) Sent() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sent
}

// E2ETestSuite drives complete user workflows through the real router.
type E2ETestSuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	directory *memoryDirectory
	inbox     *inbox
	container *container.Container
}

func (suite *E2ETestSuite) SetupTest() {
	var cfg config.Config
	cfg.JWT.Issuer = "e2e"
	cfg.JWT.SessionSecret = "e2e-session"
	cfg.JWT.EmailVerifySecret = "e2e-verify"
	cfg.JWT.PasswordResetSecret = "e2e-reset"
	cfg.Password.Cost = 4

	suite.directory = newMemoryDirectory()
	suite.inbox = newInbox()
	suite.container = container.Assemble(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), container.Gateways{
		Users:    suite.directory,
		Notifier: suite.inbox,
		Cache:    cache.NewMemoryDirectoryCache(time.Minute, time.Minute),
	})
	suite.server = httptest.NewServer(suite.container.Router())
	suite.client = &http.Client{Timeout: 10 * time.Second}
}

func (suite *E2ETestSuite) TearDownTest() {
	suite.server.Close()
	suite.NoError(suite.container.Close())
}

func (suite *E2ETestSuite) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, suite.server.URL+path, &buf)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := suite.client.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	suite.NotContains(string(raw), "password_hash")
	suite.NotContains(string(raw), "passwordHash")

	var out map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (suite *E2ETestSuite) register(email, pw string) string {
	status, body := suite.do(http.MethodPost, "/register", "", map[string]string{"name": "Test", "email": email, "password": pw})
	suite.Require().Equal(http.StatusCreated, status, body)
	return body["user"].(map[string]interface{})["id"].(string)
}

func (suite *E2ETestSuite) verify(email string) {
	tok := suite.inbox.Token(types.PurposeEmailVerify, email)
	suite.Require().NotEmpty(tok)
	status, _ := suite.do(http.MethodGet, "/verify-email?token="+tok, "", nil)
	suite.Require().Equal(http.StatusOK, status)
}

func (suite *E2ETestSuite) login(email, pw string) string {
	status, body := suite.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": pw})
	suite.Require().Equal(http.StatusOK, status, body)
	return body["token"].(string)
}

func (suite *E2ETestSuite) TestRegisterVerifyLoginProfile() {
	status, body := suite.do(http.MethodPost, "/register", "", map[string]string{"name": "A", "email": "a@x.com", "password": "secret1"})
	suite.Equal(http.StatusCreated, status)
	suite.Equal(true, body["verification_sent"])

	status, body = suite.do(http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	suite.Equal(http.StatusBadRequest, status)
	suite.Equal("Please verify your email before logging in", body["message"])

	tok := suite.inbox.Token(types.PurposeEmailVerify, "a@x.com")
	status, body = suite.do(http.MethodGet, "/verify-email?token="+tok, "", nil)
	suite.Equal(http.StatusOK, status)
	suite.Equal(true, body["user"].(map[string]interface{})["is_verified"])

	// replaying the link is harmless
	status, _ = suite.do(http.MethodGet, "/verify-email?token="+tok, "", nil)
	suite.Equal(http.StatusOK, status)

	session := suite.login("a@x.com", "secret1")
	suite.NotEmpty(session)

	status, body = suite.do(http.MethodGet, "/profile", session, nil)
	suite.Equal(http.StatusOK, status)
	profile := body["user"].(map[string]interface{})
	suite.Equal("a@x.com", profile["email"])
	suite.NotContains(profile, "password")
}

func (suite *E2ETestSuite) TestDuplicateRegistration() {
	suite.register("dup@x.com", "secret1")
	before := suite.directory.Len()

	status, body := suite.do(http.MethodPost, "/register", "", map[string]string{"name": "B", "email": "DUP@x.com", "password": "secret2"})
	suite.Equal(http.StatusBadRequest, status)
	suite.Equal("User already exists", body["message"])
	suite.Equal(before, suite.directory.Len())
}

func (suite *E2ETestSuite) TestLoginFailuresAreIndistinguishable() {
	suite.register("c@x.com", "secret1")
	suite.verify("c@x.com")

	s1, wrong := suite.do(http.MethodPost, "/login", "", map[string]string{"email": "c@x.com", "password": "nope-nope"})
	s2, unknown := suite.do(http.MethodPost, "/login", "", map[string]string{"email": "ghost@x.com", "password": "secret1"})

	suite.Equal(http.StatusBadRequest, s1)
	suite.Equal(s1, s2)
	suite.Equal(wrong["message"], unknown["message"])
}

func (suite *E2ETestSuite) TestRepeatedLoginFailuresStayBadRequest() {
	suite.register("e@x.com", "secret1")
	suite.verify("e@x.com")

	counts := map[int]int{}
	for i := 0; i < 25; i++ {
		status, _ := suite.do(http.MethodPost, "/login", "", map[string]string{"email": "e@x.com", "password": "wrong-one"})
		counts[status]++
	}
	suite.Equal(map[int]int{http.StatusBadRequest: 25}, counts)

	// the account still works after a burst of failures
	suite.NotEmpty(suite.login("e@x.com", "secret1"))
}

func (suite *E2ETestSuite) TestPasswordReset() {
	suite.register("d@x.com", "secret1")
	suite.verify("d@x.com")
	sentBefore := suite.inbox.Sent()

	status, generic := suite.do(http.MethodPost, "/reset-password", "", map[string]string{"email": "ghost@x.com"})
	suite.Equal(http.StatusOK, status)
	suite.Equal(sentBefore, suite.inbox.Sent())

	status, known := suite.do(http.MethodPost, "/reset-password", "", map[string]string{"email": "d@x.com"})
	suite.Equal(http.StatusOK, status)
	suite.Equal(generic["message"], known["message"])

	// a verification token is not a reset token
	verifyTok := suite.inbox.Token(types.PurposeEmailVerify, "d@x.com")
	status, _ = suite.do(http.MethodPost, "/reset-password/"+verifyTok, "", map[string]string{"newPassword": "n3wSecret"})
	suite.Equal(http.StatusBadRequest, status)

	resetTok := suite.inbox.Token(types.PurposePasswordReset, "d@x.com")
	status, _ = suite.do(http.MethodPost, "/reset-password/"+resetTok, "", map[string]string{"newPassword": "n3wSecret"})
	suite.Equal(http.StatusOK, status)

	status, _ = suite.do(http.MethodPost, "/login", "", map[string]string{"email": "d@x.com", "password": "secret1"})
	suite.Equal(http.StatusBadRequest, status)
	suite.NotEmpty(suite.login("d@x.com", "n3wSecret"))

	// a reset token does not open a session
	status, _ = suite.do(http.MethodGet, "/profile", resetTok, nil)
	suite.Equal(http.StatusForbidden, status)
}

func (suite *E2ETestSuite) TestAdministration() {
	adminID := suite.register("admin@x.com", "secret1")
	suite.verify("admin@x.com")
	admin := types.RoleAdmin
	_, err := suite.directory.Update(context.Background(), uuid.MustParse(adminID), types.UserPatch{Role: &admin})
	suite.Require().NoError(err)
	adminTok := suite.login("admin@x.com", "secret1")

	victimID := suite.register("victim@x.com", "secret1")
	suite.verify("victim@x.com")
	userTok := suite.login("victim@x.com", "secret1")

	// warm the listing cache
	status, body := suite.do(http.MethodGet, "/users", userTok, nil)
	suite.Equal(http.StatusOK, status)
	suite.Len(body["users"], 2)

	status, _ = suite.do(http.MethodDelete, "/users/"+adminID, userTok, nil)
	suite.Equal(http.StatusForbidden, status)

	status, _ = suite.do(http.MethodPut, "/users/"+victimID, userTok, map[string]string{"role": "admin"})
	suite.Equal(http.StatusForbidden, status)

	status, _ = suite.do(http.MethodPut, "/users/"+victimID, adminTok, map[string]string{"role": "root"})
	suite.Equal(http.StatusBadRequest, status)

	status, body = suite.do(http.MethodPut, "/users/"+victimID, adminTok, map[string]string{"name": "Renamed"})
	suite.Equal(http.StatusOK, status)
	suite.Equal("Renamed", body["user"].(map[string]interface{})["name"])

	status, _ = suite.do(http.MethodDelete, "/users/"+victimID, adminTok, nil)
	suite.Equal(http.StatusOK, status)

	status, body = suite.do(http.MethodGet, "/users", adminTok, nil)
	suite.Equal(http.StatusOK, status)
	for _, u := range body["users"].([]interface{}) {
		suite.NotEqual(victimID, u.(map[string]interface{})["id"])
	}

	status, _ = suite.do(http.MethodDelete, "/users/"+victimID, adminTok, nil)
	suite.Equal(http.StatusNotFound, status)
	status, _ = suite.do(http.MethodGet, fmt.Sprintf("/users/%s", victimID), adminTok, nil)
	suite.Equal(http.StatusNotFound, status)

	status, _ = suite.do(http.MethodGet, "/users", "", nil)
	suite.Equal(http.StatusUnauthorized, status)
}

func TestE2ETestSuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
