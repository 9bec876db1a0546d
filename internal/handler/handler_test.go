package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/service"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/otp"
)

const testSecret = "handler-test-secret-at-least-32-bytes"

// captureMailer remembers the last code sent to each address
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]int
	fail  error
}

func (c *captureMailer) SendVerificationOTP(ctx context.Context, to, name string, code int) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to] = code
	return nil
}

func (c *captureMailer) SendWelcome(ctx context.Context, to, name string) error {
	return nil
}

func (c *captureMailer) code(to string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[to]
}

type testServer struct {
	store   *repository.MemoryStore
	mailer  *captureMailer
	jwt     *jwtpkg.Manager
	router  http.Handler
	handler *HTTPHandler
	auth    *service.AuthService
	users   *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.Nop()
	store := repository.NewMemoryStore()
	mailer := &captureMailer{codes: make(map[string]int)}
	manager, err := jwtpkg.NewManager(testSecret, time.Hour, "taskhub-identity")
	require.NoError(t, err)

	registration := service.NewRegistrationService(store, store, store, mailer, otp.NewGenerator(), log)
	auth := service.NewAuthService(store, store, manager, log)
	credentials := service.NewCredentialService(store, store, log)
	users := service.NewUserService(store, store, log)
	h := NewHTTPHandler(registration, auth, credentials, users, log)

	return &testServer{
		store:   store,
		mailer:  mailer,
		jwt:     manager,
		router:  NewRouter(h, manager, RouterConfig{}, log),
		handler: h,
		auth:    auth,
		users:   users,
	}
}

type envelope struct {
	Success    bool              `json:"success"`
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func registerBodyFor(email string) map[string]any {
	return map[string]any{
		"name":        "Ada Lovelace",
		"email":       email,
		"password":    "secret123",
		"companyName": "Analytical Engines",
	}
}

// onboard registers, verifies and logs in, returning the access token
func (s *testServer) onboard(t *testing.T, email string) string {
	t.Helper()

	rec, _ := s.do(t, http.MethodPost, "/user/register", "", registerBodyFor(email))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/user/verify-otp", "", map[string]any{"email": email, "otp": s.mailer.code(email)})
	require.Equal(t, http.StatusOK, rec.Code)

	return s.login(t, email, "secret123")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec, env := s.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func doRaw(t *testing.T, s *testServer, method, path string, body *strings.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func jsonString(n int) string {
	return strconv.Itoa(n)
}

func mustIssue(t *testing.T, s *testServer, userID, role, companyID string) string {
	t.Helper()
	token, err := s.jwt.Issue(jwtpkg.Identity{UserID: userID, Email: userID + "@example.com", Role: role, CompanyID: companyID})
	require.NoError(t, err)
	return token
}
