package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
)

const testSecret = "test-secret-key-that-is-at-least-32-bytes"

type sentMail struct {
	kind string
	to   string
	name string
	otp  int
}

type fakeMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	otpErr     error
	welcomeErr error
}

func (f *fakeMailer) SendVerificationOTP(ctx context.Context, to, name string, otp int) error {
	if f.otpErr != nil {
		return f.otpErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "otp", to: to, name: name, otp: otp})
	return nil
}

func (f *fakeMailer) SendWelcome(ctx context.Context, to, name string) error {
	if f.welcomeErr != nil {
		return f.welcomeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "welcome", to: to, name: name})
	return nil
}

func (f *fakeMailer) last(kind string) (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].kind == kind {
			return f.sent[i], true
		}
	}
	return sentMail{}, false
}

// sequenceOTP hands out consecutive codes starting at next
type sequenceOTP struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceOTP) Generate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.next
	s.next++
	return code, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store        *repository.MemoryStore
	mailer       *fakeMailer
	clock        *clock
	jwt          *jwtpkg.Manager
	registration *RegistrationService
	auth         *AuthService
	credentials  *CredentialService
	users        *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	mailer := &fakeMailer{}
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := logger.Nop()

	manager, err := jwtpkg.NewManager(testSecret, 24*time.Hour, "taskhub-identity")
	require.NoError(t, err)

	return &fixture{
		store:        store,
		mailer:       mailer,
		clock:        clk,
		jwt:          manager,
		registration: NewRegistrationService(store, store, store, mailer, &sequenceOTP{next: 100000}, log).WithClock(clk.Now),
		auth:         NewAuthService(store, store, manager, log),
		credentials:  NewCredentialService(store, store, log),
		users:        NewUserService(store, store, log),
	}
}

func registerRequest(email string) *RegisterRequest {
	return &RegisterRequest{
		Email:       email,
		Name:        "Ada Lovelace",
		Password:    "secret123",
		CompanyName: "Analytical Engines",
	}
}

// registerAndVerify takes an identity to VERIFIED and returns it
func (f *fixture) registerAndVerify(t *testing.T, email string) *repository.User {
	t.Helper()
	ctx := context.Background()

	res, err := f.registration.Register(ctx, registerRequest(email))
	require.NoError(t, err)

	user, err := f.registration.VerifyOTP(ctx, &VerifyOTPRequest{Email: email, OTP: *res.User.OTP})
	require.NoError(t, err)
	return user
}
