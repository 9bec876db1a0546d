package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// MemoryStore keeps users, companies and audit events in process memory. It backs
// development runs without DATABASE_URL and the service tests, and mirrors the
// Postgres repositories' semantics including the unique email constraint.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	byEmail   map[string]string
	companies map[string]*Company
	events    []*AuthEvent
	now       func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		byEmail:   make(map[string]string),
		companies: make(map[string]*Company),
		now:       time.Now,
	}
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, errors.NotFound("user", email)
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryStore) MarkVerified(ctx context.Context, id string, otp int) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.IsVerified || u.OTP == nil || *u.OTP != otp {
		return nil, ErrStaleOTP
	}
	u.IsVerified = true
	u.OTP = nil
	u.OTPCreatedAt = nil
	u.UpdatedAt = m.now()
	return cloneUser(u), nil
}

func (m *MemoryStore) RecordLogin(ctx context.Context, id, sessionToken string, at time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	u.LastLoginAt = &at
	u.SessionToken = &sessionToken
	u.UpdatedAt = m.now()
	return cloneUser(u), nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return errors.NotFound("user", id)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) CreatePending(ctx context.Context, user *User, company *Company) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[user.Email]; taken {
		return ErrEmailTaken
	}

	now := m.now()
	user.ID = uuid.New().String()
	user.IsVerified = false
	user.CreatedAt, user.UpdatedAt = now, now

	company.ID = uuid.New().String()
	company.OwnerID = &user.ID
	company.CreatedAt, company.UpdatedAt = now, now

	user.CompanyID = &company.ID

	m.users[user.ID] = cloneUser(user)
	m.byEmail[user.Email] = user.ID
	cc := *company
	m.companies[company.ID] = &cc
	return nil
}

func (m *MemoryStore) RefreshPending(ctx context.Context, user *User, companyName string) (*Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[user.ID]
	if !ok || stored.IsVerified {
		return nil, ErrNotPending
	}

	now := m.now()
	stored.Name = user.Name
	stored.PasswordHash = user.PasswordHash
	stored.Role = user.Role
	stored.OTP = cloneInt(user.OTP)
	stored.OTPCreatedAt = cloneTime(user.OTPCreatedAt)
	stored.UpdatedAt = now

	if stored.CompanyID != nil {
		if c, ok := m.companies[*stored.CompanyID]; ok {
			c.Name = companyName
			c.UpdatedAt = now
			user.CompanyID = cloneString(stored.CompanyID)
			user.UpdatedAt = now
			cc := *c
			return &cc, nil
		}
	}

	c := &Company{
		ID:         uuid.New().String(),
		Name:       companyName,
		IsApproved: true,
		OwnerID:    cloneString(&stored.ID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.companies[c.ID] = c
	stored.CompanyID = cloneString(&c.ID)
	user.CompanyID = cloneString(&c.ID)
	user.UpdatedAt = now

	cc := *c
	return &cc, nil
}

// GetCompany retrieves a company by ID
func (m *MemoryStore) GetCompany(ctx context.Context, id string) (*Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[id]
	if !ok {
		return nil, errors.NotFound("company", id)
	}
	cc := *c
	return &cc, nil
}

func (m *MemoryStore) LogAuthEvent(ctx context.Context, event *AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.ID = int64(len(m.events) + 1)
	event.CreatedAt = m.now()
	ev := *event
	m.events = append(m.events, &ev)
	return nil
}

// Events returns a snapshot of the recorded audit events in insertion order
func (m *MemoryStore) Events() []AuthEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AuthEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out
}

// Seed stores a user as-is, replacing any user with the same ID
func (m *MemoryStore) Seed(user *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	m.users[user.ID] = cloneUser(user)
	m.byEmail[user.Email] = user.ID
}

func cloneUser(u *User) *User {
	cp := *u
	cp.OTP = cloneInt(u.OTP)
	cp.OTPCreatedAt = cloneTime(u.OTPCreatedAt)
	cp.LastLoginAt = cloneTime(u.LastLoginAt)
	cp.SessionToken = cloneString(u.SessionToken)
	cp.CompanyID = cloneString(u.CompanyID)
	return &cp
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
