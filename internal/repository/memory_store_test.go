package repository

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingUser(email string, otp int) *User {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return &User{
		Email:        email,
		Name:         "John",
		PasswordHash: "hash",
		Role:         RoleManager,
		OTP:          &otp,
		OTPCreatedAt: &at,
	}
}

func TestMemoryStoreCreatePendingLinksCompany(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := pendingUser("j@x.com", 123456)
	company := &Company{Name: "Acme", IsApproved: true}
	require.NoError(t, store.CreatePending(ctx, user, company))

	require.NotEmpty(t, user.ID)
	require.NotNil(t, user.CompanyID)
	assert.Equal(t, company.ID, *user.CompanyID)
	require.NotNil(t, company.OwnerID)
	assert.Equal(t, user.ID, *company.OwnerID)

	stored, err := store.GetByEmail(ctx, "j@x.com")
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.Equal(t, 123456, *stored.OTP)

	c, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
}

func TestMemoryStoreEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreatePending(ctx, pendingUser("j@x.com", 111111), &Company{Name: "Acme"}))
	err := store.CreatePending(ctx, pendingUser("j@x.com", 222222), &Company{Name: "Other"})
	assert.True(t, stderrors.Is(err, ErrEmailTaken))

	// Lookups are exact
	_, err = store.GetByEmail(ctx, "J@X.com")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestMemoryStoreConcurrentCreateOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreatePending(ctx, pendingUser("race@x.com", 123456), &Company{Name: "Acme"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if stderrors.Is(err, ErrEmailTaken) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, conflicts)
}

func TestMemoryStoreMarkVerified(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := pendingUser("j@x.com", 123456)
	require.NoError(t, store.CreatePending(ctx, user, &Company{Name: "Acme"}))

	_, err := store.MarkVerified(ctx, user.ID, 654321)
	assert.ErrorIs(t, err, ErrStaleOTP)

	verified, err := store.MarkVerified(ctx, user.ID, 123456)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Nil(t, verified.OTP)
	assert.Nil(t, verified.OTPCreatedAt)

	_, err = store.MarkVerified(ctx, user.ID, 123456)
	assert.ErrorIs(t, err, ErrStaleOTP)
}

func TestMemoryStoreRefreshPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := pendingUser("j@x.com", 111111)
	company := &Company{Name: "Acme", IsApproved: true}
	require.NoError(t, store.CreatePending(ctx, user, company))

	update := pendingUser("j@x.com", 222222)
	update.ID = user.ID
	update.Name = "Johnny"
	renamed, err := store.RefreshPending(ctx, update, "Acme Inc")
	require.NoError(t, err)
	assert.Equal(t, company.ID, renamed.ID)
	assert.Equal(t, "Acme Inc", renamed.Name)

	stored, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", stored.Name)
	assert.Equal(t, 222222, *stored.OTP)

	_, err = store.MarkVerified(ctx, user.ID, 222222)
	require.NoError(t, err)

	_, err = store.RefreshPending(ctx, update, "Acme Again")
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestMemoryStoreRefreshPendingCreatesMissingCompany(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	otp := 111111
	store.Seed(&User{ID: "u-1", Email: "orphan@x.com", Name: "Orphan", Role: RoleManager, OTP: &otp})

	company, err := store.RefreshPending(ctx, &User{ID: "u-1", Name: "Orphan", Role: RoleManager}, "Rescue Ltd")
	require.NoError(t, err)
	require.NotNil(t, company.OwnerID)
	assert.Equal(t, "u-1", *company.OwnerID)

	stored, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, company.ID, *stored.CompanyID)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := pendingUser("j@x.com", 123456)
	require.NoError(t, store.CreatePending(ctx, user, &Company{Name: "Acme"}))

	got, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	*got.OTP = 1
	got.Name = "mutated"

	again, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 123456, *again.OTP)
	assert.Equal(t, "John", again.Name)
}

func TestMemoryStoreRecordLoginAndPassword(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := pendingUser("j@x.com", 123456)
	require.NoError(t, store.CreatePending(ctx, user, &Company{Name: "Acme"}))

	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	updated, err := store.RecordLogin(ctx, user.ID, "token-1", at)
	require.NoError(t, err)
	assert.Equal(t, at, *updated.LastLoginAt)
	assert.Equal(t, "token-1", *updated.SessionToken)

	require.NoError(t, store.UpdatePassword(ctx, user.ID, "new-hash"))
	stored, _ := store.GetByID(ctx, user.ID)
	assert.Equal(t, "new-hash", stored.PasswordHash)

	assert.True(t, errors.HasCode(store.UpdatePassword(ctx, "missing", "x"), errors.ErrCodeNotFound))
	_, err = store.RecordLogin(ctx, "missing", "t", at)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestMemoryStoreAuditEvents(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.LogAuthEvent(context.Background(), &AuthEvent{UserID: "u-1", EventType: EventLogin, Success: true}))
	require.NoError(t, store.LogAuthEvent(context.Background(), &AuthEvent{EventType: EventLogin, FailureReason: "not_found"}))

	events := store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, "not_found", events[1].FailureReason)
}
