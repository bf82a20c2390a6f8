package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/model"
)

func TestMemoryUserUniqueEmail(t *testing.T) {
	users := NewMemoryStore().Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &model.User{ID: "u-1", Email: "a@example.com"}))
	err := users.Create(ctx, &model.User{ID: "u-2", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)

	_, err = users.GetByID(ctx, "u-2")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserConcurrentCreate(t *testing.T) {
	store := NewMemoryStore()
	users := store.Users()

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := users.Create(context.Background(), &model.User{ID: fmt.Sprintf("u-%d", i), Email: "race@example.com"})
			if err == nil {
				created.Add(1)
			} else if !errors.Is(err, ErrDuplicateEmail) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, store.UserCount())
}

func TestMemoryReturnsCopies(t *testing.T) {
	users := NewMemoryStore().Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &model.User{ID: "u-1", Email: "a@example.com", Name: "A"}))
	got, err := users.GetByID(ctx, "u-1")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := users.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name)
}

func TestMemorySessionRevoke(t *testing.T) {
	sessions := NewMemoryStore().Sessions()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sessions.Create(ctx, &model.Session{ID: "s-1", UserID: "u-1", TokenHash: "h", ExpiresAt: now.Add(time.Hour)}))

	first := now.Add(time.Minute)
	require.NoError(t, sessions.Revoke(ctx, "s-1", first))
	require.NoError(t, sessions.Revoke(ctx, "s-1", now.Add(time.Hour)))
	require.NoError(t, sessions.Revoke(ctx, "missing", now))

	got, err := sessions.GetByTokenHash(ctx, "h")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(first))
	assert.False(t, got.Valid(now))

	_, err = sessions.GetByTokenHash(ctx, "other")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryVerifyEmail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Users().Create(ctx, &model.User{ID: "u-1", Email: "a@example.com"}))
	require.NoError(t, store.Verifications().Create(ctx, &model.VerificationToken{ID: "v-1", UserID: "u-1", TokenHash: "good", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Verifications().Create(ctx, &model.VerificationToken{ID: "v-2", UserID: "u-1", TokenHash: "old", ExpiresAt: now}))

	_, err := store.Verifications().VerifyEmail(ctx, "nope", now)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = store.Verifications().VerifyEmail(ctx, "old", now)
	assert.ErrorIs(t, err, ErrTokenExpired)

	user, err := store.Verifications().VerifyEmail(ctx, "good", now)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	_, err = store.Verifications().VerifyEmail(ctx, "good", now)
	assert.ErrorIs(t, err, ErrTokenUsed)

	stored, err := store.Users().GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
}

func TestMemoryVerifyEmailConsumedOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Users().Create(ctx, &model.User{ID: "u-1", Email: "a@example.com"}))
	require.NoError(t, store.Verifications().Create(ctx, &model.VerificationToken{ID: "v-1", UserID: "u-1", TokenHash: "h", ExpiresAt: now.Add(time.Hour)}))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Verifications().VerifyEmail(ctx, "h", now); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
}
