package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/messdesk/messdesk/internal/shared"
)

type memoryUserRepo struct {
	users  map[string]User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]User)}
}

func (r *memoryUserRepo) Insert(ctx context.Context, user User) (User, error) {
	if _, ok := r.users[user.Email]; ok {
		return User{}, ErrEmailTaken
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.Email] = user
	return user, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	user, ok := r.users[email]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil)

	user, err := svc.Register(context.Background(), "  Alice@Example.COM ", " Alice ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter22")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE@example.com", "Other Alice", "different")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)
	ctx := context.Background()
	registered, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter22")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter22")
	require.NoError(t, err)

	// Unknown email and wrong password collapse into the same error, so a
	// caller cannot probe which emails are registered.
	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
