package storage

import (
	"context"
	"testing"

	"github.com/dctmfoo/AIResearchScribe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CreateAndFind(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	user := &models.User{Username: "ada", PasswordHash: "hash"}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := store.FindByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &models.User{Username: "ada", PasswordHash: "a"}))
	err := store.CreateUser(ctx, &models.User{Username: "ada", PasswordHash: "b"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserStore_FindUnknown(t *testing.T) {
	store := NewUserStore(newTestDB(t))

	_, err := store.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
