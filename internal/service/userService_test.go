package service

import (
	"context"
	"testing"

	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterUser тестирует регистрацию пользователя
func TestRegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("timezone defaults to UTC", func(t *testing.T) {
		svc := &userService{userRepo: newFakeUserRepo()}

		user, err := svc.RegisterUser(ctx, &RegisterUserRequest{
			Email: "ivan@example.com",
			Name:  "Иван",
		})

		require.NoError(t, err)
		assert.Equal(t, "UTC", user.Timezone)
		assert.NotZero(t, user.ID)
	})

	t.Run("unknown timezone is rejected", func(t *testing.T) {
		svc := &userService{userRepo: newFakeUserRepo()}

		_, err := svc.RegisterUser(ctx, &RegisterUserRequest{
			Email:    "ivan@example.com",
			Name:     "Иван",
			Timezone: "Nowhere/Void",
		})

		assert.Error(t, err)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		ur := newFakeUserRepo()
		svc := &userService{userRepo: ur}

		_, err := svc.RegisterUser(ctx, &RegisterUserRequest{Email: "ivan@example.com", Name: "Иван"})
		require.NoError(t, err)

		_, err = svc.RegisterUser(ctx, &RegisterUserRequest{Email: "ivan@example.com", Name: "Иван Второй"})
		assert.ErrorIs(t, err, entity.ErrUserAlreadyExists)
	})
}

// TestLinkTelegram тестирует привязку Telegram-чата
func TestLinkTelegram(t *testing.T) {
	ctx := context.Background()
	ur := newFakeUserRepo()
	ur.add(&entity.User{ID: 1, Email: "ivan@example.com"})
	svc := &userService{userRepo: ur}

	require.NoError(t, svc.LinkTelegram(ctx, 1, "12345"))

	user, err := ur.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "12345", user.TelegramID)

	assert.Error(t, svc.LinkTelegram(ctx, 1, ""))
	assert.ErrorIs(t, svc.LinkTelegram(ctx, 99, "555"), entity.ErrUserNotFound)
}
