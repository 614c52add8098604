package service

import (
	"context"
	"fmt"
	"log"
	"time"

	repository "github.com/SnowyCoder/queuify/internal/database/postgres"
	"github.com/SnowyCoder/queuify/internal/entity"
	"github.com/SnowyCoder/queuify/pkg/telegram"
)

// RegisterUserRequest представляет данные для регистрации пользователя
type RegisterUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Timezone string `json:"timezone"`
}

type userService struct {
	userRepo    repository.UserRepository
	telegramBot *telegram.Bot
}

// NewUserService создает новый экземпляр UserService
func NewUserService(userRepo repository.UserRepository, telegramBot *telegram.Bot) UserService {
	return &userService{
		userRepo:    userRepo,
		telegramBot: telegramBot,
	}
}

// RegisterUser регистрирует нового пользователя
func (s *userService) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error) {
	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("неизвестная временная зона %q: %w", timezone, err)
	}

	user := &entity.User{
		Email:    req.Email,
		Name:     req.Name,
		Timezone: timezone,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("Пользователь зарегистрирован: ID=%d, Email=%s", user.ID, user.Email)
	return user, nil
}

// GetUserByID возвращает пользователя по ID
func (s *userService) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetUserByEmail возвращает пользователя по email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.userRepo.GetByEmail(ctx, email)
}

// LinkTelegram привязывает Telegram-чат для уведомлений
func (s *userService) LinkTelegram(ctx context.Context, userID int64, telegramID string) error {
	if telegramID == "" {
		return fmt.Errorf("telegram id не может быть пустым")
	}

	if err := s.userRepo.UpdateTelegramID(ctx, userID, telegramID); err != nil {
		return err
	}

	if s.telegramBot != nil {
		go func() {
			if err := s.telegramBot.SendMessage(telegramID, "✅ Уведомления подключены!"); err != nil {
				log.Printf("Ошибка при отправке приветственного сообщения: %v", err)
			}
		}()
	}

	return nil
}

// GetAllUsers возвращает всех пользователей
func (s *userService) GetAllUsers(ctx context.Context) ([]*entity.User, error) {
	return s.userRepo.GetAll(ctx)
}
