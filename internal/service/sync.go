// sync.go — идемпотентная синхронизация записи пользователя с Keycloak.
//
// Разрешение всегда идёт через поиск по атрибуту user_id:
// сохранение — update при найденном пользователе, иначе create;
// удаление — delete при найденном, иначе no-op. Повторная доставка
// того же сообщения приводит к тому же конечному состоянию.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/verifix/usersync/internal/domain/model"
	"github.com/verifix/usersync/internal/keycloak"
)

// UserSyncService — синхронизация канонических записей с Keycloak.
type UserSyncService struct {
	kcClient *keycloak.Client
	logger   *slog.Logger
}

// NewUserSyncService создаёт сервис синхронизации.
func NewUserSyncService(kcClient *keycloak.Client, logger *slog.Logger) *UserSyncService {
	return &UserSyncService{
		kcClient: kcClient,
		logger:   logger.With(slog.String("component", "user_sync")),
	}
}

// HandleUserSave создаёт или обновляет пользователя в Keycloak.
// Существование определяется поиском по user_id, поэтому повторное
// сохранение даёт update, а не дубликат.
func (s *UserSyncService) HandleUserSave(ctx context.Context, userData *model.UserRecord) error {
	s.logger.Info("Обработка сохранения пользователя",
		slog.Int64("user_id", *userData.UserID),
		slog.String("login", userData.LoginValue()),
	)

	existing, err := s.kcClient.FindUserByExternalID(ctx, *userData.UserID)
	if err != nil {
		return fmt.Errorf("поиск пользователя %d в Keycloak: %w", *userData.UserID, err)
	}

	if existing != nil {
		if err := s.kcClient.UpdateUser(ctx, existing.ID, userData); err != nil {
			return fmt.Errorf("обновление пользователя %d в Keycloak: %w", *userData.UserID, err)
		}
		s.logger.Info("Пользователь обновлён в Keycloak",
			slog.Int64("user_id", *userData.UserID),
			slog.String("keycloak_id", existing.ID),
		)
		return nil
	}

	keycloakID, err := s.kcClient.CreateUser(ctx, userData)
	if err != nil {
		return fmt.Errorf("создание пользователя %d в Keycloak: %w", *userData.UserID, err)
	}
	s.logger.Info("Пользователь создан в Keycloak",
		slog.Int64("user_id", *userData.UserID),
		slog.String("login", userData.LoginValue()),
		slog.String("keycloak_id", keycloakID),
	)

	return nil
}

// HandleUserDelete удаляет пользователя из Keycloak.
// Отсутствие пользователя — нормальная ситуация (уже удалён), не ошибка.
func (s *UserSyncService) HandleUserDelete(ctx context.Context, userData *model.UserRecord) error {
	s.logger.Info("Обработка удаления пользователя",
		slog.Int64("user_id", *userData.UserID),
		slog.String("login", userData.LoginValue()),
	)

	existing, err := s.kcClient.FindUserByExternalID(ctx, *userData.UserID)
	if err != nil {
		return fmt.Errorf("поиск пользователя %d в Keycloak: %w", *userData.UserID, err)
	}

	if existing == nil {
		s.logger.Info("Пользователь уже отсутствует в Keycloak",
			slog.Int64("user_id", *userData.UserID),
		)
		return nil
	}

	if err := s.kcClient.DeleteUser(ctx, existing.ID); err != nil {
		return fmt.Errorf("удаление пользователя %d из Keycloak: %w", *userData.UserID, err)
	}
	s.logger.Info("Пользователь удалён из Keycloak",
		slog.Int64("user_id", *userData.UserID),
		slog.String("keycloak_id", existing.ID),
	)

	return nil
}
