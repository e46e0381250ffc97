// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

// ErrMissingUserID — после маппинга отсутствует userId,
// ключ корреляции с Keycloak.
var ErrMissingUserID = errors.New("некорректные данные пользователя: отсутствует userId")
