// mapper.go — преобразование канонической записи пользователя
// в представление Keycloak: нормализация логина, перекодирование
// учётных данных и атрибуты корреляции.
package keycloak

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/verifix/usersync/internal/domain/model"
	"github.com/verifix/usersync/internal/translit"
)

// MapToKeycloakUser строит KeycloakUser из канонической записи.
// ID не заполняется — его назначает Keycloak.
func MapToKeycloakUser(userData *model.UserRecord) (*KeycloakUser, error) {
	credentials, err := PrepareCredentials(userData)
	if err != nil {
		return nil, err
	}

	return &KeycloakUser{
		Username:    PrepareLogin(userData),
		Enabled:     true,
		FirstName:   userData.FirstName(),
		LastName:    userData.LastName(),
		Email:       stringValue(userData.Email),
		Credentials: credentials,
		Attributes:  prepareAttributes(userData),
	}, nil
}

// PrepareLogin выводит безопасный для Keycloak username из логина
// источника: транслитерация кириллицы в латиницу, нижний регистр,
// пробелы в подчёркивания, удаление всего вне набора [a-z0-9@._-].
// Результат может оказаться пустой строкой, если после фильтрации
// разрешённых символов не осталось — это допустимо.
func PrepareLogin(userData *model.UserRecord) string {
	transliterated := translit.CyrillicToLatin(stringValue(userData.Login))

	lowered := strings.ToLower(transliterated)
	underscored := strings.ReplaceAll(lowered, " ", "_")

	var b strings.Builder
	b.Grow(len(underscored))
	for _, r := range underscored {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '@', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PrepareCredentials перекодирует пароль источника в представление
// Keycloak. Пароль источника — уже вычисленный SHA-1 дайджест, поэтому
// hashIterations = -1 (не итерировано), а значение secretData — пароль
// в нижнем регистре как есть. Пустой или отсутствующий пароль — nil:
// Keycloak при обновлении оставит существующие учётные данные.
func PrepareCredentials(userData *model.UserRecord) ([]KeycloakCredential, error) {
	if userData.Password == nil || *userData.Password == "" {
		return nil, nil
	}

	credData, err := json.Marshal(credentialData{
		Algorithm:            "SHA-1",
		HashIterations:       -1,
		AdditionalParameters: map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация credentialData: %w", err)
	}

	secData, err := json.Marshal(secretData{
		Value: strings.ToLower(*userData.Password),
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация secretData: %w", err)
	}

	return []KeycloakCredential{{
		Type:           "password",
		CredentialData: string(credData),
		SecretData:     string(secData),
		Temporary:      false,
	}}, nil
}

// prepareAttributes строит атрибуты корреляции: fullName, companyId
// и userId одноэлементными списками. userId в дальнейшем используется
// как ключ поиска пользователя.
func prepareAttributes(userData *model.UserRecord) map[string][]string {
	companyID := ""
	if userData.CompanyID != nil {
		companyID = strconv.FormatInt(*userData.CompanyID, 10)
	}
	userID := ""
	if userData.UserID != nil {
		userID = strconv.FormatInt(*userData.UserID, 10)
	}

	return map[string][]string{
		"fullName":  {stringValue(userData.Name)},
		"companyId": {companyID},
		"userId":    {userID},
	}
}

// stringValue разыменовывает опциональную строку, nil — пустая строка.
func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
