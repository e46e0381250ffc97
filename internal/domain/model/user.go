// Пакет model — доменные модели User Sync.
// user.go — каноническая запись пользователя, извлечённая из CDC-события.
package model

import "strings"

// UserRecord — каноническая запись пользователя из системы-источника.
// Поля опциональны (nil — значение отсутствует в row image);
// UserID обязателен для обработки и проверяется pipeline'ом.
type UserRecord struct {
	// CompanyID — идентификатор компании в системе-источнике.
	CompanyID *int64
	// UserID — внешний идентификатор пользователя.
	// Единственный ключ корреляции с Keycloak (атрибут user_id).
	UserID *int64
	// Name — полное имя (free text).
	Name *string
	// Login — логин в системе-источнике (до нормализации).
	Login *string
	// Password — предвычисленный хэш пароля из системы-источника.
	Password *string
	// Email — адрес электронной почты.
	Email *string
}

// FirstName возвращает первое слово имени.
// Пустая строка, если имя не задано или состоит из пробелов.
func (u *UserRecord) FirstName() string {
	if u.Name == nil {
		return ""
	}
	parts := strings.Fields(*u.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName возвращает все слова имени после первого, соединённые
// одиночными пробелами. Пустая строка, если слов меньше двух.
func (u *UserRecord) LastName() string {
	if u.Name == nil {
		return ""
	}
	parts := strings.Fields(*u.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

// LoginValue возвращает логин или пустую строку для логирования.
func (u *UserRecord) LoginValue() string {
	if u.Login == nil {
		return ""
	}
	return *u.Login
}
