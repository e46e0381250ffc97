// mapper.go — извлечение канонической записи пользователя из CDC-события.
package cdc

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/verifix/usersync/internal/domain/model"
)

// Имена колонок таблицы пользователей в row image.
const (
	columnCompanyID = "COMPANY_ID"
	columnUserID    = "USER_ID"
	columnName      = "NAME"
	columnLogin     = "LOGIN"
	columnPassword  = "PASSWORD"
	columnEmail     = "EMAIL"
)

// MapToUserData извлекает UserRecord из CDC-события.
// Читает after image, при его отсутствии — before (удаление берёт
// последние известные значения строки). Событие без единого image —
// ErrNoRowImage.
func MapToUserData(ev *ChangeEvent) (*model.UserRecord, error) {
	data := ev.After
	if data == nil {
		data = ev.Before
	}
	if data == nil {
		return nil, ErrNoRowImage
	}

	return &model.UserRecord{
		CompanyID: longValue(data[columnCompanyID]),
		UserID:    longValue(data[columnUserID]),
		Name:      textValue(data[columnName]),
		Login:     textValue(data[columnLogin]),
		Password:  textValue(data[columnPassword]),
		Email:     textValue(data[columnEmail]),
	}, nil
}

// longValue декодирует числовое значение колонки.
// Сначала десятичный разбор текстового представления; при неудаче
// значение трактуется как base64-обёрнутое big-endian беззнаковое число —
// сериализатор источника иногда кодирует небольшие целые именно так.
// Неразбираемое значение или null дают nil (отсутствие), не ноль.
func longValue(v any) *int64 {
	s := textValue(v)
	if s == nil || *s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(*s, 10, 64); err == nil {
		return &n
	}

	return decodeBase64Number(*s)
}

// decodeBase64Number декодирует base64-строку как big-endian беззнаковое
// число. Знак принудительно положительный. Некорректный base64 — nil.
func decodeBase64Number(s string) *int64 {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil
	}

	n := new(big.Int).SetBytes(raw).Int64()
	return &n
}

// textValue возвращает текстовое представление значения колонки.
// null и отсутствующее значение дают nil, без приведения к пустой строке.
func textValue(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	case json.Number:
		s := val.String()
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	default:
		return nil
	}
}
