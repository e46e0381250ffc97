// Пакет cdc — разбор CDC-событий (Debezium envelope) об изменениях
// строк таблицы пользователей.
// envelope.go — внешний конверт сообщения, payload и код операции.
package cdc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Ошибки разбора, терминальные для сообщения (сообщение пропускается,
// повторная доставка не нужна).
var (
	// ErrEmptyMessage — тело сообщения пустое.
	ErrEmptyMessage = errors.New("пустое тело сообщения")
	// ErrNoPayload — в конверте отсутствует поле payload.
	ErrNoPayload = errors.New("в сообщении отсутствует payload")
	// ErrNoRowImage — в payload нет ни before, ни after image.
	ErrNoRowImage = errors.New("CDC-событие не содержит row image")
)

// DecodeError — ошибка разбора JSON конверта или payload.
type DecodeError struct {
	// Stage — этап разбора: "envelope" или "payload".
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("разбор %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Operation — код операции CDC-события. Закрытый набор значений:
// добавление нового кода операции требует правки switch'ей по типу.
type Operation int

const (
	// OpRead — событие начального снапшота таблицы.
	OpRead Operation = iota
	// OpCreate — создание строки.
	OpCreate
	// OpUpdate — изменение строки.
	OpUpdate
	// OpDelete — удаление строки.
	OpDelete
)

// ErrUnknownOperation — код операции вне набора {r, c, u, d}.
var ErrUnknownOperation = errors.New("неизвестный код операции")

// ParseOperation преобразует код операции Debezium в Operation.
func ParseOperation(code string) (Operation, error) {
	switch code {
	case "r":
		return OpRead, nil
	case "c":
		return OpCreate, nil
	case "u":
		return OpUpdate, nil
	case "d":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, code)
	}
}

// String возвращает читаемое имя операции для логов.
func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// RowImage — полуструктурированный образ строки таблицы:
// имя колонки → значение. Числа декодируются как json.Number,
// чтобы различать десятичную и base64-кодировку ID-полей.
type RowImage map[string]any

// ChangeEvent — разобранное CDC-событие.
// OpCode хранится как сырой код: проверка на неизвестную операцию
// выполняется pipeline'ом после фильтрации и валидации, как и в
// остальной цепочке обработки.
type ChangeEvent struct {
	OpCode string
	Before RowImage
	After  RowImage
}

// envelope — внешний конверт Debezium-сообщения.
type envelope struct {
	Payload json.RawMessage `json:"payload"`
}

// payload — содержимое CDC-события.
type payload struct {
	Op     string          `json:"op"`
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// Decode разбирает сырое тело сообщения в ChangeEvent.
// Пустое сообщение — ErrEmptyMessage, отсутствующий payload — ErrNoPayload
// (оба означают «пропустить сообщение»), некорректный JSON — *DecodeError.
func Decode(raw []byte) (*ChangeEvent, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMessage
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Stage: "envelope", Err: err}
	}

	if len(env.Payload) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return nil, ErrNoPayload
	}

	var pl payload
	if err := json.Unmarshal(env.Payload, &pl); err != nil {
		return nil, &DecodeError{Stage: "payload", Err: err}
	}

	before, err := decodeRowImage(pl.Before)
	if err != nil {
		return nil, &DecodeError{Stage: "payload", Err: err}
	}
	after, err := decodeRowImage(pl.After)
	if err != nil {
		return nil, &DecodeError{Stage: "payload", Err: err}
	}

	return &ChangeEvent{
		OpCode: pl.Op,
		Before: before,
		After:  after,
	}, nil
}

// decodeRowImage разбирает row image с сохранением чисел как json.Number.
// null и отсутствующее значение дают nil.
func decodeRowImage(raw json.RawMessage) (RowImage, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var img RowImage
	if err := dec.Decode(&img); err != nil {
		return nil, err
	}
	return img, nil
}

// UserIDHint возвращает текстовое значение USER_ID из after или before
// image для логирования. "unknown", если ни один image его не содержит.
func (ev *ChangeEvent) UserIDHint() string {
	for _, img := range []RowImage{ev.After, ev.Before} {
		if img == nil {
			continue
		}
		if v, ok := img["USER_ID"]; ok && v != nil {
			if s := textValue(v); s != nil {
				return *s
			}
		}
	}
	return "unknown"
}
