package cdc

import (
	"errors"
	"testing"
)

// TestDecode_ValidMessage проверяет разбор валидного Debezium-сообщения.
func TestDecode_ValidMessage(t *testing.T) {
	raw := []byte(`{"payload":{"op":"c","before":null,"after":{"USER_ID":"42","NAME":"Иван Петров"}}}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Ошибка Decode: %v", err)
	}
	if ev.OpCode != "c" {
		t.Errorf("ожидался op=c, получен %q", ev.OpCode)
	}
	if ev.Before != nil {
		t.Errorf("ожидался before=nil, получен %v", ev.Before)
	}
	if ev.After == nil {
		t.Fatal("ожидался непустой after")
	}
	if ev.After["USER_ID"] != "42" {
		t.Errorf("ожидался USER_ID=42, получен %v", ev.After["USER_ID"])
	}
}

// TestDecode_EmptyMessage проверяет пропуск пустого сообщения.
func TestDecode_EmptyMessage(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("   \n")} {
		if _, err := Decode(raw); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Decode(%q): ожидалась ErrEmptyMessage, получено %v", raw, err)
		}
	}
}

// TestDecode_NoPayload проверяет пропуск сообщения без payload.
func TestDecode_NoPayload(t *testing.T) {
	for _, raw := range []string{`{}`, `{"payload":null}`, `{"schema":{}}`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrNoPayload) {
			t.Errorf("Decode(%s): ожидалась ErrNoPayload, получено %v", raw, err)
		}
	}
}

// TestDecode_MalformedEnvelope проверяет ошибку разбора конверта.
func TestDecode_MalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("ожидалась *DecodeError, получено %v", err)
	}
	if decErr.Stage != "envelope" {
		t.Errorf("ожидался stage=envelope, получен %q", decErr.Stage)
	}
}

// TestDecode_MalformedPayload проверяет ошибку разбора payload.
func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"payload":{"op":"c","after":"not an object"}}`))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("ожидалась *DecodeError, получено %v", err)
	}
	if decErr.Stage != "payload" {
		t.Errorf("ожидался stage=payload, получен %q", decErr.Stage)
	}
}

// TestDecode_NumbersAsJSONNumber проверяет, что числа row image
// сохраняются как json.Number.
func TestDecode_NumbersAsJSONNumber(t *testing.T) {
	ev, err := Decode([]byte(`{"payload":{"op":"u","before":{"USER_ID":42},"after":{"USER_ID":42}}}`))
	if err != nil {
		t.Fatalf("Ошибка Decode: %v", err)
	}
	if s := textValue(ev.After["USER_ID"]); s == nil || *s != "42" {
		t.Errorf("ожидалось текстовое значение 42, получено %v", ev.After["USER_ID"])
	}
}

// TestParseOperation проверяет разбор кодов операций.
func TestParseOperation(t *testing.T) {
	tests := []struct {
		code string
		want Operation
	}{
		{"r", OpRead},
		{"c", OpCreate},
		{"u", OpUpdate},
		{"d", OpDelete},
	}
	for _, tt := range tests {
		op, err := ParseOperation(tt.code)
		if err != nil {
			t.Errorf("ParseOperation(%q): неожиданная ошибка %v", tt.code, err)
		}
		if op != tt.want {
			t.Errorf("ParseOperation(%q) = %v, ожидалось %v", tt.code, op, tt.want)
		}
	}
}

// TestParseOperation_Unknown проверяет отклонение неизвестного кода.
func TestParseOperation_Unknown(t *testing.T) {
	for _, code := range []string{"", "x", "rr", "t"} {
		if _, err := ParseOperation(code); !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("ParseOperation(%q): ожидалась ErrUnknownOperation, получено %v", code, err)
		}
	}
}

// TestUserIDHint проверяет извлечение USER_ID для логов.
func TestUserIDHint(t *testing.T) {
	tests := []struct {
		name string
		ev   *ChangeEvent
		want string
	}{
		{"из after", &ChangeEvent{After: RowImage{"USER_ID": "7"}}, "7"},
		{"из before при отсутствии after", &ChangeEvent{Before: RowImage{"USER_ID": "9"}}, "9"},
		{"after приоритетнее before", &ChangeEvent{Before: RowImage{"USER_ID": "1"}, After: RowImage{"USER_ID": "2"}}, "2"},
		{"нет ни одного image", &ChangeEvent{}, "unknown"},
		{"null значение", &ChangeEvent{After: RowImage{"USER_ID": nil}}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.UserIDHint(); got != tt.want {
				t.Errorf("UserIDHint() = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}
