// Пакет translit — транслитерация кириллицы в латиницу для построения
// логинов Keycloak. Направление фиксировано (кириллица → латиница):
// символы других алфавитов проходят без изменений.
package translit

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cyrillicToLatin — таблица транслитерации строчных кириллических букв.
// Твёрдый и мягкий знаки не имеют латинской транскрипции и опускаются.
var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
	// Украинские и белорусские буквы, встречающиеся в данных источника
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g", 'ў': "u",
}

// foldMarks убирает комбинируемые диакритические знаки после NFD-разложения
// (é → e). Применяется к латинице, уже присутствующей во входной строке.
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CyrillicToLatin транслитерирует кириллические буквы строки в латинскую
// транскрипцию, сохраняя регистр первой буквы транскрипции. Латинские
// буквы с диакритикой сводятся к базовым. Остальные символы
// возвращаются без изменений.
func CyrillicToLatin(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		lower := unicode.ToLower(r)
		tr, ok := cyrillicToLatin[lower]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if r != lower && tr != "" {
			// Заглавная кириллическая буква — заглавная первая буква транскрипции
			b.WriteString(strings.ToUpper(tr[:1]) + tr[1:])
			continue
		}
		b.WriteString(tr)
	}

	folded, _, err := transform.String(foldMarks, b.String())
	if err != nil {
		return b.String()
	}
	return folded
}
