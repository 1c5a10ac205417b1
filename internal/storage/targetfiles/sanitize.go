// sanitize.go — приведение имени цели к безопасному имени каталога.
package targetfiles

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename приводит произвольное имя к безопасному ASCII-имени:
// NFKD-разложение (диакритика отделяется и отбрасывается), удаление всех
// символов вне [A-Za-z0-9 _.-], замена пробелов на подчёркивания.
// Функция детерминирована и идемпотентна.
func SanitizeFilename(raw string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, raw)
	if err != nil {
		// Не-ASCII символы отбросит фильтр ниже.
		ascii = raw
	}

	var b strings.Builder
	b.Grow(len(ascii))
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}
