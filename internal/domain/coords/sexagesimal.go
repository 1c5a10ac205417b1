// sexagesimal.go — проверка и разбор строк в шестидесятеричной записи.
// RA: HH:MM:SS[.sss], Dec: ±DD:MM:SS[.sss], гео: DDD:MM:SS[.ss]{E|W} и DD:MM:SS[.ss]{N|S}.
package coords

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind — вид шестидесятеричной строки.
type Kind int

const (
	// RightAscension — прямое восхождение, HH:MM:SS[.sss], часы 00–23.
	RightAscension Kind = iota
	// Declination — склонение, ±DD:MM:SS[.sss], итог в [-90, 90].
	Declination
	// LongitudeDMS — долгота, DDD:MM:SS[.ss]{E|W}, итог в [-180, 180].
	LongitudeDMS
	// LatitudeDMS — широта, DD:MM:SS[.ss]{N|S}, итог в [-90, 90].
	LatitudeDMS
)

// String возвращает имя вида.
func (k Kind) String() string {
	switch k {
	case RightAscension:
		return "right_ascension"
	case Declination:
		return "declination"
	case LongitudeDMS:
		return "longitude"
	case LatitudeDMS:
		return "latitude"
	default:
		return "unknown"
	}
}

var (
	raPattern  = regexp.MustCompile(`^(?:[01][0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9](?:\.\d+)?$`)
	decPattern = regexp.MustCompile(`^([+-])([0-8][0-9]|90):([0-5][0-9]):([0-5][0-9](?:\.\d+)?)$`)
	lonPattern = regexp.MustCompile(`^(180|1[0-7][0-9]|0?[0-9]?[0-9]):([0-5][0-9]):([0-5][0-9](?:\.\d+)?)([EW])$`)
	latPattern = regexp.MustCompile(`^(90|[0-8]?[0-9]):([0-5][0-9]):([0-5][0-9](?:\.\d+)?)([NS])$`)
)

// formatHint — подсказка формата для сообщения об ошибке.
var formatHint = map[Kind]string{
	RightAscension: "HH:MM:SS[.sss]",
	Declination:    "±DD:MM:SS[.sss]",
	LongitudeDMS:   "DDD:MM:SS[.ss]E|W",
	LatitudeDMS:    "DD:MM:SS[.ss]N|S",
}

// ValidateSexagesimal проверяет строку координаты.
// Пустая строка допустима (координата не задана).
// Сначала проверяется шаблон (ErrFormat), затем итоговый диапазон (ErrRange).
func ValidateSexagesimal(value string, kind Kind) error {
	if value == "" {
		return nil
	}

	switch kind {
	case RightAscension:
		if !raPattern.MatchString(value) {
			return formatError(value, kind)
		}
		return nil

	case Declination:
		m := decPattern.FindStringSubmatch(value)
		if m == nil {
			return formatError(value, kind)
		}
		total := sexagesimalTotal(m[2], m[3], m[4])
		if total > 90 {
			return fmt.Errorf("%w: склонение %s вне [-90, 90]", ErrRange, value)
		}
		return nil

	case LongitudeDMS, LatitudeDMS:
		_, err := parseGeo(value, kind)
		return err

	default:
		return fmt.Errorf("%w: неизвестный вид координаты %d", ErrFormat, int(kind))
	}
}

// ParseGeoDMS переводит строку DDD:MM:SS[.ss]H в десятичные градусы.
// Пустая строка — координата не задана (nil, nil).
func ParseGeoDMS(value string, axis Axis) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	v, err := parseGeo(value, kindForAxis(axis))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FormatGeoDMS выполняет обратное преобразование: десятичные градусы → DDD:MM:SS.ssH.
// nil — пустая строка.
func FormatGeoDMS(value *float64, axis Axis) string {
	d := Decompose(value, axis)
	if d == nil {
		return ""
	}
	degFormat := "%03d"
	if axis == Latitude {
		degFormat = "%02d"
	}
	return fmt.Sprintf(degFormat+":%02d:%05.2f%s", d.Degrees, d.Minutes, d.Seconds, d.Hemisphere)
}

// parseGeo проверяет гео-строку и возвращает значение со знаком.
func parseGeo(value string, kind Kind) (float64, error) {
	pattern, axis := lonPattern, Longitude
	if kind == LatitudeDMS {
		pattern, axis = latPattern, Latitude
	}

	m := pattern.FindStringSubmatch(value)
	if m == nil {
		return 0, formatError(value, kind)
	}

	total := sexagesimalTotal(m[1], m[2], m[3])
	if total > axis.Limit() {
		return 0, fmt.Errorf("%w: %s %s вне [-%v, %v]", ErrRange, axis, value, axis.Limit(), axis.Limit())
	}
	if m[4] == axis.Negative() {
		total = -total
	}
	return total, nil
}

// sexagesimalTotal суммирует компоненты, уже проверенные шаблоном.
func sexagesimalTotal(deg, minutes, seconds string) float64 {
	d, _ := strconv.ParseFloat(deg, 64)
	m, _ := strconv.ParseFloat(minutes, 64)
	s, _ := strconv.ParseFloat(seconds, 64)
	return d + m/60 + s/3600
}

func kindForAxis(axis Axis) Kind {
	if axis == Latitude {
		return LatitudeDMS
	}
	return LongitudeDMS
}

func formatError(value string, kind Kind) error {
	return fmt.Errorf("%w: %s %q, ожидается %s", ErrFormat, kind, value, formatHint[kind])
}
