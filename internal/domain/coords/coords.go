// Пакет coords — преобразование и валидация координат.
// Географические координаты: десятичные градусы ↔ градусы/минуты/секунды + полушарие.
// Небесные координаты: проверка строк RA (HH:MM:SS) и Dec (±DD:MM:SS).
package coords

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Ошибки кодека координат.
var (
	// ErrIncompleteCoordinate — заданы не все компоненты DMS.
	ErrIncompleteCoordinate = errors.New("координата задана не полностью: нужны полушарие, градусы, минуты и секунды")
	// ErrRange — значение вне допустимого диапазона оси.
	ErrRange = errors.New("значение вне допустимого диапазона")
	// ErrFormat — строка не соответствует шаблону.
	ErrFormat = errors.New("некорректный формат")
)

// Axis — географическая ось координаты.
type Axis int

const (
	// Longitude — долгота, [-180, 180], полушария E/W.
	Longitude Axis = iota
	// Latitude — широта, [-90, 90], полушария N/S.
	Latitude
)

// String возвращает имя оси.
func (a Axis) String() string {
	if a == Latitude {
		return "latitude"
	}
	return "longitude"
}

// Limit возвращает максимальный модуль значения для оси.
func (a Axis) Limit() float64 {
	if a == Latitude {
		return 90
	}
	return 180
}

// Positive возвращает букву положительного полушария (E или N).
func (a Axis) Positive() string {
	if a == Latitude {
		return "N"
	}
	return "E"
}

// Negative возвращает букву отрицательного полушария (W или S).
func (a Axis) Negative() string {
	if a == Latitude {
		return "S"
	}
	return "W"
}

// DMS — координата в виде градусы/минуты/секунды + полушарие.
type DMS struct {
	Hemisphere string  `json:"hemisphere"`
	Degrees    int     `json:"degrees"`
	Minutes    int     `json:"minutes"`
	Seconds    float64 `json:"seconds"`
}

// String форматирует DMS для отображения: 122° 15' 30.5" W.
func (d DMS) String() string {
	return fmt.Sprintf("%d° %d' %s\" %s",
		d.Degrees, d.Minutes, strconv.FormatFloat(d.Seconds, 'f', -1, 64), d.Hemisphere)
}

// DMSInput — введённые пользователем компоненты DMS.
// nil означает «поле не заполнено».
type DMSInput struct {
	Hemisphere *string  `json:"hemisphere,omitempty"`
	Degrees    *int     `json:"degrees,omitempty"`
	Minutes    *int     `json:"minutes,omitempty"`
	Seconds    *float64 `json:"seconds,omitempty"`
}

// present возвращает количество заполненных компонентов.
// Пустая строка полушария считается незаполненной.
func (in DMSInput) present() int {
	n := 0
	if in.Hemisphere != nil && *in.Hemisphere != "" {
		n++
	}
	if in.Degrees != nil {
		n++
	}
	if in.Minutes != nil {
		n++
	}
	if in.Seconds != nil {
		n++
	}
	return n
}

// IsEmpty сообщает, что ни один компонент не заполнен.
func (in DMSInput) IsEmpty() bool {
	return in.present() == 0
}

// Decompose раскладывает десятичные градусы в DMS.
// nil на входе — координата не задана, результат тоже nil (не ноль).
// Секунды округляются до 2 знаков; если округление дало 60, значение переносится в минуты.
func Decompose(value *float64, axis Axis) *DMS {
	if value == nil {
		return nil
	}

	abs := math.Abs(*value)
	deg := math.Floor(abs)
	minutesF := (abs - deg) * 60
	minutes := math.Floor(minutesF)
	seconds := round2((minutesF - minutes) * 60)

	if seconds >= 60 {
		seconds = 0
		minutes++
	}
	if minutes >= 60 {
		minutes = 0
		deg++
	}

	hemisphere := axis.Positive()
	if *value < 0 {
		hemisphere = axis.Negative()
	}

	return &DMS{
		Hemisphere: hemisphere,
		Degrees:    int(deg),
		Minutes:    int(minutes),
		Seconds:    seconds,
	}
}

// Compose собирает десятичные градусы из DMS.
// Все компоненты пусты — координата не задана (nil, nil).
// Заполнена только часть — ErrIncompleteCoordinate.
// Минуты и секунды ограничены [0, 60), градусы — [0, предел оси].
func Compose(in DMSInput, axis Axis) (*float64, error) {
	switch in.present() {
	case 0:
		return nil, nil
	case 4:
	default:
		return nil, fmt.Errorf("%w (%s)", ErrIncompleteCoordinate, axis)
	}

	hemisphere := *in.Hemisphere
	if hemisphere != axis.Positive() && hemisphere != axis.Negative() {
		return nil, fmt.Errorf("%w: полушарие %q, допустимые: %s, %s",
			ErrFormat, hemisphere, axis.Positive(), axis.Negative())
	}

	deg, minutes, seconds := *in.Degrees, *in.Minutes, *in.Seconds
	limit := axis.Limit()

	if deg < 0 || float64(deg) > limit {
		return nil, fmt.Errorf("%w: градусы %d вне [0, %v] (%s)", ErrRange, deg, limit, axis)
	}
	if minutes < 0 || minutes > 59 {
		return nil, fmt.Errorf("%w: минуты %d вне [0, 59] (%s)", ErrRange, minutes, axis)
	}
	if seconds < 0 || seconds >= 60 || math.IsNaN(seconds) {
		return nil, fmt.Errorf("%w: секунды %v вне [0, 60) (%s)", ErrRange, seconds, axis)
	}

	magnitude := float64(deg) + float64(minutes)/60 + seconds/3600
	if magnitude > limit {
		return nil, fmt.Errorf("%w: %s должна быть в диапазоне [0, %v], получено %v",
			ErrRange, axis, limit, magnitude)
	}

	if hemisphere == axis.Negative() {
		magnitude = -magnitude
	}
	return &magnitude, nil
}

// round2 округляет до двух знаков после запятой.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
