package coords

import (
	"errors"
	"math"
	"testing"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		axis  Axis
		want  DMS
	}{
		{
			name:  "западная долгота",
			value: -122.25847222222222,
			axis:  Longitude,
			want:  DMS{Hemisphere: "W", Degrees: 122, Minutes: 15, Seconds: 30.5},
		},
		{
			name:  "восточная долгота",
			value: 17.8925,
			axis:  Longitude,
			want:  DMS{Hemisphere: "E", Degrees: 17, Minutes: 53, Seconds: 33},
		},
		{
			name:  "ноль — положительное полушарие",
			value: 0,
			axis:  Latitude,
			want:  DMS{Hemisphere: "N", Degrees: 0, Minutes: 0, Seconds: 0},
		},
		{
			name:  "южная широта",
			value: -28.7606,
			axis:  Latitude,
			want:  DMS{Hemisphere: "S", Degrees: 28, Minutes: 45, Seconds: 38.16},
		},
		{
			name:  "граница широты",
			value: 90,
			axis:  Latitude,
			want:  DMS{Hemisphere: "N", Degrees: 90, Minutes: 0, Seconds: 0},
		},
		{
			name:  "округление секунд до 60 переносится в минуты",
			value: 10.999999,
			axis:  Longitude,
			want:  DMS{Hemisphere: "E", Degrees: 11, Minutes: 0, Seconds: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.value
			got := Decompose(&v, tt.axis)
			if got == nil {
				t.Fatal("Decompose вернул nil для заданного значения")
			}
			if got.Hemisphere != tt.want.Hemisphere || got.Degrees != tt.want.Degrees ||
				got.Minutes != tt.want.Minutes || math.Abs(got.Seconds-tt.want.Seconds) > 1e-9 {
				t.Errorf("Decompose(%v) = %+v, хотели %+v", tt.value, *got, tt.want)
			}
		})
	}
}

func TestDecompose_Nil(t *testing.T) {
	if got := Decompose(nil, Longitude); got != nil {
		t.Errorf("Decompose(nil) = %+v, хотели nil", *got)
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name    string
		in      DMSInput
		axis    Axis
		want    *float64
		wantErr error
	}{
		{
			name: "все поля пусты — координата не задана",
			in:   DMSInput{},
			axis: Longitude,
		},
		{
			name: "пустое полушарие считается незаполненным",
			in:   DMSInput{Hemisphere: strPtr("")},
			axis: Latitude,
		},
		{
			name: "западная долгота",
			in:   input("W", 122, 15, 30.5),
			axis: Longitude,
			want: floatPtr(-(122 + 15.0/60 + 30.5/3600)),
		},
		{
			name: "северная широта",
			in:   input("N", 45, 30, 0),
			axis: Latitude,
			want: floatPtr(45.5),
		},
		{
			name: "ровно 180 градусов",
			in:   input("E", 180, 0, 0),
			axis: Longitude,
			want: floatPtr(180),
		},
		{
			name:    "только полушарие",
			in:      DMSInput{Hemisphere: strPtr("E")},
			axis:    Longitude,
			wantErr: ErrIncompleteCoordinate,
		},
		{
			name:    "два поля",
			in:      DMSInput{Degrees: intPtr(10), Minutes: intPtr(5)},
			axis:    Longitude,
			wantErr: ErrIncompleteCoordinate,
		},
		{
			name:    "три поля без секунд",
			in:      DMSInput{Hemisphere: strPtr("N"), Degrees: intPtr(10), Minutes: intPtr(5)},
			axis:    Latitude,
			wantErr: ErrIncompleteCoordinate,
		},
		{
			name:    "широта больше 90",
			in:      input("N", 90, 30, 0),
			axis:    Latitude,
			wantErr: ErrRange,
		},
		{
			name:    "долгота больше 180",
			in:      input("W", 180, 0, 0.5),
			axis:    Longitude,
			wantErr: ErrRange,
		},
		{
			name:    "градусы вне диапазона поля",
			in:      input("E", 181, 0, 0),
			axis:    Longitude,
			wantErr: ErrRange,
		},
		{
			name:    "минуты 60",
			in:      input("E", 10, 60, 0),
			axis:    Longitude,
			wantErr: ErrRange,
		},
		{
			name:    "отрицательные секунды",
			in:      input("E", 10, 0, -1),
			axis:    Longitude,
			wantErr: ErrRange,
		},
		{
			name:    "полушарие другой оси",
			in:      input("N", 10, 0, 0),
			axis:    Longitude,
			wantErr: ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.in, tt.axis)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Compose() error = %v, хотели %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compose() неожиданная ошибка: %v", err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Compose() = %v, хотели %v", fmtFloat(got), fmtFloat(tt.want))
			}
			if got != nil && math.Abs(*got-*tt.want) > 1e-12 {
				t.Errorf("Compose() = %v, хотели %v", *got, *tt.want)
			}
		})
	}
}

// Compose(Decompose(d)) восстанавливает значение с точностью округления секунд.
func TestComposeDecompose_RoundTrip(t *testing.T) {
	for _, axis := range []Axis{Longitude, Latitude} {
		limit := axis.Limit()
		for v := -limit; v <= limit; v += 0.0137 {
			value := v
			d := Decompose(&value, axis)
			got, err := Compose(input(d.Hemisphere, d.Degrees, d.Minutes, d.Seconds), axis)
			if err != nil {
				t.Fatalf("%s: Compose(Decompose(%v)) ошибка: %v", axis, v, err)
			}
			if math.Abs(*got-v) > 0.005/3600+1e-12 {
				t.Fatalf("%s: Compose(Decompose(%v)) = %v", axis, v, *got)
			}
		}
	}
}

func TestDMS_String(t *testing.T) {
	v := -122.25847222222222
	got := Decompose(&v, Longitude).String()
	want := `122° 15' 30.5" W`
	if got != want {
		t.Errorf("String() = %q, хотели %q", got, want)
	}
}

func input(h string, deg, minutes int, sec float64) DMSInput {
	return DMSInput{Hemisphere: &h, Degrees: &deg, Minutes: &minutes, Seconds: &sec}
}

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func fmtFloat(f *float64) any {
	if f == nil {
		return "nil"
	}
	return *f
}
