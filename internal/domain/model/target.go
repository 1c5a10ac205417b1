package model

import "time"

// Типы целей.
const (
	TargetGalaxy      = "galaxy"
	TargetCalibration = "calibration"
	TargetOther       = "other"
)

// IsValidTargetType проверяет тип цели.
func IsValidTargetType(t string) bool {
	return t == TargetGalaxy || t == TargetCalibration || t == TargetOther
}

// NormalizeTargetType возвращает тип для отображения:
// неизвестное сохранённое значение читается как other.
func NormalizeTargetType(t string) string {
	if IsValidTargetType(t) {
		return t
	}
	return TargetOther
}

// Target — цель наблюдения.
// Владеет каталогом <media_root>/<FolderName>/{image,datafiles}.
type Target struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя цели, после создания не меняется
	Name string
	// FolderName — очищенное имя, уникально (имя каталога файлов)
	FolderName string
	// Type — galaxy, calibration, other
	Type string
	// RightAscension — прямое восхождение HH:MM:SS[.sss]
	RightAscension string
	// Declination — склонение ±DD:MM:SS[.sss]
	Declination string
	// Magnitude — видимая звёздная величина (система Vega)
	Magnitude *float64
	// Redshift — красное смещение z
	Redshift *float64
	// Size — угловой размер, угл. с
	Size *float64
	// Semester — семестр видимости
	Semester string
	// Comments — комментарии
	Comments string
	// Image — путь изображения относительно media root
	// (<folder>/image без файла — изображение не задано)
	Image string
	// DatafilesPath — каталог файлов данных относительно media root
	DatafilesPath string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
