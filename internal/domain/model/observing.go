package model

import (
	"fmt"
	"time"
)

// Режимы наблюдения.
const (
	ModePhotometry   = "photometry"
	ModeSpectroscopy = "spectroscopy"
	ModeImaging      = "imaging"
)

// IsValidObservationMode проверяет режим наблюдения.
func IsValidObservationMode(m string) bool {
	return m == ModePhotometry || m == ModeSpectroscopy || m == ModeImaging
}

// ObservingRun — наблюдательная кампания на одном инструменте.
type ObservingRun struct {
	// ID — UUID записи
	ID string
	// Name — имя кампании
	Name string
	// Description — описание
	Description string
	// InstrumentID — инструмент (удаление инструмента с кампаниями запрещено)
	InstrumentID string
	// StartDate — дата начала
	StartDate *time.Time
	// EndDate — дата окончания
	EndDate *time.Time
	// ResearcherIDs — участники кампании
	ResearcherIDs []string
	// Comments — комментарии
	Comments string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// ObservingBlock — блок наблюдений внутри кампании.
// Доступ к блоку дают группы AllowedGroupIDs; явный запрет исследователя сильнее.
type ObservingBlock struct {
	// ID — UUID записи
	ID string
	// Name — имя блока
	Name string
	// RunID — кампания (удаление кампании с блоками запрещено)
	RunID string
	// Description — описание
	Description string
	// StartTime — дата и время начала
	StartTime *time.Time
	// EndTime — время окончания (только время суток, HH:MM:SS)
	EndTime *string
	// TargetIDs — наблюдаемые цели
	TargetIDs []string
	// ObservationMode — photometry, spectroscopy, imaging
	ObservationMode string
	// Filters — использованные фильтры
	Filters string
	// ExposureSeconds — время экспозиции, с
	ExposureSeconds *float64
	// Seeing — качество изображения, угл. с
	Seeing *float64
	// WeatherConditions — погодные условия
	WeatherConditions string
	// Comments — комментарии
	Comments string
	// AllowedGroupIDs — группы, которым доступен блок
	AllowedGroupIDs []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// DetailedName возвращает «имя - инструмент (YYYY-MM-DD)».
// instrumentName пустой — "No instrument", StartTime не задан — "No date".
func (b *ObservingBlock) DetailedName(instrumentName string) string {
	if instrumentName == "" {
		instrumentName = "No instrument"
	}
	date := "No date"
	if b.StartTime != nil {
		date = b.StartTime.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s - %s (%s)", b.Name, instrumentName, date)
}
