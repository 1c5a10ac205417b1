// Пакет model — доменные модели каталога наблюдений.
package model

import (
	"strings"
	"time"
)

// Статусы оборудования (телескопы и инструменты).
const (
	StatusUnknown     = "unknown"
	StatusOperational = "operational"
	StatusInoperative = "inoperative"
	StatusMaintenance = "maintenance"
)

// IsValidEquipmentStatus проверяет статус телескопа или инструмента.
func IsValidEquipmentStatus(s string) bool {
	switch s {
	case StatusUnknown, StatusOperational, StatusInoperative, StatusMaintenance:
		return true
	}
	return false
}

// Observatory — обсерватория.
// Хранится в таблице observatories. При создании обсерватории создаётся
// одноимённая группа пользователей.
type Observatory struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя обсерватории
	Name string
	// Website — сайт обсерватории
	Website string
	// Location — описание местоположения
	Location string
	// Longitude — долгота в десятичных градусах [-180, 180], nil если не задана
	Longitude *float64
	// Latitude — широта в десятичных градусах [-90, 90], nil если не задана
	Latitude *float64
	// Altitude — высота над уровнем моря, м
	Altitude *float64
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Telescope — телескоп обсерватории.
type Telescope struct {
	// ID — UUID записи
	ID string
	// Name — имя телескопа
	Name string
	// Description — краткое описание
	Description string
	// ObservatoryID — обсерватория (удаление обсерватории с телескопами запрещено)
	ObservatoryID string
	// Owner — владелец
	Owner string
	// Aperture — апертура, м (>= 0)
	Aperture float64
	// Status — unknown, operational, inoperative, maintenance
	Status string
	// Website — сайт телескопа
	Website string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Instrument — инструмент телескопа.
type Instrument struct {
	// ID — UUID записи
	ID string
	// Name — имя инструмента
	Name string
	// Description — краткое описание
	Description string
	// TelescopeID — телескоп (удаление телескопа с инструментами запрещено)
	TelescopeID string
	// Status — unknown, operational, inoperative, maintenance
	Status string
	// Website — сайт инструмента
	Website string
	// Filters — фильтры через запятую
	Filters string
	// Configuration — конфигурации через запятую
	Configuration string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// FiltersList возвращает фильтры инструмента списком.
func (i *Instrument) FiltersList() []string {
	return SplitList(i.Filters)
}

// ConfigurationList возвращает конфигурации инструмента списком.
func (i *Instrument) ConfigurationList() []string {
	return SplitList(i.Configuration)
}

// SplitList разбирает строку через запятую; пробелы обрезаются, пустые элементы пропускаются.
func SplitList(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}
