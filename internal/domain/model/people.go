package model

import (
	"strings"
	"time"
)

// Роли исследователей.
const (
	RoleCoreTeam     = "core_team"
	RoleCollaborator = "collaborator"
)

// IsValidResearcherRole проверяет роль исследователя.
func IsValidResearcherRole(r string) bool {
	return r == RoleCoreTeam || r == RoleCollaborator
}

// User — локальная учётная запись, связанная с субъектом IdP.
type User struct {
	// ID — UUID записи
	ID string
	// Username — уникальное имя пользователя
	Username string
	// AuthSubject — claim sub из JWT (nil до первого входа)
	AuthSubject *string
	// FirstName — имя
	FirstName string
	// LastName — фамилия
	LastName string
	// Email — адрес электронной почты
	Email string
	// IsSuperuser — полный доступ, удаление запрещено
	IsSuperuser bool
	// IsActive — учётная запись активна
	IsActive bool
	// GroupIDs — группы пользователя
	GroupIDs []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// FullName возвращает «имя фамилия» без лишних пробелов.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Group — группа пользователей.
type Group struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя группы
	Name string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// Researcher — исследователь. Связан с учётной записью 1:1;
// при удалении учётной записи остаётся без неё (UserID = nil).
type Researcher struct {
	// ID — UUID записи
	ID string
	// UserID — учётная запись (nil — исследователь без учётной записи)
	UserID *string
	// Name — имя
	Name string
	// Email — адрес электронной почты
	Email string
	// Role — core_team или collaborator
	Role string
	// Institution — организация
	Institution string
	// IsPhD — есть учёная степень
	IsPhD bool
	// Comments — комментарии
	Comments string
	// DeniedBlockIDs — блоки, явно запрещённые исследователю
	DeniedBlockIDs []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// DisplayName возвращает имя или заглушку, если имя не задано.
func (r *Researcher) DisplayName() string {
	if r.Name == "" {
		return "(Name not assigned)"
	}
	return r.Name
}
