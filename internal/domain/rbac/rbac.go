// Пакет rbac — права доступа к каталогу наблюдений.
// Суперпользователь определяется локальным флагом учётной записи
// или принадлежностью к группе администраторов в IdP.
// Видимость блоков и целей задаётся группами и явными запретами исследователя.
package rbac

// Роли доступа к API.
const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// MapGroupsToRole определяет роль по группам IdP.
// Совпадение с adminGroups даёт admin, иначе reader.
func MapGroupsToRole(groups []string, adminGroups []string) string {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		if adminSet[g] {
			return RoleAdmin
		}
	}
	return RoleReader
}

// EffectiveSuperuser возвращает итоговый признак суперпользователя:
// локальный флаг или роль admin из IdP. Понизить права нельзя.
func EffectiveSuperuser(localSuperuser bool, idpRole string) bool {
	return localSuperuser || idpRole == RoleAdmin
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
