package rbac

import (
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// Viewer — тот, для кого фильтруются блоки и цели.
type Viewer struct {
	// UserID — учётная запись
	UserID string
	// IsSuperuser — итоговый признак суперпользователя
	IsSuperuser bool
	// Role — роль исследователя (пусто, если исследователя нет)
	Role string
	// GroupIDs — группы учётной записи
	GroupIDs []string
	// DeniedBlockIDs — блоки, явно запрещённые исследователю
	DeniedBlockIDs []string
	// NoResearcher — у учётной записи нет профиля исследователя
	NoResearcher bool
}

// SeesEverything сообщает, что фильтрация не применяется:
// viewer не задан, суперпользователь, core_team или учётная запись
// без профиля исследователя.
func (v *Viewer) SeesEverything() bool {
	return v == nil || v.IsSuperuser || v.NoResearcher || v.Role == model.RoleCoreTeam
}

// VisibleBlocks возвращает блоки, доступные viewer.
// Блок доступен, если одна из его групп совпадает с группой viewer
// и блок не запрещён viewer явно. Запрет сильнее любой группы.
// Порядок входа сохраняется.
func VisibleBlocks(v *Viewer, blocks []*model.ObservingBlock) []*model.ObservingBlock {
	if v.SeesEverything() {
		return blocks
	}
	groups := toSet(v.GroupIDs)
	denied := toSet(v.DeniedBlockIDs)

	visible := make([]*model.ObservingBlock, 0, len(blocks))
	for _, b := range blocks {
		if denied[b.ID] {
			continue
		}
		if intersects(b.AllowedGroupIDs, groups) {
			visible = append(visible, b)
		}
	}
	return visible
}

// VisibleTargets возвращает цели, доступные viewer.
// blocksByTarget — блоки наблюдений каждой цели (ключ — ID цели).
// Цель доступна, если хотя бы один её блок открыт группам viewer
// и ни один её блок не запрещён viewer.
func VisibleTargets(v *Viewer, targets []*model.Target, blocksByTarget map[string][]*model.ObservingBlock) []*model.Target {
	if v.SeesEverything() {
		return targets
	}
	groups := toSet(v.GroupIDs)
	denied := toSet(v.DeniedBlockIDs)

	visible := make([]*model.Target, 0, len(targets))
	for _, t := range targets {
		allowed := false
		hidden := false
		for _, b := range blocksByTarget[t.ID] {
			if denied[b.ID] {
				hidden = true
				break
			}
			if intersects(b.AllowedGroupIDs, groups) {
				allowed = true
			}
		}
		if allowed && !hidden {
			visible = append(visible, t)
		}
	}
	return visible
}

// CanSeeBlock проверяет доступ viewer к одному блоку.
func CanSeeBlock(v *Viewer, b *model.ObservingBlock) bool {
	return len(VisibleBlocks(v, []*model.ObservingBlock{b})) == 1
}

func intersects(ids []string, set map[string]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}
