package service

import (
	"context"
	"testing"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

// TestHomeService_Build проверяет видимые цели, файлы, кампании и инструменты без повторов.
func TestHomeService_Build(t *testing.T) {
	env, targets, files := newTargetFixture(t)
	ctx := context.Background()
	home := NewHomeService(env.repos, files, env.logger)

	open := mustTarget(t, targets, "M31")
	hidden := mustTarget(t, targets, "M33")
	if _, err := targets.UpdateFiles(ctx, open.ID, FilesChange{
		Datafiles: []targetfiles.Upload{textUpload("a.fits", "A")},
	}); err != nil {
		t.Fatal(err)
	}

	seedBlock(t, env, "b-1", []string{open.ID}, []string{"g-team"})
	seedBlock(t, env, "b-2", []string{open.ID}, []string{"g-team"})
	seedBlock(t, env, "b-3", []string{hidden.ID}, []string{"g-other"})

	// Вторая кампания с тем же именем на другом инструменте того же имени
	env.store.mu.Lock()
	env.store.instruments["i-2"] = &model.Instrument{ID: "i-2", Name: "CAFOS", TelescopeID: "t-1"}
	env.store.runs["r-2"] = &model.ObservingRun{ID: "r-2", Name: "Run 1", InstrumentID: "i-2"}
	env.store.blocks["b-2"].RunID = "r-2"
	env.store.mu.Unlock()

	t.Run("член группы", func(t *testing.T) {
		page, err := home.Build(ctx, &rbac.Viewer{UserID: "u", GroupIDs: []string{"g-team"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(page.Targets) != 1 || page.Targets[0].Target.ID != open.ID {
			t.Fatalf("цели = %+v, ожидали только M31", page.Targets)
		}
		if len(page.Targets[0].Datafiles) != 1 || page.Targets[0].Datafiles[0].Name != "a.fits" {
			t.Errorf("файлы = %+v", page.Targets[0].Datafiles)
		}
		if len(page.Runs) != 1 || len(page.Instruments) != 1 {
			t.Errorf("кампании = %d, инструменты = %d, ожидали по одной без повторов имён",
				len(page.Runs), len(page.Instruments))
		}
	})

	t.Run("суперпользователь", func(t *testing.T) {
		page, err := home.Build(ctx, &rbac.Viewer{IsSuperuser: true})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(page.Targets) != 2 {
			t.Errorf("целей = %d, ожидали 2", len(page.Targets))
		}
	})

	t.Run("без групп", func(t *testing.T) {
		page, err := home.Build(ctx, &rbac.Viewer{UserID: "x"})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(page.Targets) != 0 || len(page.Runs) != 0 || page.Instruments == nil {
			t.Errorf("страница = %+v, ожидали пустые списки", page)
		}
	})
}
