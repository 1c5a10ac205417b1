// targets.go — сервис целей наблюдения.
// Запись цели и её каталог <media_root>/<folder>/{image,datafiles}
// меняются согласованно: все файловые последовательности выполняются
// под блокировкой каталога цели.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/coords"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

// TargetFiles — операции с каталогами целей. Реализуется *targetfiles.Manager.
type TargetFiles interface {
	EnsureLayout(targetName string) (targetfiles.Layout, error)
	TargetDir(targetName string) (string, error)
	DeleteTree(targetName string) error
	Lock(targetName string) func()
	ImageURL(imagePath string) string
	ReplaceImage(layout targetfiles.Layout, currentImage string, change targetfiles.ImageChange) (string, []targetfiles.FileOutcome)
	ApplyDatafileChanges(layout targetfiles.Layout, uploads []targetfiles.Upload, deletions []string) []targetfiles.FileOutcome
	ListDatafiles(datafilesPath string) ([]targetfiles.FileInfo, error)
	OpenDatafile(datafilesPath, name string) (*os.File, os.FileInfo, error)
	WriteArchive(w io.Writer, datafilesPath string, names []string) (int, error)
}

// TargetInput — поля цели. Name учитывается только при создании;
// при обновлении допустимо пустое или текущее имя.
type TargetInput struct {
	Name           string
	Type           string
	RightAscension string
	Declination    string
	Magnitude      *float64
	Redshift       *float64
	Size           *float64
	Semester       string
	Comments       string
}

// FilesChange — изменения файлов цели за один запрос.
type FilesChange struct {
	Image           *targetfiles.Upload
	DeleteImage     bool
	Datafiles       []targetfiles.Upload
	DeleteDatafiles []string
}

// FilesReport — итог изменения файлов: обновлённая цель и результат по каждому файлу.
type FilesReport struct {
	Target   *model.Target
	Outcomes []targetfiles.FileOutcome
}

// TargetDeletion — итог удаления цели. Warning — сообщение о неполной
// очистке каталога (запись уже удалена).
type TargetDeletion struct {
	Target  *model.Target
	Warning string
}

// TargetService — сервис целей наблюдения.
type TargetService struct {
	repos  *repository.Repositories
	files  TargetFiles
	logger *slog.Logger
}

// NewTargetService создаёт сервис целей.
func NewTargetService(repos *repository.Repositories, files TargetFiles, logger *slog.Logger) *TargetService {
	return &TargetService{
		repos:  repos,
		files:  files,
		logger: logger.With(slog.String("component", "target_service")),
	}
}

// List возвращает цели, видимые viewer, по имени.
func (s *TargetService) List(ctx context.Context, viewer *rbac.Viewer) ([]*model.Target, error) {
	list, err := s.repos.Targets.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка целей")
	}
	if viewer.SeesEverything() {
		return list, nil
	}
	blocks, err := s.repos.Blocks.List(ctx, repository.BlockFilter{})
	if err != nil {
		return nil, mapRepoError(err, "получение списка блоков")
	}
	return rbac.VisibleTargets(viewer, list, blocksByTarget(blocks)), nil
}

// Get возвращает цель по ID без учёта видимости.
func (s *TargetService) Get(ctx context.Context, id string) (*model.Target, error) {
	t, err := s.repos.Targets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение цели")
	}
	return t, nil
}

// GetVisible возвращает цель, если она видима viewer; иначе ErrNotFound.
func (s *TargetService) GetVisible(ctx context.Context, viewer *rbac.Viewer, id string) (*model.Target, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkVisible(ctx, viewer, t)
}

// VisibleFolder проверяет доступ viewer к каталогу цели в media root.
// Каталог без цели и каталог невидимой цели дают ErrNotFound.
func (s *TargetService) VisibleFolder(ctx context.Context, viewer *rbac.Viewer, folder string) error {
	if viewer.SeesEverything() {
		return nil
	}
	t, err := s.repos.Targets.GetByFolderName(ctx, folder)
	if err != nil {
		return mapRepoError(err, "получение цели по каталогу")
	}
	_, err = s.checkVisible(ctx, viewer, t)
	return err
}

// ImageURL возвращает публичный URL изображения цели или "".
func (s *TargetService) ImageURL(t *model.Target) string {
	return s.files.ImageURL(t.Image)
}

// EditableFields возвращает редактируемые поля цели; id пустой — новая цель.
func (s *TargetService) EditableFields(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return model.TargetEditableFields(true), nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return model.TargetEditableFields(false), nil
}

// Create создаёт цель и её каталог. Каталог создаётся до записи,
// пути image и datafiles_path берутся из созданной раскладки.
func (s *TargetService) Create(ctx context.Context, in TargetInput) (*model.Target, error) {
	name, err := requireText("name", in.Name, 200)
	if err != nil {
		return nil, err
	}
	if _, err := targetfiles.FolderName(name); err != nil {
		return nil, fieldError("name", err)
	}

	t := &model.Target{ID: uuid.New().String(), Name: name}
	if err := applyTargetInput(t, in); err != nil {
		return nil, err
	}

	unlock := s.files.Lock(name)
	defer unlock()

	layout, err := s.files.EnsureLayout(name)
	if err != nil {
		if errors.Is(err, targetfiles.ErrInvalidFolderName) {
			return nil, fieldError("name", err)
		}
		return nil, fmt.Errorf("создание каталога цели: %w", err)
	}
	t.FolderName = layout.Folder
	t.Image = layout.ImageDir
	t.DatafilesPath = layout.DatafilesDir

	if err := s.repos.Targets.Create(ctx, t); err != nil {
		return nil, mapRepoError(err, "создание цели")
	}

	s.logger.Info("Цель создана",
		slog.String("id", t.ID),
		slog.String("name", t.Name),
		slog.String("folder", t.FolderName),
	)
	return t, nil
}

// Update обновляет общие поля цели. Имя после создания не меняется.
func (s *TargetService) Update(ctx context.Context, id string, in TargetInput) (*model.Target, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" && name != t.Name {
		return nil, fieldError("name", ErrReadOnly)
	}
	if err := applyTargetInput(t, in); err != nil {
		return nil, err
	}
	if err := s.repos.Targets.Update(ctx, t); err != nil {
		return nil, mapRepoError(err, "обновление цели")
	}
	s.logger.Info("Цель обновлена", slog.String("id", t.ID))
	return t, nil
}

// Delete удаляет цель и её каталог.
// Каталог вне media root: удаление отклоняется целиком (ErrUnsafePath).
// Запись удаляется до каталога; сбой очистки каталога возвращается как предупреждение.
func (s *TargetService) Delete(ctx context.Context, id string) (*TargetDeletion, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.files.Lock(t.Name)
	defer unlock()

	if _, err := s.files.TargetDir(t.Name); err != nil {
		s.logger.Warn("Удаление цели отклонено: небезопасный путь",
			slog.String("id", t.ID),
			slog.String("name", t.Name),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}

	if err := s.repos.Targets.Delete(ctx, id); err != nil {
		return nil, mapRepoError(err, "удаление цели")
	}

	result := &TargetDeletion{Target: t}
	if err := s.files.DeleteTree(t.Name); err != nil {
		result.Warning = fmt.Sprintf("цель удалена, но каталог очищен не полностью: %v", err)
	}

	s.logger.Info("Цель удалена",
		slog.String("id", t.ID),
		slog.String("name", t.Name),
		slog.Bool("files_clean", result.Warning == ""),
	)
	return result, nil
}

// UpdateFiles применяет изменения изображения и файлов данных.
// Сбой одного файла не прерывает остальные; пути в записи цели
// сохраняются только после применения изменений на диске.
func (s *TargetService) UpdateFiles(ctx context.Context, id string, change FilesChange) (*FilesReport, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.files.Lock(t.Name)
	defer unlock()

	layout, err := s.files.EnsureLayout(t.Name)
	if err != nil {
		return nil, fmt.Errorf("подготовка каталога цели: %w", err)
	}

	image, outcomes := s.files.ReplaceImage(layout, t.Image, targetfiles.ImageChange{
		Upload: change.Image,
		Delete: change.DeleteImage,
	})
	outcomes = append(outcomes, s.files.ApplyDatafileChanges(layout, change.Datafiles, change.DeleteDatafiles)...)

	if image != t.Image || layout.DatafilesDir != t.DatafilesPath {
		if err := s.repos.Targets.UpdateFiles(ctx, t.ID, image, layout.DatafilesDir); err != nil {
			return nil, mapRepoError(err, "сохранение путей файлов цели")
		}
		t.Image = image
		t.DatafilesPath = layout.DatafilesDir
	}

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	s.logger.Info("Файлы цели изменены",
		slog.String("id", t.ID),
		slog.Int("operations", len(outcomes)),
		slog.Int("failed", failed),
	)
	return &FilesReport{Target: t, Outcomes: outcomes}, nil
}

// ListFiles возвращает файлы данных цели, видимой viewer.
func (s *TargetService) ListFiles(ctx context.Context, viewer *rbac.Viewer, id string) ([]targetfiles.FileInfo, error) {
	t, err := s.GetVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListDatafiles(t.DatafilesPath)
	if err != nil {
		return nil, fmt.Errorf("получение файлов цели: %w", err)
	}
	return files, nil
}

// Download — подготовленная выдача файлов: один файл как есть
// или zip-архив, собираемый при записи. Закрывается вызывающим кодом.
type Download struct {
	// Filename — имя для Content-Disposition
	Filename string
	// Archive — выдаётся zip-архив
	Archive bool
	// Size — размер одного файла; для архива -1
	Size int64

	file    *os.File
	archive func(w io.Writer) error
}

// WriteTo пишет содержимое выдачи в w.
func (d *Download) WriteTo(w io.Writer) (int64, error) {
	if d.Archive {
		return 0, d.archive(w)
	}
	return io.Copy(w, d.file)
}

// Close освобождает открытый файл.
func (d *Download) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// Download готовит выдачу выбранных файлов данных цели, видимой viewer.
// Одно имя — файл как есть, несколько — архив <safe>_files.zip.
func (s *TargetService) Download(ctx context.Context, viewer *rbac.Viewer, id string, names []string) (*Download, error) {
	t, err := s.GetVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	names = uniqueIDs(names)
	if len(names) == 0 {
		return nil, fieldError("files", ErrRequired)
	}

	if len(names) == 1 {
		f, info, err := s.files.OpenDatafile(t.DatafilesPath, names[0])
		switch {
		case errors.Is(err, targetfiles.ErrFileNotFound), errors.Is(err, targetfiles.ErrInvalidFileName):
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		case err != nil:
			return nil, fmt.Errorf("открытие файла цели: %w", err)
		}
		return &Download{Filename: info.Name(), Size: info.Size(), file: f}, nil
	}

	datafiles := t.DatafilesPath
	return &Download{
		Filename: targetfiles.ArchiveName(t.Name),
		Archive:  true,
		Size:     -1,
		archive: func(w io.Writer) error {
			_, err := s.files.WriteArchive(w, datafiles, names)
			return err
		},
	}, nil
}

// checkVisible возвращает t, если цель видима viewer; иначе ErrNotFound.
func (s *TargetService) checkVisible(ctx context.Context, viewer *rbac.Viewer, t *model.Target) (*model.Target, error) {
	if viewer.SeesEverything() {
		return t, nil
	}
	blocks, err := s.repos.Blocks.List(ctx, repository.BlockFilter{TargetID: &t.ID})
	if err != nil {
		return nil, mapRepoError(err, "получение блоков цели")
	}
	visible := rbac.VisibleTargets(viewer, []*model.Target{t}, map[string][]*model.ObservingBlock{t.ID: blocks})
	if len(visible) == 0 {
		return nil, ErrNotFound
	}
	return t, nil
}

// blocksByTarget группирует блоки по ID наблюдаемых целей.
func blocksByTarget(blocks []*model.ObservingBlock) map[string][]*model.ObservingBlock {
	byTarget := make(map[string][]*model.ObservingBlock)
	for _, b := range blocks {
		for _, tid := range b.TargetIDs {
			byTarget[tid] = append(byTarget[tid], b)
		}
	}
	return byTarget
}

// applyTargetInput проверяет общие поля цели и переносит их в запись.
func applyTargetInput(t *model.Target, in TargetInput) error {
	targetType := in.Type
	if targetType == "" {
		targetType = model.TargetGalaxy
	}
	if !model.IsValidTargetType(targetType) {
		return fieldError("type", fmt.Errorf("недопустимый тип %q", in.Type))
	}

	ra := strings.TrimSpace(in.RightAscension)
	if ra != "" {
		if err := coords.ValidateSexagesimal(ra, coords.RightAscension); err != nil {
			return fieldError("right_ascension", err)
		}
	}
	dec := strings.TrimSpace(in.Declination)
	if dec != "" {
		if err := coords.ValidateSexagesimal(dec, coords.Declination); err != nil {
			return fieldError("declination", err)
		}
	}
	if err := nonNegative("size", in.Size); err != nil {
		return err
	}
	semester, err := requireText("semester", in.Semester, 10)
	if err != nil {
		return err
	}

	t.Type = targetType
	t.RightAscension = ra
	t.Declination = dec
	t.Magnitude = in.Magnitude
	t.Redshift = in.Redshift
	t.Size = in.Size
	t.Semester = semester
	t.Comments = in.Comments
	return nil
}
