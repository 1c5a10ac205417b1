// Пакет targetfiles — файлы целей наблюдения на диске.
// Раскладка: <media_root>/<sanitized_name>/{image/, datafiles/}.
// Поддерживает согласованность полей image и datafiles_path цели
// с фактическим содержимым диска при создании, изменении и удалении.
package targetfiles

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Имена подкаталогов цели.
const (
	imageDir     = "image"
	datafilesDir = "datafiles"
)

// Ошибки менеджера файлов.
var (
	// ErrInvalidFolderName — имя цели после очистки не даёт допустимого имени каталога.
	ErrInvalidFolderName = errors.New("имя цели не даёт допустимого имени каталога")
	// ErrUnsafeDeletionPath — удаляемый каталог не лежит внутри media root.
	ErrUnsafeDeletionPath = errors.New("каталог цели вне media root, удаление запрещено")
	// ErrFileWriteVerification — файл не появился на диске после записи.
	ErrFileWriteVerification = errors.New("файл не записан на диск")
	// ErrFileDeletion — файл не удалось удалить.
	ErrFileDeletion = errors.New("файл не удалось удалить")
	// ErrInvalidFileName — имя загружаемого или удаляемого файла недопустимо.
	ErrInvalidFileName = errors.New("недопустимое имя файла")
	// ErrFileNotFound — запрошенный файл отсутствует.
	ErrFileNotFound = errors.New("файл не найден")
)

// Layout — относительные (от media root) пути каталогов цели.
type Layout struct {
	// Folder — очищенное имя цели, имя корневого каталога цели
	Folder string
	// ImageDir — <folder>/image
	ImageDir string
	// DatafilesDir — <folder>/datafiles
	DatafilesDir string
}

// Manager — управление каталогами и файлами целей внутри media root.
type Manager struct {
	mediaRoot string
	mediaURL  string
	locks     *keyedMutex
	logger    *slog.Logger
}

// New создаёт Manager. mediaRoot приводится к абсолютному пути и создаётся,
// если отсутствует. mediaURL — публичный префикс, например /media/.
func New(mediaRoot, mediaURL string, logger *slog.Logger) (*Manager, error) {
	root, err := filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("некорректный media root %s: %w", mediaRoot, err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать media root %s: %w", root, err)
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}

	return &Manager{
		mediaRoot: root,
		mediaURL:  mediaURL,
		locks:     newKeyedMutex(),
		logger:    logger.With(slog.String("component", "targetfiles")),
	}, nil
}

// MediaRoot возвращает абсолютный путь media root.
func (m *Manager) MediaRoot() string {
	return m.mediaRoot
}

// FolderName возвращает имя каталога цели.
// Пустое имя и имена из одних точек недопустимы: они указывают на сам media root или выше.
func FolderName(targetName string) (string, error) {
	safe := SanitizeFilename(targetName)
	if strings.Trim(safe, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFolderName, targetName)
	}
	return safe, nil
}

// LayoutFor вычисляет раскладку каталогов цели без обращения к диску.
func LayoutFor(targetName string) (Layout, error) {
	folder, err := FolderName(targetName)
	if err != nil {
		return Layout{}, err
	}
	return Layout{
		Folder:       folder,
		ImageDir:     path.Join(folder, imageDir),
		DatafilesDir: path.Join(folder, datafilesDir),
	}, nil
}

// EnsureLayout создаёт каталоги image/ и datafiles/ цели (идемпотентно)
// и возвращает их относительные пути для сохранения в записи цели.
func (m *Manager) EnsureLayout(targetName string) (Layout, error) {
	layout, err := LayoutFor(targetName)
	if err != nil {
		return Layout{}, err
	}

	for _, dir := range []string{layout.ImageDir, layout.DatafilesDir} {
		if err := os.MkdirAll(m.abs(dir), 0o750); err != nil {
			fileOpsTotal.WithLabelValues(string(OpLayout), statusError).Inc()
			return Layout{}, fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
		}
	}
	fileOpsTotal.WithLabelValues(string(OpLayout), statusOK).Inc()
	return layout, nil
}

// TargetDir вычисляет абсолютный путь каталога цели по текущему имени
// и проверяет, что он строго внутри media root.
func (m *Manager) TargetDir(targetName string) (string, error) {
	safe := SanitizeFilename(targetName)
	base, err := filepath.Abs(filepath.Join(m.mediaRoot, safe))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafeDeletionPath, err)
	}
	if !isStrictDescendant(m.mediaRoot, base) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeDeletionPath, base)
	}
	return base, nil
}

// DeleteTree удаляет весь каталог цели. Путь пересчитывается из текущего имени,
// а не из сохранённых полей. Удаление выполняется один раз, без повторов;
// ошибки отдельных файлов не прерывают очистку.
// Возвращает ErrUnsafeDeletionPath, если каталог вне media root (ничего не удаляется),
// и ErrFileDeletion, если после очистки что-то осталось.
func (m *Manager) DeleteTree(targetName string) error {
	base, err := m.TargetDir(targetName)
	if err != nil {
		fileOpsTotal.WithLabelValues(string(OpTreeDelete), statusRefused).Inc()
		m.logger.Warn("Удаление каталога цели отклонено",
			slog.String("target", targetName),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := os.RemoveAll(base); err != nil {
		fileOpsTotal.WithLabelValues(string(OpTreeDelete), statusError).Inc()
		m.logger.Warn("Каталог цели удалён не полностью",
			slog.String("path", base),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: %v", ErrFileDeletion, filepath.Base(base), err)
	}

	fileOpsTotal.WithLabelValues(string(OpTreeDelete), statusOK).Inc()
	m.logger.Debug("Каталог цели удалён", slog.String("path", base))
	return nil
}

// Lock захватывает эксклюзивную блокировку каталога цели.
// Все последовательности изменений файлов цели выполняются под ней.
// Возвращает функцию освобождения.
func (m *Manager) Lock(targetName string) func() {
	return m.locks.lock(SanitizeFilename(targetName))
}

// ImageName возвращает имя файла изображения, если сохранённый путь
// указывает на файл (есть расширение). Путь-заглушка <folder>/image даёт "".
func ImageName(imagePath string) string {
	if imagePath == "" || path.Ext(imagePath) == "" {
		return ""
	}
	return path.Base(imagePath)
}

// ImageURL возвращает публичный URL изображения или "", если изображение не задано.
func (m *Manager) ImageURL(imagePath string) string {
	if ImageName(imagePath) == "" {
		return ""
	}
	return m.mediaURL + strings.TrimPrefix(imagePath, "/")
}

// abs переводит относительный путь (с разделителем /) в абсолютный путь на диске.
func (m *Manager) abs(rel string) string {
	return filepath.Join(m.mediaRoot, filepath.FromSlash(rel))
}

// isStrictDescendant проверяет, что child лежит внутри root и не совпадает с ним.
func isStrictDescendant(root, child string) bool {
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// keyedMutex — набор мьютексов по ключу со счётчиком ссылок.
// Запись удаляется из map, когда её больше никто не держит и не ждёт.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}
