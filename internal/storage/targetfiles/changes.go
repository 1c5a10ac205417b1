// changes.go — изменение изображения и файлов данных цели.
// Каждая операция возвращает результат по каждому файлу; сбой одного файла
// не прерывает обработку остальных.
package targetfiles

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Op — вид файловой операции.
type Op string

const (
	OpLayout         Op = "layout"
	OpImageUpload    Op = "image_upload"
	OpImageDelete    Op = "image_delete"
	OpDatafileUpload Op = "datafile_upload"
	OpDatafileDelete Op = "datafile_delete"
	OpTreeDelete     Op = "tree_delete"
)

const (
	statusOK      = "ok"
	statusError   = "error"
	statusRefused = "refused"
)

// tmpPrefix — префикс временных файлов атомарной записи.
const tmpPrefix = ".upload-"

// Prometheus-метрики файловых операций.
var fileOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dw_target_file_ops_total",
	Help: "Количество файловых операций над каталогами целей (по операции и статусу).",
}, []string{"op", "status"})

// Upload — загружаемый файл: исходное имя и поток содержимого.
type Upload struct {
	Filename string
	Content  io.Reader
}

// ImageChange — запрошенное изменение изображения.
// Delete имеет приоритет над Upload.
type ImageChange struct {
	Upload *Upload
	Delete bool
}

// FileOutcome — результат операции над одним файлом.
type FileOutcome struct {
	Name string
	Op   Op
	// Err — nil при успехе; ErrFileWriteVerification, ErrFileDeletion
	// или ErrInvalidFileName при сбое
	Err error
}

// OK сообщает об успешном выполнении операции.
func (o FileOutcome) OK() bool {
	return o.Err == nil
}

// ReplaceImage применяет изменение изображения цели.
// Порядок: запись → проверка на диске → новый путь → удаление старого файла.
// Если запись не подтверждена, путь и старый файл остаются прежними.
// Если не удалось удалить файл по флагу delete, путь остаётся прежним.
// Возвращает путь изображения для сохранения в записи цели.
func (m *Manager) ReplaceImage(layout Layout, currentImage string, change ImageChange) (string, []FileOutcome) {
	switch {
	case change.Delete:
		return m.deleteImage(layout, currentImage)
	case change.Upload != nil:
		return m.uploadImage(layout, currentImage, change.Upload)
	default:
		return currentImage, nil
	}
}

func (m *Manager) deleteImage(layout Layout, currentImage string) (string, []FileOutcome) {
	name := ImageName(currentImage)
	if name == "" {
		return currentImage, nil
	}

	if err := m.removeFile(m.abs(currentImage)); err != nil {
		return currentImage, []FileOutcome{m.outcome(name, OpImageDelete, err)}
	}
	return layout.ImageDir, []FileOutcome{m.outcome(name, OpImageDelete, nil)}
}

func (m *Manager) uploadImage(layout Layout, currentImage string, up *Upload) (string, []FileOutcome) {
	name, err := baseName(up.Filename)
	if err != nil {
		return currentImage, []FileOutcome{m.outcome(up.Filename, OpImageUpload, err)}
	}

	newImage := path.Join(layout.ImageDir, name)
	if err := m.writeFile(m.abs(newImage), up.Content); err != nil {
		return currentImage, []FileOutcome{m.outcome(name, OpImageUpload, err)}
	}
	outcomes := []FileOutcome{m.outcome(name, OpImageUpload, nil)}

	if old := ImageName(currentImage); old != "" && currentImage != newImage {
		if err := m.removeFile(m.abs(currentImage)); err != nil {
			outcomes = append(outcomes, m.outcome(old, OpImageDelete, err))
		} else {
			outcomes = append(outcomes, m.outcome(old, OpImageDelete, nil))
		}
	}
	return newImage, outcomes
}

// ApplyDatafileChanges удаляет и загружает файлы данных цели.
// Сначала выполняются удаления (по basename, отсутствующие файлы пропускаются),
// затем загрузки (файл с тем же именем перезаписывается). Поэтому удаление и
// повторная загрузка одного имени в одном вызове оставляют новый файл.
func (m *Manager) ApplyDatafileChanges(layout Layout, uploads []Upload, deletions []string) []FileOutcome {
	dir := m.abs(layout.DatafilesDir)
	outcomes := make([]FileOutcome, 0, len(uploads)+len(deletions))

	for _, requested := range deletions {
		name, err := baseName(requested)
		if err != nil {
			outcomes = append(outcomes, m.outcome(requested, OpDatafileDelete, err))
			continue
		}
		full := filepath.Join(dir, name)
		if _, statErr := os.Lstat(full); errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		outcomes = append(outcomes, m.outcome(name, OpDatafileDelete, m.removeFile(full)))
	}

	for _, up := range uploads {
		name, err := baseName(up.Filename)
		if err != nil {
			outcomes = append(outcomes, m.outcome(up.Filename, OpDatafileUpload, err))
			continue
		}
		outcomes = append(outcomes, m.outcome(name, OpDatafileUpload, m.writeFile(filepath.Join(dir, name), up.Content)))
	}

	return outcomes
}

// writeFile записывает поток во временный файл рядом с целевым,
// выполняет fsync и атомарно переименовывает. После записи проверяет,
// что по целевому пути лежит обычный файл.
// Любой сбой возвращается как ErrFileWriteVerification.
func (m *Manager) writeFile(fullPath string, content io.Reader) error {
	if content == nil {
		return fmt.Errorf("%w: %s: пустой поток", ErrFileWriteVerification, filepath.Base(fullPath))
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileWriteVerification, filepath.Base(fullPath), err)
	}

	tmpPath := filepath.Join(dir, tmpPrefix+uuid.NewString()+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: ошибка создания временного файла: %v", ErrFileWriteVerification, err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка записи данных: %v", ErrFileWriteVerification, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка fsync: %v", ErrFileWriteVerification, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка закрытия файла: %v", ErrFileWriteVerification, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: ошибка атомарного переименования: %v", ErrFileWriteVerification, err)
	}

	info, err := os.Stat(fullPath)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrFileWriteVerification, filepath.Base(fullPath))
	}
	return nil
}

// removeFile удаляет файл и проверяет, что его больше нет.
// Отсутствующий файл удалением не считается ошибкой.
func (m *Manager) removeFile(fullPath string) error {
	err := os.Remove(fullPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", ErrFileDeletion, filepath.Base(fullPath), err)
	}
	if _, statErr := os.Lstat(fullPath); statErr == nil {
		return fmt.Errorf("%w: %s", ErrFileDeletion, filepath.Base(fullPath))
	}
	return nil
}

// outcome фиксирует результат операции в метриках и логе.
func (m *Manager) outcome(name string, op Op, err error) FileOutcome {
	if err != nil {
		fileOpsTotal.WithLabelValues(string(op), statusError).Inc()
		m.logger.Warn("Файловая операция не выполнена",
			slog.String("op", string(op)),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	} else {
		fileOpsTotal.WithLabelValues(string(op), statusOK).Inc()
	}
	return FileOutcome{Name: name, Op: op, Err: err}
}

// baseName оставляет от имени только последний элемент пути.
// Защищает от выхода за каталог цели через имена вида ../x.
func baseName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" || strings.HasPrefix(base, tmpPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return base, nil
}
