// download.go — список файлов данных цели и выдача их для скачивания:
// один файл как есть, несколько — zip-архивом, собираемым на лету.
package targetfiles

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo — файл данных цели.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListDatafiles возвращает файлы данных цели, отсортированные по имени.
// Отсутствующий каталог — пустой список. Временные файлы незавершённых записей не показываются.
func (m *Manager) ListDatafiles(datafilesPath string) ([]FileInfo, error) {
	if datafilesPath == "" {
		return []FileInfo{}, nil
	}

	entries, err := os.ReadDir(m.abs(datafilesPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения каталога %s: %w", datafilesPath, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	return files, nil
}

// OpenDatafile открывает один файл данных цели для скачивания.
// Имя сводится к basename. Вызывающий код обязан закрыть файл.
func (m *Manager) OpenDatafile(datafilesPath, name string) (*os.File, os.FileInfo, error) {
	base, err := baseName(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(m.abs(datafilesPath), base))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, base)
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", base, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", base, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, base)
	}
	return f, info, nil
}

// WriteArchive пишет в w zip-архив с выбранными файлами данных.
// В архиве только basename файлов; отсутствующие и повторяющиеся имена пропускаются.
// Возвращает количество добавленных файлов.
func (m *Manager) WriteArchive(w io.Writer, datafilesPath string, names []string) (int, error) {
	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(names))
	added := 0

	for _, requested := range names {
		base, err := baseName(requested)
		if err != nil || seen[base] {
			continue
		}
		seen[base] = true

		ok, err := m.addToArchive(zw, filepath.Join(m.abs(datafilesPath), base), base)
		if err != nil {
			zw.Close()
			fileOpsTotal.WithLabelValues("archive", statusError).Inc()
			return added, err
		}
		if ok {
			added++
		}
	}

	if err := zw.Close(); err != nil {
		fileOpsTotal.WithLabelValues("archive", statusError).Inc()
		return added, fmt.Errorf("ошибка завершения архива: %w", err)
	}
	fileOpsTotal.WithLabelValues("archive", statusOK).Inc()
	return added, nil
}

// addToArchive добавляет файл в архив. false без ошибки — файла нет.
func (m *Manager) addToArchive(zw *zip.Writer, fullPath, arcName string) (bool, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка открытия файла %s: %w", arcName, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("ошибка получения информации о файле %s: %w", arcName, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, fmt.Errorf("ошибка заголовка архива для %s: %w", arcName, err)
	}
	header.Name = arcName
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("ошибка добавления %s в архив: %w", arcName, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return false, fmt.Errorf("ошибка записи %s в архив: %w", arcName, err)
	}
	return true, nil
}

// ArchiveName возвращает имя zip-архива для цели: <safe>_files.zip.
func ArchiveName(targetName string) string {
	safe := SanitizeFilename(targetName)
	if safe == "" {
		return "files.zip"
	}
	return safe + "_files.zip"
}
