// Пакет config — загрузка и валидация конфигурации каталога
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации каталога.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения HTTP-запроса
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-ответа (загрузка архивов может быть долгой)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя keep-alive соединения
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Файлы целей ---

	// Корневой каталог медиа-файлов (абсолютный путь)
	MediaRoot string
	// Публичный URL-префикс медиа-файлов (например, /media/)
	MediaURL string
	// Максимальный размер multipart-запроса загрузки файлов
	MaxUploadBytes int64

	// --- JWT ---

	// URL JWKS endpoint провайдера идентификации
	JWTJWKSURL string
	// Ожидаемый issuer JWT (пусто — не проверяется)
	JWTIssuer string
	// Допустимое расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединения с JWKS endpoint (опционально)
	CACertPath string

	// --- Роли ---

	// Группы IdP, дающие права суперпользователя (через запятую)
	RoleAdminGroups []string

	// --- Кэш идентичностей ---

	// Максимальное число записей в кэше локальных идентичностей
	IdentityCacheSize int
	// Время жизни записи кэша
	IdentityCacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DW_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DW_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DW_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DW_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DW_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DW_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DW_LOG_LEVEL: %w", err)
	}

	// DW_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DW_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DW_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DW_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("DW_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_HTTP_READ_TIMEOUT: %w", err)
	}

	// DW_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 5m)
	cfg.HTTPWriteTimeout, err = getEnvDuration("DW_HTTP_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DW_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// DW_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("DW_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// DW_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DW_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DW_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DW_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DW_DB_PORT: %w", err)
	}

	// DW_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DW_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DW_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DW_DB_USER")
	if err != nil {
		return nil, err
	}

	// DW_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DW_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DW_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DW_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DW_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Файлы целей ---

	// DW_MEDIA_ROOT — обязательный, приводится к абсолютному пути
	mediaRoot, err := getEnvRequired("DW_MEDIA_ROOT")
	if err != nil {
		return nil, err
	}
	cfg.MediaRoot, err = filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("DW_MEDIA_ROOT: %w", err)
	}

	// DW_MEDIA_URL — URL-префикс медиа (по умолчанию /media/), всегда с / на концах
	cfg.MediaURL = "/" + strings.Trim(getEnvDefault("DW_MEDIA_URL", "/media/"), "/") + "/"
	if cfg.MediaURL == "//" {
		return nil, fmt.Errorf("DW_MEDIA_URL: префикс не может быть корнем")
	}

	// DW_MAX_UPLOAD_BYTES — лимит размера загрузки (по умолчанию 512 MB)
	cfg.MaxUploadBytes, err = getEnvInt64("DW_MAX_UPLOAD_BYTES", 512<<20)
	if err != nil {
		return nil, fmt.Errorf("DW_MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("DW_MAX_UPLOAD_BYTES: значение должно быть положительным")
	}

	// --- JWT ---

	// DW_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("DW_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// DW_JWT_ISSUER — ожидаемый issuer (опционально)
	cfg.JWTIssuer = getEnvDefault("DW_JWT_ISSUER", "")

	// DW_JWT_LEEWAY — расхождение часов (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("DW_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_JWT_LEEWAY: %w", err)
	}

	// DW_JWKS_REFRESH_INTERVAL — обновление JWKS (по умолчанию 15m)
	cfg.JWKSRefreshInterval, err = getEnvDuration("DW_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DW_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// DW_JWKS_CLIENT_TIMEOUT — таймаут запроса JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("DW_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// DW_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("DW_CA_CERT_PATH", "")

	// --- Роли ---

	// DW_ROLE_ADMIN_GROUPS — группы суперпользователей (по умолчанию "dwarfs-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("DW_ROLE_ADMIN_GROUPS", "dwarfs-admins"))

	// --- Кэш идентичностей ---

	// DW_IDENTITY_CACHE_SIZE — размер кэша (по умолчанию 1000)
	cfg.IdentityCacheSize, err = getEnvInt("DW_IDENTITY_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("DW_IDENTITY_CACHE_SIZE: %w", err)
	}
	if cfg.IdentityCacheSize < 1 {
		return nil, fmt.Errorf("DW_IDENTITY_CACHE_SIZE: значение %d должно быть положительным", cfg.IdentityCacheSize)
	}

	// DW_IDENTITY_CACHE_TTL — время жизни записи (по умолчанию 1m)
	cfg.IdentityCacheTTL, err = getEnvDuration("DW_IDENTITY_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DW_IDENTITY_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// DW_DEPHEALTH_GROUP — группа сервиса (по умолчанию dwarfs)
	cfg.DephealthGroup = getEnvDefault("DW_DEPHEALTH_GROUP", "dwarfs")

	// DW_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DW_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// DW_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DW_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DW_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает строку подключения в URL-формате (для topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
