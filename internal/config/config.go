// Пакет config — загрузка и валидация конфигурации Content Engine
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Режимы хранения.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config содержит все параметры конфигурации Content Engine.
type Config struct {
	// --- Сервер ---

	// Порт операционного HTTP-сервера (health, metrics)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Хранилище ---

	// Storage — postgres или memory
	Storage string

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
	// Максимум соединений в пуле
	DBMaxConns int
	// Минимум простаивающих соединений в пуле
	DBMinConns int
	// Таймаут ping при проверке готовности
	DBReadyTimeout time.Duration

	// --- Контент ---

	// Путь к YAML-файлу языков (пусто — только en-US)
	LanguagesFile string
	// Предел идентификаторов в одном запросе культур
	MaxParameterCount int
	// Запрет снятия с публикации документов, на которые есть ссылки
	DisableUnpublishWhenReferenced bool

	// --- Фоновые операции ---

	// Число одновременно выполняемых фоновых операций
	OperationWorkers int
	// Время хранения результатов завершённых операций
	OperationRetention time.Duration
	// Максимум хранимых результатов операций
	OperationMaxResults int
	// Интервал проверки расписаний публикации
	ScheduleInterval time.Duration

	// --- topologymetrics ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CE_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("CE_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CE_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CE_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CE_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CE_LOG_LEVEL: %w", err)
	}

	// CE_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CE_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CE_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Хранилище ---

	// CE_STORAGE — режим хранения (по умолчанию postgres)
	cfg.Storage = getEnvDefault("CE_STORAGE", StoragePostgres)
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("CE_STORAGE: недопустимое значение %q, допустимые: postgres, memory", cfg.Storage)
	}

	// --- PostgreSQL ---

	if cfg.Storage == StoragePostgres {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Контент ---

	// CE_LANGUAGES_FILE — YAML-файл языков (опционально)
	cfg.LanguagesFile = getEnvDefault("CE_LANGUAGES_FILE", "")

	// CE_MAX_PARAMETER_COUNT — предел параметров запроса (по умолчанию 2000)
	cfg.MaxParameterCount, err = getEnvInt("CE_MAX_PARAMETER_COUNT", 2000)
	if err != nil {
		return nil, fmt.Errorf("CE_MAX_PARAMETER_COUNT: %w", err)
	}
	if cfg.MaxParameterCount < 1 || cfg.MaxParameterCount > 65535 {
		return nil, fmt.Errorf("CE_MAX_PARAMETER_COUNT: значение %d вне допустимого диапазона 1-65535", cfg.MaxParameterCount)
	}

	// CE_DISABLE_UNPUBLISH_WHEN_REFERENCED — по умолчанию false
	cfg.DisableUnpublishWhenReferenced, err = getEnvBool("CE_DISABLE_UNPUBLISH_WHEN_REFERENCED", false)
	if err != nil {
		return nil, fmt.Errorf("CE_DISABLE_UNPUBLISH_WHEN_REFERENCED: %w", err)
	}

	// --- Фоновые операции ---

	// CE_OPERATION_WORKERS — параллельные фоновые операции (по умолчанию 4)
	cfg.OperationWorkers, err = getEnvInt("CE_OPERATION_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("CE_OPERATION_WORKERS: %w", err)
	}
	if cfg.OperationWorkers < 1 || cfg.OperationWorkers > 256 {
		return nil, fmt.Errorf("CE_OPERATION_WORKERS: значение %d вне допустимого диапазона 1-256", cfg.OperationWorkers)
	}

	// CE_OPERATION_RETENTION — хранение результатов (по умолчанию 1h)
	cfg.OperationRetention, err = getEnvDuration("CE_OPERATION_RETENTION", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CE_OPERATION_RETENTION: %w", err)
	}

	// CE_OPERATION_MAX_RESULTS — максимум результатов (по умолчанию 1000)
	cfg.OperationMaxResults, err = getEnvInt("CE_OPERATION_MAX_RESULTS", 1000)
	if err != nil {
		return nil, fmt.Errorf("CE_OPERATION_MAX_RESULTS: %w", err)
	}
	if cfg.OperationMaxResults < 1 {
		return nil, fmt.Errorf("CE_OPERATION_MAX_RESULTS: значение %d должно быть положительным", cfg.OperationMaxResults)
	}

	// CE_SCHEDULE_INTERVAL — интервал проверки расписаний (по умолчанию 1m)
	cfg.ScheduleInterval, err = getEnvDuration("CE_SCHEDULE_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CE_SCHEDULE_INTERVAL: %w", err)
	}
	if cfg.ScheduleInterval <= 0 {
		return nil, fmt.Errorf("CE_SCHEDULE_INTERVAL: значение должно быть положительным")
	}

	// --- topologymetrics ---

	// CE_DEPHEALTH_GROUP — группа сервиса (по умолчанию content-engine)
	cfg.DephealthGroup = getEnvDefault("CE_DEPHEALTH_GROUP", "content-engine")

	// CE_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CE_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CE_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// CE_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CE_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CE_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL; обязательны в режиме postgres.
func loadDatabase(cfg *Config) error {
	var err error

	// CE_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CE_DB_HOST")
	if err != nil {
		return err
	}

	// CE_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CE_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("CE_DB_PORT: %w", err)
	}

	// CE_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CE_DB_NAME")
	if err != nil {
		return err
	}

	// CE_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CE_DB_USER")
	if err != nil {
		return err
	}

	// CE_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CE_DB_PASSWORD")
	if err != nil {
		return err
	}

	// CE_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CE_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("CE_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// CE_DB_MAX_CONNS — размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("CE_DB_MAX_CONNS", 10)
	if err != nil {
		return fmt.Errorf("CE_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return fmt.Errorf("CE_DB_MAX_CONNS: значение %d должно быть >= 1", cfg.DBMaxConns)
	}

	// CE_DB_MIN_CONNS — не больше CE_DB_MAX_CONNS (по умолчанию 1)
	cfg.DBMinConns, err = getEnvInt("CE_DB_MIN_CONNS", 1)
	if err != nil {
		return fmt.Errorf("CE_DB_MIN_CONNS: %w", err)
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("CE_DB_MIN_CONNS: значение %d вне диапазона 0-%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	// CE_DB_READY_TIMEOUT — таймаут ping для /health/ready (по умолчанию 3s)
	cfg.DBReadyTimeout, err = getEnvDuration("CE_DB_READY_TIMEOUT", 3*time.Second)
	if err != nil {
		return fmt.Errorf("CE_DB_READY_TIMEOUT: %w", err)
	}
	if cfg.DBReadyTimeout <= 0 {
		return fmt.Errorf("CE_DB_READY_TIMEOUT: значение должно быть > 0")
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (формат postgres://) для
// golang-migrate и topologymetrics.
func (c *Config) DatabaseURL(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
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
