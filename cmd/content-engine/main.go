// Точка входа Content Engine — дерево контента и публикация документов.
// Загружает конфигурацию и реестр языков, подключает хранилище
// (PostgreSQL с миграциями или in-memory), создаёт сервисный слой,
// запускает фоновые задачи (плановая публикация, topologymetrics)
// и операционный HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/content-engine/internal/api/handlers"
	"github.com/bigkaa/goartstore/content-engine/internal/config"
	"github.com/bigkaa/goartstore/content-engine/internal/database"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/language"
	"github.com/bigkaa/goartstore/content-engine/internal/memstore"
	"github.com/bigkaa/goartstore/content-engine/internal/operation"
	"github.com/bigkaa/goartstore/content-engine/internal/publishing"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
	"github.com/bigkaa/goartstore/content-engine/internal/server"
	"github.com/bigkaa/goartstore/content-engine/internal/service"
	"github.com/bigkaa/goartstore/content-engine/internal/validation"
)

// storage — коллабораторы хранения выбранного режима.
type storage struct {
	scopes    service.ScopeProvider
	entities  repository.EntityRepository
	documents repository.DocumentStore
	relations repository.RelationRepository
	actors    repository.ActorRepository
	checks    []handlers.NamedChecker
	closeFn   func()
}

func main() {
	// 1. Конфигурация и логирование
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Content Engine запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.Storage),
	)

	// 2. Реестр языков
	languages, err := language.LoadFile(cfg.LanguagesFile)
	if err != nil {
		logger.Error("Ошибка загрузки языков", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.LanguagesFile == "" {
		logger.Warn("CE_LANGUAGES_FILE не задана, используется язык по умолчанию",
			slog.String("default", language.DefaultLanguages[0].IsoCode),
		)
	}

	ctx := context.Background()

	// 3. Хранилище
	var (
		store        *storage
		dephealthSvc *service.DephealthService
	)
	switch cfg.Storage {
	case config.StorageMemory:
		store = openMemory(logger)
	default:
		store, dephealthSvc, err = openPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	defer store.closeFn()

	// 4. Фоновые операции
	tracker := operation.NewTracker(logger,
		operation.WithWorkers(cfg.OperationWorkers),
		operation.WithRetention(cfg.OperationMaxResults, cfg.OperationRetention),
	)

	// 5. Сервисный слой
	mutator := publishing.NewMutator(store.documents, languages, logger)
	variants := service.NewVariantAggregator(store.entities, cfg.MaxParameterCount, logger)
	entities := service.NewEntityService(store.entities, variants, logger)
	publisher := service.NewContentPublishingService(
		store.scopes,
		mutator,
		store.documents,
		store.actors,
		store.relations,
		languages,
		validation.New(),
		tracker,
		service.PublishingSettings{
			DisableUnpublishWhenReferenced: cfg.DisableUnpublishWhenReferenced,
		},
		logger,
	)

	documents, err := entities.Count(ctx, model.ObjectTypeDocument, nil)
	if err != nil {
		logger.Error("Ошибка чтения дерева контента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Дерево контента доступно", slog.Int64("documents", documents))

	// 6. Плановая публикация
	scheduler := service.NewSchedulePublisher(store.scopes, mutator, cfg.ScheduleInterval, logger)
	scheduler.Start(ctx)

	// 7. HTTP-сервер
	checks := append(store.checks, handlers.NamedChecker{Name: "publishing", Checker: publisher})
	health := handlers.NewHealthHandler(checks...)
	srv := server.New(cfg, logger, health)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
	}

	// 8. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	scheduler.Stop()

	stopCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := tracker.Stop(stopCtx); err != nil {
		logger.Warn("Фоновые операции не завершились вовремя", slog.String("error", err.Error()))
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Content Engine остановлен")
}

// openMemory создаёт in-memory хранилище.
func openMemory(logger *slog.Logger) *storage {
	store := memstore.New(logger)
	logger.Warn("Хранилище в памяти: данные не сохраняются между перезапусками")
	return &storage{
		scopes:    store,
		entities:  store,
		documents: store,
		relations: store,
		actors:    store,
		checks: []handlers.NamedChecker{{
			Name:    "storage",
			Checker: handlers.StaticChecker{Status: "ok", Message: "in-memory"},
		}},
		closeFn: func() {},
	}
}

// openPostgres применяет миграции, открывает пул и запускает мониторинг PostgreSQL.
// Ошибка topologymetrics не прерывает запуск.
func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, *service.DephealthService, error) {
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)

	dephealthSvc, err := service.NewDephealthService(
		"content-engine",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL("postgres"),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	return &storage{
		scopes:    repository.NewScopeProvider(pool),
		entities:  repository.NewEntityRepository(pool),
		documents: repository.NewContentRepository(pool),
		relations: repository.NewRelationRepository(pool),
		actors:    repository.NewActorRepository(pool),
		checks: []handlers.NamedChecker{{
			Name:    "postgresql",
			Checker: database.NewPoolChecker(pool, cfg.DBReadyTimeout),
		}},
		closeFn: func() {
			_ = pgDB.Close()
			pool.Close()
		},
	}, dephealthSvc, nil
}
