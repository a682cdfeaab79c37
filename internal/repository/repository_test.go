package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/content-engine/internal/config"
	"github.com/bigkaa/goartstore/content-engine/internal/database"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/query"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("content_test"),
		postgres.WithUsername("content"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("CE_STORAGE", config.StoragePostgres)
	t.Setenv("CE_DB_HOST", host)
	t.Setenv("CE_DB_PORT", port.Port())
	t.Setenv("CE_DB_NAME", "content_test")
	t.Setenv("CE_DB_USER", "content")
	t.Setenv("CE_DB_PASSWORD", "test-password")
	t.Setenv("CE_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

type seededNode struct {
	ID   int64
	Key  uuid.UUID
	Path string
}

// seedNode вставляет узел; parent == nil — верхний уровень.
func seedNode(t *testing.T, pool *pgxpool.Pool, parent *seededNode, objectType model.ObjectType, name string, sortOrder int) seededNode {
	t.Helper()
	ctx := context.Background()

	var id int64
	if err := pool.QueryRow(ctx, `SELECT nextval('node_id_seq')`).Scan(&id); err != nil {
		t.Fatalf("nextval: %v", err)
	}
	parentID, parentPath := model.RootID, ""
	if parent != nil {
		parentID, parentPath = parent.ID, parent.Path
	}
	n := seededNode{ID: id, Key: uuid.New(), Path: model.BuildPath(parentPath, id)}
	_, err := pool.Exec(ctx, `
		INSERT INTO node (id, unique_id, parent_id, level, path, sort_order, object_type, name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Key, parentID, model.LevelOf(n.Path), n.Path, sortOrder, string(objectType), name,
	)
	if err != nil {
		t.Fatalf("вставка узла %s: %v", name, err)
	}
	return n
}

// seedContentType вставляет тип контента.
func seedContentType(t *testing.T, pool *pgxpool.Pool, alias string, varies bool, props []model.PropertyType) seededNode {
	t.Helper()
	n := seedNode(t, pool, nil, model.ObjectTypeOther, alias, 0)
	if props == nil {
		props = []model.PropertyType{}
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO content_type (node_id, alias, varies_by_culture, property_types)
		VALUES ($1, $2, $3, $4)`, n.ID, alias, varies, props)
	if err != nil {
		t.Fatalf("вставка типа контента %s: %v", alias, err)
	}
	return n
}

// seedDocument вставляет документ с текущей версией и состоянием публикации.
func seedDocument(t *testing.T, pool *pgxpool.Pool, parent *seededNode, ct seededNode, name string, sortOrder int) seededNode {
	t.Helper()
	ctx := context.Background()
	n := seedNode(t, pool, parent, model.ObjectTypeDocument, name, sortOrder)
	if _, err := pool.Exec(ctx,
		`INSERT INTO content (node_id, content_type_id) VALUES ($1, $2)`, n.ID, ct.ID); err != nil {
		t.Fatalf("вставка контента %s: %v", name, err)
	}
	for _, stmt := range []string{
		`INSERT INTO content_version (node_id) VALUES ($1)`,
		`INSERT INTO document (node_id) VALUES ($1)`,
	} {
		if _, err := pool.Exec(ctx, stmt, n.ID); err != nil {
			t.Fatalf("вставка документа %s: %v", name, err)
		}
	}
	return n
}

// seedTree создаёт корневой документ и n детей C0..Cn-1.
func seedTree(t *testing.T, pool *pgxpool.Pool, n int) (seededNode, []seededNode) {
	t.Helper()
	ct := seedContentType(t, pool, "page", false, nil)
	root := seedDocument(t, pool, nil, ct, "root", 0)
	children := make([]seededNode, n)
	for i := range n {
		children[i] = seedDocument(t, pool, &root, ct, fmt.Sprintf("C%d", i), i)
	}
	return root, children
}

func TestEntityRepository_SiblingWindow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewEntityRepository(pool)
	_, children := seedTree(t, pool, 10)

	window := func(target uuid.UUID) []uuid.UUID {
		keys, err := repo.GetSiblingKeys(ctx, SiblingQuery{
			TargetKey: target,
			Before:    1,
			After:     1,
			Ordering:  model.DefaultOrdering().WithTiebreak(),
		})
		if err != nil {
			t.Fatalf("GetSiblingKeys() вернул ошибку: %v", err)
		}
		return keys
	}

	got := window(children[1].Key)
	want := []uuid.UUID{children[0].Key, children[1].Key, children[2].Key}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("окно C1 = %v, ожидалось %v", got, want)
	}

	if _, err := pool.Exec(ctx, `UPDATE node SET trashed = TRUE WHERE id = $1`, children[1].ID); err != nil {
		t.Fatalf("перемещение в корзину: %v", err)
	}
	got = window(children[2].Key)
	want = []uuid.UUID{children[0].Key, children[2].Key, children[3].Key}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("окно C2 после удаления C1 = %v, ожидалось %v", got, want)
	}
	if got := window(children[1].Key); len(got) != 0 {
		t.Errorf("окно цели в корзине = %v, ожидался пустой результат", got)
	}
}

func TestEntityRepository_Paging(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewEntityRepository(pool)
	root, _ := seedTree(t, pool, 10)

	seen := map[int64]bool{}
	for page := int64(0); page < 2; page++ {
		items, total, err := repo.GetPage(ctx, EntityQuery{
			ObjectTypes: []model.ObjectType{model.ObjectTypeDocument},
			Where:       query.Eq(query.FieldParentID, root.ID),
			Ordering:    model.DefaultOrdering().WithTiebreak(),
			PageIndex:   page,
			PageSize:    6,
		})
		if err != nil {
			t.Fatalf("GetPage() вернул ошибку: %v", err)
		}
		if total != 10 {
			t.Errorf("total = %d, ожидалось 10", total)
		}
		for _, e := range items {
			if seen[e.ID] {
				t.Errorf("узел %d встречается дважды", e.ID)
			}
			seen[e.ID] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("страницы покрывают %d узлов, ожидалось 10", len(seen))
	}

	e, err := repo.GetByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if e.ChildCount != 10 || e.Content == nil || e.Content.ContentTypeAlias != "page" || e.Document == nil {
		t.Errorf("корень: ChildCount=%d Content=%+v Document=%+v", e.ChildCount, e.Content, e.Document)
	}

	n, err := repo.Count(ctx, EntityQuery{
		ObjectTypes: []model.ObjectType{model.ObjectTypeDocument},
		Where:       query.HasPrefix(query.FieldPath, root.Path+","),
	})
	if err != nil || n != 10 {
		t.Errorf("Count(потомки) = %d, %v", n, err)
	}
}

func TestEntityRepository_ReserveID(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewEntityRepository(pool)
	key := uuid.New()

	id, err := repo.ReserveID(ctx, key)
	if err != nil {
		t.Fatalf("ReserveID() вернул ошибку: %v", err)
	}
	got, err := repo.GetID(ctx, key, model.ObjectTypeMedia)
	if err != nil || got != id {
		t.Errorf("GetID(резерв) = %d, %v; ожидалось %d", got, err, id)
	}
	if _, err := repo.ReserveID(ctx, key); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный ReserveID() ошибка = %v, ожидалась ErrConflict", err)
	}
	if _, err := repo.GetID(ctx, uuid.New(), model.ObjectTypeDocument); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetID(неизвестный) ошибка = %v, ожидалась ErrNotFound", err)
	}
}

func TestContentRepository_SaveContent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewContentRepository(pool)

	ct := seedContentType(t, pool, "product", true, []model.PropertyType{{Alias: "name", VariesByCulture: true}})
	doc := seedDocument(t, pool, nil, ct, "product", 0)

	c, err := repo.GetContentByKey(ctx, doc.Key)
	if err != nil {
		t.Fatalf("GetContentByKey() вернул ошибку: %v", err)
	}
	if !c.VariesByCulture() || len(c.ContentType.Properties) != 1 {
		t.Fatalf("тип контента загружен неверно: %+v", c.ContentType)
	}
	stale := c.Clone()

	c.Published = true
	c.Edited = false
	c.Cultures["en-US"] = &model.CultureVariant{Culture: "en-US", Name: "Product", Available: true, Published: true}
	c.PublishedVersion = &model.PublishedVersion{VersionID: c.Version.ID, PublishedAt: time.Now().UTC(), PublisherID: -1}
	if err := repo.SaveContent(ctx, c); err != nil {
		t.Fatalf("SaveContent() вернул ошибку: %v", err)
	}

	if err := repo.SaveContent(ctx, stale); !errors.Is(err, ErrConcurrencyViolation) {
		t.Errorf("SaveContent(устаревшая версия) ошибка = %v, ожидалась ErrConcurrencyViolation", err)
	}

	reloaded, err := repo.GetContentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetContentByID() вернул ошибку: %v", err)
	}
	if !reloaded.Published || !reloaded.IsCulturePublished("en-US") || reloaded.PublishedVersion == nil {
		t.Errorf("после сохранения: Published=%v cultures=%v pv=%+v",
			reloaded.Published, reloaded.PublishedCultures(), reloaded.PublishedVersion)
	}

	infos, err := NewEntityRepository(pool).GetVariantInfos(ctx, []int64{doc.ID})
	if err != nil || len(infos) != 1 || infos[0].Culture != "en-US" || !infos[0].Published {
		t.Errorf("GetVariantInfos() = %+v, %v", infos, err)
	}
}

func TestContentRepository_Schedule(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewContentRepository(pool)
	_, children := seedTree(t, pool, 1)
	doc := children[0]

	now := time.Now().UTC().Truncate(time.Second)
	sc := model.NewScheduleCollection()
	sc.AddOrUpdate("*", now.Add(-time.Minute), model.ScheduleActionRelease)
	sc.AddOrUpdate("*", now.Add(time.Hour), model.ScheduleActionExpire)
	if err := repo.SaveSchedule(ctx, doc.ID, sc); err != nil {
		t.Fatalf("SaveSchedule() вернул ошибку: %v", err)
	}

	loaded, err := repo.GetSchedule(ctx, doc.ID)
	if err != nil || loaded.Len() != 2 {
		t.Fatalf("GetSchedule() = %d записей, %v", loaded.Len(), err)
	}
	ids, err := repo.GetScheduledNodeIDs(ctx, now)
	if err != nil || len(ids) != 1 || ids[0] != doc.ID {
		t.Errorf("GetScheduledNodeIDs() = %v, %v", ids, err)
	}
}

func TestScopeProvider_Rollback(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewContentRepository(pool)
	scopes := NewScopeProvider(pool)
	_, children := seedTree(t, pool, 1)
	doc := children[0]

	save := func(complete bool) {
		scopeCtx, sc, err := scopes.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin() вернул ошибку: %v", err)
		}
		s := model.NewScheduleCollection()
		s.AddOrUpdate("*", time.Now().Add(time.Hour), model.ScheduleActionRelease)
		if err := repo.SaveSchedule(scopeCtx, doc.ID, s); err != nil {
			t.Fatalf("SaveSchedule() вернул ошибку: %v", err)
		}
		if complete {
			sc.Complete()
		}
		if err := sc.Close(); err != nil {
			t.Fatalf("Close() вернул ошибку: %v", err)
		}
	}

	save(false)
	if s, _ := repo.GetSchedule(ctx, doc.ID); s.Len() != 0 {
		t.Errorf("незавершённая единица работы должна откатываться, записей: %d", s.Len())
	}
	save(true)
	if s, _ := repo.GetSchedule(ctx, doc.ID); s.Len() != 1 {
		t.Errorf("завершённая единица работы должна фиксироваться, записей: %d", s.Len())
	}
}

func TestRelationAndActorRepositories(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	root, children := seedTree(t, pool, 1)

	if _, err := pool.Exec(ctx,
		`INSERT INTO relation (parent_id, child_id, is_dependency) VALUES ($1, $2, TRUE)`,
		root.ID, children[0].ID); err != nil {
		t.Fatalf("вставка связи: %v", err)
	}
	relations := NewRelationRepository(pool)
	if ok, err := relations.IsReferenced(ctx, children[0].ID); err != nil || !ok {
		t.Errorf("IsReferenced(child) = %v, %v", ok, err)
	}
	if ok, err := relations.IsReferenced(ctx, root.ID); err != nil || ok {
		t.Errorf("IsReferenced(root) = %v, %v", ok, err)
	}

	actors := NewActorRepository(pool)
	if id, err := actors.GetActorID(ctx, uuid.Nil); err != nil || id != model.SystemActorID {
		t.Errorf("GetActorID(system) = %d, %v", id, err)
	}
	if _, err := actors.GetActorID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActorID(неизвестный) ошибка = %v, ожидалась ErrNotFound", err)
	}
}
