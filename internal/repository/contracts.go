package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/query"
)

// EntityQuery — параметры выборки узлов.
type EntityQuery struct {
	// ObjectTypes — допустимые типы (обязателен хотя бы один)
	ObjectTypes []model.ObjectType
	// Where — основной предикат
	Where query.Expr
	// Filter — дополнительный предикат вызывающего
	Filter query.Expr
	// Ordering — сортировка (уже с тай-брейком по id)
	Ordering model.Ordering
	// PageIndex — номер страницы с нуля
	PageIndex int64
	// PageSize — размер страницы; 0 — без постраничной разбивки
	PageSize int
}

// SiblingQuery — параметры окна соседей.
type SiblingQuery struct {
	TargetKey uuid.UUID
	Before    int
	After     int
	// Ordering — сортировка (уже с тай-брейком по id)
	Ordering model.Ordering
}

// EntityRepository — чтение дерева узлов.
type EntityRepository interface {
	// GetByKey возвращает узел по ключу; ErrNotFound, если узла нет.
	GetByKey(ctx context.Context, key uuid.UUID) (*model.EntitySlim, error)
	// GetByID возвращает узел по идентификатору; ErrNotFound, если узла нет.
	GetByID(ctx context.Context, id int64) (*model.EntitySlim, error)
	// GetPage возвращает страницу узлов и общее число совпадений.
	// ChildCount считается по детям типов из q.ObjectTypes.
	GetPage(ctx context.Context, q EntityQuery) ([]*model.EntitySlim, int64, error)
	// Count возвращает число узлов, удовлетворяющих запросу.
	Count(ctx context.Context, q EntityQuery) (int64, error)
	// GetSiblingKeys возвращает ключи окна соседей в порядке ранга.
	GetSiblingKeys(ctx context.Context, q SiblingQuery) ([]uuid.UUID, error)
	// GetByKeys возвращает узлы типа objectType с указанными ключами (порядок не гарантирован).
	GetByKeys(ctx context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]*model.EntitySlim, error)
	// GetByIDs возвращает узлы типа objectType с указанными идентификаторами.
	GetByIDs(ctx context.Context, objectType model.ObjectType, ids []int64) ([]*model.EntitySlim, error)
	// GetPaths возвращает пути узлов типа; пустой ids — все узлы типа.
	GetPaths(ctx context.Context, objectType model.ObjectType, ids []int64) ([]model.TreeEntityPath, error)
	// GetPathsByKeys возвращает пути узлов типа по ключам.
	GetPathsByKeys(ctx context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]model.TreeEntityPath, error)
	// GetObjectType возвращает тип объекта; ErrNotFound, если узла нет.
	GetObjectType(ctx context.Context, id int64) (model.ObjectType, error)
	// GetObjectTypeByKey возвращает тип объекта по ключу.
	GetObjectTypeByKey(ctx context.Context, key uuid.UUID) (model.ObjectType, error)
	// ExistsByKey — узел существует; пустой objectType — любого типа.
	ExistsByKey(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (bool, error)
	// ExistsByID — узел существует; пустой objectType — любого типа.
	ExistsByID(ctx context.Context, id int64, objectType model.ObjectType) (bool, error)
	// CountExisting возвращает число существующих узлов среди ключей.
	CountExisting(ctx context.Context, keys []uuid.UUID) (int, error)
	// ReserveID резервирует идентификатор под ключ; ErrConflict, если ключ занят.
	ReserveID(ctx context.Context, key uuid.UUID) (int64, error)
	// GetID возвращает идентификатор узла типа objectType или резерва; ErrNotFound, если нет.
	GetID(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (int64, error)
	// GetVariantInfos возвращает сведения о культурах документов.
	GetVariantInfos(ctx context.Context, ids []int64) ([]model.VariantInfo, error)
}

// ContentRepository — хранилище документов для операций публикации.
type ContentRepository interface {
	// GetContentByKey загружает документ; ErrNotFound, если нет.
	GetContentByKey(ctx context.Context, key uuid.UUID) (*model.Content, error)
	// GetContentByID загружает документ; ErrNotFound, если нет.
	GetContentByID(ctx context.Context, id int64) (*model.Content, error)
	// IsPathPublished — все предки документа опубликованы.
	IsPathPublished(ctx context.Context, c *model.Content) (bool, error)
	// SaveContent сохраняет состояние публикации.
	// ErrConcurrencyViolation, если RowVersion не совпадает с сохранённой;
	// при успехе RowVersion экземпляра увеличивается.
	SaveContent(ctx context.Context, c *model.Content) error
	// GetDescendantIDs — документы поддерева вне корзины по уровню и sortOrder.
	GetDescendantIDs(ctx context.Context, root *model.Content) ([]int64, error)
	// GetSchedule загружает расписание документа.
	GetSchedule(ctx context.Context, nodeID int64) (*model.ScheduleCollection, error)
	// SaveSchedule заменяет расписание документа.
	SaveSchedule(ctx context.Context, nodeID int64, s *model.ScheduleCollection) error
	// GetScheduledNodeIDs — документы с записями расписания не позже dueBefore.
	GetScheduledNodeIDs(ctx context.Context, dueBefore time.Time) ([]int64, error)
}

// ContentTypeRepository — чтение типов контента.
type ContentTypeRepository interface {
	GetContentTypeByKey(ctx context.Context, key uuid.UUID) (*model.ContentType, error)
}

// DocumentStore — документы вместе с их типами.
type DocumentStore interface {
	ContentRepository
	ContentTypeRepository
}

// RelationRepository — связи между узлами.
type RelationRepository interface {
	// IsReferenced — на узел ссылаются другие узлы.
	IsReferenced(ctx context.Context, nodeID int64) (bool, error)
}

// ActorRepository — сопоставление ключей пользователей с идентификаторами.
type ActorRepository interface {
	GetActorID(ctx context.Context, key uuid.UUID) (int64, error)
}
