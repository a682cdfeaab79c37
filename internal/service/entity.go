// entity.go — сервис чтения дерева узлов.
//
// EntityService отвечает на иерархические запросы: дети, потомки, соседи,
// пути предков. Потомки выбираются по префиксу пути, а не рекурсивным
// соединением, поэтому стоимость не зависит от глубины поддерева.
// Любая сортировка дополняется тай-брейком по id.
//
// Prometheus-метрики:
//   - ce_query_total — количество запросов (по операции и результату)
//   - ce_query_duration_seconds — длительность запросов
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/query"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ce_query_total",
		Help: "Количество запросов к дереву узлов",
	}, []string{"operation", "result"}) // result: ok, error

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ce_query_duration_seconds",
		Help:    "Длительность запросов к дереву узлов",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// PageRequest — параметры постраничной выборки.
type PageRequest struct {
	// PageIndex — номер страницы с нуля
	PageIndex int64
	// PageSize — размер страницы (> 0)
	PageSize int
	// Ordering — сортировка; пустая — по sortOrder
	Ordering model.Ordering
	// Filter — дополнительный предикат
	Filter query.Expr
}

// EntityService — сервис чтения дерева узлов.
// Варьируемые документы в результатах дополняются сведениями о культурах.
type EntityService struct {
	repo     repository.EntityRepository
	variants *VariantAggregator
	logger   *slog.Logger
}

// NewEntityService создаёт сервис чтения дерева.
// variants == nil — сведения о культурах не загружаются.
func NewEntityService(repo repository.EntityRepository, variants *VariantAggregator, logger *slog.Logger) *EntityService {
	return &EntityService{
		repo:     repo,
		variants: variants,
		logger:   logger.With(slog.String("component", "entity_service")),
	}
}

func (s *EntityService) attach(ctx context.Context, items ...*model.EntitySlim) error {
	if s.variants == nil {
		return nil
	}
	return s.variants.Attach(ctx, items...)
}

// observe записывает метрики запроса.
func observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	queryTotal.WithLabelValues(operation, result).Inc()
	queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// normalizeOrdering проверяет сортировку и добавляет тай-брейк по id.
func normalizeOrdering(o model.Ordering) (model.Ordering, error) {
	if err := o.Validate(); err != nil {
		return model.Ordering{}, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}
	return o.WithTiebreak(), nil
}

func validatePage(req PageRequest) error {
	if req.PageIndex < 0 || req.PageSize <= 0 {
		return ErrInvalidPaging
	}
	return nil
}

// GetByKey возвращает узел по ключу; nil, если узла нет.
func (s *EntityService) GetByKey(ctx context.Context, key uuid.UUID) (e *model.EntitySlim, err error) {
	defer func(start time.Time) { observe("get_by_key", start, err) }(time.Now())

	e, err = s.repo.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, s.attach(ctx, e)
}

// GetByID возвращает узел по идентификатору; nil, если узла нет.
func (s *EntityService) GetByID(ctx context.Context, id int64) (e *model.EntitySlim, err error) {
	defer func(start time.Time) { observe("get_by_id", start, err) }(time.Now())

	e, err = s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, s.attach(ctx, e)
}

// GetByKeyOfType возвращает узел по ключу, если он имеет указанный тип.
func (s *EntityService) GetByKeyOfType(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (*model.EntitySlim, error) {
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	items, err := s.repo.GetByKeys(ctx, objectType, []uuid.UUID{key})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], s.attach(ctx, items[0])
}

// page выполняет постраничную выборку с общей проверкой параметров.
func (s *EntityService) page(ctx context.Context, op string, types []model.ObjectType, where query.Expr, req PageRequest) (items []*model.EntitySlim, total int64, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	if err = model.ValidateQueryTypes(types...); err != nil {
		return nil, 0, err
	}
	if err = validatePage(req); err != nil {
		return nil, 0, err
	}
	ordering, err := normalizeOrdering(req.Ordering)
	if err != nil {
		return nil, 0, err
	}

	items, total, err = s.repo.GetPage(ctx, repository.EntityQuery{
		ObjectTypes: types,
		Where:       where,
		Filter:      req.Filter,
		Ordering:    ordering,
		PageIndex:   req.PageIndex,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.attach(ctx, items...); err != nil {
		return nil, 0, err
	}
	s.logger.Debug("Выборка узлов",
		slog.String("operation", op),
		slog.Int("items", len(items)),
		slog.Int64("total", total),
	)
	return items, total, nil
}

// GetPagedChildren возвращает страницу детей узла вне корзины.
// parentID = model.RootID — узлы верхнего уровня.
func (s *EntityService) GetPagedChildren(ctx context.Context, parentID int64, types []model.ObjectType, req PageRequest) ([]*model.EntitySlim, int64, error) {
	where := query.And(
		query.Eq(query.FieldParentID, parentID),
		query.Eq(query.FieldTrashed, false),
	)
	return s.page(ctx, "get_children", types, where, req)
}

// GetPagedTrashedChildren возвращает страницу детей узла, находящихся в корзине.
func (s *EntityService) GetPagedTrashedChildren(ctx context.Context, parentID int64, types []model.ObjectType, req PageRequest) ([]*model.EntitySlim, int64, error) {
	where := query.And(
		query.Eq(query.FieldParentID, parentID),
		query.Eq(query.FieldTrashed, true),
	)
	return s.page(ctx, "get_trashed_children", types, where, req)
}

// GetChildren возвращает всех детей узла вне корзины без разбивки на страницы.
func (s *EntityService) GetChildren(ctx context.Context, parentID int64, types ...model.ObjectType) ([]*model.EntitySlim, error) {
	return s.all(ctx, "get_all_children", types, query.And(
		query.Eq(query.FieldParentID, parentID),
		query.Eq(query.FieldTrashed, false),
	), model.Ordering{})
}

// GetPagedDescendants возвращает страницу потомков узла (без самого узла).
// rootID = model.RootID — всё дерево. Несуществующий корень — пустой результат.
func (s *EntityService) GetPagedDescendants(ctx context.Context, rootID int64, types []model.ObjectType, req PageRequest, includeTrashed bool) ([]*model.EntitySlim, int64, error) {
	prefix, ok, err := s.descendantPrefix(ctx, rootID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		if err := validatePage(req); err != nil {
			return nil, 0, err
		}
		return []*model.EntitySlim{}, 0, nil
	}

	where := query.HasPrefix(query.FieldPath, prefix)
	if !includeTrashed {
		where = query.And(where, query.Eq(query.FieldTrashed, false))
	}
	return s.page(ctx, "get_descendants", types, where, req)
}

func (s *EntityService) descendantPrefix(ctx context.Context, rootID int64) (string, bool, error) {
	if rootID == model.RootID {
		return fmt.Sprintf("%d,", model.RootID), true, nil
	}
	root, err := s.repo.GetByID(ctx, rootID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return root.DescendantPrefix(), true, nil
}

// GetSiblings возвращает соседей узла: before узлов до цели, цель и after узлов после
// в порядке сортировки. Выход окна за границы сокращает результат без ошибки.
// Цель в корзине или отсутствующая цель — пустой результат.
func (s *EntityService) GetSiblings(ctx context.Context, targetKey uuid.UUID, objectType model.ObjectType, before, after int, ordering model.Ordering) (items []*model.EntitySlim, err error) {
	defer func(start time.Time) { observe("get_siblings", start, err) }(time.Now())

	if err = model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	ordering, err = normalizeOrdering(ordering)
	if err != nil {
		return nil, err
	}

	keys, err := s.repo.GetSiblingKeys(ctx, repository.SiblingQuery{
		TargetKey: targetKey,
		Before:    max(before, 0),
		After:     max(after, 0),
		Ordering:  ordering,
	})
	if err != nil {
		return nil, fmt.Errorf("окно соседей: %w", err)
	}
	if len(keys) == 0 {
		return []*model.EntitySlim{}, nil
	}

	found, err := s.repo.GetByKeys(ctx, objectType, keys)
	if err != nil {
		return nil, fmt.Errorf("загрузка соседей: %w", err)
	}
	byKey := make(map[uuid.UUID]*model.EntitySlim, len(found))
	for _, e := range found {
		byKey[e.Key] = e
	}
	items = make([]*model.EntitySlim, 0, len(keys))
	for _, key := range keys {
		if e, ok := byKey[key]; ok {
			items = append(items, e)
		}
	}
	return items, s.attach(ctx, items...)
}

// all выполняет выборку без разбивки на страницы.
func (s *EntityService) all(ctx context.Context, op string, types []model.ObjectType, where query.Expr, ordering model.Ordering) (items []*model.EntitySlim, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	if err = model.ValidateQueryTypes(types...); err != nil {
		return nil, err
	}
	ordering, err = normalizeOrdering(ordering)
	if err != nil {
		return nil, err
	}
	items, _, err = s.repo.GetPage(ctx, repository.EntityQuery{
		ObjectTypes: types,
		Where:       where,
		Ordering:    ordering,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, s.attach(ctx, items...)
}

// GetAll возвращает узлы типа с указанными идентификаторами
// (все узлы типа, если идентификаторы не заданы).
func (s *EntityService) GetAll(ctx context.Context, objectType model.ObjectType, ids ...int64) ([]*model.EntitySlim, error) {
	if len(ids) == 0 {
		return s.all(ctx, "get_all", []model.ObjectType{objectType}, nil, model.Ordering{})
	}
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	items, err := s.repo.GetByIDs(ctx, objectType, ids)
	if err != nil {
		return nil, err
	}
	return items, s.attach(ctx, items...)
}

// GetAllByKeys возвращает узлы типа с указанными ключами.
func (s *EntityService) GetAllByKeys(ctx context.Context, objectType model.ObjectType, keys ...uuid.UUID) ([]*model.EntitySlim, error) {
	if len(keys) == 0 {
		return s.all(ctx, "get_all", []model.ObjectType{objectType}, nil, model.Ordering{})
	}
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	items, err := s.repo.GetByKeys(ctx, objectType, keys)
	if err != nil {
		return nil, err
	}
	return items, s.attach(ctx, items...)
}

// GetByQuery возвращает все узлы типа, удовлетворяющие предикату.
func (s *EntityService) GetByQuery(ctx context.Context, objectType model.ObjectType, where query.Expr, ordering model.Ordering) ([]*model.EntitySlim, error) {
	return s.all(ctx, "get_by_query", []model.ObjectType{objectType}, where, ordering)
}

// Count возвращает число узлов типа, удовлетворяющих предикату.
func (s *EntityService) Count(ctx context.Context, objectType model.ObjectType, where query.Expr) (n int64, err error) {
	defer func(start time.Time) { observe("count", start, err) }(time.Now())

	if err = model.ValidateQueryTypes(objectType); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, repository.EntityQuery{
		ObjectTypes: []model.ObjectType{objectType},
		Where:       where,
	})
}

// Exists — существуют все указанные ключи (повторы не учитываются).
func (s *EntityService) Exists(ctx context.Context, keys ...uuid.UUID) (bool, error) {
	distinct := make(map[uuid.UUID]struct{}, len(keys))
	for _, k := range keys {
		distinct[k] = struct{}{}
	}
	if len(distinct) == 0 {
		return false, nil
	}
	unique := make([]uuid.UUID, 0, len(distinct))
	for k := range distinct {
		unique = append(unique, k)
	}
	n, err := s.repo.CountExisting(ctx, unique)
	if err != nil {
		return false, err
	}
	return n == len(unique), nil
}

// ExistsOfType — узел с ключом существует и имеет указанный тип.
func (s *EntityService) ExistsOfType(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (bool, error) {
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return false, err
	}
	return s.repo.ExistsByKey(ctx, key, objectType)
}

// ExistsByID — узел с идентификатором существует.
func (s *EntityService) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return s.repo.ExistsByID(ctx, id, model.ObjectTypeUnknown)
}

// GetObjectType возвращает тип узла; ObjectTypeUnknown, если узла нет.
func (s *EntityService) GetObjectType(ctx context.Context, id int64) (model.ObjectType, error) {
	t, err := s.repo.GetObjectType(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ObjectTypeUnknown, nil
	}
	return t, err
}

// GetObjectTypeByKey возвращает тип узла по ключу; ObjectTypeUnknown, если узла нет.
func (s *EntityService) GetObjectTypeByKey(ctx context.Context, key uuid.UUID) (model.ObjectType, error) {
	t, err := s.repo.GetObjectTypeByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ObjectTypeUnknown, nil
	}
	return t, err
}

// ReserveID резервирует идентификатор под ключ.
// Повторное резервирование того же ключа — ErrConflict.
func (s *EntityService) ReserveID(ctx context.Context, key uuid.UUID) (int64, error) {
	id, err := s.repo.ReserveID(ctx, key)
	if errors.Is(err, repository.ErrConflict) {
		return 0, fmt.Errorf("%w: ключ %s", ErrConflict, key)
	}
	if err != nil {
		return 0, fmt.Errorf("резервирование идентификатора: %w", err)
	}
	s.logger.Info("Идентификатор зарезервирован",
		slog.String("key", key.String()),
		slog.Int64("id", id),
	)
	return id, nil
}

// GetID возвращает идентификатор узла типа или резерва по ключу.
// ErrNotFound, если подходящего узла нет.
func (s *EntityService) GetID(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (int64, error) {
	id, err := s.repo.GetID(ctx, key, objectType)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%w: ключ %s", ErrNotFound, key)
	}
	return id, err
}

// GetAllPaths возвращает пути узлов типа (все узлы типа, если ids пуст).
func (s *EntityService) GetAllPaths(ctx context.Context, objectType model.ObjectType, ids ...int64) ([]model.TreeEntityPath, error) {
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	return s.repo.GetPaths(ctx, objectType, ids)
}

// GetAllPathsByKeys возвращает пути узлов типа по ключам.
func (s *EntityService) GetAllPathsByKeys(ctx context.Context, objectType model.ObjectType, keys ...uuid.UUID) ([]model.TreeEntityPath, error) {
	if err := model.ValidateQueryTypes(objectType); err != nil {
		return nil, err
	}
	return s.repo.GetPathsByKeys(ctx, objectType, keys)
}

// GetPathKeys возвращает ключи предков узла от корня; omitSelf исключает сам узел.
func (s *EntityService) GetPathKeys(ctx context.Context, e *model.EntitySlim, omitSelf bool) ([]uuid.UUID, error) {
	ids, err := model.ParsePath(e.Path)
	if err != nil {
		return nil, err
	}
	if omitSelf && len(ids) > 0 && ids[len(ids)-1] == e.ID {
		ids = ids[:len(ids)-1]
	}
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}

	found, err := s.repo.GetByIDs(ctx, e.ObjectType, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]uuid.UUID, len(found))
	for _, f := range found {
		byID[f.ID] = f.Key
	}
	keys := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if key, ok := byID[id]; ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
