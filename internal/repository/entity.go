package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

type entityRepo struct {
	db DBTX
}

// NewEntityRepository создаёт репозиторий дерева узлов.
func NewEntityRepository(db DBTX) EntityRepository {
	return &entityRepo{db: db}
}

// selectEntities — выборка узла с разделами контента, документа и медиа.
// childCount — SQL-выражение числа детей.
func selectEntities(childCount string) string {
	return `
		SELECT n.id, n.unique_id, n.parent_id, n.level, n.path, n.sort_order, n.trashed,
			n.object_type, n.name, n.creator_id, n.created_at,
			` + childCount + ` AS child_count,
			cv.id, cv.updated_at,
			ctn.unique_id, ct.alias, ct.icon, ct.varies_by_culture,
			d.published, d.edited,
			mv.path
		FROM node n
		LEFT JOIN content_version cv ON cv.node_id = n.id AND cv.current
		LEFT JOIN content c ON c.node_id = n.id
		LEFT JOIN content_type ct ON ct.node_id = c.content_type_id
		LEFT JOIN node ctn ON ctn.id = ct.node_id
		LEFT JOIN document d ON d.node_id = n.id
		LEFT JOIN media_version mv ON mv.version_id = cv.id`
}

// childCountAll — число всех детей узла (включая корзину).
const childCountAll = `(SELECT COUNT(*) FROM node ch WHERE ch.parent_id = n.id)`

// childCountOfTypes — число детей узла указанных типов (включая корзину).
func childCountOfTypes(typesArg string) string {
	return `(SELECT COUNT(*) FROM node ch WHERE ch.parent_id = n.id AND ch.object_type = ANY(` + typesArg + `))`
}

func scanEntity(row pgx.Row) (*model.EntitySlim, error) {
	var (
		e          model.EntitySlim
		objectType string
		versionID  *int64
		updatedAt  *time.Time
		ctKey      pgtype.UUID
		ctAlias    *string
		ctIcon     *string
		varies     *bool
		published  *bool
		edited     *bool
		mediaPath  *string
	)
	err := row.Scan(
		&e.ID, &e.Key, &e.ParentID, &e.Level, &e.Path, &e.SortOrder, &e.Trashed,
		&objectType, &e.Name, &e.CreatorID, &e.CreatedAt,
		&e.ChildCount,
		&versionID, &updatedAt,
		&ctKey, &ctAlias, &ctIcon, &varies,
		&published, &edited,
		&mediaPath,
	)
	if err != nil {
		return nil, err
	}

	e.ObjectType = model.ObjectType(objectType)
	e.UpdatedAt = e.CreatedAt
	if updatedAt != nil {
		e.UpdatedAt = *updatedAt
	}
	if e.ObjectType.IsContentBased() && versionID != nil {
		e.Content = &model.ContentInfo{
			VersionID:        *versionID,
			ContentTypeAlias: deref(ctAlias),
			ContentTypeIcon:  deref(ctIcon),
			VariesByCulture:  deref(varies),
		}
		if ctKey.Valid {
			e.Content.ContentTypeKey = uuid.UUID(ctKey.Bytes)
		}
	}
	if e.ObjectType.IsDocumentBased() {
		e.Document = &model.DocumentInfo{Published: deref(published), Edited: deref(edited)}
	}
	if e.ObjectType == model.ObjectTypeMedia {
		e.Media = &model.MediaInfo{MediaPath: deref(mediaPath)}
	}
	return &e, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func collectEntities(rows pgx.Rows) ([]*model.EntitySlim, error) {
	defer rows.Close()
	var out []*model.EntitySlim
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения узла: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *entityRepo) getOne(ctx context.Context, cond string, arg any) (*model.EntitySlim, error) {
	query := selectEntities(childCountAll) + " WHERE " + cond
	e, err := scanEntity(conn(ctx, r.db).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения узла: %w", err)
	}
	return e, nil
}

func (r *entityRepo) GetByKey(ctx context.Context, key uuid.UUID) (*model.EntitySlim, error) {
	return r.getOne(ctx, "n.unique_id = $1", key)
}

func (r *entityRepo) GetByID(ctx context.Context, id int64) (*model.EntitySlim, error) {
	return r.getOne(ctx, "n.id = $1", id)
}

// buildWhere собирает условие выборки: типы объектов, основной предикат, фильтр.
func buildWhere(q EntityQuery, args *sqlArgs, typesArg string) (string, error) {
	where, err := compileExpr(q.Where, args)
	if err != nil {
		return "", err
	}
	filter, err := compileExpr(q.Filter, args)
	if err != nil {
		return "", err
	}
	return whereClause("n.object_type = ANY("+typesArg+")", where, filter), nil
}

func (r *entityRepo) GetPage(ctx context.Context, q EntityQuery) ([]*model.EntitySlim, int64, error) {
	args := &sqlArgs{}
	typesArg := args.add(model.ObjectTypeStrings(q.ObjectTypes))
	where, err := buildWhere(q, args, typesArg)
	if err != nil {
		return nil, 0, err
	}
	orderBy, err := compileOrdering(q.Ordering)
	if err != nil {
		return nil, 0, err
	}

	db := conn(ctx, r.db)
	var total int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM node n "+where, args.values...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта узлов: %w", err)
	}

	offset := q.PageIndex * int64(q.PageSize)
	if total == 0 || (q.PageSize > 0 && offset >= total) {
		return []*model.EntitySlim{}, total, nil
	}

	query := selectEntities(childCountOfTypes(typesArg)) + " " + where + " ORDER BY " + orderBy
	if q.PageSize > 0 {
		query += " LIMIT " + args.add(q.PageSize) + " OFFSET " + args.add(offset)
	}
	rows, err := db.Query(ctx, query, args.values...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки узлов: %w", err)
	}
	items, err := collectEntities(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *entityRepo) Count(ctx context.Context, q EntityQuery) (int64, error) {
	args := &sqlArgs{}
	typesArg := args.add(model.ObjectTypeStrings(q.ObjectTypes))
	where, err := buildWhere(q, args, typesArg)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := conn(ctx, r.db).QueryRow(ctx, "SELECT COUNT(*) FROM node n "+where, args.values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта узлов: %w", err)
	}
	return count, nil
}

// GetSiblingKeys ранжирует всех детей родителя цели вне корзины
// и возвращает ключи с рангами в [ранг цели - Before, ранг цели + After].
// Цель в корзине или отсутствует — пустой результат.
func (r *entityRepo) GetSiblingKeys(ctx context.Context, q SiblingQuery) ([]uuid.UUID, error) {
	orderBy, err := compileOrdering(q.Ordering)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		WITH target AS (
			SELECT parent_id FROM node WHERE unique_id = $1
		), ranked AS (
			SELECT n.unique_id, ROW_NUMBER() OVER (ORDER BY %s) AS rn
			FROM node n
			LEFT JOIN content_version cv ON cv.node_id = n.id AND cv.current
			WHERE n.parent_id = (SELECT parent_id FROM target)
				AND n.trashed = FALSE
		), pivot AS (
			SELECT rn FROM ranked WHERE unique_id = $1
		)
		SELECT unique_id FROM ranked
		WHERE rn BETWEEN (SELECT rn FROM pivot) - $2 AND (SELECT rn FROM pivot) + $3
		ORDER BY rn`, orderBy)

	rows, err := conn(ctx, r.db).Query(ctx, query, q.TargetKey, int64(q.Before), int64(q.After))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки соседей: %w", err)
	}
	defer rows.Close()

	var keys []uuid.UUID
	for rows.Next() {
		var key uuid.UUID
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ошибка чтения ключа соседа: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *entityRepo) GetByKeys(ctx context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]*model.EntitySlim, error) {
	if len(keys) == 0 {
		return []*model.EntitySlim{}, nil
	}
	query := selectEntities(childCountOfTypes("ARRAY[$1]")) + `
		WHERE n.object_type = $1 AND n.unique_id = ANY($2)`
	rows, err := conn(ctx, r.db).Query(ctx, query, string(objectType), keys)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки узлов по ключам: %w", err)
	}
	return collectEntities(rows)
}

func (r *entityRepo) GetByIDs(ctx context.Context, objectType model.ObjectType, ids []int64) ([]*model.EntitySlim, error) {
	if len(ids) == 0 {
		return []*model.EntitySlim{}, nil
	}
	query := selectEntities(childCountOfTypes("ARRAY[$1]")) + `
		WHERE n.object_type = $1 AND n.id = ANY($2)`
	rows, err := conn(ctx, r.db).Query(ctx, query, string(objectType), ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки узлов по идентификаторам: %w", err)
	}
	return collectEntities(rows)
}

func (r *entityRepo) GetPaths(ctx context.Context, objectType model.ObjectType, ids []int64) ([]model.TreeEntityPath, error) {
	query := `SELECT n.id, n.path FROM node n WHERE n.object_type = $1`
	args := []any{string(objectType)}
	if len(ids) > 0 {
		query += ` AND n.id = ANY($2)`
		args = append(args, ids)
	}
	return r.queryPaths(ctx, query+` ORDER BY n.id`, args...)
}

func (r *entityRepo) GetPathsByKeys(ctx context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]model.TreeEntityPath, error) {
	query := `SELECT n.id, n.path FROM node n WHERE n.object_type = $1`
	args := []any{string(objectType)}
	if len(keys) > 0 {
		query += ` AND n.unique_id = ANY($2)`
		args = append(args, keys)
	}
	return r.queryPaths(ctx, query+` ORDER BY n.id`, args...)
}

func (r *entityRepo) queryPaths(ctx context.Context, query string, args ...any) ([]model.TreeEntityPath, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки путей: %w", err)
	}
	defer rows.Close()

	var out []model.TreeEntityPath
	for rows.Next() {
		var p model.TreeEntityPath
		if err := rows.Scan(&p.ID, &p.Path); err != nil {
			return nil, fmt.Errorf("ошибка чтения пути: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *entityRepo) GetObjectType(ctx context.Context, id int64) (model.ObjectType, error) {
	return r.objectType(ctx, `SELECT object_type FROM node WHERE id = $1`, id)
}

func (r *entityRepo) GetObjectTypeByKey(ctx context.Context, key uuid.UUID) (model.ObjectType, error) {
	return r.objectType(ctx, `SELECT object_type FROM node WHERE unique_id = $1`, key)
}

func (r *entityRepo) objectType(ctx context.Context, query string, arg any) (model.ObjectType, error) {
	var t string
	if err := conn(ctx, r.db).QueryRow(ctx, query, arg).Scan(&t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ObjectTypeUnknown, ErrNotFound
		}
		return model.ObjectTypeUnknown, fmt.Errorf("ошибка получения типа объекта: %w", err)
	}
	return model.ObjectType(t), nil
}

func (r *entityRepo) ExistsByKey(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM node WHERE unique_id = $1 AND ($2 = '' OR object_type = $2))`, key, objectType)
}

func (r *entityRepo) ExistsByID(ctx context.Context, id int64, objectType model.ObjectType) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM node WHERE id = $1 AND ($2 = '' OR object_type = $2))`, id, objectType)
}

func (r *entityRepo) exists(ctx context.Context, query string, arg any, objectType model.ObjectType) (bool, error) {
	var ok bool
	if err := conn(ctx, r.db).QueryRow(ctx, query, arg, string(objectType)).Scan(&ok); err != nil {
		return false, fmt.Errorf("ошибка проверки существования узла: %w", err)
	}
	return ok, nil
}

func (r *entityRepo) CountExisting(ctx context.Context, keys []uuid.UUID) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM node WHERE unique_id = ANY($1)`, keys,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта существующих узлов: %w", err)
	}
	return n, nil
}

// ReserveID выделяет идентификатор из последовательности узлов и
// записывает узел-резерв под корнем.
func (r *entityRepo) ReserveID(ctx context.Context, key uuid.UUID) (int64, error) {
	var id int64
	err := runInTx(ctx, r.db, func(q DBTX) error {
		var reserved bool
		err := q.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM node WHERE unique_id = $1 AND object_type = $2)`,
			key, string(model.ObjectTypeIDReservation),
		).Scan(&reserved)
		if err != nil {
			return fmt.Errorf("ошибка проверки резерва: %w", err)
		}
		if reserved {
			return ErrConflict
		}

		if err := q.QueryRow(ctx, `SELECT nextval('node_id_seq')`).Scan(&id); err != nil {
			return fmt.Errorf("ошибка выделения идентификатора: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO node (id, unique_id, parent_id, level, path, sort_order, trashed, object_type, name)
			VALUES ($1, $2, $3, 1, $4, 0, FALSE, $5, 'RESERVED.ID')`,
			id, key, model.RootID, model.BuildPath("", id), string(model.ObjectTypeIDReservation),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("ошибка записи резерва %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *entityRepo) GetID(ctx context.Context, key uuid.UUID, objectType model.ObjectType) (int64, error) {
	var id int64
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT id FROM node WHERE unique_id = $1 AND (object_type = $2 OR object_type = $3)`,
		key, string(objectType), string(model.ObjectTypeIDReservation),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка получения идентификатора: %w", err)
	}
	return id, nil
}

func (r *entityRepo) GetVariantInfos(ctx context.Context, ids []int64) ([]model.VariantInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT node_id, culture, name, available, published, edited
		FROM document_culture_variation
		WHERE node_id = ANY($1)
		ORDER BY node_id, culture`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки культур: %w", err)
	}
	defer rows.Close()

	var out []model.VariantInfo
	for rows.Next() {
		var v model.VariantInfo
		if err := rows.Scan(&v.NodeID, &v.Culture, &v.Name, &v.Available, &v.Published, &v.Edited); err != nil {
			return nil, fmt.Errorf("ошибка чтения культуры: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
