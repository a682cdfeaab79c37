package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

type contentRepo struct {
	db DBTX
}

// NewContentRepository создаёт хранилище документов и типов контента.
func NewContentRepository(db DBTX) DocumentStore {
	return &contentRepo{db: db}
}

const selectContent = `
	SELECT n.id, n.unique_id, n.parent_id, n.level, n.path, n.sort_order, n.trashed,
		n.object_type, n.name, n.creator_id, n.created_at,
		cv.id, cv.updated_at, cv.writer_id, cv.properties,
		d.published, d.edited, d.published_version_id, d.published_at, d.publisher_id, d.row_version,
		c.content_type_id
	FROM node n
	JOIN document d ON d.node_id = n.id
	JOIN content c ON c.node_id = n.id
	JOIN content_version cv ON cv.node_id = n.id AND cv.current`

func (r *contentRepo) GetContentByKey(ctx context.Context, key uuid.UUID) (*model.Content, error) {
	return r.getContent(ctx, "n.unique_id = $1", key)
}

func (r *contentRepo) GetContentByID(ctx context.Context, id int64) (*model.Content, error) {
	return r.getContent(ctx, "n.id = $1", id)
}

func (r *contentRepo) getContent(ctx context.Context, cond string, arg any) (*model.Content, error) {
	db := conn(ctx, r.db)

	var (
		c             model.Content
		objectType    string
		pubVersionID  *int64
		publishedAt   *time.Time
		publisherID   *int64
		contentTypeID int64
	)
	err := db.QueryRow(ctx, selectContent+" WHERE "+cond, arg).Scan(
		&c.ID, &c.Key, &c.ParentID, &c.Level, &c.Path, &c.SortOrder, &c.Trashed,
		&objectType, &c.Name, &c.CreatorID, &c.CreatedAt,
		&c.Version.ID, &c.Version.UpdatedAt, &c.Version.WriterID, &c.Properties,
		&c.Published, &c.Edited, &pubVersionID, &publishedAt, &publisherID, &c.RowVersion,
		&contentTypeID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	c.ObjectType = model.ObjectType(objectType)
	if pubVersionID != nil {
		c.PublishedVersion = &model.PublishedVersion{
			VersionID:   *pubVersionID,
			PublishedAt: deref(publishedAt),
			PublisherID: deref(publisherID),
		}
	}

	ct, err := r.getContentType(ctx, "ct.node_id = $1", contentTypeID)
	if err != nil {
		return nil, err
	}
	c.ContentType = ct

	cultures, err := r.getCultures(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Cultures = cultures
	return &c, nil
}

func (r *contentRepo) getCultures(ctx context.Context, nodeID int64) (map[string]*model.CultureVariant, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT culture, name, available, published, edited
		FROM document_culture_variation
		WHERE node_id = $1`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения культур документа: %w", err)
	}
	defer rows.Close()

	out := map[string]*model.CultureVariant{}
	for rows.Next() {
		var v model.CultureVariant
		if err := rows.Scan(&v.Culture, &v.Name, &v.Available, &v.Published, &v.Edited); err != nil {
			return nil, fmt.Errorf("ошибка чтения культуры документа: %w", err)
		}
		out[v.Culture] = &v
	}
	return out, rows.Err()
}

func (r *contentRepo) GetContentTypeByKey(ctx context.Context, key uuid.UUID) (*model.ContentType, error) {
	return r.getContentType(ctx, "n.unique_id = $1", key)
}

func (r *contentRepo) getContentType(ctx context.Context, cond string, arg any) (*model.ContentType, error) {
	var ct model.ContentType
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT ct.node_id, n.unique_id, ct.alias, ct.icon, ct.varies_by_culture, ct.property_types
		FROM content_type ct
		JOIN node n ON n.id = ct.node_id
		WHERE `+cond, arg,
	).Scan(&ct.ID, &ct.Key, &ct.Alias, &ct.Icon, &ct.VariesByCulture, &ct.Properties)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения типа контента: %w", err)
	}
	return &ct, nil
}

// IsPathPublished проверяет, что все предки документа опубликованы и не в корзине.
func (r *contentRepo) IsPathPublished(ctx context.Context, c *model.Content) (bool, error) {
	ancestors := c.AncestorIDs()
	if len(ancestors) == 0 {
		return true, nil
	}
	var unpublished int
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM node n
		LEFT JOIN document d ON d.node_id = n.id
		WHERE n.id = ANY($1)
			AND (n.trashed OR NOT COALESCE(d.published, FALSE))`, ancestors,
	).Scan(&unpublished)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки пути публикации: %w", err)
	}
	return unpublished == 0, nil
}

// SaveContent обновляет состояние публикации документа и его культур
// при совпадении версии строки.
func (r *contentRepo) SaveContent(ctx context.Context, c *model.Content) error {
	var (
		pubVersionID *int64
		publishedAt  *time.Time
		publisherID  *int64
	)
	if pv := c.PublishedVersion; pv != nil {
		pubVersionID, publishedAt, publisherID = &pv.VersionID, &pv.PublishedAt, &pv.PublisherID
	}

	err := runInTx(ctx, r.db, func(q DBTX) error {
		tag, err := q.Exec(ctx, `
			UPDATE document
			SET published = $2, edited = $3,
				published_version_id = $4, published_at = $5, publisher_id = $6,
				row_version = row_version + 1
			WHERE node_id = $1 AND row_version = $7`,
			c.ID, c.Published, c.Edited, pubVersionID, publishedAt, publisherID, c.RowVersion,
		)
		if err != nil {
			return fmt.Errorf("ошибка обновления документа %d: %w", c.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrencyViolation
		}

		isoCodes := make([]string, 0, len(c.Cultures))
		for iso := range c.Cultures {
			isoCodes = append(isoCodes, iso)
		}
		sort.Strings(isoCodes)
		for _, iso := range isoCodes {
			v := c.Cultures[iso]
			_, err := q.Exec(ctx, `
				INSERT INTO document_culture_variation (node_id, culture, name, available, published, edited)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (node_id, culture) DO UPDATE SET
					name = EXCLUDED.name,
					available = EXCLUDED.available,
					published = EXCLUDED.published,
					edited = EXCLUDED.edited`,
				c.ID, iso, v.Name, v.Available, v.Published, v.Edited,
			)
			if err != nil {
				return fmt.Errorf("ошибка сохранения культуры %s документа %d: %w", iso, c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.RowVersion++
	return nil
}

func (r *contentRepo) GetDescendantIDs(ctx context.Context, root *model.Content) ([]int64, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id FROM node
		WHERE path LIKE $1 AND trashed = FALSE AND object_type = $2
		ORDER BY level, sort_order, id`,
		escapeLike(root.DescendantPrefix())+"%", string(model.ObjectTypeDocument),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки потомков: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения потомка: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *contentRepo) GetSchedule(ctx context.Context, nodeID int64) (*model.ScheduleCollection, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, culture, action, date
		FROM content_schedule
		WHERE node_id = $1`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения расписания: %w", err)
	}
	defer rows.Close()

	var entries []model.ScheduleEntry
	for rows.Next() {
		var (
			e      model.ScheduleEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.Culture, &action, &e.Date); err != nil {
			return nil, fmt.Errorf("ошибка чтения расписания: %w", err)
		}
		if e.Action, err = model.ParseScheduleAction(action); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return model.NewScheduleCollection(entries...), nil
}

// SaveSchedule заменяет все записи расписания документа.
func (r *contentRepo) SaveSchedule(ctx context.Context, nodeID int64, s *model.ScheduleCollection) error {
	return runInTx(ctx, r.db, func(q DBTX) error {
		if _, err := q.Exec(ctx, `DELETE FROM content_schedule WHERE node_id = $1`, nodeID); err != nil {
			return fmt.Errorf("ошибка очистки расписания: %w", err)
		}
		for _, e := range s.FullSchedule() {
			_, err := q.Exec(ctx, `
				INSERT INTO content_schedule (id, node_id, culture, action, date)
				VALUES ($1, $2, $3, $4, $5)`,
				e.ID, nodeID, e.Culture, e.Action.String(), e.Date,
			)
			if err != nil {
				return fmt.Errorf("ошибка записи расписания: %w", err)
			}
		}
		return nil
	})
}

func (r *contentRepo) GetScheduledNodeIDs(ctx context.Context, dueBefore time.Time) ([]int64, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT DISTINCT node_id FROM content_schedule
		WHERE date <= $1
		ORDER BY node_id`, dueBefore)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки расписаний: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения расписания: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
