package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type relationRepo struct {
	db DBTX
}

// NewRelationRepository создаёт репозиторий связей.
func NewRelationRepository(db DBTX) RelationRepository {
	return &relationRepo{db: db}
}

// IsReferenced — узел является дочерней стороной хотя бы одной связи-зависимости.
func (r *relationRepo) IsReferenced(ctx context.Context, nodeID int64) (bool, error) {
	var ok bool
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM relation WHERE child_id = $1 AND is_dependency)`, nodeID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки связей узла %d: %w", nodeID, err)
	}
	return ok, nil
}

type actorRepo struct {
	db DBTX
}

// NewActorRepository создаёт репозиторий пользователей.
func NewActorRepository(db DBTX) ActorRepository {
	return &actorRepo{db: db}
}

func (r *actorRepo) GetActorID(ctx context.Context, key uuid.UUID) (int64, error) {
	var id int64
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT id FROM actor WHERE key = $1`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return id, nil
}
