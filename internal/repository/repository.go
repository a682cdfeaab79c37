// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
// Контракты хранилища (EntityRepository, Scope) реализуются также
// пакетом memstore.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrConcurrencyViolation — версия строки изменилась после загрузки.
	ErrConcurrencyViolation = errors.New("запись изменена параллельно")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope — единица работы. Complete помечает её успешной,
// Close фиксирует помеченную единицу и откатывает непомеченную.
type Scope interface {
	Complete()
	Close() error
}

type txKey struct{}

// conn возвращает транзакцию единицы работы из контекста или пул.
func conn(ctx context.Context, db DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// ScopeProvider открывает единицы работы поверх транзакций PostgreSQL.
// Транзакция передаётся репозиториям через контекст.
type ScopeProvider struct {
	pool *pgxpool.Pool
}

// NewScopeProvider создаёт ScopeProvider.
func NewScopeProvider(pool *pgxpool.Pool) *ScopeProvider {
	return &ScopeProvider{pool: pool}
}

// Begin открывает транзакцию и возвращает контекст с ней.
// Внутри открытой единицы работы возвращается вложенная единица,
// разделяющая внешнюю транзакцию.
func (p *ScopeProvider) Begin(ctx context.Context) (context.Context, Scope, error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return ctx, &nestedScope{}, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), &txScope{ctx: ctx, tx: tx}, nil
}

type txScope struct {
	ctx       context.Context
	tx        pgx.Tx
	mu        sync.Mutex
	completed bool
	closed    bool
}

func (s *txScope) Complete() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
}

func (s *txScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.completed {
		return s.tx.Rollback(context.WithoutCancel(s.ctx))
	}
	if err := s.tx.Commit(s.ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// nestedScope — единица работы внутри внешней; фиксацией управляет внешняя.
type nestedScope struct{}

func (nestedScope) Complete()    {}
func (nestedScope) Close() error { return nil }

// runInTx выполняет fn в транзакции единицы работы или в новой транзакции.
// При ошибке fn — транзакция откатывается.
func runInTx(ctx context.Context, db DBTX, fn func(q DBTX) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(tx)
	}
	beginner, ok := db.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	})
	if !ok {
		return fn(db)
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
