package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolChecker проверяет пул PostgreSQL для /health/ready.
type PoolChecker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPoolChecker создаёт проверку пула; timeout ограничивает ping
// сверх дедлайна контекста запроса.
func NewPoolChecker(pool *pgxpool.Pool, timeout time.Duration) *PoolChecker {
	return &PoolChecker{pool: pool, timeout: timeout}
}

// CheckReady пингует базу и оценивает загрузку пула.
func (c *PoolChecker) CheckReady(ctx context.Context) (status string, message string) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	st := c.pool.Stat()
	return poolStatus(st.AcquiredConns(), st.MaxConns())
}

// poolStatus: все соединения заняты — degraded.
func poolStatus(acquired, maxConns int32) (string, string) {
	msg := fmt.Sprintf("занято соединений %d из %d", acquired, maxConns)
	if maxConns > 0 && acquired >= maxConns {
		return "degraded", msg
	}
	return "ok", msg
}
