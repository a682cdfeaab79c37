package memstore

import (
	"context"
	"sync"

	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

// ScopeStats — счётчики единиц работы верхнего уровня.
type ScopeStats struct {
	// Opened — открыто единиц
	Opened int
	// Closed — закрыто единиц
	Closed int
	// Completed — закрыто с отметкой Complete
	Completed int
	// Incomplete — закрыто без отметки Complete
	Incomplete int
	// CompletedTwice — Complete вызван более одного раза
	CompletedTwice int
}

type scopeKey struct{}

type scope struct {
	store    *Store
	once     sync.Once
	mu       sync.Mutex
	complete int
}

// Begin открывает единицу работы. Изменения in-memory хранилища
// применяются сразу, поэтому единица работы только ведёт учёт.
func (s *Store) Begin(ctx context.Context) (context.Context, repository.Scope, error) {
	if _, nested := ctx.Value(scopeKey{}).(*scope); nested {
		return ctx, nestedScope{}, nil
	}
	sc := &scope{store: s}

	s.mu.Lock()
	s.scopes.Opened++
	s.mu.Unlock()

	return context.WithValue(ctx, scopeKey{}, sc), sc, nil
}

func (sc *scope) Complete() {
	sc.mu.Lock()
	sc.complete++
	sc.mu.Unlock()
}

func (sc *scope) Close() error {
	sc.once.Do(func() {
		sc.mu.Lock()
		complete := sc.complete
		sc.mu.Unlock()

		sc.store.mu.Lock()
		defer sc.store.mu.Unlock()
		stats := &sc.store.scopes
		stats.Closed++
		switch {
		case complete == 0:
			stats.Incomplete++
			sc.store.logger.Warn("Единица работы закрыта без отметки Complete")
		case complete == 1:
			stats.Completed++
		default:
			stats.Completed++
			stats.CompletedTwice++
		}
	})
	return nil
}

type nestedScope struct{}

func (nestedScope) Complete()    {}
func (nestedScope) Close() error { return nil }

// ScopeStats возвращает счётчики единиц работы.
func (s *Store) ScopeStats() ScopeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes
}
