// Пакет operation — трекер долгих фоновых операций.
//
// Tracker принимает функцию-работу, сразу возвращает идентификатор операции
// и выполняет работу в отдельной горутине. Завершённые операции хранятся
// в LRU с ограниченным временем жизни (hashicorp/golang-lru/v2/expirable),
// после вытеснения операция считается не найденной.
//
// Prometheus-метрики:
//   - ce_operations_enqueued_total — поставлено в очередь (по типу)
//   - ce_operations_finished_total — завершено (по типу и результату)
//   - ce_operations_running — выполняется сейчас (по типу)
//   - ce_operation_duration_seconds — длительность выполнения
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrAlreadyRunning — операция того же типа уже выполняется,
	// а параллельный запуск не разрешён.
	ErrAlreadyRunning = errors.New("операция этого типа уже выполняется")
	// ErrTrackerStopped — трекер остановлен и не принимает работу.
	ErrTrackerStopped = errors.New("трекер операций остановлен")
)

var (
	operationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ce_operations_enqueued_total",
		Help: "Количество фоновых операций, поставленных в очередь",
	}, []string{"type"})

	operationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ce_operations_finished_total",
		Help: "Количество завершённых фоновых операций",
	}, []string{"type", "status"}) // status: completed, failed

	operationsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ce_operations_running",
		Help: "Количество выполняющихся фоновых операций",
	}, []string{"type"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ce_operation_duration_seconds",
		Help:    "Длительность выполнения фоновых операций",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"type"})
)

// Status — состояние операции.
type Status int

const (
	StatusNotFound Status = iota
	StatusEnqueued
	StatusRunning
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusNotFound:  "not_found",
	StatusEnqueued:  "enqueued",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Active — операция ещё не завершилась.
func (s Status) Active() bool {
	return s == StatusEnqueued || s == StatusRunning
}

// ResultStatus — итог чтения результата операции.
type ResultStatus int

const (
	ResultOK ResultStatus = iota
	ResultNotFound
	ResultStillRunning
	ResultFailed
)

// Work — единица фоновой работы.
type Work func(ctx context.Context) (any, error)

type entry struct {
	id         uuid.UUID
	opType     string
	status     Status
	result     any
	err        error
	enqueuedAt time.Time
	finishedAt time.Time
	done       chan struct{}
}

// Option — опция Tracker.
type Option func(*Tracker)

// WithWorkers ограничивает число одновременно выполняемых операций.
func WithWorkers(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.sem = make(chan struct{}, n)
		}
	}
}

// WithRetention задаёт размер и время хранения завершённых операций.
func WithRetention(maxResults int, ttl time.Duration) Option {
	return func(t *Tracker) {
		t.maxResults = maxResults
		t.ttl = ttl
	}
}

// Tracker — реестр фоновых операций.
type Tracker struct {
	mu       sync.Mutex
	active   map[uuid.UUID]*entry
	byType   map[string]int
	finished *expirable.LRU[uuid.UUID, *entry]
	stopped  bool

	sem        chan struct{}
	maxResults int
	ttl        time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewTracker создаёт трекер. По умолчанию: 4 воркера,
// 1000 завершённых операций, хранение 1 час.
func NewTracker(logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		active:     make(map[uuid.UUID]*entry),
		byType:     make(map[string]int),
		sem:        make(chan struct{}, 4),
		maxResults: 1000,
		ttl:        time.Hour,
		logger:     logger.With(slog.String("component", "operation_tracker")),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.finished = expirable.NewLRU[uuid.UUID, *entry](t.maxResults, nil, t.ttl)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Run ставит работу в очередь и возвращает идентификатор операции.
// Работа выполняется с контекстом трекера, а не вызывающего:
// завершение запроса не прерывает операцию, Stop — прерывает.
func (t *Tracker) Run(ctx context.Context, opType string, work Work, allowConcurrent bool) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return uuid.Nil, ErrTrackerStopped
	}
	if !allowConcurrent && t.byType[opType] > 0 {
		t.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%s: %w", opType, ErrAlreadyRunning)
	}
	e := &entry{
		id:         uuid.New(),
		opType:     opType,
		status:     StatusEnqueued,
		enqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
	t.active[e.id] = e
	t.byType[opType]++
	t.wg.Add(1)
	t.mu.Unlock()

	operationsEnqueued.WithLabelValues(opType).Inc()
	t.logger.Info("Операция поставлена в очередь",
		slog.String("operation_id", e.id.String()),
		slog.String("type", opType),
	)

	go t.execute(e, work)
	return e.id, nil
}

func (t *Tracker) execute(e *entry, work Work) {
	defer t.wg.Done()

	select {
	case t.sem <- struct{}{}:
	case <-t.ctx.Done():
		t.finish(e, nil, fmt.Errorf("операция отменена до запуска: %w", t.ctx.Err()), time.Time{})
		return
	}
	defer func() { <-t.sem }()

	t.mu.Lock()
	e.status = StatusRunning
	t.mu.Unlock()
	operationsRunning.WithLabelValues(e.opType).Inc()
	defer operationsRunning.WithLabelValues(e.opType).Dec()

	started := time.Now()
	result, err := runSafe(t.ctx, work)
	t.finish(e, result, err, started)
}

// runSafe выполняет работу, превращая панику в ошибку.
func runSafe(ctx context.Context, work Work) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в операции: %v", r)
		}
	}()
	return work(ctx)
}

func (t *Tracker) finish(e *entry, result any, err error, started time.Time) {
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}

	t.mu.Lock()
	e.status = status
	e.result = result
	e.err = err
	e.finishedAt = time.Now()
	delete(t.active, e.id)
	t.byType[e.opType]--
	if t.byType[e.opType] == 0 {
		delete(t.byType, e.opType)
	}
	t.finished.Add(e.id, e)
	t.mu.Unlock()
	close(e.done)

	operationsFinished.WithLabelValues(e.opType, status.String()).Inc()
	if !started.IsZero() {
		operationDuration.WithLabelValues(e.opType).Observe(time.Since(started).Seconds())
	}

	if err != nil {
		t.logger.Error("Операция завершилась с ошибкой",
			slog.String("operation_id", e.id.String()),
			slog.String("type", e.opType),
			slog.String("error", err.Error()),
		)
		return
	}
	t.logger.Info("Операция завершена",
		slog.String("operation_id", e.id.String()),
		slog.String("type", e.opType),
	)
}

func (t *Tracker) lookup(id uuid.UUID) *entry {
	if e, ok := t.active[id]; ok {
		return e
	}
	if e, ok := t.finished.Get(id); ok {
		return e
	}
	return nil
}

// Status возвращает состояние операции.
func (t *Tracker) Status(id uuid.UUID) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e := t.lookup(id); e != nil {
		return e.status
	}
	return StatusNotFound
}

// IsRunning — операция поставлена в очередь или выполняется.
func (t *Tracker) IsRunning(id uuid.UUID) bool {
	return t.Status(id).Active()
}

// Result возвращает результат операции. Ошибка заполнена
// только для ResultFailed.
func (t *Tracker) Result(id uuid.UUID) (any, ResultStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookup(id)
	switch {
	case e == nil:
		return nil, ResultNotFound, nil
	case e.status.Active():
		return nil, ResultStillRunning, nil
	case e.status == StatusFailed:
		return nil, ResultFailed, e.err
	default:
		return e.result, ResultOK, nil
	}
}

// ResultAs возвращает результат операции, приведённый к типу T.
// Результат другого типа считается неуспешной операцией.
func ResultAs[T any](t *Tracker, id uuid.UUID) (T, ResultStatus, error) {
	var zero T
	raw, status, err := t.Result(id)
	if status != ResultOK {
		return zero, status, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, ResultFailed, fmt.Errorf("результат операции %s имеет тип %T", id, raw)
	}
	return v, ResultOK, nil
}

// Wait ждёт завершения операции. Для неизвестной операции
// возвращается сразу.
func (t *Tracker) Wait(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	e := t.lookup(id)
	t.mu.Unlock()
	if e == nil {
		return nil
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop прекращает приём работы, отменяет контекст операций
// и ждёт их завершения не дольше ctx.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Трекер операций остановлен")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ожидание завершения операций: %w", ctx.Err())
	}
}
