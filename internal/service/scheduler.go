// scheduler.go — плановая публикация и снятие с публикации.
//
// SchedulePublisher запускает фоновую горутину с ticker (CE_SCHEDULE_INTERVAL),
// которая выполняет наступившие записи расписаний документов:
// Release — публикация, Expire — снятие с публикации.
// Выполненные записи удаляются из расписания.
//
// Prometheus-метрики:
//   - ce_schedule_runs_total — проходы планировщика (по результату)
//   - ce_schedule_items_total — обработанные записи (по статусу)
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

var (
	scheduleRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ce_schedule_runs_total",
		Help: "Количество проходов плановой публикации",
	}, []string{"result"}) // result: ok, error

	scheduleItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ce_schedule_items_total",
		Help: "Количество выполненных записей расписания",
	}, []string{"status"})
)

// DueScheduleApplier выполняет наступившие записи расписаний.
type DueScheduleApplier interface {
	ApplyDueSchedules(ctx context.Context) ([]*model.PublishResult, error)
}

// SchedulePublisher — фоновый сервис плановой публикации.
type SchedulePublisher struct {
	scopes   ScopeProvider
	applier  DueScheduleApplier
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSchedulePublisher создаёт сервис плановой публикации.
func NewSchedulePublisher(scopes ScopeProvider, applier DueScheduleApplier, interval time.Duration, logger *slog.Logger) *SchedulePublisher {
	return &SchedulePublisher{
		scopes:   scopes,
		applier:  applier,
		interval: interval,
		logger:   logger.With(slog.String("component", "schedule_publisher")),
	}
}

// Start запускает фоновую горутину с периодической проверкой расписаний.
// Вызывается один раз при старте приложения.
func (p *SchedulePublisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		p.logger.Info("Плановая публикация запущена",
			slog.String("interval", p.interval.String()),
		)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Плановая публикация остановлена")
				return
			case <-ticker.C:
				if _, err := p.RunOnce(ctx); err != nil {
					p.logger.Error("Ошибка плановой публикации", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (p *SchedulePublisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

// RunOnce выполняет наступившие записи в одной единице работы
// и возвращает статусы выполненных операций.
func (p *SchedulePublisher) RunOnce(ctx context.Context) ([]model.OperationStatus, error) {
	results, err := inScope(ctx, p.scopes, p.applier.ApplyDueSchedules)
	if err != nil {
		scheduleRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	scheduleRunsTotal.WithLabelValues("ok").Inc()

	statuses := make([]model.OperationStatus, 0, len(results))
	for _, r := range results {
		status := ToOperationStatus(r.Type)
		statuses = append(statuses, status)
		scheduleItemsTotal.WithLabelValues(status.String()).Inc()
		if status != model.OperationStatusSuccess {
			p.logger.Warn("Запись расписания не выполнена",
				slog.String("content_key", r.Content.Key.String()),
				slog.String("status", status.String()),
			)
		}
	}
	if len(results) > 0 {
		p.logger.Info("Расписания выполнены", slog.Int("count", len(results)))
	}
	return statuses, nil
}
