package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

// LanguageSource — источник языков системы.
type LanguageSource interface {
	GetAll(ctx context.Context) ([]model.Language, error)
}

// Action — операция, о которой уведомляется Guard.
type Action int

const (
	ActionPublish Action = iota
	ActionUnpublish
)

// Guard вызывается перед сохранением публикации или снятия с публикации.
// false отменяет операцию.
type Guard func(ctx context.Context, c *model.Content, action Action, cultures []string) bool

// Option — опция Mutator.
type Option func(*Mutator)

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *Mutator) { m.now = now }
}

// WithGuard задаёт обработчик уведомлений перед сохранением.
func WithGuard(g Guard) Option {
	return func(m *Mutator) { m.guard = g }
}

// Mutator выполняет операции публикации над хранилищем документов:
// загружает окружение правила, применяет правило к копии документа
// и сохраняет её с проверкой версии строки.
type Mutator struct {
	store     repository.ContentRepository
	languages LanguageSource
	guard     Guard
	now       func() time.Time
	logger    *slog.Logger
}

// NewMutator создаёт исполнитель операций публикации.
func NewMutator(store repository.ContentRepository, languages LanguageSource, logger *slog.Logger, opts ...Option) *Mutator {
	m := &Mutator{
		store:     store,
		languages: languages,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "publishing")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetContent загружает документ по ключу.
func (m *Mutator) GetContent(ctx context.Context, key uuid.UUID) (*model.Content, error) {
	return m.store.GetContentByKey(ctx, key)
}

// GetSchedule загружает расписание документа.
func (m *Mutator) GetSchedule(ctx context.Context, c *model.Content) (*model.ScheduleCollection, error) {
	return m.store.GetSchedule(ctx, c.ID)
}

// PersistSchedule сохраняет расписание документа.
func (m *Mutator) PersistSchedule(ctx context.Context, c *model.Content, s *model.ScheduleCollection) error {
	return m.store.SaveSchedule(ctx, c.ID, s)
}

func (m *Mutator) env(ctx context.Context, c *model.Content, actorID int64) (Env, error) {
	langs, err := m.languages.GetAll(ctx)
	if err != nil {
		return Env{}, fmt.Errorf("получение языков: %w", err)
	}
	schedule, err := m.store.GetSchedule(ctx, c.ID)
	if err != nil {
		return Env{}, err
	}
	pathPublished, err := m.store.IsPathPublished(ctx, c)
	if err != nil {
		return Env{}, err
	}
	return Env{
		Languages:     langs,
		Schedule:      schedule,
		PathPublished: pathPublished,
		ActorID:       actorID,
		Now:           m.now().UTC(),
	}, nil
}

// Publish публикует документ или указанные культуры.
func (m *Mutator) Publish(ctx context.Context, c *model.Content, cultures []string, actorID int64) (*model.PublishResult, error) {
	if c.Dirty {
		return &model.PublishResult{Type: model.PublishResultFailedPublishUnsavedChanges, Content: c}, nil
	}
	env, err := m.env(ctx, c, actorID)
	if err != nil {
		return nil, err
	}
	if !m.allow(ctx, c, ActionPublish, cultures) {
		return &model.PublishResult{Type: model.PublishResultFailedPublishCancelledByEvent, Content: c}, nil
	}

	work := c.Clone()
	t := Publish(work, cultures, env)
	if !t.IsSuccess() || t == model.PublishResultSuccessPublishAlready {
		return &model.PublishResult{Type: t, Content: c}, nil
	}
	return m.save(ctx, c, work, t)
}

// Unpublish снимает документ или культуру с публикации.
// culture: "" — инвариантный документ, "*" — все культуры.
func (m *Mutator) Unpublish(ctx context.Context, c *model.Content, culture string, actorID int64) (*model.PublishResult, error) {
	env, err := m.env(ctx, c, actorID)
	if err != nil {
		return nil, err
	}
	if !m.allow(ctx, c, ActionUnpublish, []string{culture}) {
		return &model.PublishResult{Type: model.PublishResultFailedUnpublishCancelledByEvent, Content: c}, nil
	}

	work := c.Clone()
	t := Unpublish(work, culture, env)
	if !t.IsSuccess() || t == model.PublishResultSuccessUnpublishAlready {
		return &model.PublishResult{Type: t, Content: c}, nil
	}
	return m.save(ctx, c, work, t)
}

// PublishBranch публикует документ и его потомков.
// Потомки документа, исключённого фильтром или не опубликованного, пропускаются.
func (m *Mutator) PublishBranch(ctx context.Context, root *model.Content, filter model.PublishBranchFilter, cultures []string, actorID int64) ([]*model.PublishResult, error) {
	langs, err := m.languages.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение языков: %w", err)
	}
	rootPathPublished, err := m.store.IsPathPublished(ctx, root)
	if err != nil {
		return nil, err
	}

	var results []*model.PublishResult
	published := map[int64]bool{}

	process := func(c *model.Content, isRoot, pathPublished bool) error {
		schedule, err := m.store.GetSchedule(ctx, c.ID)
		if err != nil {
			return err
		}
		env := Env{
			Languages:     langs,
			Schedule:      schedule,
			PathPublished: pathPublished,
			ActorID:       actorID,
			Now:           m.now().UTC(),
		}

		work := c.Clone()
		t, included := PublishBranchItem(work, isRoot, cultures, filter, env)
		if !included {
			return nil
		}

		result := &model.PublishResult{Type: t, Content: c}
		switch {
		case c.Dirty:
			result.Type = model.PublishResultFailedPublishUnsavedChanges
		case t.IsSuccess() && t != model.PublishResultSuccessPublishAlready:
			if !m.allow(ctx, c, ActionPublish, cultures) {
				result.Type = model.PublishResultFailedPublishCancelledByEvent
				break
			}
			result, err = m.save(ctx, c, work, t)
			if err != nil {
				return err
			}
		}

		results = append(results, result)
		if result.Success() && c.Published {
			published[c.ID] = true
		}
		return nil
	}

	if err := process(root, true, rootPathPublished); err != nil {
		return nil, err
	}

	ids, err := m.store.GetDescendantIDs(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		c, err := m.store.GetContentByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !published[c.ParentID] {
			continue
		}
		if err := process(c, false, true); err != nil {
			return nil, err
		}
	}

	m.logger.Info("Ветвь опубликована",
		slog.String("root_key", root.Key.String()),
		slog.Int("processed", len(results)),
	)
	return results, nil
}

// ApplyDueSchedules выполняет наступившие записи расписаний от имени системного пользователя.
// Записи удаляются из расписания до выполнения.
func (m *Mutator) ApplyDueSchedules(ctx context.Context) ([]*model.PublishResult, error) {
	now := m.now().UTC()
	ids, err := m.store.GetScheduledNodeIDs(ctx, now)
	if err != nil {
		return nil, err
	}

	var results []*model.PublishResult
	for _, id := range ids {
		c, err := m.store.GetContentByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		schedule, err := m.store.GetSchedule(ctx, id)
		if err != nil {
			return nil, err
		}
		due := schedule.Due(now)
		if len(due) == 0 {
			continue
		}

		var releases, expires []string
		for _, e := range due {
			schedule.RemoveIfExists(e.Culture, e.Action)
			if e.Action == model.ScheduleActionRelease {
				releases = append(releases, e.Culture)
			} else {
				expires = append(expires, e.Culture)
			}
		}
		if err := m.store.SaveSchedule(ctx, id, schedule); err != nil {
			return nil, err
		}

		if len(releases) > 0 {
			r, err := m.Publish(ctx, c, scheduledCultures(c, releases), model.SystemActorID)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
		for _, culture := range expires {
			if !c.VariesByCulture() {
				culture = ""
			}
			r, err := m.Unpublish(ctx, c, culture, model.SystemActorID)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// scheduledCultures приводит культуры записей расписания к аргументу Publish.
func scheduledCultures(c *model.Content, cultures []string) []string {
	if !c.VariesByCulture() {
		return []string{model.InvariantCulture}
	}
	var out []string
	for _, iso := range cultures {
		if iso == model.InvariantCulture {
			return c.AvailableCultures()
		}
		out = append(out, iso)
	}
	return out
}

func (m *Mutator) allow(ctx context.Context, c *model.Content, action Action, cultures []string) bool {
	if m.guard == nil {
		return true
	}
	return m.guard(ctx, c, action, cultures)
}

// save сохраняет изменённую копию; при успехе переносит её состояние в c.
func (m *Mutator) save(ctx context.Context, c, work *model.Content, t model.PublishResultType) (*model.PublishResult, error) {
	if err := m.store.SaveContent(ctx, work); err != nil {
		if errors.Is(err, repository.ErrConcurrencyViolation) {
			m.logger.Warn("Документ изменён параллельно",
				slog.Int64("node_id", c.ID),
				slog.Int64("row_version", c.RowVersion),
			)
			return &model.PublishResult{Type: model.PublishResultFailedPublishConcurrencyViolation, Content: c}, nil
		}
		return nil, fmt.Errorf("сохранение документа %d: %w", c.ID, err)
	}
	*c = *work
	return &model.PublishResult{Type: t, Content: c}, nil
}
