// publishing.go — сервис публикации документов.
//
// ContentPublishingService проверяет запрос (культуры, расписание, значения
// свойств), делегирует изменение состояния хранилищу документов и сводит
// результат к закрытому набору model.OperationStatus.
// Каждая операция выполняется в одной единице работы, которая фиксируется
// ровно один раз на любом пути, вернувшем статус. Ошибка инфраструктуры
// откатывает единицу работы.
//
// Публикация ветви в фоне ставится в трекер операций с типом
// "ContentPublishBranch"; параллельные публикации ветвей разрешены.
//
// Prometheus-метрики:
//   - ce_publish_total — операции публикации (по операции и статусу)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/operation"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

// PublishBranchOperationType — тип фоновой операции публикации ветви.
const PublishBranchOperationType = "ContentPublishBranch"

var publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ce_publish_total",
	Help: "Количество операций публикации",
}, []string{"operation", "status"}) // operation: publish, unpublish, publish_branch

// ContentStore — операции над документами, нужные сервису публикации.
type ContentStore interface {
	GetContent(ctx context.Context, key uuid.UUID) (*model.Content, error)
	GetSchedule(ctx context.Context, c *model.Content) (*model.ScheduleCollection, error)
	PersistSchedule(ctx context.Context, c *model.Content, s *model.ScheduleCollection) error
	Publish(ctx context.Context, c *model.Content, cultures []string, actorID int64) (*model.PublishResult, error)
	Unpublish(ctx context.Context, c *model.Content, culture string, actorID int64) (*model.PublishResult, error)
	PublishBranch(ctx context.Context, root *model.Content, filter model.PublishBranchFilter, cultures []string, actorID int64) ([]*model.PublishResult, error)
}

// ScopeProvider открывает единицу работы.
type ScopeProvider interface {
	Begin(ctx context.Context) (context.Context, repository.Scope, error)
}

// LanguageService — языки системы.
type LanguageService interface {
	GetAll(ctx context.Context) ([]model.Language, error)
	GetDefault(ctx context.Context) (*model.Language, error)
}

// PropertyValidator проверяет значения свойств.
type PropertyValidator interface {
	ValidateProperties(ctx context.Context, m *model.ContentUpdateModel, ct *model.ContentType, cultures []string) ([]model.PropertyViolation, error)
}

// OperationRunner — трекер фоновых операций.
type OperationRunner interface {
	Run(ctx context.Context, opType string, work operation.Work, allowConcurrent bool) (uuid.UUID, error)
	Status(id uuid.UUID) operation.Status
	Result(id uuid.UUID) (any, operation.ResultStatus, error)
}

// PublishingSettings — настройки публикации.
type PublishingSettings struct {
	// DisableUnpublishWhenReferenced — запрет снятия с публикации документа,
	// на который ссылаются другие документы
	DisableUnpublishWhenReferenced bool
}

// CultureSchedule — даты плановой публикации и снятия культуры.
// nil-дата удаляет соответствующую запись расписания.
type CultureSchedule struct {
	PublishDate   *time.Time
	UnpublishDate *time.Time
}

// CulturePublishSchedule — запрос на публикацию культуры.
// Без расписания культура публикуется сразу. Пустая культура — инвариант "*".
type CulturePublishSchedule struct {
	Culture  string
	Schedule *CultureSchedule
}

// PublishingResult — результат публикации документа.
type PublishingResult struct {
	Content *model.Content
	// InvalidPropertyAliases — свойства, не прошедшие проверку
	InvalidPropertyAliases []string
}

// BranchItemResult — статус одного документа ветви.
type BranchItemResult struct {
	Key    uuid.UUID
	Status model.OperationStatus
}

// BranchResult — результат публикации ветви.
type BranchResult struct {
	// Content — корень ветви
	Content        *model.Content
	SucceededItems []BranchItemResult
	FailedItems    []BranchItemResult
	// AcceptedTaskID — идентификатор фоновой операции (статус Accepted)
	AcceptedTaskID uuid.UUID
}

// branchOutcome — результат выполнения публикации ветви.
// В фоновом режиме сохраняется в трекере без самого документа.
type branchOutcome struct {
	Status     model.OperationStatus
	ContentKey uuid.UUID
	Content    *model.Content
	Succeeded  []BranchItemResult
	Failed     []BranchItemResult
}

// ContentPublishingService — сервис публикации документов.
type ContentPublishingService struct {
	scopes     ScopeProvider
	store      ContentStore
	types      repository.ContentTypeRepository
	actors     repository.ActorRepository
	relations  repository.RelationRepository
	languages  LanguageService
	validator  PropertyValidator
	operations OperationRunner
	settings   PublishingSettings
	logger     *slog.Logger
}

// NewContentPublishingService создаёт сервис публикации.
func NewContentPublishingService(
	scopes ScopeProvider,
	store ContentStore,
	types repository.ContentTypeRepository,
	actors repository.ActorRepository,
	relations repository.RelationRepository,
	languages LanguageService,
	validator PropertyValidator,
	operations OperationRunner,
	settings PublishingSettings,
	logger *slog.Logger,
) *ContentPublishingService {
	return &ContentPublishingService{
		scopes:     scopes,
		store:      store,
		types:      types,
		actors:     actors,
		relations:  relations,
		languages:  languages,
		validator:  validator,
		operations: operations,
		settings:   settings,
		logger:     logger.With(slog.String("component", "publishing_service")),
	}
}

// inScope выполняет fn в единице работы. Единица фиксируется, если fn
// вернула результат без ошибки, и откатывается в противном случае.
func inScope[T any](ctx context.Context, scopes ScopeProvider, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	scopeCtx, sc, err := scopes.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("открытие единицы работы: %w", err)
	}

	out, err := fn(scopeCtx)
	if err != nil {
		_ = sc.Close()
		return zero, err
	}
	sc.Complete()
	if err := sc.Close(); err != nil {
		return zero, fmt.Errorf("фиксация единицы работы: %w", err)
	}
	return out, nil
}

// CheckReady сообщает готовность публикации для /health/ready:
// без языка по умолчанию инвариантный контент публикуется только как "*".
func (s *ContentPublishingService) CheckReady(ctx context.Context) (string, string) {
	def, err := s.languages.GetDefault(ctx)
	if err != nil {
		return "fail", err.Error()
	}
	if def == nil {
		return "degraded", "язык по умолчанию не задан"
	}
	return "ok", ""
}

type publishOutcome struct {
	status model.OperationStatus
	result *PublishingResult
}

// Publish публикует культуры документа и обновляет его расписание.
func (s *ContentPublishingService) Publish(ctx context.Context, key uuid.UUID, requests []CulturePublishSchedule, actorKey uuid.UUID) (model.OperationStatus, *PublishingResult, error) {
	out, err := inScope(ctx, s.scopes, func(ctx context.Context) (publishOutcome, error) {
		return s.publish(ctx, key, requests, actorKey)
	})
	if err != nil {
		return model.OperationStatusUnknown, nil, err
	}
	publishTotal.WithLabelValues("publish", out.status.String()).Inc()
	s.logger.Info("Публикация документа",
		slog.String("content_key", key.String()),
		slog.String("status", out.status.String()),
	)
	return out.status, out.result, nil
}

func (s *ContentPublishingService) publish(ctx context.Context, key uuid.UUID, requests []CulturePublishSchedule, actorKey uuid.UUID) (publishOutcome, error) {
	empty := &PublishingResult{}

	c, err := s.store.GetContent(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return publishOutcome{model.OperationStatusContentNotFound, empty}, nil
	}
	if err != nil {
		return publishOutcome{}, fmt.Errorf("загрузка документа %s: %w", key, err)
	}

	schedule, err := s.store.GetSchedule(ctx, c)
	if err != nil {
		return publishOutcome{}, fmt.Errorf("загрузка расписания: %w", err)
	}

	// Для инвариантного документа культура по умолчанию означает весь документ.
	varies := c.VariesByCulture()
	defaultCulture := ""
	if !varies {
		def, err := s.languages.GetDefault(ctx)
		if err != nil {
			return publishOutcome{}, fmt.Errorf("язык по умолчанию: %w", err)
		}
		if def != nil {
			defaultCulture = def.IsoCode
		}
	}

	var immediate []string
	requestedDefault := false
	for _, r := range requests {
		culture := r.Culture
		if !varies && defaultCulture != "" && culture == defaultCulture {
			requestedDefault = true
		}
		if culture == "" || (!varies && culture == defaultCulture) {
			culture = model.InvariantCulture
		}
		if r.Schedule == nil {
			if !slices.Contains(immediate, culture) {
				immediate = append(immediate, culture)
			}
			continue
		}
		if r.Schedule.PublishDate == nil {
			schedule.RemoveIfExists(culture, model.ScheduleActionRelease)
		} else {
			schedule.AddOrUpdate(culture, *r.Schedule.PublishDate, model.ScheduleActionRelease)
		}
		if r.Schedule.UnpublishDate == nil {
			schedule.RemoveIfExists(culture, model.ScheduleActionExpire)
		} else {
			schedule.AddOrUpdate(culture, *r.Schedule.UnpublishDate, model.ScheduleActionExpire)
		}
	}

	// Ничего не запрошено: расписание очищается, публикации нет.
	if len(immediate) == 0 && schedule.Len() == 0 {
		if err := s.store.PersistSchedule(ctx, c, schedule); err != nil {
			return publishOutcome{}, fmt.Errorf("сохранение расписания: %w", err)
		}
		return publishOutcome{model.OperationStatusSuccess, &PublishingResult{Content: c}}, nil
	}

	cultures := slices.Clone(immediate)
	for _, culture := range schedule.Cultures() {
		if !slices.Contains(cultures, culture) {
			cultures = append(cultures, culture)
		}
	}

	// Запрошенный язык по умолчанию поглощает остальные культуры инвариантного документа.
	if requestedDefault {
		if slices.Contains(cultures, model.InvariantCulture) {
			cultures = []string{model.InvariantCulture}
		}
		if slices.Contains(immediate, model.InvariantCulture) {
			immediate = []string{model.InvariantCulture}
		}
	}

	status, err := s.checkPublishCultures(ctx, varies, cultures)
	if err != nil {
		return publishOutcome{}, err
	}
	if status != model.OperationStatusSuccess {
		return publishOutcome{status, empty}, nil
	}

	invalid, err := s.validateCurrent(ctx, c, cultures)
	if err != nil {
		return publishOutcome{}, err
	}
	if len(invalid) > 0 {
		return publishOutcome{model.OperationStatusContentInvalid, &PublishingResult{
			Content:                c,
			InvalidPropertyAliases: invalid,
		}}, nil
	}

	actorID, err := s.resolveActor(ctx, actorKey)
	if err != nil {
		return publishOutcome{}, err
	}

	var result *model.PublishResult
	if len(immediate) > 0 {
		result, err = s.store.Publish(ctx, c, immediate, actorID)
		if err != nil {
			return publishOutcome{}, fmt.Errorf("публикация документа %s: %w", key, err)
		}
	}

	if (result == nil || result.Success()) && schedule.Len() > 0 {
		target := c
		if result != nil && result.Content != nil {
			target = result.Content
		}
		if err := s.store.PersistSchedule(ctx, target, schedule); err != nil {
			return publishOutcome{}, fmt.Errorf("сохранение расписания: %w", err)
		}
		result = &model.PublishResult{Type: model.PublishResultSuccessPublish, Content: target}
	}

	if result == nil {
		return publishOutcome{model.OperationStatusNothingToPublish, empty}, nil
	}

	status = ToOperationStatus(result.Type)
	if status == model.OperationStatusSuccess {
		return publishOutcome{status, &PublishingResult{Content: c}}, nil
	}
	return publishOutcome{status, &PublishingResult{
		Content:                c,
		InvalidPropertyAliases: slices.Clone(result.InvalidProperties),
	}}, nil
}

// checkPublishCultures проверяет набор культур относительно вариативности документа.
func (s *ContentPublishingService) checkPublishCultures(ctx context.Context, varies bool, cultures []string) (model.OperationStatus, error) {
	if !varies {
		if len(cultures) != 1 || cultures[0] != model.InvariantCulture {
			return model.OperationStatusInvalidCulture, nil
		}
		return model.OperationStatusSuccess, nil
	}

	if len(cultures) == 0 {
		return model.OperationStatusCultureMissing, nil
	}
	if slices.Contains(cultures, model.InvariantCulture) {
		return model.OperationStatusCannotPublishInvariantWhenVariant, nil
	}
	valid, err := s.validCultures(ctx)
	if err != nil {
		return 0, err
	}
	for _, culture := range cultures {
		if _, ok := valid[culture]; !ok {
			return model.OperationStatusInvalidCulture, nil
		}
	}
	return model.OperationStatusSuccess, nil
}

func (s *ContentPublishingService) validCultures(ctx context.Context) (map[string]struct{}, error) {
	langs, err := s.languages.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение языков: %w", err)
	}
	valid := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		valid[l.IsoCode] = struct{}{}
	}
	return valid, nil
}

// validateCurrent проверяет текущие значения свойств документа для культур
// и возвращает алиасы свойств с нарушениями.
func (s *ContentPublishingService) validateCurrent(ctx context.Context, c *model.Content, cultures []string) ([]string, error) {
	ct, err := s.types.GetContentTypeByKey(ctx, c.ContentType.Key)
	if err != nil {
		return nil, fmt.Errorf("загрузка типа контента: %w", err)
	}

	// "" — инвариантные свойства; для варьируемого документа к ним
	// добавляются варьируемые свойства каждой культуры.
	effective := []string{""}
	if c.VariesByCulture() {
		effective = append(effective, cultures...)
	}

	m := &model.ContentUpdateModel{}
	for _, culture := range effective {
		for _, pt := range ct.Properties {
			if pt.VariesByCulture != (culture != "") {
				continue
			}
			value, _ := c.Value(pt.Alias, culture)
			m.Properties = append(m.Properties, model.PropertyValue{Alias: pt.Alias, Value: value, Culture: culture})
		}
	}
	for _, culture := range cultures {
		m.Variants = append(m.Variants, model.VariantName{Name: c.PublishName(culture), Culture: culture})
	}

	violations, err := s.validator.ValidateProperties(ctx, m, ct, cultures)
	if err != nil {
		return nil, fmt.Errorf("проверка свойств: %w", err)
	}
	var aliases []string
	for _, v := range violations {
		if !slices.Contains(aliases, v.Alias) {
			aliases = append(aliases, v.Alias)
		}
	}
	return aliases, nil
}

// resolveActor сопоставляет ключ пользователя с идентификатором.
// Неизвестный ключ — ошибка.
func (s *ContentPublishingService) resolveActor(ctx context.Context, actorKey uuid.UUID) (int64, error) {
	id, err := s.actors.GetActorID(ctx, actorKey)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%w: пользователь %s", ErrNotFound, actorKey)
	}
	if err != nil {
		return 0, fmt.Errorf("получение пользователя %s: %w", actorKey, err)
	}
	return id, nil
}

// Unpublish снимает документ с публикации.
// cultures == nil — инвариантный документ целиком; пустой непустой срез — CultureMissing;
// "*" — все культуры; иначе культуры по очереди до первой неудачи.
// Уже снятые культуры при неудаче не восстанавливаются.
func (s *ContentPublishingService) Unpublish(ctx context.Context, key uuid.UUID, cultures []string, actorKey uuid.UUID) (model.OperationStatus, error) {
	status, err := inScope(ctx, s.scopes, func(ctx context.Context) (model.OperationStatus, error) {
		return s.unpublish(ctx, key, cultures, actorKey)
	})
	if err != nil {
		return model.OperationStatusUnknown, err
	}
	publishTotal.WithLabelValues("unpublish", status.String()).Inc()
	s.logger.Info("Снятие документа с публикации",
		slog.String("content_key", key.String()),
		slog.String("status", status.String()),
	)
	return status, nil
}

func (s *ContentPublishingService) unpublish(ctx context.Context, key uuid.UUID, cultures []string, actorKey uuid.UUID) (model.OperationStatus, error) {
	c, err := s.store.GetContent(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return model.OperationStatusContentNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("загрузка документа %s: %w", key, err)
	}

	if s.settings.DisableUnpublishWhenReferenced {
		referenced, err := s.relations.IsReferenced(ctx, c.ID)
		if err != nil {
			return 0, fmt.Errorf("проверка связей: %w", err)
		}
		if referenced {
			return model.OperationStatusCannotUnpublishWhenReferenced, nil
		}
	}

	actorID, err := s.resolveActor(ctx, actorKey)
	if err != nil {
		return 0, err
	}

	if cultures != nil && !c.VariesByCulture() {
		def, err := s.languages.GetDefault(ctx)
		if err != nil {
			return 0, fmt.Errorf("язык по умолчанию: %w", err)
		}
		if def != nil && slices.Contains(cultures, def.IsoCode) {
			cultures = nil
		}
	}

	switch {
	case cultures == nil:
		if c.VariesByCulture() {
			return model.OperationStatusCannotPublishInvariantWhenVariant, nil
		}
		return s.unpublishOne(ctx, c, "", actorID)
	case len(cultures) == 0:
		return model.OperationStatusCultureMissing, nil
	case slices.Contains(cultures, model.InvariantCulture):
		if !c.VariesByCulture() {
			return model.OperationStatusCannotPublishVariantWhenNotVariant, nil
		}
		return s.unpublishOne(ctx, c, model.InvariantCulture, actorID)
	}

	if !c.VariesByCulture() {
		return model.OperationStatusCannotPublishVariantWhenNotVariant, nil
	}
	valid, err := s.validCultures(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(cultures))
	for _, culture := range cultures {
		if _, dup := seen[culture]; dup {
			continue
		}
		seen[culture] = struct{}{}
		if _, ok := valid[culture]; !ok {
			return model.OperationStatusInvalidCulture, nil
		}
		status, err := s.unpublishOne(ctx, c, culture, actorID)
		if err != nil {
			return 0, err
		}
		if status != model.OperationStatusSuccess {
			s.logger.Warn("Снятие культур прервано, снятые ранее культуры не восстанавливаются",
				slog.String("content_key", key.String()),
				slog.String("culture", culture),
				slog.String("status", status.String()),
			)
			return status, nil
		}
	}
	return model.OperationStatusSuccess, nil
}

func (s *ContentPublishingService) unpublishOne(ctx context.Context, c *model.Content, culture string, actorID int64) (model.OperationStatus, error) {
	result, err := s.store.Unpublish(ctx, c, culture, actorID)
	if err != nil {
		return 0, fmt.Errorf("снятие с публикации документа %s: %w", c.Key, err)
	}
	return ToOperationStatus(result.Type), nil
}

// PublishBranch публикует документ и его поддерево.
// background = false — синхронно, результат содержит корень ветви.
// background = true — операция ставится в трекер, возвращается Accepted
// с идентификатором; ошибка постановки — Unknown с корнем среди неудачных.
func (s *ContentPublishingService) PublishBranch(
	ctx context.Context,
	key uuid.UUID,
	cultures []string,
	filter model.PublishBranchFilter,
	actorKey uuid.UUID,
	background bool,
) (model.OperationStatus, *BranchResult, error) {
	if !background {
		out, err := s.performPublishBranch(ctx, key, cultures, filter, actorKey, true)
		if err != nil {
			return model.OperationStatusUnknown, nil, err
		}
		return out.Status, s.branchResult(ctx, out), nil
	}

	s.logger.Info("Публикация ветви поставлена в фоновую очередь",
		slog.String("content_key", key.String()),
	)
	taskID, err := s.operations.Run(ctx, PublishBranchOperationType, func(ctx context.Context) (any, error) {
		return s.performPublishBranch(ctx, key, slices.Clone(cultures), filter, actorKey, false)
	}, true)
	if err != nil {
		s.logger.Error("Ошибка постановки публикации ветви в очередь",
			slog.String("content_key", key.String()),
			slog.String("error", err.Error()),
		)
		publishTotal.WithLabelValues("publish_branch", model.OperationStatusUnknown.String()).Inc()
		return model.OperationStatusUnknown, &BranchResult{
			FailedItems: []BranchItemResult{{Key: key, Status: model.OperationStatusUnknown}},
		}, nil
	}
	return model.OperationStatusAccepted, &BranchResult{AcceptedTaskID: taskID}, nil
}

func (s *ContentPublishingService) performPublishBranch(
	ctx context.Context,
	key uuid.UUID,
	cultures []string,
	filter model.PublishBranchFilter,
	actorKey uuid.UUID,
	returnContent bool,
) (*branchOutcome, error) {
	out, err := inScope(ctx, s.scopes, func(ctx context.Context) (*branchOutcome, error) {
		c, err := s.store.GetContent(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			return &branchOutcome{
				Status: model.OperationStatusContentNotFound,
				Failed: []BranchItemResult{{Key: key, Status: model.OperationStatusContentNotFound}},
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("загрузка документа %s: %w", key, err)
		}

		actorID, err := s.resolveActor(ctx, actorKey)
		if err != nil {
			return nil, err
		}
		results, err := s.store.PublishBranch(ctx, c, filter, cultures, actorID)
		if err != nil {
			return nil, fmt.Errorf("публикация ветви %s: %w", key, err)
		}

		out := &branchOutcome{ContentKey: c.Key}
		if returnContent {
			out.Content = c
		}
		for _, r := range results {
			item := BranchItemResult{Key: r.Content.Key, Status: ToOperationStatus(r.Type)}
			if item.Status == model.OperationStatusSuccess {
				out.Succeeded = append(out.Succeeded, item)
			} else {
				out.Failed = append(out.Failed, item)
			}
		}
		out.Status = model.OperationStatusSuccess
		if len(out.Failed) > 0 {
			out.Status = model.OperationStatusFailedBranch
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	publishTotal.WithLabelValues("publish_branch", out.Status.String()).Inc()
	s.logger.Info("Публикация ветви завершена",
		slog.String("content_key", key.String()),
		slog.String("status", out.Status.String()),
		slog.Int("succeeded", len(out.Succeeded)),
		slog.Int("failed", len(out.Failed)),
	)
	return out, nil
}

// branchResult строит результат для вызывающего; корень без документа
// загружается повторно по ключу.
func (s *ContentPublishingService) branchResult(ctx context.Context, out *branchOutcome) *BranchResult {
	result := &BranchResult{
		Content:        out.Content,
		SucceededItems: out.Succeeded,
		FailedItems:    out.Failed,
	}
	if result.Content == nil && out.ContentKey != uuid.Nil {
		c, err := s.store.GetContent(ctx, out.ContentKey)
		if err == nil {
			result.Content = c
		}
	}
	return result
}

// IsPublishingBranch — фоновая публикация ветви ещё не завершилась.
func (s *ContentPublishingService) IsPublishingBranch(taskID uuid.UUID) bool {
	return s.operations.Status(taskID).Active()
}

// GetPublishBranchResult возвращает результат фоновой публикации ветви.
// Не найдена — TaskResultNotFound, выполняется — TaskStillRunning,
// завершилась ошибкой — Failed.
func (s *ContentPublishingService) GetPublishBranchResult(ctx context.Context, taskID uuid.UUID) (model.OperationStatus, *BranchResult) {
	raw, rs, err := s.operations.Result(taskID)
	switch rs {
	case operation.ResultNotFound:
		return model.OperationStatusTaskResultNotFound, &BranchResult{}
	case operation.ResultStillRunning:
		return model.OperationStatusTaskStillRunning, &BranchResult{}
	case operation.ResultFailed:
		s.logger.Warn("Фоновая публикация ветви завершилась ошибкой",
			slog.String("operation_id", taskID.String()),
			slog.Any("error", err),
		)
		return model.OperationStatusFailed, &BranchResult{}
	}

	out, ok := raw.(*branchOutcome)
	if !ok || out == nil {
		return model.OperationStatusFailed, &BranchResult{}
	}
	return out.Status, s.branchResult(ctx, out)
}

// ToOperationStatus сводит результат хранилища к статусу операции.
// Неизвестный результат — ошибка программы, вызывается panic.
func ToOperationStatus(t model.PublishResultType) model.OperationStatus {
	switch t {
	case model.PublishResultSuccessPublish,
		model.PublishResultSuccessPublishCulture,
		model.PublishResultSuccessPublishAlready,
		model.PublishResultSuccessUnpublish,
		model.PublishResultSuccessUnpublishAlready,
		model.PublishResultSuccessUnpublishCulture,
		model.PublishResultSuccessUnpublishMandatoryCulture,
		model.PublishResultSuccessUnpublishLastCulture,
		model.PublishResultSuccessMixedCulture:
		return model.OperationStatusSuccess
	case model.PublishResultFailedPublish, model.PublishResultFailedUnpublish:
		return model.OperationStatusFailed
	case model.PublishResultFailedPublishPathNotPublished:
		return model.OperationStatusPathNotPublished
	case model.PublishResultFailedPublishHasExpired:
		return model.OperationStatusHasExpired
	case model.PublishResultFailedPublishAwaitingRelease:
		return model.OperationStatusAwaitingRelease
	case model.PublishResultFailedPublishCultureHasExpired:
		return model.OperationStatusCultureHasExpired
	case model.PublishResultFailedPublishCultureAwaitingRelease:
		return model.OperationStatusCultureAwaitingRelease
	case model.PublishResultFailedPublishIsTrashed:
		return model.OperationStatusInTrash
	case model.PublishResultFailedPublishCancelledByEvent, model.PublishResultFailedUnpublishCancelledByEvent:
		return model.OperationStatusCancelledByEvent
	case model.PublishResultFailedPublishContentInvalid:
		return model.OperationStatusContentInvalid
	case model.PublishResultFailedPublishNothingToPublish:
		return model.OperationStatusNothingToPublish
	case model.PublishResultFailedPublishMandatoryCultureMissing:
		return model.OperationStatusMandatoryCultureMissing
	case model.PublishResultFailedPublishConcurrencyViolation:
		return model.OperationStatusConcurrencyViolation
	case model.PublishResultFailedPublishUnsavedChanges:
		return model.OperationStatusUnsavedChanges
	}
	panic(fmt.Sprintf("неизвестный результат публикации: %d", int(t)))
}
