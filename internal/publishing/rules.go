// Пакет publishing — правила изменения состояния публикации документа
// и исполнитель операций поверх хранилища документов.
// Правила работают с загруженным документом и не обращаются к хранилищу.
package publishing

import (
	"slices"
	"time"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

// Env — окружение, в котором применяется правило.
type Env struct {
	// Languages — языки системы (обязательные культуры)
	Languages []model.Language
	// Schedule — сохранённое расписание документа
	Schedule *model.ScheduleCollection
	// PathPublished — все предки документа опубликованы
	PathPublished bool
	// ActorID — идентификатор пользователя, выполняющего операцию
	ActorID int64
	// Now — текущее время
	Now time.Time
}

// Publish публикует документ (инвариантный) или указанные культуры (варьируемый).
func Publish(c *model.Content, cultures []string, env Env) model.PublishResultType {
	return publish(c, cultures, env, false)
}

func publish(c *model.Content, cultures []string, env Env, force bool) model.PublishResultType {
	if c.Trashed {
		return model.PublishResultFailedPublishIsTrashed
	}
	if !env.PathPublished {
		return model.PublishResultFailedPublishPathNotPublished
	}
	if !c.VariesByCulture() {
		return publishInvariant(c, env, force)
	}
	return publishCultures(c, cultures, env, force)
}

func publishInvariant(c *model.Content, env Env, force bool) model.PublishResultType {
	if e, ok := env.Schedule.Get(model.InvariantCulture, model.ScheduleActionExpire); ok && !e.Date.After(env.Now) {
		return model.PublishResultFailedPublishHasExpired
	}
	if e, ok := env.Schedule.Get(model.InvariantCulture, model.ScheduleActionRelease); ok && e.Date.After(env.Now) {
		return model.PublishResultFailedPublishAwaitingRelease
	}
	if c.Published && !c.Edited && !force {
		return model.PublishResultSuccessPublishAlready
	}
	c.Published = true
	c.Edited = false
	markPublished(c, env)
	return model.PublishResultSuccessPublish
}

func publishCultures(c *model.Content, cultures []string, env Env, force bool) model.PublishResultType {
	if len(cultures) == 0 {
		return model.PublishResultFailedPublishNothingToPublish
	}
	requested := make(map[string]struct{}, len(cultures))
	for _, iso := range cultures {
		if !c.IsCultureAvailable(iso) {
			return model.PublishResultFailedPublishContentInvalid
		}
		if e, ok := env.Schedule.Get(iso, model.ScheduleActionExpire); ok && !e.Date.After(env.Now) {
			return model.PublishResultFailedPublishCultureHasExpired
		}
		if e, ok := env.Schedule.Get(iso, model.ScheduleActionRelease); ok && e.Date.After(env.Now) {
			return model.PublishResultFailedPublishCultureAwaitingRelease
		}
		requested[iso] = struct{}{}
	}
	for _, lang := range env.Languages {
		if !lang.IsMandatory || c.IsCulturePublished(lang.IsoCode) {
			continue
		}
		if _, ok := requested[lang.IsoCode]; !ok {
			return model.PublishResultFailedPublishMandatoryCultureMissing
		}
	}

	already := true
	for iso := range requested {
		v := c.Cultures[iso]
		if !v.Published || v.Edited {
			already = false
			break
		}
	}
	if already && !force {
		return model.PublishResultSuccessPublishAlready
	}

	for iso := range requested {
		v := c.Cultures[iso]
		v.Published = true
		v.Edited = false
	}
	c.Published = true
	c.Edited = false
	for _, v := range c.Cultures {
		if v.Available && v.Edited {
			c.Edited = true
		}
	}
	markPublished(c, env)
	return model.PublishResultSuccessPublishCulture
}

func markPublished(c *model.Content, env Env) {
	c.PublishedVersion = &model.PublishedVersion{
		VersionID:   c.Version.ID,
		PublishedAt: env.Now,
		PublisherID: env.ActorID,
	}
}

// Unpublish снимает документ с публикации.
// culture: "" — инвариантный документ целиком, "*" — все культуры, иначе одна культура.
// Снятие обязательной культуры снимает весь документ.
func Unpublish(c *model.Content, culture string, env Env) model.PublishResultType {
	switch culture {
	case "":
		if c.VariesByCulture() {
			return model.PublishResultFailedUnpublish
		}
		if !c.Published {
			return model.PublishResultSuccessUnpublishAlready
		}
		c.Published = false
		c.Edited = true
		return model.PublishResultSuccessUnpublish

	case model.InvariantCulture:
		if !c.VariesByCulture() {
			return model.PublishResultFailedUnpublish
		}
		if !c.Published && len(c.PublishedCultures()) == 0 {
			return model.PublishResultSuccessUnpublishAlready
		}
		unpublishAll(c)
		return model.PublishResultSuccessUnpublish
	}

	if !c.VariesByCulture() {
		return model.PublishResultFailedUnpublish
	}
	if !c.IsCulturePublished(culture) {
		return model.PublishResultSuccessUnpublishAlready
	}
	if isMandatory(culture, env.Languages) {
		unpublishAll(c)
		return model.PublishResultSuccessUnpublishMandatoryCulture
	}
	c.Cultures[culture].Published = false
	c.Edited = true
	if len(c.PublishedCultures()) == 0 {
		c.Published = false
		return model.PublishResultSuccessUnpublishLastCulture
	}
	return model.PublishResultSuccessUnpublishCulture
}

func unpublishAll(c *model.Content) {
	for _, v := range c.Cultures {
		v.Published = false
	}
	c.Published = false
	c.Edited = true
}

func isMandatory(culture string, langs []model.Language) bool {
	for _, l := range langs {
		if l.IsoCode == culture {
			return l.IsMandatory
		}
	}
	return false
}

// PublishBranchItem применяет публикацию ветви к одному документу.
// included = false — документ исключён фильтром, его потомки не обрабатываются.
// Корень ветви фильтром не отсекается.
func PublishBranchItem(c *model.Content, isRoot bool, cultures []string, filter model.PublishBranchFilter, env Env) (result model.PublishResultType, included bool) {
	if !isRoot && !c.Published && !filter.Has(model.PublishBranchIncludeUnpublished) {
		return 0, false
	}
	force := filter.Has(model.PublishBranchForceRepublish)
	if !c.VariesByCulture() {
		return publish(c, nil, env, force), true
	}

	effective, requested := branchCultures(c, cultures)
	if len(effective) == 0 {
		return model.PublishResultFailedPublishNothingToPublish, true
	}
	result = publish(c, effective, env, force)
	if result.IsSuccess() && len(effective) < requested {
		return model.PublishResultSuccessMixedCulture, true
	}
	return result, true
}

// branchCultures отбирает доступные культуры из запрошенных.
// "*" означает все доступные культуры документа.
func branchCultures(c *model.Content, cultures []string) (effective []string, requested int) {
	if slices.Contains(cultures, model.InvariantCulture) {
		available := c.AvailableCultures()
		return available, len(available)
	}
	seen := map[string]struct{}{}
	for _, iso := range cultures {
		if _, dup := seen[iso]; dup {
			continue
		}
		seen[iso] = struct{}{}
		if c.IsCultureAvailable(iso) {
			effective = append(effective, iso)
		}
	}
	return effective, len(seen)
}
