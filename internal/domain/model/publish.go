package model

// PublishResultType — исход операции хранилища над контентом.
type PublishResultType int

// Успешные исходы.
const (
	PublishResultSuccessPublish PublishResultType = iota + 1
	PublishResultSuccessPublishCulture
	PublishResultSuccessPublishAlready
	PublishResultSuccessUnpublish
	PublishResultSuccessUnpublishAlready
	PublishResultSuccessUnpublishCulture
	PublishResultSuccessUnpublishMandatoryCulture
	PublishResultSuccessUnpublishLastCulture
	PublishResultSuccessMixedCulture
)

// Неуспешные исходы.
const (
	PublishResultFailedPublish PublishResultType = iota + 100
	PublishResultFailedPublishPathNotPublished
	PublishResultFailedPublishHasExpired
	PublishResultFailedPublishAwaitingRelease
	PublishResultFailedPublishCultureHasExpired
	PublishResultFailedPublishCultureAwaitingRelease
	PublishResultFailedPublishIsTrashed
	PublishResultFailedPublishCancelledByEvent
	PublishResultFailedPublishContentInvalid
	PublishResultFailedPublishNothingToPublish
	PublishResultFailedPublishMandatoryCultureMissing
	PublishResultFailedPublishConcurrencyViolation
	PublishResultFailedPublishUnsavedChanges
	PublishResultFailedUnpublish
	PublishResultFailedUnpublishCancelledByEvent
)

// IsSuccess — исход успешный.
func (t PublishResultType) IsSuccess() bool {
	return t >= PublishResultSuccessPublish && t < PublishResultFailedPublish
}

// PublishResult — результат операции хранилища.
type PublishResult struct {
	Type    PublishResultType
	Content *Content
	// InvalidProperties — алиасы свойств, не прошедших проверку
	InvalidProperties []string
}

// Success — исход успешный.
func (r *PublishResult) Success() bool {
	return r != nil && r.Type.IsSuccess()
}

// PublishBranchFilter — флаги публикации ветви.
type PublishBranchFilter int

const (
	// PublishBranchDefault — только опубликованные узлы с изменениями
	PublishBranchDefault PublishBranchFilter = 0
	// PublishBranchIncludeUnpublished — публиковать и неопубликованные узлы
	PublishBranchIncludeUnpublished PublishBranchFilter = 1
	// PublishBranchForceRepublish — переопубликовать узлы без изменений
	PublishBranchForceRepublish PublishBranchFilter = 2
	// PublishBranchAll — все флаги
	PublishBranchAll = PublishBranchIncludeUnpublished | PublishBranchForceRepublish
)

// Has — флаг установлен.
func (f PublishBranchFilter) Has(flag PublishBranchFilter) bool {
	return f&flag == flag
}

// Language — язык системы.
type Language struct {
	IsoCode     string `yaml:"iso_code"`
	Name        string `yaml:"name"`
	IsDefault   bool   `yaml:"default"`
	IsMandatory bool   `yaml:"mandatory"`
}
