package model

import (
	"time"

	"github.com/google/uuid"
)

// EntitySlim — облегчённое представление узла для чтения.
// Набор заполненных разделов зависит от типа объекта:
// Content — для документов, шаблонов, медиа и участников,
// Document — для документов и шаблонов, Media — для медиа.
type EntitySlim struct {
	Node

	// ChildCount — число непосредственных детей запрошенных типов
	ChildCount int64
	// UpdatedAt — время последнего изменения текущей версии
	UpdatedAt time.Time

	Content  *ContentInfo
	Document *DocumentInfo
	Media    *MediaInfo
}

// HasChildren — у узла есть дети.
func (e *EntitySlim) HasChildren() bool {
	return e.ChildCount > 0
}

// ContentInfo — сведения о типе контента и текущей версии.
type ContentInfo struct {
	VersionID        int64
	ContentTypeKey   uuid.UUID
	ContentTypeAlias string
	ContentTypeIcon  string
	VariesByCulture  bool
}

// DocumentInfo — состояние публикации документа.
type DocumentInfo struct {
	Published bool
	Edited    bool
	// CultureNames — имена по культурам, только доступные культуры
	CultureNames map[string]string
	// PublishedCultures — опубликованные культуры
	PublishedCultures []string
	// EditedCultures — доступные культуры с неопубликованными изменениями
	EditedCultures []string
}

// MediaInfo — сведения о файле медиа.
type MediaInfo struct {
	MediaPath string
}

// VariesByCulture — контент варьируется по культурам.
func (e *EntitySlim) VariesByCulture() bool {
	return e.Content != nil && e.Content.VariesByCulture
}

// VariantInfo — строка сведений о культуре документа.
type VariantInfo struct {
	NodeID    int64
	Culture   string
	Name      string
	Available bool
	Published bool
	Edited    bool
}
