package model

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// InvariantCulture — обозначение «все культуры / инвариантный контент».
const InvariantCulture = "*"

// ContentType — тип контента. Хранится в таблице content_type.
type ContentType struct {
	// ID — идентификатор узла типа
	ID int64
	// Key — глобальный идентификатор типа
	Key uuid.UUID
	// Alias — алиас типа (уникален)
	Alias string
	// Icon — иконка
	Icon string
	// VariesByCulture — контент этого типа варьируется по культурам
	VariesByCulture bool
	// Properties — описания свойств
	Properties []PropertyType
}

// PropertyType — описание свойства типа контента.
type PropertyType struct {
	Alias           string `json:"alias"`
	VariesByCulture bool   `json:"variesByCulture"`
	Mandatory       bool   `json:"mandatory"`
	// Pattern — регулярное выражение для значения (пусто — без проверки)
	Pattern string `json:"pattern,omitempty"`
}

// Property — значение свойства. Values: культура ("" для инвариантного) → значение.
type Property struct {
	Alias           string            `json:"alias"`
	VariesByCulture bool              `json:"variesByCulture"`
	Values          map[string]string `json:"values"`
}

// ContentVersion — текущая версия контента.
type ContentVersion struct {
	ID        int64
	UpdatedAt time.Time
	WriterID  *int64
}

// PublishedVersion — сведения о последней публикации.
// Присутствует, только если контент когда-либо публиковался.
type PublishedVersion struct {
	VersionID   int64
	PublishedAt time.Time
	PublisherID int64
}

// CultureVariant — состояние культуры варьируемого документа.
// Published допустим только вместе с Available.
type CultureVariant struct {
	Culture   string
	Name      string
	Available bool
	Published bool
	Edited    bool
}

// Content — документ, загруженный для изменения.
type Content struct {
	Node

	ContentType *ContentType
	Version     ContentVersion

	// Published — опубликована хотя бы одна культура (или инвариантный контент)
	Published bool
	// Edited — есть неопубликованные изменения
	Edited           bool
	PublishedVersion *PublishedVersion

	// Cultures — культуры варьируемого документа по ISO-коду
	Cultures   map[string]*CultureVariant
	Properties []Property

	// RowVersion — версия строки для оптимистической блокировки
	RowVersion int64
	// Dirty — в экземпляре есть несохранённые изменения
	Dirty bool
}

// VariesByCulture — контент варьируется по культурам.
func (c *Content) VariesByCulture() bool {
	return c.ContentType != nil && c.ContentType.VariesByCulture
}

// PublishName возвращает имя для культуры; для инвариантного контента — имя узла.
func (c *Content) PublishName(culture string) string {
	if culture == "" || culture == InvariantCulture || !c.VariesByCulture() {
		return c.Name
	}
	if v, ok := c.Cultures[culture]; ok {
		return v.Name
	}
	return ""
}

// AvailableCultures — культуры с заданным именем, по алфавиту.
func (c *Content) AvailableCultures() []string {
	return c.cultures(func(v *CultureVariant) bool { return v.Available })
}

// PublishedCultures — опубликованные культуры, по алфавиту.
func (c *Content) PublishedCultures() []string {
	return c.cultures(func(v *CultureVariant) bool { return v.Published })
}

// IsCulturePublished — культура опубликована.
func (c *Content) IsCulturePublished(culture string) bool {
	v, ok := c.Cultures[culture]
	return ok && v.Published
}

// IsCultureAvailable — у культуры есть имя.
func (c *Content) IsCultureAvailable(culture string) bool {
	v, ok := c.Cultures[culture]
	return ok && v.Available
}

func (c *Content) cultures(pred func(*CultureVariant) bool) []string {
	var out []string
	for iso, v := range c.Cultures {
		if pred(v) {
			out = append(out, iso)
		}
	}
	sort.Strings(out)
	return out
}

// Value возвращает значение свойства для культуры ("" — инвариантное значение).
func (c *Content) Value(alias, culture string) (string, bool) {
	for _, p := range c.Properties {
		if p.Alias != alias {
			continue
		}
		v, ok := p.Values[culture]
		return v, ok
	}
	return "", false
}

// SetValue задаёт значение свойства и помечает экземпляр изменённым.
func (c *Content) SetValue(alias, culture, value string) {
	c.Dirty = true
	for i := range c.Properties {
		if c.Properties[i].Alias == alias {
			if c.Properties[i].Values == nil {
				c.Properties[i].Values = map[string]string{}
			}
			c.Properties[i].Values[culture] = value
			return
		}
	}
	c.Properties = append(c.Properties, Property{
		Alias:           alias,
		VariesByCulture: culture != "",
		Values:          map[string]string{culture: value},
	})
}

// Clone возвращает глубокую копию.
func (c *Content) Clone() *Content {
	out := *c
	if c.CreatorID != nil {
		id := *c.CreatorID
		out.CreatorID = &id
	}
	if c.Version.WriterID != nil {
		id := *c.Version.WriterID
		out.Version.WriterID = &id
	}
	if c.PublishedVersion != nil {
		pv := *c.PublishedVersion
		out.PublishedVersion = &pv
	}
	if c.Cultures != nil {
		out.Cultures = make(map[string]*CultureVariant, len(c.Cultures))
		for iso, v := range c.Cultures {
			cv := *v
			out.Cultures[iso] = &cv
		}
	}
	out.Properties = make([]Property, len(c.Properties))
	for i, p := range c.Properties {
		out.Properties[i] = Property{
			Alias:           p.Alias,
			VariesByCulture: p.VariesByCulture,
			Values:          maps.Clone(p.Values),
		}
	}
	if c.ContentType != nil {
		ct := *c.ContentType
		ct.Properties = slices.Clone(c.ContentType.Properties)
		out.ContentType = &ct
	}
	return &out
}

// PropertyValue — значение свойства в модели валидации.
type PropertyValue struct {
	Alias   string
	Value   string
	Culture string
}

// VariantName — имя культуры в модели валидации.
type VariantName struct {
	Name    string
	Culture string
}

// ContentUpdateModel — представление контента для валидации.
type ContentUpdateModel struct {
	Properties []PropertyValue
	Variants   []VariantName
}

// PropertyViolation — нарушение правила валидации свойства.
type PropertyViolation struct {
	Alias   string
	Culture string
	Rule    string
}
