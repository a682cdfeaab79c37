package model

import "fmt"

// ObjectType — тип объекта дерева (node.object_type).
type ObjectType string

// Поддерживаемые типы объектов.
const (
	// ObjectTypeUnknown — тип не определён (объект отсутствует)
	ObjectTypeUnknown ObjectType = ""
	// ObjectTypeDocument — документ (публикуемый контент)
	ObjectTypeDocument ObjectType = "document"
	// ObjectTypeDocumentBlueprint — шаблон документа
	ObjectTypeDocumentBlueprint ObjectType = "document-blueprint"
	// ObjectTypeMedia — медиа-элемент
	ObjectTypeMedia ObjectType = "media"
	// ObjectTypeMember — участник (member)
	ObjectTypeMember ObjectType = "member"
	// ObjectTypeOther — прочие узлы дерева (типы контента, папки и т.п.)
	ObjectTypeOther ObjectType = "other"
	// ObjectTypeIDReservation — зарезервированный идентификатор
	ObjectTypeIDReservation ObjectType = "id-reservation"
)

// UnsupportedObjectTypeError — тип объекта нельзя использовать в запросе.
type UnsupportedObjectTypeError struct {
	Type ObjectType
}

func (e *UnsupportedObjectTypeError) Error() string {
	if e.Type == ObjectTypeUnknown {
		return "не указан тип объекта"
	}
	return fmt.Sprintf("неподдерживаемый тип объекта %q", string(e.Type))
}

// ParseObjectType разбирает строковое представление типа объекта.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(s)
	switch t {
	case ObjectTypeDocument, ObjectTypeDocumentBlueprint, ObjectTypeMedia,
		ObjectTypeMember, ObjectTypeOther, ObjectTypeIDReservation:
		return t, nil
	}
	return ObjectTypeUnknown, &UnsupportedObjectTypeError{Type: t}
}

// IsDocumentBased — документ или шаблон документа.
func (t ObjectType) IsDocumentBased() bool {
	return t == ObjectTypeDocument || t == ObjectTypeDocumentBlueprint
}

// IsContentBased — объект с типом контента и версиями (документ, шаблон, медиа, участник).
func (t ObjectType) IsContentBased() bool {
	return t.IsDocumentBased() || t == ObjectTypeMedia || t == ObjectTypeMember
}

// ValidateQueryTypes проверяет набор типов для запроса к дереву.
// Пустой набор, неизвестный тип и резерв идентификатора отклоняются.
func ValidateQueryTypes(types ...ObjectType) error {
	if len(types) == 0 {
		return &UnsupportedObjectTypeError{}
	}
	for _, t := range types {
		if _, err := ParseObjectType(string(t)); err != nil {
			return err
		}
		if t == ObjectTypeIDReservation {
			return &UnsupportedObjectTypeError{Type: t}
		}
	}
	return nil
}

// ObjectTypeStrings конвертирует типы в []string для параметров SQL.
func ObjectTypeStrings(types []ObjectType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
