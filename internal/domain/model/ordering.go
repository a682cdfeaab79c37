package model

import (
	"cmp"
	"fmt"
	"strings"
)

// Direction — направление сортировки.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// OrderField — поле сортировки из белого списка.
type OrderField string

// Поля сортировки.
const (
	OrderBySortOrder  OrderField = "sortOrder"
	OrderByName       OrderField = "name"
	OrderByPath       OrderField = "path"
	OrderByObjectType OrderField = "nodeObjectType"
	OrderByCreateDate OrderField = "createDate"
	OrderByUpdateDate OrderField = "updateDate"
	OrderByLevel      OrderField = "level"
	OrderByID         OrderField = "id"
)

// ParseOrderField проверяет имя поля сортировки по белому списку.
func ParseOrderField(s string) (OrderField, error) {
	f := OrderField(s)
	switch f {
	case OrderBySortOrder, OrderByName, OrderByPath, OrderByObjectType,
		OrderByCreateDate, OrderByUpdateDate, OrderByLevel, OrderByID:
		return f, nil
	}
	return "", fmt.Errorf("неизвестное поле сортировки %q", s)
}

// OrderKey — одно правило сортировки.
type OrderKey struct {
	Field     OrderField
	Direction Direction
}

// Ordering — последовательность правил сортировки.
// Нулевое значение — пустая сортировка.
type Ordering struct {
	keys []OrderKey
}

// OrderBy создаёт сортировку из одного правила.
func OrderBy(field OrderField, dir Direction) Ordering {
	return Ordering{keys: []OrderKey{{Field: field, Direction: dir}}}
}

// DefaultOrdering — сортировка по sortOrder по возрастанию.
func DefaultOrdering() Ordering {
	return OrderBy(OrderBySortOrder, Ascending)
}

// ThenBy возвращает новую сортировку с дополнительным правилом.
func (o Ordering) ThenBy(field OrderField, dir Direction) Ordering {
	keys := make([]OrderKey, len(o.keys), len(o.keys)+1)
	copy(keys, o.keys)
	return Ordering{keys: append(keys, OrderKey{Field: field, Direction: dir})}
}

// IsEmpty — правил нет.
func (o Ordering) IsEmpty() bool {
	return len(o.keys) == 0
}

// Keys возвращает копию правил.
func (o Ordering) Keys() []OrderKey {
	out := make([]OrderKey, len(o.keys))
	copy(out, o.keys)
	return out
}

// Validate проверяет все поля по белому списку.
func (o Ordering) Validate() error {
	for _, k := range o.keys {
		if _, err := ParseOrderField(string(k.Field)); err != nil {
			return err
		}
	}
	return nil
}

// WithTiebreak добавляет в конец сортировку по ID в направлении первого правила.
// Пустая сортировка заменяется на DefaultOrdering.
func (o Ordering) WithTiebreak() Ordering {
	if o.IsEmpty() {
		o = DefaultOrdering()
	}
	last := o.keys[len(o.keys)-1]
	if last.Field == OrderByID {
		return o
	}
	return o.ThenBy(OrderByID, o.keys[0].Direction)
}

func (o Ordering) String() string {
	parts := make([]string, len(o.keys))
	for i, k := range o.keys {
		parts[i] = string(k.Field) + " " + k.Direction.String()
	}
	return strings.Join(parts, ", ")
}

// Compare сравнивает две сущности по правилам сортировки.
func (o Ordering) Compare(a, b *EntitySlim) int {
	for _, k := range o.keys {
		c := compareField(k.Field, a, b)
		if k.Direction == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareField(f OrderField, a, b *EntitySlim) int {
	switch f {
	case OrderBySortOrder:
		return cmp.Compare(a.SortOrder, b.SortOrder)
	case OrderByName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case OrderByPath:
		return strings.Compare(a.Path, b.Path)
	case OrderByObjectType:
		return strings.Compare(strings.ToUpper(string(a.ObjectType)), strings.ToUpper(string(b.ObjectType)))
	case OrderByCreateDate:
		return a.CreatedAt.Compare(b.CreatedAt)
	case OrderByUpdateDate:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case OrderByLevel:
		return cmp.Compare(a.Level, b.Level)
	case OrderByID:
		return cmp.Compare(a.ID, b.ID)
	}
	return 0
}
