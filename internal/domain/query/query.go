// Пакет query — предикаты над узлами дерева.
// Предикаты вычисляются в памяти (Match) и транслируются в SQL
// репозиторием PostgreSQL по белому списку полей.
package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

// Field — поле узла, доступное в предикатах.
type Field string

// Поля предикатов.
const (
	FieldID         Field = "id"
	FieldKey        Field = "key"
	FieldParentID   Field = "parentId"
	FieldPath       Field = "path"
	FieldLevel      Field = "level"
	FieldSortOrder  Field = "sortOrder"
	FieldTrashed    Field = "trashed"
	FieldObjectType Field = "nodeObjectType"
	FieldName       Field = "name"
)

// Expr — предикат. nil означает «любой узел».
type Expr interface {
	Eval(n *model.Node) bool
	String() string
}

// Match вычисляет предикат; nil совпадает с любым узлом.
func Match(e Expr, n *model.Node) bool {
	if e == nil {
		return true
	}
	return e.Eval(n)
}

// EqExpr — поле равно значению.
type EqExpr struct {
	Field Field
	Value any
}

// InExpr — поле входит в набор значений.
type InExpr struct {
	Field  Field
	Values []any
}

// ContainsExpr — строковое поле содержит подстроку (без учёта регистра).
type ContainsExpr struct {
	Field     Field
	Substring string
}

// PrefixExpr — строковое поле начинается с префикса.
type PrefixExpr struct {
	Field  Field
	Prefix string
}

// AndExpr — все предикаты истинны.
type AndExpr struct{ Exprs []Expr }

// OrExpr — хотя бы один предикат истинен.
type OrExpr struct{ Exprs []Expr }

// NotExpr — отрицание.
type NotExpr struct{ Expr Expr }

func Eq(f Field, v any) Expr { return EqExpr{Field: f, Value: v} }

func In(f Field, values ...any) Expr { return InExpr{Field: f, Values: values} }

func Contains(f Field, s string) Expr { return ContainsExpr{Field: f, Substring: s} }

func HasPrefix(f Field, p string) Expr { return PrefixExpr{Field: f, Prefix: p} }

func Not(e Expr) Expr { return NotExpr{Expr: e} }

// And объединяет предикаты; nil-элементы пропускаются.
func And(exprs ...Expr) Expr {
	out := compact(exprs)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return AndExpr{Exprs: out}
}

// Or объединяет предикаты; nil-элементы пропускаются.
func Or(exprs ...Expr) Expr {
	out := compact(exprs)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return OrExpr{Exprs: out}
}

func compact(exprs []Expr) []Expr {
	out := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (e EqExpr) Eval(n *model.Node) bool {
	return FieldValue(n, e.Field) == Normalize(e.Value)
}

func (e EqExpr) String() string { return fmt.Sprintf("%s = %v", e.Field, e.Value) }

func (e InExpr) Eval(n *model.Node) bool {
	v := FieldValue(n, e.Field)
	for _, candidate := range e.Values {
		if v == Normalize(candidate) {
			return true
		}
	}
	return false
}

func (e InExpr) String() string { return fmt.Sprintf("%s IN %v", e.Field, e.Values) }

func (e ContainsExpr) Eval(n *model.Node) bool {
	s, ok := FieldValue(n, e.Field).(string)
	return ok && strings.Contains(strings.ToLower(s), strings.ToLower(e.Substring))
}

func (e ContainsExpr) String() string { return fmt.Sprintf("%s CONTAINS %q", e.Field, e.Substring) }

func (e PrefixExpr) Eval(n *model.Node) bool {
	s, ok := FieldValue(n, e.Field).(string)
	return ok && strings.HasPrefix(s, e.Prefix)
}

func (e PrefixExpr) String() string { return fmt.Sprintf("%s STARTS WITH %q", e.Field, e.Prefix) }

func (e AndExpr) Eval(n *model.Node) bool {
	for _, x := range e.Exprs {
		if !x.Eval(n) {
			return false
		}
	}
	return true
}

func (e AndExpr) String() string { return join(e.Exprs, " AND ") }

func (e OrExpr) Eval(n *model.Node) bool {
	for _, x := range e.Exprs {
		if x.Eval(n) {
			return true
		}
	}
	return false
}

func (e OrExpr) String() string { return join(e.Exprs, " OR ") }

func (e NotExpr) Eval(n *model.Node) bool { return !e.Expr.Eval(n) }

func (e NotExpr) String() string { return "NOT (" + e.Expr.String() + ")" }

func join(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// FieldValue извлекает нормализованное значение поля узла.
func FieldValue(n *model.Node, f Field) any {
	switch f {
	case FieldID:
		return n.ID
	case FieldKey:
		return n.Key
	case FieldParentID:
		return n.ParentID
	case FieldPath:
		return n.Path
	case FieldLevel:
		return int64(n.Level)
	case FieldSortOrder:
		return int64(n.SortOrder)
	case FieldTrashed:
		return n.Trashed
	case FieldObjectType:
		return string(n.ObjectType)
	case FieldName:
		return n.Name
	}
	return nil
}

// Normalize приводит значение к типу, в котором сравниваются поля:
// целые — к int64, тип объекта — к string.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case model.ObjectType:
		return string(x)
	case uuid.UUID, int64, string, bool:
		return x
	}
	return v
}

// ValidField проверяет поле по белому списку.
func ValidField(f Field) bool {
	return FieldValue(&model.Node{}, f) != nil
}
