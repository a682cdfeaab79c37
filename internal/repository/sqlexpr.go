package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/query"
)

// fieldColumns — белый список полей предикатов.
var fieldColumns = map[query.Field]string{
	query.FieldID:         "n.id",
	query.FieldKey:        "n.unique_id",
	query.FieldParentID:   "n.parent_id",
	query.FieldPath:       "n.path",
	query.FieldLevel:      "n.level",
	query.FieldSortOrder:  "n.sort_order",
	query.FieldTrashed:    "n.trashed",
	query.FieldObjectType: "n.object_type",
	query.FieldName:       "n.name",
}

// orderColumns — белый список полей сортировки.
var orderColumns = map[model.OrderField]string{
	model.OrderBySortOrder:  "n.sort_order",
	model.OrderByName:       "LOWER(n.name)",
	model.OrderByPath:       "n.path",
	model.OrderByObjectType: "UPPER(n.object_type)",
	model.OrderByCreateDate: "n.created_at",
	model.OrderByUpdateDate: "cv.updated_at",
	model.OrderByLevel:      "n.level",
	model.OrderByID:         "n.id",
}

// sqlArgs накапливает позиционные параметры запроса.
type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// compileExpr транслирует предикат в SQL. nil — пустая строка.
func compileExpr(e query.Expr, args *sqlArgs) (string, error) {
	if e == nil {
		return "", nil
	}
	switch x := e.(type) {
	case query.EqExpr:
		col, err := column(x.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + placeholder(x.Field, x.Value, args), nil

	case query.InExpr:
		col, err := column(x.Field)
		if err != nil {
			return "", err
		}
		if len(x.Values) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, len(x.Values))
		for i, v := range x.Values {
			parts[i] = placeholder(x.Field, v, args)
		}
		return col + " IN (" + strings.Join(parts, ", ") + ")", nil

	case query.ContainsExpr:
		col, err := column(x.Field)
		if err != nil {
			return "", err
		}
		return col + " ILIKE " + args.add("%"+escapeLike(x.Substring)+"%"), nil

	case query.PrefixExpr:
		col, err := column(x.Field)
		if err != nil {
			return "", err
		}
		return col + " LIKE " + args.add(escapeLike(x.Prefix)+"%"), nil

	case query.AndExpr:
		return compileList(x.Exprs, " AND ", args)

	case query.OrExpr:
		return compileList(x.Exprs, " OR ", args)

	case query.NotExpr:
		inner, err := compileExpr(x.Expr, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
	return "", fmt.Errorf("неподдерживаемый предикат %T", e)
}

func compileList(exprs []query.Expr, sep string, args *sqlArgs) (string, error) {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		s, err := compileExpr(e, args)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func column(f query.Field) (string, error) {
	col, ok := fieldColumns[f]
	if !ok {
		return "", fmt.Errorf("поле %q недоступно в предикатах", f)
	}
	return col, nil
}

func placeholder(f query.Field, v any, args *sqlArgs) string {
	v = query.Normalize(v)
	if key, ok := v.(uuid.UUID); ok {
		return args.add(key.String()) + "::uuid"
	}
	if f == query.FieldKey {
		return args.add(v) + "::uuid"
	}
	return args.add(v)
}

// escapeLike экранирует спецсимволы шаблона LIKE.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compileOrdering строит ORDER BY по белому списку полей.
func compileOrdering(o model.Ordering) (string, error) {
	keys := o.Keys()
	if len(keys) == 0 {
		return "", fmt.Errorf("пустая сортировка")
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		col, ok := orderColumns[k.Field]
		if !ok {
			return "", fmt.Errorf("неизвестное поле сортировки %q", k.Field)
		}
		dir := "ASC"
		if k.Direction == model.Descending {
			dir = "DESC"
		}
		parts[i] = col + " " + dir
	}
	return strings.Join(parts, ", "), nil
}

// whereClause объединяет условия через AND; пустые условия пропускаются.
func whereClause(conds ...string) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(parts, " AND ")
}
