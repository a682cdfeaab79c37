package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParsePath(t *testing.T) {
	ids, err := ParsePath("-1,10,25")
	if err != nil {
		t.Fatalf("ParsePath() вернул ошибку: %v", err)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 25 {
		t.Errorf("ids = %v, ожидалось [10 25]", ids)
	}

	if _, err := ParsePath("-1,x"); err == nil {
		t.Error("ожидалась ошибка для некорректного сегмента")
	}
	if LevelOf("-1,10,25") != 2 {
		t.Errorf("LevelOf = %d, ожидался 2", LevelOf("-1,10,25"))
	}
	if BuildPath("", 7) != "-1,7" {
		t.Errorf("BuildPath = %q", BuildPath("", 7))
	}
}

func TestNode_IsDescendantOf(t *testing.T) {
	root := &Node{ID: 1, Path: "-1,1"}
	child := &Node{ID: 12, Path: "-1,1,12"}
	other := &Node{ID: 11, Path: "-1,11"}

	if !child.IsDescendantOf(root) {
		t.Error("child должен быть потомком root")
	}
	if other.IsDescendantOf(root) {
		t.Error("-1,11 не должен считаться потомком -1,1")
	}
	if root.IsDescendantOf(root) {
		t.Error("узел не является собственным потомком")
	}
	if got := child.AncestorIDs(); len(got) != 1 || got[0] != 1 {
		t.Errorf("AncestorIDs = %v", got)
	}
}

func TestValidateQueryTypes(t *testing.T) {
	tests := []struct {
		name    string
		types   []ObjectType
		wantErr bool
	}{
		{"документ", []ObjectType{ObjectTypeDocument}, false},
		{"несколько", []ObjectType{ObjectTypeDocument, ObjectTypeMedia}, false},
		{"пусто", nil, true},
		{"резерв", []ObjectType{ObjectTypeIDReservation}, true},
		{"неизвестный", []ObjectType{"folder"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueryTypes(tt.types...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQueryTypes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var typed *UnsupportedObjectTypeError
				if !errors.As(err, &typed) {
					t.Errorf("ожидалась *UnsupportedObjectTypeError, получено %T", err)
				}
			}
		})
	}
}

func TestOrdering_WithTiebreak(t *testing.T) {
	o := Ordering{}.WithTiebreak()
	keys := o.Keys()
	if len(keys) != 2 || keys[0].Field != OrderBySortOrder || keys[1].Field != OrderByID {
		t.Fatalf("keys = %v", keys)
	}

	desc := OrderBy(OrderByName, Descending).WithTiebreak().Keys()
	if desc[1].Field != OrderByID || desc[1].Direction != Descending {
		t.Errorf("тай-брейк должен идти в направлении первого правила: %v", desc)
	}

	byID := OrderBy(OrderByID, Ascending).WithTiebreak().Keys()
	if len(byID) != 1 {
		t.Errorf("повторный тай-брейк по id не нужен: %v", byID)
	}
}

func TestOrdering_Compare(t *testing.T) {
	a := &EntitySlim{Node: Node{ID: 1, SortOrder: 0, Name: "beta"}}
	b := &EntitySlim{Node: Node{ID: 2, SortOrder: 0, Name: "Alpha"}}

	o := DefaultOrdering().WithTiebreak()
	if o.Compare(a, b) >= 0 {
		t.Error("при равном sortOrder решает id")
	}
	byName := OrderBy(OrderByName, Ascending)
	if byName.Compare(a, b) <= 0 {
		t.Error("сравнение имён без учёта регистра: Alpha < beta")
	}
}

func TestParseOrderField(t *testing.T) {
	if _, err := ParseOrderField("sortOrder"); err != nil {
		t.Errorf("sortOrder: %v", err)
	}
	if _, err := ParseOrderField("n.id; DROP TABLE node"); err == nil {
		t.Error("ожидалась ошибка для поля вне белого списка")
	}
}

func TestScheduleCollection(t *testing.T) {
	s := NewScheduleCollection()
	date := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	s.AddOrUpdate("", date, ScheduleActionRelease)
	first, _ := s.Get(InvariantCulture, ScheduleActionRelease)

	s.AddOrUpdate(InvariantCulture, date.Add(time.Hour), ScheduleActionRelease)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, ожидался 1", s.Len())
	}
	second, _ := s.Get(InvariantCulture, ScheduleActionRelease)
	if second.ID != first.ID {
		t.Error("замена записи должна сохранять идентификатор")
	}
	if !second.Date.Equal(date.Add(time.Hour)) {
		t.Errorf("Date = %v", second.Date)
	}

	s.AddOrUpdate("en-US", date, ScheduleActionExpire)
	if got := s.Cultures(); len(got) != 2 {
		t.Errorf("Cultures = %v", got)
	}
	if due := s.Due(date); len(due) != 1 || due[0].Culture != "en-US" {
		t.Errorf("Due = %v", due)
	}

	s.RemoveIfExists("en-US", ScheduleActionExpire)
	s.RemoveIfExists("en-US", ScheduleActionExpire)
	if s.Len() != 1 {
		t.Errorf("Len = %d, ожидался 1", s.Len())
	}
}

func TestContent_CloneIsDeep(t *testing.T) {
	c := &Content{
		Node:        Node{ID: 1, Key: uuid.New(), Name: "home"},
		ContentType: &ContentType{Alias: "page", VariesByCulture: true},
		Cultures: map[string]*CultureVariant{
			"en-US": {Culture: "en-US", Name: "Home", Available: true},
		},
		Properties: []Property{{Alias: "title", Values: map[string]string{"": "x"}}},
	}
	clone := c.Clone()
	clone.Cultures["en-US"].Published = true
	clone.SetValue("title", "", "y")

	if c.Cultures["en-US"].Published {
		t.Error("изменение клона затронуло культуру оригинала")
	}
	if v, _ := c.Value("title", ""); v != "x" {
		t.Errorf("значение оригинала = %q, ожидалось x", v)
	}
	if c.Dirty {
		t.Error("оригинал не должен стать Dirty")
	}
	if !clone.Dirty {
		t.Error("SetValue должен пометить экземпляр")
	}
}

func TestPublishResultType_IsSuccess(t *testing.T) {
	if !PublishResultSuccessMixedCulture.IsSuccess() {
		t.Error("SuccessMixedCulture — успешный исход")
	}
	if PublishResultFailedPublishPathNotPublished.IsSuccess() {
		t.Error("FailedPublishPathNotPublished — неуспешный исход")
	}
	if PublishResultType(0).IsSuccess() {
		t.Error("нулевое значение не является успехом")
	}
}

func TestOperationStatus_String(t *testing.T) {
	if OperationStatusCannotUnpublishWhenReferenced.String() != "CannotUnpublishWhenReferenced" {
		t.Errorf("String() = %q", OperationStatusCannotUnpublishWhenReferenced.String())
	}
}
