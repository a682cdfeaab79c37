package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/memstore"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var documentTypes = []model.ObjectType{model.ObjectTypeDocument}

// newEntityFixture создаёт in-memory дерево: корень и n детей-документов C0..Cn-1.
func newEntityFixture(t *testing.T, n int) (*EntityService, *memstore.Store, *model.Node, []*model.Node) {
	t.Helper()
	store := memstore.New(testLogger())
	ct, err := store.AddContentType(model.ContentType{Alias: "page"})
	if err != nil {
		t.Fatalf("AddContentType() вернул ошибку: %v", err)
	}
	root, err := store.AddNode(memstore.NodeSpec{ObjectType: model.ObjectTypeDocument, Name: "root", ContentTypeKey: ct.Key})
	if err != nil {
		t.Fatalf("AddNode(root) вернул ошибку: %v", err)
	}
	children := make([]*model.Node, n)
	for i := range n {
		children[i], err = store.AddNode(memstore.NodeSpec{
			ParentID:       root.ID,
			ObjectType:     model.ObjectTypeDocument,
			Name:           fmt.Sprintf("C%d", i),
			ContentTypeKey: ct.Key,
		})
		if err != nil {
			t.Fatalf("AddNode(C%d) вернул ошибку: %v", i, err)
		}
	}
	svc := NewEntityService(store, NewVariantAggregator(store, 0, testLogger()), testLogger())
	return svc, store, root, children
}

func names(items []*model.EntitySlim) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetSiblings_Window(t *testing.T) {
	svc, store, _, children := newEntityFixture(t, 10)
	ctx := context.Background()

	got, err := svc.GetSiblings(ctx, children[1].Key, model.ObjectTypeDocument, 1, 1, model.Ordering{})
	if err != nil {
		t.Fatalf("GetSiblings() вернул ошибку: %v", err)
	}
	if want := []string{"C0", "C1", "C2"}; !equalStrings(names(got), want) {
		t.Errorf("GetSiblings(C1) = %v, ожидалось %v", names(got), want)
	}

	// Узел в корзине исключается из ранжирования, окно сдвигается.
	if err := store.Trash(children[1].ID); err != nil {
		t.Fatalf("Trash() вернул ошибку: %v", err)
	}
	got, err = svc.GetSiblings(ctx, children[2].Key, model.ObjectTypeDocument, 1, 1, model.Ordering{})
	if err != nil {
		t.Fatalf("GetSiblings() вернул ошибку: %v", err)
	}
	if want := []string{"C0", "C2", "C3"}; !equalStrings(names(got), want) {
		t.Errorf("GetSiblings(C2) после удаления C1 = %v, ожидалось %v", names(got), want)
	}
}

func TestGetSiblings_Edges(t *testing.T) {
	svc, store, _, children := newEntityFixture(t, 3)
	ctx := context.Background()

	tests := []struct {
		name          string
		target        uuid.UUID
		before, after int
		want          []string
	}{
		{"первый узел", children[0].Key, 2, 1, []string{"C0", "C1"}},
		{"последний узел", children[2].Key, 1, 5, []string{"C1", "C2"}},
		{"отрицательные границы", children[1].Key, -3, -1, []string{"C1"}},
		{"несуществующая цель", uuid.New(), 1, 1, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetSiblings(ctx, tt.target, model.ObjectTypeDocument, tt.before, tt.after, model.Ordering{})
			if err != nil {
				t.Fatalf("GetSiblings() вернул ошибку: %v", err)
			}
			if !equalStrings(names(got), tt.want) {
				t.Errorf("GetSiblings() = %v, ожидалось %v", names(got), tt.want)
			}
		})
	}

	t.Run("цель в корзине", func(t *testing.T) {
		if err := store.Trash(children[0].ID); err != nil {
			t.Fatalf("Trash() вернул ошибку: %v", err)
		}
		got, err := svc.GetSiblings(ctx, children[0].Key, model.ObjectTypeDocument, 1, 1, model.Ordering{})
		if err != nil || len(got) != 0 {
			t.Errorf("GetSiblings() = %v, %v; ожидался пустой результат", names(got), err)
		}
	})
}

func TestGetPagedChildren_Partition(t *testing.T) {
	svc, _, root, _ := newEntityFixture(t, 10)
	ctx := context.Background()

	seen := map[string]bool{}
	for page := int64(0); page < 2; page++ {
		items, total, err := svc.GetPagedChildren(ctx, root.ID, documentTypes, PageRequest{PageIndex: page, PageSize: 6})
		if err != nil {
			t.Fatalf("GetPagedChildren(page=%d) вернул ошибку: %v", page, err)
		}
		if total != 10 {
			t.Errorf("total = %d, ожидалось 10", total)
		}
		for _, e := range items {
			if seen[e.Name] {
				t.Errorf("узел %s встречается на нескольких страницах", e.Name)
			}
			seen[e.Name] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("страницы покрывают %d узлов, ожидалось 10", len(seen))
	}

	items, total, err := svc.GetPagedChildren(ctx, root.ID, documentTypes, PageRequest{PageIndex: 5, PageSize: 6})
	if err != nil || len(items) != 0 || total != 10 {
		t.Errorf("страница за пределами: %d элементов, total=%d, err=%v", len(items), total, err)
	}
}

func TestGetPagedChildren_Trashed(t *testing.T) {
	svc, store, root, children := newEntityFixture(t, 4)
	ctx := context.Background()
	if err := store.Trash(children[3].ID); err != nil {
		t.Fatalf("Trash() вернул ошибку: %v", err)
	}

	_, active, err := svc.GetPagedChildren(ctx, root.ID, documentTypes, PageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("GetPagedChildren() вернул ошибку: %v", err)
	}
	trashed, total, err := svc.GetPagedTrashedChildren(ctx, root.ID, documentTypes, PageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("GetPagedTrashedChildren() вернул ошибку: %v", err)
	}
	if active != 3 || total != 1 || trashed[0].Name != "C3" {
		t.Errorf("active = %d, trashed = %d (%v)", active, total, names(trashed))
	}

	// Счётчик детей учитывает и узлы в корзине.
	e, err := svc.GetByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if e.ChildCount != 4 {
		t.Errorf("ChildCount = %d, ожидалось 4", e.ChildCount)
	}
}

func TestPaging_Invalid(t *testing.T) {
	svc, _, root, _ := newEntityFixture(t, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		req  PageRequest
	}{
		{"отрицательный номер страницы", PageRequest{PageIndex: -1, PageSize: 10}},
		{"нулевой размер", PageRequest{PageSize: 0}},
		{"отрицательный размер", PageRequest{PageSize: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.GetPagedChildren(ctx, root.ID, documentTypes, tt.req); !errors.Is(err, ErrInvalidPaging) {
				t.Errorf("GetPagedChildren() ошибка = %v, ожидалась ErrInvalidPaging", err)
			}
			if _, _, err := svc.GetPagedDescendants(ctx, 424242, documentTypes, tt.req, false); !errors.Is(err, ErrInvalidPaging) {
				t.Errorf("GetPagedDescendants() ошибка = %v, ожидалась ErrInvalidPaging", err)
			}
		})
	}
}

func TestQuery_UnsupportedType(t *testing.T) {
	svc, _, root, _ := newEntityFixture(t, 1)
	ctx := context.Background()

	var unsupported *model.UnsupportedObjectTypeError
	for _, types := range [][]model.ObjectType{nil, {"widget"}, {model.ObjectTypeIDReservation}} {
		_, _, err := svc.GetPagedChildren(ctx, root.ID, types, PageRequest{PageSize: 10})
		if !errors.As(err, &unsupported) {
			t.Errorf("GetPagedChildren(%v) ошибка = %v, ожидалась UnsupportedObjectTypeError", types, err)
		}
	}
}

func TestGetPagedDescendants(t *testing.T) {
	svc, store, root, children := newEntityFixture(t, 3)
	ctx := context.Background()

	ct, err := store.AddContentType(model.ContentType{Alias: "article"})
	if err != nil {
		t.Fatalf("AddContentType() вернул ошибку: %v", err)
	}
	grandchild, err := store.AddNode(memstore.NodeSpec{
		ParentID:       children[0].ID,
		ObjectType:     model.ObjectTypeDocument,
		Name:           "G0",
		ContentTypeKey: ct.Key,
	})
	if err != nil {
		t.Fatalf("AddNode() вернул ошибку: %v", err)
	}
	if err := store.Trash(grandchild.ID); err != nil {
		t.Fatalf("Trash() вернул ошибку: %v", err)
	}

	_, total, err := svc.GetPagedDescendants(ctx, root.ID, documentTypes, PageRequest{PageSize: 100}, false)
	if err != nil {
		t.Fatalf("GetPagedDescendants() вернул ошибку: %v", err)
	}
	if total != 3 {
		t.Errorf("потомки без корзины: total = %d, ожидалось 3", total)
	}

	_, total, err = svc.GetPagedDescendants(ctx, root.ID, documentTypes, PageRequest{PageSize: 100}, true)
	if err != nil {
		t.Fatalf("GetPagedDescendants() вернул ошибку: %v", err)
	}
	if total != 4 {
		t.Errorf("потомки с корзиной: total = %d, ожидалось 4", total)
	}

	// Корень всего дерева: корневой документ и его потомки вне корзины.
	_, total, err = svc.GetPagedDescendants(ctx, model.RootID, documentTypes, PageRequest{PageSize: 100}, false)
	if err != nil {
		t.Fatalf("GetPagedDescendants(root) вернул ошибку: %v", err)
	}
	if total != 4 {
		t.Errorf("всё дерево: total = %d, ожидалось 4", total)
	}

	items, total, err := svc.GetPagedDescendants(ctx, 987654, documentTypes, PageRequest{PageSize: 10}, false)
	if err != nil || total != 0 || len(items) != 0 {
		t.Errorf("несуществующий корень: %d элементов, total=%d, err=%v", len(items), total, err)
	}
}

func TestReserveID_AndGetID(t *testing.T) {
	svc, _, _, children := newEntityFixture(t, 1)
	ctx := context.Background()
	key := uuid.New()

	id, err := svc.ReserveID(ctx, key)
	if err != nil {
		t.Fatalf("ReserveID() вернул ошибку: %v", err)
	}
	got, err := svc.GetID(ctx, key, model.ObjectTypeDocument)
	if err != nil || got != id {
		t.Errorf("GetID(резерв) = %d, %v; ожидалось %d", got, err, id)
	}

	if _, err := svc.ReserveID(ctx, key); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный ReserveID() ошибка = %v, ожидалась ErrConflict", err)
	}
	if _, err := svc.GetID(ctx, children[0].Key, model.ObjectTypeMedia); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetID(другой тип) ошибка = %v, ожидалась ErrNotFound", err)
	}
	if _, err := svc.GetID(ctx, uuid.New(), model.ObjectTypeDocument); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetID(неизвестный) ошибка = %v, ожидалась ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	svc, _, root, children := newEntityFixture(t, 2)
	ctx := context.Background()

	tests := []struct {
		name string
		keys []uuid.UUID
		want bool
	}{
		{"все существуют", []uuid.UUID{root.Key, children[0].Key}, true},
		{"повторы", []uuid.UUID{children[1].Key, children[1].Key}, true},
		{"один отсутствует", []uuid.UUID{root.Key, uuid.New()}, false},
		{"пустой набор", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Exists(ctx, tt.keys...)
			if err != nil {
				t.Fatalf("Exists() вернул ошибку: %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists() = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestGetObjectType_Unknown(t *testing.T) {
	svc, _, root, _ := newEntityFixture(t, 0)
	ctx := context.Background()

	if got, err := svc.GetObjectType(ctx, root.ID); err != nil || got != model.ObjectTypeDocument {
		t.Errorf("GetObjectType(root) = %q, %v", got, err)
	}
	if got, err := svc.GetObjectTypeByKey(ctx, uuid.New()); err != nil || got != model.ObjectTypeUnknown {
		t.Errorf("GetObjectTypeByKey(неизвестный) = %q, %v", got, err)
	}
	if e, err := svc.GetByKey(ctx, uuid.New()); err != nil || e != nil {
		t.Errorf("GetByKey(неизвестный) = %v, %v; ожидалось nil, nil", e, err)
	}
}

func TestGetPathKeys(t *testing.T) {
	svc, _, root, children := newEntityFixture(t, 1)
	ctx := context.Background()

	e, err := svc.GetByID(ctx, children[0].ID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}

	keys, err := svc.GetPathKeys(ctx, e, false)
	if err != nil {
		t.Fatalf("GetPathKeys() вернул ошибку: %v", err)
	}
	if len(keys) != 2 || keys[0] != root.Key || keys[1] != children[0].Key {
		t.Errorf("GetPathKeys() = %v", keys)
	}

	keys, err = svc.GetPathKeys(ctx, e, true)
	if err != nil || len(keys) != 1 || keys[0] != root.Key {
		t.Errorf("GetPathKeys(omitSelf) = %v, %v", keys, err)
	}
}
